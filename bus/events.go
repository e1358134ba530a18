package bus

// EventType 事件类型。字符串常量就是 agent 之间的稳定协议：
// 每个类型对应一个固定的负载结构，不能随意改动。
type EventType string

const (
	// EventLearningStart 恢复巩固（无负载）
	EventLearningStart EventType = "learning:start"
	// EventLearningStop 暂停巩固（无负载）
	EventLearningStop EventType = "learning:stop"
	// EventPerceptionNewData 感知层产出了新数据，负载 NewDataPayload
	EventPerceptionNewData EventType = "perception:new_data"
	// EventLearningNewMemory 一条新记忆完成落盘，负载 NewMemoryPayload
	EventLearningNewMemory EventType = "learning:new_memory"
	// EventExtractFacts 请求从文本抽取符号事实，负载 ExtractFactsPayload
	EventExtractFacts EventType = "learning:extract_facts"
	// EventReasoningQuery 自然语言查询，负载 QueryPayload
	EventReasoningQuery EventType = "reasoning:query"
	// EventReasoningResponse 查询的回答，负载 ResponsePayload
	EventReasoningResponse EventType = "reasoning:response"
	// EventGapDetected 检索置信度不足，请求外部找料，负载 GapPayload
	EventGapDetected EventType = "gap_detected"
)

// NewDataPayload perception:new_data 的负载
type NewDataPayload struct {
	Source string
}

// NewMemoryPayload learning:new_memory 的负载
type NewMemoryPayload struct {
	MemoryID uint
}

// ExtractFactsPayload learning:extract_facts 的负载
type ExtractFactsPayload struct {
	Text       string
	Source     string
	Confidence float64
}

// QueryPayload reasoning:query 的负载
type QueryPayload struct {
	QueryText string
	RequestID string
}

// ResponsePayload reasoning:response 的负载
type ResponsePayload struct {
	RequestID string
	Response  string
}

// GapPayload gap_detected 的负载。RequestID 可为空（主动巡航发现的
// 知识盲区没有对应的查询请求）。
type GapPayload struct {
	Topic     string
	RequestID string
}
