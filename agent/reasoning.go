package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/bus"
	"github.com/BaSui01/neuroswarm/memory"
)

// Responder 把检索结果组织成自然语言回答。默认实现是纯模板拼接，
// 生产环境可以换成 LLM 后端。
type Responder interface {
	Respond(ctx context.Context, query string, concepts []memory.ConceptHit, memories []memory.MemoryHit) (string, error)
}

// TemplateResponder 无外部依赖的兜底回答器
type TemplateResponder struct{}

// Respond 实现 Responder 接口
func (TemplateResponder) Respond(_ context.Context, query string, concepts []memory.ConceptHit, memories []memory.MemoryHit) (string, error) {
	var sb strings.Builder
	if len(concepts) > 0 {
		best := concepts[0]
		fmt.Fprintf(&sb, "Based on the concept %q: %s", best.Concept.Name, best.Concept.Definition)
	}
	if len(memories) > 0 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "I recall: %s", memories[0].Memory.Content)
	}
	if sb.Len() == 0 {
		fmt.Fprintf(&sb, "I don't know enough about %q yet.", query)
	}
	return sb.String(), nil
}

// ReasoningAgentConfig 查询应答 agent 的调参项
type ReasoningAgentConfig struct {
	// TopK 每路检索的候选数，默认 3
	TopK int
	// MinSimilarity 进入回答的相似度下限，默认 0.1
	MinSimilarity float64
	// GapThreshold 最佳命中低于该分数时广播 gap_detected，默认 0.4
	GapThreshold float64
	// MaxQueueDepth 待答队列上限，超出丢弃最旧，默认 64
	MaxQueueDepth int
}

func (c *ReasoningAgentConfig) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.1
	}
	if c.GapThreshold <= 0 {
		c.GapThreshold = 0.4
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = 64
	}
}

// ReasoningAgent 订阅 reasoning:query，按记忆和概念两路语义检索
// 组织回答并广播 reasoning:response。
//
// 事件回调只入队不干活：检索要碰数据库，不能占着总线发布者的
// 调用栈。实际应答在 ProcessStep 里逐条出队完成。
type ReasoningAgent struct {
	name      string
	mgr       *memory.Manager
	eventBus  *bus.EventBus
	responder Responder
	cfg       ReasoningAgentConfig
	logger    *zap.Logger

	mu           sync.Mutex
	pending      []bus.QueryPayload
	dropped      uint64
	subscription []string
}

// NewReasoningAgent 创建查询应答 agent。responder 为 nil 时使用
// TemplateResponder。
func NewReasoningAgent(name string, mgr *memory.Manager, eventBus *bus.EventBus, responder Responder, cfg ReasoningAgentConfig, logger *zap.Logger) *ReasoningAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if responder == nil {
		responder = TemplateResponder{}
	}
	cfg.applyDefaults()
	return &ReasoningAgent{
		name:      name,
		mgr:       mgr,
		eventBus:  eventBus,
		responder: responder,
		cfg:       cfg,
		logger:    logger.With(zap.String("agent", name)),
	}
}

// Name 实现 Agent 接口
func (a *ReasoningAgent) Name() string { return a.name }

// Setup 订阅查询事件
func (a *ReasoningAgent) Setup(ctx context.Context) error {
	a.subscription = append(a.subscription,
		a.eventBus.Subscribe(bus.EventReasoningQuery, func(payload any) {
			query, ok := payload.(bus.QueryPayload)
			if !ok {
				a.logger.Warn("dropping malformed query payload")
				return
			}
			a.enqueue(query)
		}),
	)
	return nil
}

func (a *ReasoningAgent) enqueue(query bus.QueryPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) >= a.cfg.MaxQueueDepth {
		a.pending = a.pending[1:]
		a.dropped++
		a.logger.Warn("query queue full, dropping oldest",
			zap.Uint64("dropped_total", a.dropped))
	}
	a.pending = append(a.pending, query)
}

func (a *ReasoningAgent) dequeue() (bus.QueryPayload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return bus.QueryPayload{}, false
	}
	query := a.pending[0]
	a.pending = a.pending[1:]
	return query, true
}

// ProcessStep 清空待答队列
func (a *ReasoningAgent) ProcessStep(ctx context.Context) error {
	var lastErr error
	for {
		query, ok := a.dequeue()
		if !ok {
			return lastErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.answer(ctx, query); err != nil {
			a.logger.Error("failed to answer query",
				zap.String("request_id", query.RequestID), zap.Error(err))
			lastErr = err
		}
	}
}

func (a *ReasoningAgent) answer(ctx context.Context, query bus.QueryPayload) error {
	concepts, err := a.mgr.FindRelevantConcepts(ctx, query.QueryText, a.cfg.TopK, a.cfg.MinSimilarity)
	if err != nil {
		return err
	}
	memories, err := a.mgr.FindRelevantMemories(ctx, query.QueryText, a.cfg.TopK, a.cfg.MinSimilarity)
	if err != nil {
		return err
	}

	best := 0.0
	if len(concepts) > 0 {
		best = concepts[0].Score
	}
	if len(memories) > 0 && memories[0].Score > best {
		best = memories[0].Score
	}
	if best < a.cfg.GapThreshold {
		a.logger.Info("knowledge gap detected",
			zap.String("topic", query.QueryText), zap.Float64("best_score", best))
		a.eventBus.Publish(bus.EventGapDetected, bus.GapPayload{
			Topic:     query.QueryText,
			RequestID: query.RequestID,
		})
	}

	response, err := a.responder.Respond(ctx, query.QueryText, concepts, memories)
	if err != nil {
		return err
	}
	a.eventBus.Publish(bus.EventReasoningResponse, bus.ResponsePayload{
		RequestID: query.RequestID,
		Response:  response,
	})
	return nil
}

// Teardown 退订事件
func (a *ReasoningAgent) Teardown(ctx context.Context) {
	for _, id := range a.subscription {
		a.eventBus.Unsubscribe(id)
	}
	a.subscription = nil
}

// PendingQueries 待答队列长度
func (a *ReasoningAgent) PendingQueries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
