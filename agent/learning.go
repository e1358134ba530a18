package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/bus"
	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/reasoning"
)

// Triple 从文本中抽出的一条符号事实
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// TripleExtractor 事实抽取协作者（通常由外部模型实现）。
// 抽不出来返回空切片即可，不要报错。
type TripleExtractor interface {
	Extract(ctx context.Context, text string) ([]Triple, error)
}

// LearningAgent swarm 的消化系统：把短期缓冲里的原始观察巩固成
// 长期记忆和符号事实。
//
// 每轮 ProcessStep 原子地取走全部待处理观察，逐条：按来源可信度
// 打分 → 落盘为带向量的记忆 → 广播 learning:new_memory 和
// learning:extract_facts → （配置了抽取器时）就地抽取三元组并经
// 矛盾仲裁后入库。
type LearningAgent struct {
	name      string
	mgr       *memory.Manager
	eventBus  *bus.EventBus
	extractor TripleExtractor
	arbiter   *reasoning.Arbiter
	logger    *zap.Logger

	active       atomic.Bool
	subscription []string
	consolidated atomic.Uint64
}

// NewLearningAgent 创建巩固 agent。extractor 可为 nil（只存记忆，
// 事实抽取完全交给事件总线上的其他订阅者）。
func NewLearningAgent(name string, mgr *memory.Manager, eventBus *bus.EventBus, extractor TripleExtractor, arbiter *reasoning.Arbiter, logger *zap.Logger) *LearningAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &LearningAgent{
		name:      name,
		mgr:       mgr,
		eventBus:  eventBus,
		extractor: extractor,
		arbiter:   arbiter,
		logger:    logger.With(zap.String("agent", name)),
	}
	a.active.Store(true)
	return a
}

// Name 实现 Agent 接口
func (a *LearningAgent) Name() string { return a.name }

// Setup 订阅启停事件
func (a *LearningAgent) Setup(ctx context.Context) error {
	a.subscription = append(a.subscription,
		a.eventBus.Subscribe(bus.EventLearningStart, func(any) {
			a.logger.Info("resuming consolidation")
			a.active.Store(true)
		}),
		a.eventBus.Subscribe(bus.EventLearningStop, func(any) {
			a.logger.Info("pausing consolidation")
			a.active.Store(false)
		}),
	)
	return nil
}

// ProcessStep 巩固一批观察
func (a *LearningAgent) ProcessStep(ctx context.Context) error {
	if !a.active.Load() {
		return nil
	}

	observations := a.mgr.GetAndClearObservations()
	if len(observations) == 0 {
		return nil
	}

	var lastErr error
	for _, obs := range observations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !a.active.Load() {
			a.logger.Info("pause detected, halting batch")
			return lastErr
		}
		if err := a.consolidate(ctx, obs); err != nil {
			// 单条失败不拖垮整批
			a.logger.Error("failed to consolidate observation",
				zap.String("source", obs.Source), zap.Error(err))
			lastErr = err
		}
	}

	a.logger.Debug("batch complete",
		zap.Int("batch", len(observations)),
		zap.Uint64("total", a.consolidated.Load()))
	return lastErr
}

func (a *LearningAgent) consolidate(ctx context.Context, obs memory.Observation) error {
	confidence := sourceTrust(obs.Source)

	memoryID, err := a.mgr.StoreMemory(ctx, obs.Payload, "observation", map[string]any{
		"original_source": obs.Source,
		"ingested_at":     obs.Timestamp,
		"confidence":      confidence,
	})
	if err != nil {
		return err
	}
	a.consolidated.Add(1)

	// 顺手登记句式结构，频次高的模板是后续语法学习的素材
	hash, template, posSeq := grammarSignature(obs.Payload)
	if hash != "" {
		if _, err := a.mgr.Store().ObserveGrammarPattern(ctx, hash, template, posSeq, obs.Payload); err != nil {
			a.logger.Warn("failed to observe grammar pattern", zap.Error(err))
		}
	}

	a.eventBus.Publish(bus.EventLearningNewMemory, bus.NewMemoryPayload{MemoryID: memoryID})
	a.eventBus.Publish(bus.EventExtractFacts, bus.ExtractFactsPayload{
		Text:       obs.Payload,
		Source:     obs.Source,
		Confidence: confidence,
	})

	if a.extractor == nil {
		return nil
	}

	triples, err := a.extractor.Extract(ctx, obs.Payload)
	if err != nil {
		a.logger.Warn("triple extraction failed", zap.Error(err))
		return nil
	}
	for _, tr := range triples {
		factCtx := map[string]any{"source": obs.Source}
		if a.arbiter != nil {
			_, err = a.arbiter.Ingest(ctx, tr.Subject, tr.Predicate, tr.Object, factCtx, confidence)
		} else {
			_, err = a.mgr.AddSymbolicFact(ctx, tr.Subject, tr.Predicate, tr.Object, factCtx, confidence)
		}
		if err != nil {
			a.logger.Warn("failed to ingest fact",
				zap.String("subject", tr.Subject), zap.Error(err))
		}
	}
	return nil
}

// Teardown 退订事件
func (a *LearningAgent) Teardown(ctx context.Context) {
	for _, id := range a.subscription {
		a.eventBus.Unsubscribe(id)
	}
	a.subscription = nil
}

// Consolidated 累计巩固的观察数
func (a *LearningAgent) Consolidated() uint64 { return a.consolidated.Load() }

// grammarFunctionWords 模板里保留原文的虚词，其余实词抽成槽位
var grammarFunctionWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"is": {}, "are": {}, "was": {}, "were": {},
	"has": {}, "have": {}, "had": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "by": {},
	"and": {}, "or": {}, "not": {}, "can": {}, "will": {},
}

// grammarSignature 把句子抽象成两层结构：
//   - posSeq 粗粒度词类序列（数字 → NUM、首字母大写 → CAP、其余 → w），
//     结构哈希基于它，同构句子落同一个桶
//   - template 保留虚词、实词抽成 "_" 槽位的句式模板，供人读
func grammarSignature(text string) (hash, template, posSeq string) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", "", ""
	}
	classes := make([]string, 0, len(tokens))
	slots := make([]string, 0, len(tokens))
	for _, token := range tokens {
		r := []rune(token)[0]
		lower := strings.ToLower(strings.TrimRight(token, ".,!?;:"))
		switch {
		case unicode.IsDigit(r):
			classes = append(classes, "NUM")
			slots = append(slots, "NUM")
		case unicode.IsUpper(r):
			classes = append(classes, "CAP")
			slots = append(slots, slotFor(lower))
		default:
			classes = append(classes, "w")
			slots = append(slots, slotFor(lower))
		}
	}
	posSeq = strings.Join(classes, " ")
	template = strings.Join(slots, " ")
	h := fnv.New64a()
	h.Write([]byte(posSeq))
	return fmt.Sprintf("%016x", h.Sum64()), template, posSeq
}

func slotFor(lower string) string {
	if _, ok := grammarFunctionWords[lower]; ok {
		return lower
	}
	return "_"
}

// sourceTrust 按来源域名给出初始置信度。
// 启发式的信任评分，不是可靠的来源鉴别。
func sourceTrust(source string) float64 {
	lower := strings.ToLower(source)
	for _, trusted := range []string{"wikipedia.org", ".edu", ".gov", "nasa.gov"} {
		if strings.Contains(lower, trusted) {
			return 0.9
		}
	}
	for _, noisy := range []string{"reddit", "twitter"} {
		if strings.Contains(lower, noisy) {
			return 0.3
		}
	}
	return 0.5
}
