package reasoning

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/memory"
)

// ArbiterConfig 矛盾仲裁调参项
type ArbiterConfig struct {
	// DecayAmount 被新事实压过的旧事实每次衰减的置信度，默认 0.1
	DecayAmount float64
	// ReinforceAmount 复述已有事实时的强化量，默认 0.05
	ReinforceAmount float64
}

func (c *ArbiterConfig) applyDefaults() {
	if c.DecayAmount <= 0 {
		c.DecayAmount = 0.1
	}
	if c.ReinforceAmount <= 0 {
		c.ReinforceAmount = 0.05
	}
}

// Arbiter 带矛盾仲裁的事实入口。
//
// 直接写 store 的 AddFact 是"来者不拒"；Arbiter 在写入前检查同
// (subject, predicate) 下宾语不同的既有事实：新事实置信度更高则
// 衰减旧事实，更低则衰减新事实自己。谁都不删——错误的知识靠反复
// 衰减自然沉底，被睡眠维护回收。
type Arbiter struct {
	mgr    *memory.Manager
	cfg    ArbiterConfig
	logger *zap.Logger
}

// NewArbiter 创建仲裁器
func NewArbiter(mgr *memory.Manager, cfg ArbiterConfig, logger *zap.Logger) *Arbiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Arbiter{
		mgr:    mgr,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "arbiter")),
	}
}

// Ingest 经仲裁写入一条事实，返回其 ID。
// 与既有事实完全同三元组时走 store 的幂等路径并强化一次。
func (a *Arbiter) Ingest(ctx context.Context, subject, predicate, object string, factCtx map[string]any, confidence float64) (uint, error) {
	st := a.mgr.Store()

	existing, err := st.FindFacts(ctx, subject, predicate, object)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		// 重复陈述是弱证据，小幅强化
		id := existing[0].ID
		if err := st.ReinforceFact(ctx, id, a.cfg.ReinforceAmount); err != nil {
			return 0, err
		}
		return id, nil
	}

	conflicts, err := st.FindConflictingFacts(ctx, subject, predicate, object)
	if err != nil {
		return 0, err
	}

	id, err := a.mgr.AddSymbolicFact(ctx, subject, predicate, object, factCtx, confidence)
	if err != nil {
		return 0, err
	}

	for _, old := range conflicts {
		if old.Confidence <= confidence {
			a.logger.Info("conflicting fact superseded",
				zap.Uint("old_fact_id", old.ID),
				zap.Uint("new_fact_id", id),
				zap.String("subject", subject),
				zap.String("predicate", predicate))
			if err := st.DecayFact(ctx, old.ID, a.cfg.DecayAmount); err != nil {
				return id, err
			}
		} else {
			a.logger.Info("new fact contradicts stronger prior",
				zap.Uint("prior_fact_id", old.ID),
				zap.Uint("new_fact_id", id))
			if err := st.DecayFact(ctx, id, a.cfg.DecayAmount); err != nil {
				return id, err
			}
		}
	}
	return id, nil
}
