package reasoning

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/memory"
)

// SleepStats 一轮睡眠巩固的结果汇总
type SleepStats struct {
	NoiseFactsPruned int64
	DuplicatesMerged int64
	MemoriesPruned   int64
	ConceptsMined    int
	Generalizations  int
}

// Consolidator 睡眠巩固编排器：按固定顺序串起全部离线维护——
// 先做卫生（噪声过滤、大小写去重），再做抽象（概念结晶、属性
// 泛化），最后淘汰低价值记忆并整体重载缓存。
//
// 顺序有讲究：卫生在前，挖掘和泛化就不会基于脏数据结晶概念。
type Consolidator struct {
	mgr         *memory.Manager
	miner       *ConceptMiner
	generalizer *Generalizer
	logger      *zap.Logger
}

// NewConsolidator 创建编排器。miner / generalizer 可为 nil，
// 对应阶段跳过。
func NewConsolidator(mgr *memory.Manager, miner *ConceptMiner, generalizer *Generalizer, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consolidator{
		mgr:         mgr,
		miner:       miner,
		generalizer: generalizer,
		logger:      logger.With(zap.String("component", "consolidator")),
	}
}

// Sleep 执行一轮完整巩固。中途出错立即返回，已完成的阶段不回滚
// ——每个阶段各自幂等，下一轮睡眠会接着做。
func (c *Consolidator) Sleep(ctx context.Context) (SleepStats, error) {
	var stats SleepStats

	noise, err := c.mgr.Store().PruneNoiseFacts(ctx)
	if err != nil {
		return stats, err
	}
	stats.NoiseFactsPruned = noise

	dups, err := c.mgr.Store().DedupFactsCaseInsensitive(ctx)
	if err != nil {
		return stats, err
	}
	stats.DuplicatesMerged = dups

	if c.miner != nil {
		mined, err := c.miner.Mine(ctx)
		if err != nil {
			return stats, err
		}
		stats.ConceptsMined = len(mined)
	}

	if c.generalizer != nil {
		gens, err := c.generalizer.Generalize(ctx)
		if err != nil {
			return stats, err
		}
		stats.Generalizations = len(gens)
	}

	pruned, err := c.mgr.PerformSleepMaintenance(ctx)
	if err != nil {
		return stats, err
	}
	stats.MemoriesPruned = pruned

	c.logger.Info("sleep cycle complete",
		zap.Int64("noise_pruned", stats.NoiseFactsPruned),
		zap.Int64("duplicates_merged", stats.DuplicatesMerged),
		zap.Int("concepts_mined", stats.ConceptsMined),
		zap.Int("generalizations", stats.Generalizations),
		zap.Int64("memories_pruned", stats.MemoriesPruned))
	return stats, nil
}
