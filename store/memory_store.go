package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddMemoryWithEmbedding 在同一个事务内写入记忆行和它的向量行。
// 任一写入失败则整体回滚，不会出现没有向量的记忆。
func (s *Store) AddMemoryWithEmbedding(ctx context.Context, content string, vector []float64, contentType, modelName string, metadata JSONMap) (uint, error) {
	if contentType == "" {
		contentType = "observation"
	}

	mem := Memory{
		Content:     content,
		ContentType: contentType,
		Metadata:    metadata,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mem).Error; err != nil {
			return err
		}
		emb := MemoryEmbedding{
			MemoryID:  mem.ID,
			Vector:    encodeVector(vector),
			ModelName: modelName,
		}
		return tx.Create(&emb).Error
	})
	if err != nil {
		return 0, storageErr("add_memory_with_embedding", err)
	}

	s.logger.Debug("memory stored", zap.Uint("id", mem.ID), zap.String("content_type", contentType))
	return mem.ID, nil
}

// GetMemoryByID 按主键取记忆行
func (s *Store) GetMemoryByID(ctx context.Context, id uint) (*Memory, error) {
	var mem Memory
	err := s.db.WithContext(ctx).First(&mem, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemoryNotFound
	}
	if err != nil {
		return nil, storageErr("get_memory", err)
	}
	return &mem, nil
}

// TouchMemoryAccess 记录一次检索命中：访问计数加一并刷新访问时间
func (s *Store) TouchMemoryAccess(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Memory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_count":   gorm.Expr("access_count + 1"),
			"last_access_at": at,
		}).Error
	return storageErr("touch_memory_access", err)
}

// GetAllMemoriesWithEmbeddings 全量扫描记忆及其向量。
// 只在缓存（重）加载时调用：启动和睡眠维护之后。O(n) 是设计内的。
func (s *Store) GetAllMemoriesWithEmbeddings(ctx context.Context) ([]MemoryWithVector, error) {
	var mems []Memory
	if err := s.db.WithContext(ctx).Order("id").Find(&mems).Error; err != nil {
		return nil, storageErr("get_all_memories", err)
	}

	var embs []MemoryEmbedding
	if err := s.db.WithContext(ctx).Find(&embs).Error; err != nil {
		return nil, storageErr("get_all_memories", err)
	}
	byID := make(map[uint]MemoryEmbedding, len(embs))
	for _, e := range embs {
		byID[e.MemoryID] = e
	}

	out := make([]MemoryWithVector, 0, len(mems))
	for _, m := range mems {
		e, ok := byID[m.ID]
		if !ok {
			// 事务保证下不应出现，但旧库可能残留孤儿行
			s.logger.Warn("memory without embedding skipped", zap.Uint("id", m.ID))
			continue
		}
		vec, err := decodeVector(e.Vector)
		if err != nil {
			return nil, storageErr("get_all_memories", err)
		}
		out = append(out, MemoryWithVector{Memory: m, Vector: vec, ModelName: e.ModelName})
	}
	return out, nil
}

// PruneFilter 记忆修剪条件
type PruneFilter struct {
	// MaxAccessCount 访问次数不超过该值的记忆才会被删（0 表示只删从未访问的）
	MaxAccessCount int
	// OlderThan 只删创建时间早于该时刻的记忆；零值表示不按时间过滤
	OlderThan time.Time
}

// PruneMemories 删除匹配条件的记忆，向量行在同一事务内先行删除。
// 返回删除的记忆行数。
func (s *Store) PruneMemories(ctx context.Context, filter PruneFilter) (int64, error) {
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&Memory{}).Where("access_count <= ?", filter.MaxAccessCount)
		if !filter.OlderThan.IsZero() {
			q = q.Where("created_at < ?", filter.OlderThan)
		}

		var ids []uint
		if err := q.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("memory_id IN ?", ids).Delete(&MemoryEmbedding{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&Memory{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, storageErr("prune_memories", err)
	}

	if deleted > 0 {
		s.logger.Info("memories pruned", zap.Int64("count", deleted))
	}
	return deleted, nil
}
