package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateConcept 创建概念并返回其 ID。
// 名字唯一；重名时返回既有概念的 ID，不覆盖既有定义。
func (s *Store) CreateConcept(ctx context.Context, name, definition string, vector []float64, metadata JSONMap) (uint, error) {
	concept := Concept{
		Name:       name,
		Definition: definition,
		Vector:     encodeVector(vector),
		Metadata:   metadata,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&concept).Error
	if err != nil {
		return 0, storageErr("create_concept", err)
	}

	if concept.ID != 0 {
		s.logger.Debug("concept created", zap.Uint("id", concept.ID), zap.String("name", name))
		return concept.ID, nil
	}

	var existing Concept
	err = s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if err != nil {
		return 0, storageErr("create_concept", err)
	}
	return existing.ID, nil
}

// GetConceptByID 按主键取概念
func (s *Store) GetConceptByID(ctx context.Context, id uint) (*Concept, error) {
	var concept Concept
	err := s.db.WithContext(ctx).First(&concept, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConceptNotFound
	}
	if err != nil {
		return nil, storageErr("get_concept", err)
	}
	return &concept, nil
}

// GetConceptByName 按唯一名取概念
func (s *Store) GetConceptByName(ctx context.Context, name string) (*Concept, error) {
	var concept Concept
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&concept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConceptNotFound
	}
	if err != nil {
		return nil, storageErr("get_concept", err)
	}
	return &concept, nil
}

// DeleteConcept 删除概念及其全部关系边。挂在该概念上的事实不动，
// 只把 concept_id 置空，回到未归类候选集。
func (s *Store) DeleteConcept(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Fact{}).
			Where("concept_id = ?", id).
			Update("concept_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("source_id = ? OR target_id = ?", id, id).
			Delete(&ConceptEdge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Concept{}, id).Error
	})
	return storageErr("delete_concept", err)
}

// GetAllConceptsWithEmbeddings 全量扫描带向量的概念，
// 只在概念缓存（重）加载时调用。没有向量的概念不进缓存。
func (s *Store) GetAllConceptsWithEmbeddings(ctx context.Context) ([]ConceptWithVector, error) {
	var concepts []Concept
	err := s.db.WithContext(ctx).
		Where("vector IS NOT NULL").
		Order("id").
		Find(&concepts).Error
	if err != nil {
		return nil, storageErr("get_all_concepts", err)
	}

	out := make([]ConceptWithVector, 0, len(concepts))
	for _, c := range concepts {
		vec, err := decodeVector(c.Vector)
		if err != nil {
			return nil, storageErr("get_all_concepts", err)
		}
		if len(vec) == 0 {
			continue
		}
		out = append(out, ConceptWithVector{Concept: c, Vector: vec})
	}
	return out, nil
}

// AddConceptEdge 在概念图上加一条边。
// (source, target, relation) 唯一，重复添加是空操作。
func (s *Store) AddConceptEdge(ctx context.Context, sourceID, targetID uint, relation string, weight float64) error {
	if weight == 0 {
		weight = 1
	}
	edge := ConceptEdge{
		SourceID: sourceID,
		TargetID: targetID,
		Relation: relation,
		Weight:   weight,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
	return storageErr("add_concept_edge", err)
}

// GetConceptEdges 取某个概念出发的全部边，relation 为空表示不限
func (s *Store) GetConceptEdges(ctx context.Context, sourceID uint, relation string) ([]ConceptEdge, error) {
	q := s.db.WithContext(ctx).Where("source_id = ?", sourceID)
	if relation != "" {
		q = q.Where("relation = ?", relation)
	}
	var edges []ConceptEdge
	if err := q.Order("id").Find(&edges).Error; err != nil {
		return nil, storageErr("get_concept_edges", err)
	}
	return edges, nil
}
