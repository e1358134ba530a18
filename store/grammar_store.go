package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObserveGrammarPattern 记录一次语法模式出现。
// 结构哈希已存在时只把频次加一，否则插入频次为 1 的新行。
// 返回该模式当前的频次。
func (s *Store) ObserveGrammarPattern(ctx context.Context, structureHash, template, posSequence, example string) (int, error) {
	pattern := GrammarPattern{
		StructureHash: structureHash,
		Template:      template,
		POSSequence:   posSequence,
		Frequency:     1,
		Example:       example,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "structure_hash"}},
			DoUpdates: clause.Assignments(map[string]any{"frequency": gorm.Expr("frequency + 1")}),
		}).
		Create(&pattern).Error
	if err != nil {
		return 0, storageErr("observe_grammar_pattern", err)
	}

	var current GrammarPattern
	err = s.db.WithContext(ctx).Where("structure_hash = ?", structureHash).First(&current).Error
	if err != nil {
		return 0, storageErr("observe_grammar_pattern", err)
	}
	return current.Frequency, nil
}

// TopGrammarPatterns 按频次降序返回最多 limit 条语法模式
func (s *Store) TopGrammarPatterns(ctx context.Context, limit int) ([]GrammarPattern, error) {
	var patterns []GrammarPattern
	err := s.db.WithContext(ctx).
		Order("frequency DESC, id").
		Limit(limit).
		Find(&patterns).Error
	if err != nil {
		return nil, storageErr("top_grammar_patterns", err)
	}
	return patterns, nil
}
