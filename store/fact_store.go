package store

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddFact 插入一条符号事实并返回其 ID。
// (subject, predicate, object) 已存在时不报错，返回既有行的 ID：
// 并发抽取下重复插入是常态，不是异常。
func (s *Store) AddFact(ctx context.Context, subject, predicate, object string, factCtx JSONMap, confidence float64) (uint, error) {
	fact := Fact{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Context:    factCtx,
		Confidence: confidence,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fact).Error
	if err != nil {
		return 0, storageErr("add_fact", err)
	}

	if fact.ID != 0 {
		return fact.ID, nil
	}

	// 撞上唯一约束：取出既有行
	var existing Fact
	err = s.db.WithContext(ctx).
		Where("subject = ? AND predicate = ? AND object = ?", subject, predicate, object).
		First(&existing).Error
	if err != nil {
		return 0, storageErr("add_fact", err)
	}
	s.logger.Debug("duplicate fact, returning existing id",
		zap.String("subject", subject),
		zap.String("predicate", predicate),
		zap.Uint("id", existing.ID))
	return existing.ID, nil
}

// FindFacts 按精确匹配过滤事实，空字符串表示该字段不限
func (s *Store) FindFacts(ctx context.Context, subject, predicate, object string) ([]Fact, error) {
	q := s.db.WithContext(ctx).Model(&Fact{})
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	if predicate != "" {
		q = q.Where("predicate = ?", predicate)
	}
	if object != "" {
		q = q.Where("object = ?", object)
	}

	var facts []Fact
	if err := q.Order("id").Find(&facts).Error; err != nil {
		return nil, storageErr("find_facts", err)
	}
	return facts, nil
}

// FindFactsFromEntity 取某实体作为主语的全部事实，主语匹配大小写
// 不敏感——图遍历时上一跳的宾语和下一跳的主语写法经常大小写不一。
func (s *Store) FindFactsFromEntity(ctx context.Context, entity string) ([]Fact, error) {
	var facts []Fact
	err := s.db.WithContext(ctx).
		Where("LOWER(subject) = LOWER(?)", entity).
		Order("id").
		Find(&facts).Error
	if err != nil {
		return nil, storageErr("find_facts_from_entity", err)
	}
	return facts, nil
}

// GetFactByID 按主键取事实
func (s *Store) GetFactByID(ctx context.Context, id uint) (*Fact, error) {
	var fact Fact
	err := s.db.WithContext(ctx).First(&fact, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFactNotFound
	}
	if err != nil {
		return nil, storageErr("get_fact", err)
	}
	return &fact, nil
}

// ReinforceFact 强化一条事实：usage_weight 加 amount，confidence 同步
// 上调但钳制在 [0,1]。usage_weight 是单调使用计数，不钳制。
func (s *Store) ReinforceFact(ctx context.Context, id uint, amount float64) error {
	err := s.db.WithContext(ctx).Model(&Fact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_weight": gorm.Expr("usage_weight + ?", amount),
			"confidence":   gorm.Expr("MIN(1.0, confidence + ?)", amount),
		}).Error
	return storageErr("reinforce_fact", err)
}

// DecayFact 弱化一条事实的置信度，下限 0，从不物理删除
func (s *Store) DecayFact(ctx context.Context, id uint, amount float64) error {
	err := s.db.WithContext(ctx).Model(&Fact{}).
		Where("id = ?", id).
		Update("confidence", gorm.Expr("MAX(0.0, confidence - ?)", amount)).Error
	return storageErr("decay_fact", err)
}

// FindConflictingFacts 找出与 (subject, predicate) 相同但 object 不同的事实，
// 供矛盾仲裁使用
func (s *Store) FindConflictingFacts(ctx context.Context, subject, predicate, object string) ([]Fact, error) {
	var facts []Fact
	err := s.db.WithContext(ctx).
		Where("subject = ? AND predicate = ? AND object <> ?", subject, predicate, object).
		Order("id").
		Find(&facts).Error
	if err != nil {
		return nil, storageErr("find_conflicting_facts", err)
	}
	return facts, nil
}

// LinkFactToConcept 将事实归入概念
func (s *Store) LinkFactToConcept(ctx context.Context, factID, conceptID uint) error {
	err := s.db.WithContext(ctx).Model(&Fact{}).
		Where("id = ?", factID).
		Update("concept_id", conceptID).Error
	return storageErr("link_fact_to_concept", err)
}

// SubjectCount 某个主语及其未归类事实数
type SubjectCount struct {
	Subject string
	Count   int
}

// DenseSubjects 返回至少出现 minCount 条且尚未归入任何概念的主语，
// 按事实数降序。是概念挖掘的候选集。
func (s *Store) DenseSubjects(ctx context.Context, minCount int) ([]SubjectCount, error) {
	var rows []SubjectCount
	err := s.db.WithContext(ctx).
		Raw(`SELECT subject, COUNT(*) AS count
		     FROM facts
		     WHERE concept_id IS NULL
		     GROUP BY subject
		     HAVING count >= ?
		     ORDER BY count DESC, subject`, minCount).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("dense_subjects", err)
	}
	return rows, nil
}

// PropertyCluster 共享同一 (predicate, object) 属性的主语聚簇
type PropertyCluster struct {
	Predicate string
	Object    string
	Subjects  []string
}

// SharedProperties 找出被至少 minSubjects 个不同主语共享的属性，
// 按聚簇大小降序、最多返回 limit 个。供泛化引擎抽象超类。
func (s *Store) SharedProperties(ctx context.Context, minSubjects, limit int) ([]PropertyCluster, error) {
	type row struct {
		Predicate string
		Object    string
		Subjects  string
	}
	var raw []row
	err := s.db.WithContext(ctx).
		Raw(`SELECT predicate, object, GROUP_CONCAT(DISTINCT subject) AS subjects
		     FROM facts
		     GROUP BY predicate, object
		     HAVING COUNT(DISTINCT subject) >= ?
		     ORDER BY COUNT(DISTINCT subject) DESC
		     LIMIT ?`, minSubjects, limit).
		Scan(&raw).Error
	if err != nil {
		return nil, storageErr("shared_properties", err)
	}

	clusters := make([]PropertyCluster, 0, len(raw))
	for _, r := range raw {
		clusters = append(clusters, PropertyCluster{
			Predicate: r.Predicate,
			Object:    r.Object,
			Subjects:  strings.Split(r.Subjects, ","),
		})
	}
	return clusters, nil
}

// PruneNoiseFacts 删除未通过基础卫生过滤的事实：
// 主语或宾语过短、纯数字主语、URL 形态的宾语。返回删除行数。
func (s *Store) PruneNoiseFacts(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM facts
		WHERE LENGTH(subject) < 2
		   OR LENGTH(object) < 2
		   OR subject GLOB '[0-9]*'
		   OR object LIKE '%http%'`)
	if res.Error != nil {
		return 0, storageErr("prune_noise_facts", res.Error)
	}
	return res.RowsAffected, nil
}

// DedupFactsCaseInsensitive 将大小写不敏感的重复三元组收敛到最早一条。
// 返回删除行数。重复执行收敛到同一结果。
func (s *Store) DedupFactsCaseInsensitive(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM facts
		WHERE id NOT IN (
			SELECT MIN(id)
			FROM facts
			GROUP BY LOWER(subject), LOWER(predicate), LOWER(object)
		)`)
	if res.Error != nil {
		return 0, storageErr("dedup_facts", res.Error)
	}
	return res.RowsAffected, nil
}
