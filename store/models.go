package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap 以 JSON 文本落盘的键值元数据列
type JSONMap map[string]any

// Value 实现 driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap column type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Fact 符号事实三元组。
// (subject, predicate, object) 三列联合唯一；重复插入视为正常并发
// 现象，返回既有行的 ID 而不是报错。
type Fact struct {
	ID          uint    `gorm:"primaryKey"`
	Subject     string  `gorm:"not null;uniqueIndex:idx_facts_triple"`
	Predicate   string  `gorm:"not null;uniqueIndex:idx_facts_triple"`
	Object      string  `gorm:"not null;uniqueIndex:idx_facts_triple"`
	Context     JSONMap `gorm:"type:text"`
	Confidence  float64 `gorm:"not null;default:0.5"`
	UsageWeight float64 `gorm:"not null;default:0"`
	// ConceptID 仅由巩固引擎在事实归入概念后写入
	ConceptID *uint `gorm:"index"`
	CreatedAt time.Time
}

// TableName 指定表名
func (Fact) TableName() string { return "facts" }

// Memory 自由文本记忆行
type Memory struct {
	ID           uint    `gorm:"primaryKey"`
	Content      string  `gorm:"not null"`
	ContentType  string  `gorm:"not null;default:observation;index"`
	Metadata     JSONMap `gorm:"type:text"`
	AccessCount  int     `gorm:"not null;default:0"`
	LastAccessAt *time.Time
	CreatedAt    time.Time
}

// TableName 指定表名
func (Memory) TableName() string { return "memories" }

// MemoryEmbedding 记忆向量行，与 Memory 一一对应
type MemoryEmbedding struct {
	MemoryID  uint   `gorm:"primaryKey;autoIncrement:false"`
	Vector    []byte `gorm:"not null"`
	ModelName string `gorm:"not null"`
}

// TableName 指定表名
func (MemoryEmbedding) TableName() string { return "memory_embeddings" }

// Concept 巩固引擎合成的命名抽象，聚合同一实体的多条事实
type Concept struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null;uniqueIndex"`
	Definition string `gorm:"not null"`
	// Vector 概念定义的向量表示，可为空
	Vector    []byte
	Metadata  JSONMap `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName 指定表名
func (Concept) TableName() string { return "concepts" }

// ConceptEdge 概念之间的有向关系边（如 child_of），构成分类学
type ConceptEdge struct {
	ID       uint    `gorm:"primaryKey"`
	SourceID uint    `gorm:"not null;uniqueIndex:idx_concept_edges_triple"`
	TargetID uint    `gorm:"not null;uniqueIndex:idx_concept_edges_triple"`
	Relation string  `gorm:"not null;uniqueIndex:idx_concept_edges_triple"`
	Weight   float64 `gorm:"not null;default:1"`
}

// TableName 指定表名
func (ConceptEdge) TableName() string { return "concept_edges" }

// GrammarPattern 语法模式，按结构哈希去重，重复出现只增加频次
type GrammarPattern struct {
	ID            uint   `gorm:"primaryKey"`
	StructureHash string `gorm:"not null;uniqueIndex"`
	Template      string `gorm:"not null"`
	POSSequence   string `gorm:"not null"`
	Frequency     int    `gorm:"not null;default:1"`
	Example       string
	CreatedAt     time.Time
}

// TableName 指定表名
func (GrammarPattern) TableName() string { return "grammar_patterns" }

// MemoryWithVector 全量扫描返回的记忆 + 解码后的向量
type MemoryWithVector struct {
	Memory    Memory
	Vector    []float64
	ModelName string
}

// ConceptWithVector 全量扫描返回的概念 + 解码后的向量
type ConceptWithVector struct {
	Concept Concept
	Vector  []float64
}
