package reasoning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/store"
)

// CategoryNamer 给属性聚簇想一个超类名字。默认实现是模板拼接，
// 可以换成 LLM。
type CategoryNamer interface {
	NameCategory(ctx context.Context, predicate, object string, members []string) (string, error)
}

// HeuristicNamer 从谓词宾语直接拼类别名，如 ("can","fly") →
// "things-that-can-fly"。
type HeuristicNamer struct{}

// NameCategory 实现 CategoryNamer 接口
func (HeuristicNamer) NameCategory(_ context.Context, predicate, object string, _ []string) (string, error) {
	slug := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
	}
	return fmt.Sprintf("things-that-%s-%s", slug(predicate), slug(object)), nil
}

// GeneralizerConfig 属性泛化调参项
type GeneralizerConfig struct {
	// MinSubjects 属性至少被多少个主语共享才值得抽象，默认 3
	MinSubjects int
	// MaxClustersPerRun 单轮最多处理的聚簇数，默认 5
	MaxClustersPerRun int
}

func (c *GeneralizerConfig) applyDefaults() {
	if c.MinSubjects <= 0 {
		c.MinSubjects = 3
	}
	if c.MaxClustersPerRun <= 0 {
		c.MaxClustersPerRun = 5
	}
}

// Generalization 一次抽象的产出
type Generalization struct {
	SuperConceptID uint
	Name           string
	Members        []string
}

// Generalizer 自下而上的归纳：多个主语共享同一 (predicate, object)
// 属性时，抽象出一个超类概念，给每个成员补一条 "member is a 超类"
// 的事实，并在成员概念已存在时连 child_of 边。
type Generalizer struct {
	mgr    *memory.Manager
	namer  CategoryNamer
	cfg    GeneralizerConfig
	logger *zap.Logger
}

// NewGeneralizer 创建泛化器。namer 为 nil 时用 HeuristicNamer。
func NewGeneralizer(mgr *memory.Manager, namer CategoryNamer, cfg GeneralizerConfig, logger *zap.Logger) *Generalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namer == nil {
		namer = HeuristicNamer{}
	}
	cfg.applyDefaults()
	return &Generalizer{
		mgr:    mgr,
		namer:  namer,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "generalizer")),
	}
}

// Generalize 执行一轮抽象
func (g *Generalizer) Generalize(ctx context.Context) ([]Generalization, error) {
	clusters, err := g.mgr.Store().SharedProperties(ctx, g.cfg.MinSubjects, g.cfg.MaxClustersPerRun)
	if err != nil {
		return nil, err
	}

	var out []Generalization
	for _, cluster := range clusters {
		gen, err := g.abstract(ctx, cluster)
		if err != nil {
			g.logger.Warn("failed to abstract property cluster",
				zap.String("predicate", cluster.Predicate),
				zap.String("object", cluster.Object),
				zap.Error(err))
			continue
		}
		out = append(out, gen)
	}
	return out, nil
}

func (g *Generalizer) abstract(ctx context.Context, cluster store.PropertyCluster) (Generalization, error) {
	name, err := g.namer.NameCategory(ctx, cluster.Predicate, cluster.Object, cluster.Subjects)
	if err != nil {
		return Generalization{}, err
	}

	definition := fmt.Sprintf("Category of entities that %s %s. Members include: %s.",
		cluster.Predicate, cluster.Object, strings.Join(cluster.Subjects, ", "))
	superID, err := g.mgr.CreateConcept(ctx, name, definition, map[string]any{
		"origin":    "generalized",
		"predicate": cluster.Predicate,
		"object":    cluster.Object,
	})
	if err != nil {
		return Generalization{}, err
	}

	for _, member := range cluster.Subjects {
		// 归纳得到的事实置信度中等，后续证据可以强化或压制
		if _, err := g.mgr.AddSymbolicFact(ctx, member, "is a", name,
			map[string]any{"origin": "generalization"}, 0.6); err != nil {
			return Generalization{}, err
		}

		memberConcept, err := g.mgr.Store().GetConceptByName(ctx, member)
		if err != nil {
			continue // 成员还没有自己的概念节点，不连边
		}
		if err := g.mgr.Store().AddConceptEdge(ctx, memberConcept.ID, superID, "child_of", 1); err != nil {
			return Generalization{}, err
		}
	}

	g.logger.Info("abstracted super concept",
		zap.String("name", name), zap.Int("members", len(cluster.Subjects)))
	return Generalization{SuperConceptID: superID, Name: name, Members: cluster.Subjects}, nil
}
