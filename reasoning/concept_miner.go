package reasoning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/store"
)

// MinerConfig 概念挖掘调参项
type MinerConfig struct {
	// MinFactCount 主语至少挂多少条未归类事实才算"密集"，默认 3
	MinFactCount int
	// MaxConceptsPerRun 单轮最多结晶的概念数，默认 10
	MaxConceptsPerRun int
}

func (c *MinerConfig) applyDefaults() {
	if c.MinFactCount <= 0 {
		c.MinFactCount = 3
	}
	if c.MaxConceptsPerRun <= 0 {
		c.MaxConceptsPerRun = 10
	}
}

// MinedConcept 一次结晶的产出
type MinedConcept struct {
	ConceptID uint
	Name      string
	// Members 归入该概念的主语写法（含同义变体）
	Members []string
	// LinkedFacts 挂接到概念上的事实数
	LinkedFacts int
}

// ConceptMiner 把事实图中反复出现的密集主语结晶成概念节点。
//
// 主语的不同写法（"cat" / "the cat" / "cats"）通过子串包含归并：
// 候选按长度降序处理，短写法被已有簇的代表词包含（或反过来）就
// 并入该簇，代表词取最长的写法。每个簇生成一个概念，定义句由该
// 主语的 is-a 类事实合成，簇内全部事实挂到新概念上。
type ConceptMiner struct {
	mgr    *memory.Manager
	cfg    MinerConfig
	logger *zap.Logger
}

// NewConceptMiner 创建挖掘器
func NewConceptMiner(mgr *memory.Manager, cfg MinerConfig, logger *zap.Logger) *ConceptMiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &ConceptMiner{
		mgr:    mgr,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "concept_miner")),
	}
}

// Mine 执行一轮结晶
func (m *ConceptMiner) Mine(ctx context.Context) ([]MinedConcept, error) {
	dense, err := m.mgr.Store().DenseSubjects(ctx, m.cfg.MinFactCount)
	if err != nil {
		return nil, err
	}
	if len(dense) == 0 {
		return nil, nil
	}

	subjects := make([]string, 0, len(dense))
	for _, row := range dense {
		subjects = append(subjects, row.Subject)
	}
	clusters := clusterSynonyms(subjects)

	var mined []MinedConcept
	for _, cluster := range clusters {
		if len(mined) >= m.cfg.MaxConceptsPerRun {
			break
		}
		mc, err := m.crystallize(ctx, cluster)
		if err != nil {
			m.logger.Warn("failed to crystallize cluster",
				zap.String("representative", cluster[0]), zap.Error(err))
			continue
		}
		mined = append(mined, mc)
	}
	if len(mined) > 0 {
		m.logger.Info("mining pass complete", zap.Int("concepts", len(mined)))
	}
	return mined, nil
}

func (m *ConceptMiner) crystallize(ctx context.Context, cluster []string) (MinedConcept, error) {
	representative := cluster[0]

	var facts []store.Fact
	for _, subject := range cluster {
		rows, err := m.mgr.Store().FindFacts(ctx, subject, "", "")
		if err != nil {
			return MinedConcept{}, err
		}
		facts = append(facts, rows...)
	}

	conceptID, err := m.mgr.CreateConcept(ctx, representative,
		synthesizeDefinition(representative, facts),
		map[string]any{"origin": "mined", "members": strings.Join(cluster, ",")})
	if err != nil {
		return MinedConcept{}, err
	}

	linked := 0
	for _, fact := range facts {
		if fact.ConceptID != nil {
			continue
		}
		if err := m.mgr.Store().LinkFactToConcept(ctx, fact.ID, conceptID); err != nil {
			return MinedConcept{}, err
		}
		linked++
	}

	return MinedConcept{
		ConceptID:   conceptID,
		Name:        representative,
		Members:     cluster,
		LinkedFacts: linked,
	}, nil
}

// clusterSynonyms 按子串包含归并主语写法。长写法优先当代表词，
// 结果按代表词字典序，簇内按长度降序。
func clusterSynonyms(subjects []string) [][]string {
	ordered := make([]string, len(subjects))
	copy(ordered, subjects)
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})

	var clusters [][]string
	for _, subject := range ordered {
		placed := false
		lower := strings.ToLower(subject)
		for i, cluster := range clusters {
			rep := strings.ToLower(cluster[0])
			if strings.Contains(rep, lower) || strings.Contains(lower, rep) {
				clusters[i] = append(cluster, subject)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []string{subject})
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

// synthesizeDefinition 从 is-a 类事实生成定义句；没有就退化为
// 属性罗列。
func synthesizeDefinition(name string, facts []store.Fact) string {
	var kinds, properties []string
	for _, fact := range facts {
		switch strings.ToLower(fact.Predicate) {
		case "is", "is a", "is_a", "是":
			kinds = append(kinds, fact.Object)
		default:
			properties = append(properties, fmt.Sprintf("%s %s", fact.Predicate, fact.Object))
		}
	}
	if len(kinds) > 0 {
		return fmt.Sprintf("%s is a %s.", name, strings.Join(dedupStrings(kinds), ", "))
	}
	if len(properties) > 0 {
		limit := len(properties)
		if limit > 3 {
			limit = 3
		}
		return fmt.Sprintf("%s: known to %s.", name, strings.Join(properties[:limit], "; "))
	}
	return fmt.Sprintf("%s: an entity observed repeatedly.", name)
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
