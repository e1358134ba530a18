package reasoning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/store"
)

// Hop 推理链上的一跳
type Hop struct {
	Subject   string
	Predicate string
	Object    string
	FactID    uint
}

// InferencePath 从起点到终点的事实链
type InferencePath struct {
	Hops []Hop
}

// Narrate 把路径讲成一句话，如
// "socrates is a man, and man is mortal."
func (p InferencePath) Narrate() string {
	if len(p.Hops) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.Hops))
	for _, hop := range p.Hops {
		parts = append(parts, fmt.Sprintf("%s %s %s", hop.Subject, hop.Predicate, hop.Object))
	}
	return strings.Join(parts, ", and ") + "."
}

// Inferencer 在事实图上做多跳推理：宽度优先找从一个实体到另一个
// 实体的最短事实链。边是有向的（subject → object），跳数封顶防止
// 在稠密图上爆炸。
type Inferencer struct {
	store   *store.Store
	maxHops int
	logger  *zap.Logger
}

// NewInferencer 创建推理器。maxHops 非正值取 4。
func NewInferencer(st *store.Store, maxHops int, logger *zap.Logger) *Inferencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxHops <= 0 {
		maxHops = 4
	}
	return &Inferencer{
		store:   st,
		maxHops: maxHops,
		logger:  logger.With(zap.String("component", "inferencer")),
	}
}

// FindPath 找 from 到 to 的最短事实链；不可达返回 (nil, nil)。
// 实体名大小写不敏感。
func (inf *Inferencer) FindPath(ctx context.Context, from, to string) (*InferencePath, error) {
	target := strings.ToLower(to)
	start := strings.ToLower(from)
	if start == target {
		return nil, nil
	}

	type node struct {
		entity string
		path   []Hop
	}
	queue := []node{{entity: from}}
	visited := map[string]struct{}{start: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.path) >= inf.maxHops {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		facts, err := inf.store.FindFactsFromEntity(ctx, current.entity)
		if err != nil {
			return nil, err
		}
		for _, fact := range facts {
			next := strings.ToLower(fact.Object)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}

			path := append(append([]Hop(nil), current.path...), Hop{
				Subject:   fact.Subject,
				Predicate: fact.Predicate,
				Object:    fact.Object,
				FactID:    fact.ID,
			})
			if next == target {
				inf.logger.Debug("inference path found",
					zap.String("from", from), zap.String("to", to),
					zap.Int("hops", len(path)))
				return &InferencePath{Hops: path}, nil
			}
			queue = append(queue, node{entity: fact.Object, path: path})
		}
	}
	return nil, nil
}
