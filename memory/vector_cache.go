package memory

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// SearchHit 相似度检索的一条命中
type SearchHit struct {
	ID    uint
	Score float64
}

// VectorCache 已落盘向量的内存镜像。
//
// 以 map 为权威副本，每次变更后重建稠密矩阵和并行 ID 表；重建是
// O(n·dim)，可接受：所有变更都经由门面串行化，且规模远小于系统
// 其他环节的网络/模型延迟。读写共用一把互斥锁，缓存规模下无需
// 读写锁。缓存是派生的、可整体重建的读优化，从不单独持有已提交
// 数据。
type VectorCache struct {
	mu      sync.Mutex
	vectors map[uint][]float64

	// rows 与 ids 由 vectors 派生，下标对齐
	rows [][]float64
	ids  []uint

	logger *zap.Logger
}

// NewVectorCache 创建空缓存
func NewVectorCache(logger *zap.Logger) *VectorCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorCache{
		vectors: make(map[uint][]float64),
		logger:  logger.With(zap.String("component", "vector_cache")),
	}
}

// Set 写入或覆盖一个向量并重建矩阵
func (c *VectorCache) Set(id uint, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[id] = append([]float64(nil), vector...)
	c.rebuild()
}

// Delete 移除一个向量并重建矩阵
func (c *VectorCache) Delete(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vectors, id)
	c.rebuild()
}

// ReplaceAll 用全量扫描结果整体替换缓存内容（启动和维护后重载）
func (c *VectorCache) ReplaceAll(vectors map[uint][]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vectors = make(map[uint][]float64, len(vectors))
	for id, v := range vectors {
		c.vectors[id] = append([]float64(nil), v...)
	}
	c.rebuild()
	c.logger.Debug("cache reloaded", zap.Int("size", len(c.vectors)))
}

// rebuild 从 map 重建矩阵与 ID 表，按 ID 升序保证遍历顺序稳定。
// 调用方必须持有 c.mu。
func (c *VectorCache) rebuild() {
	c.ids = c.ids[:0]
	for id := range c.vectors {
		c.ids = append(c.ids, id)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })

	c.rows = c.rows[:0]
	for _, id := range c.ids {
		c.rows = append(c.rows, c.vectors[id])
	}
}

// Search 返回与 query 最相近的至多 k 条命中，按分数降序。
//
// 分数是点积：向量在编码期已做 L2 归一化，点积即余弦相似度。
// 契约顺序：先按分数取真正的 top-k，之后再过滤 score >= minSimilarity
// ——不允许先过阈值再截断。同分以 ID 升序稳定排序。空缓存返回空。
func (c *VectorCache) Search(query []float64, k int, minSimilarity float64) []SearchHit {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.ids) == 0 || k <= 0 {
		return nil
	}

	hits := make([]SearchHit, 0, len(c.ids))
	for i, row := range c.rows {
		hits = append(hits, SearchHit{ID: c.ids[i], Score: dot(query, row)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if k < len(hits) {
		hits = hits[:k]
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Score >= minSimilarity {
			out = append(out, h)
		}
	}
	return out
}

// Contains 查询某 ID 是否在缓存中
func (c *VectorCache) Contains(id uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.vectors[id]
	return ok
}

// IDs 返回缓存中全部 ID 的快照，按升序
func (c *VectorCache) IDs() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint(nil), c.ids...)
}

// Len 缓存中的向量数
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
