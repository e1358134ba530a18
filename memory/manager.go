package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/internal/metrics"
	"github.com/BaSui01/neuroswarm/store"
)

const (
	cacheMemories = "memories"
	cacheConcepts = "concepts"
)

// ManagerConfig 记忆门面配置
type ManagerConfig struct {
	// QueueCapacity 短期缓冲容量，必须为正
	QueueCapacity int

	// EmbeddingDimension 期望的向量维度。与编码器实际输出不一致时
	// 以编码器为准并告警，不视为致命错误。
	EmbeddingDimension int

	// PruneMaxAccessCount 睡眠维护删除访问次数不超过该值的记忆
	PruneMaxAccessCount int

	// PruneOlderThan 睡眠维护只删创建早于 now-PruneOlderThan 的记忆；
	// 0 表示不按时间过滤
	PruneOlderThan time.Duration

	// Now 测试注入用，默认 time.Now
	Now func() time.Time
}

// MemoryHit 记忆检索结果：完整行 + 相似度分数
type MemoryHit struct {
	Memory store.Memory
	Score  float64
}

// ConceptHit 概念检索结果
type ConceptHit struct {
	Concept store.Concept
	Score   float64
}

// Manager 统一记忆门面，swarm 中所有 agent 读写记忆的唯一同步点。
//
// 一致性不变量：StoreMemory / CreateConcept 成功返回前，对应向量
// 缓存必然已包含刚提交的行。实现上每个缓存配一把写路径互斥锁，
// 落盘与缓存更新在同一临界区内完成；经由门面的读者不可能观察到
// "库里有行而缓存没有"的状态。绕过门面直接读库的消费者不在此
// 保证范围内。
type Manager struct {
	cfg      ManagerConfig
	stm      *ShortTermMemory
	store    *store.Store
	embedder embedding.Embedder

	// memMu/conMu 串行化各自缓存的 落盘+缓存更新 写路径
	memMu    sync.Mutex
	conMu    sync.Mutex
	memCache *VectorCache
	conCache *VectorCache

	logger    *zap.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewManager 创建记忆门面并从持久层加载两个向量缓存。
// 配置非法返回构造期错误；缓存加载失败视为启动致命错误。
func NewManager(ctx context.Context, cfg ManagerConfig, st *store.Store, emb embedding.Embedder, logger *zap.Logger, collector *metrics.Collector) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "memory_manager"))

	if st == nil {
		return nil, errors.New("store is required")
	}
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.EmbeddingDimension <= 0 {
		return nil, embedding.ErrInvalidDimension
	}
	if cfg.EmbeddingDimension != emb.Dimension() {
		logger.Warn("configured embedding dimension does not match embedder, using embedder's",
			zap.Int("configured", cfg.EmbeddingDimension),
			zap.Int("actual", emb.Dimension()))
		cfg.EmbeddingDimension = emb.Dimension()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	stm, err := NewShortTermMemory(cfg.QueueCapacity, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		stm:       stm,
		store:     st,
		embedder:  emb,
		memCache:  NewVectorCache(logger),
		conCache:  NewVectorCache(logger),
		logger:    logger,
		collector: collector,
		now:       cfg.Now,
	}

	if err := m.LoadCaches(ctx); err != nil {
		return nil, fmt.Errorf("load caches: %w", err)
	}
	return m, nil
}

// AddObservation 把一条观察放进短期缓冲
func (m *Manager) AddObservation(payload, source string) {
	evicted := m.stm.Add(Observation{
		Payload:   payload,
		Source:    source,
		Timestamp: m.now(),
	})
	m.collector.ObservationAdded()
	if evicted {
		m.collector.QueueEviction()
	}
}

// GetAndClearObservations 原子取走并清空短期缓冲
func (m *Manager) GetAndClearObservations() []Observation {
	return m.stm.DrainAll()
}

// PeekObservation 查看最近一条观察
func (m *Manager) PeekObservation() (Observation, bool) {
	return m.stm.Peek()
}

// QueueLen 短期缓冲当前长度
func (m *Manager) QueueLen() int {
	return m.stm.Len()
}

// StoreMemory 编码内容、落盘并同步记忆缓存，返回新记忆 ID
func (m *Manager) StoreMemory(ctx context.Context, content, contentType string, metadata map[string]any) (uint, error) {
	vector, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("embed content: %w", err)
	}

	m.memMu.Lock()
	defer m.memMu.Unlock()

	id, err := m.store.AddMemoryWithEmbedding(ctx, content, vector, contentType, m.embedder.ModelName(), store.JSONMap(metadata))
	if err != nil {
		return 0, err
	}
	m.memCache.Set(id, vector)

	m.collector.MemoryStored()
	m.collector.SetCacheSize(cacheMemories, m.memCache.Len())
	return id, nil
}

// AddSymbolicFact 透传到持久层的事实写入
func (m *Manager) AddSymbolicFact(ctx context.Context, subject, predicate, object string, factCtx map[string]any, confidence float64) (uint, error) {
	id, err := m.store.AddFact(ctx, subject, predicate, object, store.JSONMap(factCtx), confidence)
	if err != nil {
		return 0, err
	}
	m.collector.FactAdded("ingested")
	return id, nil
}

// CreateConcept 编码定义、落盘并同步概念缓存，返回概念 ID。
// 重名概念返回既有 ID，此时缓存写入用的是新算出的向量——与库中
// 既有向量等价，因为编码是确定性的且定义不被覆盖。
func (m *Manager) CreateConcept(ctx context.Context, name, definition string, metadata map[string]any) (uint, error) {
	vector, err := m.embedder.Embed(ctx, fmt.Sprintf("%s: %s", name, definition))
	if err != nil {
		return 0, fmt.Errorf("embed concept: %w", err)
	}

	m.conMu.Lock()
	defer m.conMu.Unlock()

	id, err := m.store.CreateConcept(ctx, name, definition, vector, store.JSONMap(metadata))
	if err != nil {
		return 0, err
	}
	if !m.conCache.Contains(id) {
		m.conCache.Set(id, vector)
		m.collector.ConceptCreated()
	}
	m.collector.SetCacheSize(cacheConcepts, m.conCache.Len())
	return id, nil
}

// FindRelevantMemories 两阶段检索：向量缓存缩小候选集，再回库取完整行。
// 缓存中指向已删行的 ID 记警告后跳过，不报错。命中的记忆会刷新
// 访问计数。
func (m *Manager) FindRelevantMemories(ctx context.Context, query string, k int, minSimilarity float64) ([]MemoryHit, error) {
	qvec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.collector.SearchServed(cacheMemories)
	hits := m.memCache.Search(qvec, k, minSimilarity)

	out := make([]MemoryHit, 0, len(hits))
	for _, h := range hits {
		mem, err := m.store.GetMemoryByID(ctx, h.ID)
		if errors.Is(err, store.ErrMemoryNotFound) {
			m.logger.Warn("stale cache entry skipped", zap.Uint("memory_id", h.ID))
			m.collector.StaleCacheHit()
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := m.store.TouchMemoryAccess(ctx, h.ID, m.now()); err != nil {
			// 访问统计失败不影响检索结果
			m.logger.Warn("failed to touch memory access", zap.Uint("memory_id", h.ID), zap.Error(err))
		}
		out = append(out, MemoryHit{Memory: *mem, Score: h.Score})
	}
	return out, nil
}

// FindRelevantConcepts 概念空间的两阶段检索
func (m *Manager) FindRelevantConcepts(ctx context.Context, query string, k int, minSimilarity float64) ([]ConceptHit, error) {
	qvec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.collector.SearchServed(cacheConcepts)
	hits := m.conCache.Search(qvec, k, minSimilarity)

	out := make([]ConceptHit, 0, len(hits))
	for _, h := range hits {
		concept, err := m.store.GetConceptByID(ctx, h.ID)
		if errors.Is(err, store.ErrConceptNotFound) {
			m.logger.Warn("stale concept cache entry skipped", zap.Uint("concept_id", h.ID))
			m.collector.StaleCacheHit()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ConceptHit{Concept: *concept, Score: h.Score})
	}
	return out, nil
}

// LoadCaches 从持久层全量重载两个向量缓存
func (m *Manager) LoadCaches(ctx context.Context) error {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	m.conMu.Lock()
	defer m.conMu.Unlock()

	return m.loadCachesLocked(ctx)
}

func (m *Manager) loadCachesLocked(ctx context.Context) error {
	mems, err := m.store.GetAllMemoriesWithEmbeddings(ctx)
	if err != nil {
		return err
	}
	memVecs := make(map[uint][]float64, len(mems))
	for _, mv := range mems {
		memVecs[mv.Memory.ID] = mv.Vector
	}
	m.memCache.ReplaceAll(memVecs)

	cons, err := m.store.GetAllConceptsWithEmbeddings(ctx)
	if err != nil {
		return err
	}
	conVecs := make(map[uint][]float64, len(cons))
	for _, cv := range cons {
		conVecs[cv.Concept.ID] = cv.Vector
	}
	m.conCache.ReplaceAll(conVecs)

	m.collector.SetCacheSize(cacheMemories, m.memCache.Len())
	m.collector.SetCacheSize(cacheConcepts, m.conCache.Len())
	m.logger.Info("caches loaded",
		zap.Int("memories", m.memCache.Len()),
		zap.Int("concepts", m.conCache.Len()))
	return nil
}

// PerformSleepMaintenance 睡眠维护：按staleness条件修剪记忆，
// 然后整体重载缓存——批量删除后从不做增量修补，正确性优先。
// 返回删除的记忆数。
func (m *Manager) PerformSleepMaintenance(ctx context.Context) (int64, error) {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	m.conMu.Lock()
	defer m.conMu.Unlock()

	filter := store.PruneFilter{MaxAccessCount: m.cfg.PruneMaxAccessCount}
	if m.cfg.PruneOlderThan > 0 {
		filter.OlderThan = m.now().Add(-m.cfg.PruneOlderThan)
	}

	deleted, err := m.store.PruneMemories(ctx, filter)
	if err != nil {
		return 0, err
	}
	m.collector.MemoriesPruned(deleted)

	if err := m.loadCachesLocked(ctx); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// MemoryCacheIDs 记忆缓存中全部 ID 的快照（诊断与测试用）
func (m *Manager) MemoryCacheIDs() []uint { return m.memCache.IDs() }

// ConceptCacheIDs 概念缓存中全部 ID 的快照
func (m *Manager) ConceptCacheIDs() []uint { return m.conCache.IDs() }

// Store 暴露底层持久层给巩固引擎；绕过门面的读者不在缓存一致性
// 保证范围内，写方完成批量变更后应调用 LoadCaches。
func (m *Manager) Store() *store.Store { return m.store }

// Embedder 暴露编码器给巩固引擎
func (m *Manager) Embedder() embedding.Embedder { return m.embedder }
