package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "ltm.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedding.NewHashEmbedder(32)
	require.NoError(t, err)

	m, err := NewManager(context.Background(), ManagerConfig{
		QueueCapacity:      8,
		EmbeddingDimension: 32,
	}, st, emb, zap.NewNop(), nil)
	require.NoError(t, err)
	return m
}

func TestFindRelevantMemories_SkipsRowDeletedBehindFacade(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.StoreMemory(ctx, "the sky is blue", "observation", nil)
	require.NoError(t, err)

	// 绕过门面直接删行，缓存保持陈旧
	deleted, err := m.Store().PruneMemories(ctx, store.PruneFilter{MaxAccessCount: 0})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	require.Contains(t, m.MemoryCacheIDs(), id)

	// 陈旧缓存项跳过而非报错
	hits, err := m.FindRelevantMemories(ctx, "the sky is blue", 3, 0.0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFindRelevantConcepts_SkipsRowDeletedBehindFacade(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateConcept(ctx, "gravity", "gravity pulls objects together", nil)
	require.NoError(t, err)

	require.NoError(t, m.Store().DeleteConcept(ctx, id))
	require.Contains(t, m.ConceptCacheIDs(), id)

	hits, err := m.FindRelevantConcepts(ctx, "gravity", 3, 0.0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestNewManager_InvalidConfig(t *testing.T) {
	t.Parallel()

	st, err := store.Open(filepath.Join(t.TempDir(), "ltm.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedding.NewHashEmbedder(32)
	require.NoError(t, err)

	_, err = NewManager(context.Background(), ManagerConfig{QueueCapacity: 8}, st, emb, zap.NewNop(), nil)
	require.ErrorIs(t, err, embedding.ErrInvalidDimension)

	_, err = NewManager(context.Background(), ManagerConfig{QueueCapacity: 0, EmbeddingDimension: 32}, st, emb, zap.NewNop(), nil)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestNewManager_DimensionMismatchAutoCorrects(t *testing.T) {
	t.Parallel()

	st, err := store.Open(filepath.Join(t.TempDir(), "ltm.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedding.NewHashEmbedder(16)
	require.NoError(t, err)

	// 配置 64 与编码器 16 不符：以编码器为准，不报错
	m, err := NewManager(context.Background(), ManagerConfig{
		QueueCapacity:      4,
		EmbeddingDimension: 64,
	}, st, emb, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = m.StoreMemory(context.Background(), "hello world", "observation", nil)
	require.NoError(t, err)
}

func TestManager_ObservationPassThrough(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	m.AddObservation("saw a lion", "field-notes")
	m.AddObservation("saw a wolf", "field-notes")
	require.Equal(t, 2, m.QueueLen())

	last, ok := m.PeekObservation()
	require.True(t, ok)
	require.Equal(t, "saw a wolf", last.Payload)

	drained := m.GetAndClearObservations()
	require.Len(t, drained, 2)
	require.Equal(t, "saw a lion", drained[0].Payload)
	require.Zero(t, m.QueueLen())
}

func TestManager_StoreMemoryUpdatesCache(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.StoreMemory(ctx, "lions hunt in groups", "observation", map[string]any{"source": "test"})
	require.NoError(t, err)
	require.Equal(t, []uint{id}, m.MemoryCacheIDs())

	// 检索能命中刚写入的行并带回完整内容
	hits, err := m.FindRelevantMemories(ctx, "lions hunt in groups", 5, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, id, hits[0].Memory.ID)
	require.Equal(t, "lions hunt in groups", hits[0].Memory.Content)
}

func TestManager_CacheStoreConsistencyAfterReload(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.StoreMemory(ctx, fmt.Sprintf("observation number %d about animals", i), "observation", nil)
		require.NoError(t, err)
	}

	before := m.MemoryCacheIDs()
	require.NoError(t, m.LoadCaches(ctx))
	require.Equal(t, before, m.MemoryCacheIDs())
}

func TestManager_ConcurrentStoreMemory(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	const workers = 2
	const perWorker = 100

	var wg sync.WaitGroup
	errCh := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := m.StoreMemory(ctx, fmt.Sprintf("worker %d memo %d", w, i), "observation", nil)
				if err != nil {
					errCh <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, m.MemoryCacheIDs(), workers*perWorker)

	cached := m.MemoryCacheIDs()
	require.NoError(t, m.LoadCaches(ctx))
	require.Equal(t, cached, m.MemoryCacheIDs())
}

func TestManager_CreateConceptUpdatesConceptCache(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateConcept(ctx, "Carnivore", "an animal that eats meat", nil)
	require.NoError(t, err)
	require.Equal(t, []uint{id}, m.ConceptCacheIDs())

	// 重名返回同一 ID，缓存不膨胀
	again, err := m.CreateConcept(ctx, "Carnivore", "an animal that eats meat", nil)
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Len(t, m.ConceptCacheIDs(), 1)

	hits, err := m.FindRelevantConcepts(ctx, "Carnivore: an animal that eats meat", 3, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Carnivore", hits[0].Concept.Name)
}

func TestManager_SleepMaintenanceReloadsCache(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	accessed, err := m.StoreMemory(ctx, "this memory gets used all the time", "observation", nil)
	require.NoError(t, err)
	_, err = m.StoreMemory(ctx, "this memory is never touched again", "observation", nil)
	require.NoError(t, err)

	// 检索一次，第一条获得访问计数
	hits, err := m.FindRelevantMemories(ctx, "this memory gets used all the time", 1, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, accessed, hits[0].Memory.ID)

	deleted, err := m.PerformSleepMaintenance(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	require.Equal(t, []uint{accessed}, m.MemoryCacheIDs())

	// 无可删行时：0 删除，缓存大小不变
	deleted, err = m.PerformSleepMaintenance(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.Equal(t, []uint{accessed}, m.MemoryCacheIDs())
}

func TestManager_RetrievalTouchesAccessStats(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.StoreMemory(ctx, "wolves howl at night", "observation", nil)
	require.NoError(t, err)

	_, err = m.FindRelevantMemories(ctx, "wolves howl at night", 1, 0.9)
	require.NoError(t, err)
	_, err = m.FindRelevantMemories(ctx, "wolves howl at night", 1, 0.9)
	require.NoError(t, err)

	mem, err := m.Store().GetMemoryByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, mem.AccessCount)
	require.NotNil(t, mem.LastAccessAt)
}
