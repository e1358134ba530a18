package reasoning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/store"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "ltm.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb, err := embedding.NewHashEmbedder(32)
	require.NoError(t, err)

	mgr, err := memory.NewManager(context.Background(), memory.ManagerConfig{
		QueueCapacity:      8,
		EmbeddingDimension: 32,
	}, st, emb, zap.NewNop(), nil)
	require.NoError(t, err)
	return mgr
}

func TestArbiter_ReinforcesRepeatedFact(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()
	arbiter := NewArbiter(mgr, ArbiterConfig{}, zap.NewNop())

	id1, err := arbiter.Ingest(ctx, "water", "boils at", "100c", nil, 0.5)
	require.NoError(t, err)
	id2, err := arbiter.Ingest(ctx, "water", "boils at", "100c", nil, 0.5)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	fact, err := mgr.Store().GetFactByID(ctx, id1)
	require.NoError(t, err)
	require.InDelta(t, 0.55, fact.Confidence, 1e-9)
	require.InDelta(t, 0.05, fact.UsageWeight, 1e-9)
}

func TestArbiter_DecaysWeakerPriorOnConflict(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()
	arbiter := NewArbiter(mgr, ArbiterConfig{}, zap.NewNop())

	oldID, err := arbiter.Ingest(ctx, "pluto", "is", "a planet", nil, 0.4)
	require.NoError(t, err)
	newID, err := arbiter.Ingest(ctx, "pluto", "is", "a dwarf planet", nil, 0.9)
	require.NoError(t, err)
	require.NotEqual(t, oldID, newID)

	old, err := mgr.Store().GetFactByID(ctx, oldID)
	require.NoError(t, err)
	require.InDelta(t, 0.3, old.Confidence, 1e-9)

	recent, err := mgr.Store().GetFactByID(ctx, newID)
	require.NoError(t, err)
	require.InDelta(t, 0.9, recent.Confidence, 1e-9)
}

func TestArbiter_DecaysNewFactAgainstStrongerPrior(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()
	arbiter := NewArbiter(mgr, ArbiterConfig{}, zap.NewNop())

	_, err := arbiter.Ingest(ctx, "earth", "is", "round", nil, 0.9)
	require.NoError(t, err)
	newID, err := arbiter.Ingest(ctx, "earth", "is", "flat", nil, 0.3)
	require.NoError(t, err)

	recent, err := mgr.Store().GetFactByID(ctx, newID)
	require.NoError(t, err)
	require.InDelta(t, 0.2, recent.Confidence, 1e-9)
}

func TestClusterSynonyms(t *testing.T) {
	t.Parallel()

	clusters := clusterSynonyms([]string{"cat", "the cat", "dog", "cats"})
	require.Len(t, clusters, 2)

	byRep := map[string][]string{}
	for _, c := range clusters {
		byRep[c[0]] = c
	}
	// 最长写法当代表词
	require.Contains(t, byRep, "the cat")
	require.ElementsMatch(t, []string{"the cat", "cats", "cat"}, byRep["the cat"])
	require.Equal(t, []string{"dog"}, byRep["dog"])
}

func TestConceptMiner_CrystallizesDenseSubject(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	for _, obj := range []string{"an animal", "furry", "independent"} {
		pred := "is"
		if obj != "an animal" {
			pred = "is described as"
		}
		_, err := mgr.AddSymbolicFact(ctx, "cat", pred, obj, nil, 0.8)
		require.NoError(t, err)
	}
	// 稀疏主语不结晶
	_, err := mgr.AddSymbolicFact(ctx, "dog", "is", "an animal", nil, 0.8)
	require.NoError(t, err)

	miner := NewConceptMiner(mgr, MinerConfig{MinFactCount: 3}, zap.NewNop())
	mined, err := miner.Mine(ctx)
	require.NoError(t, err)
	require.Len(t, mined, 1)
	require.Equal(t, "cat", mined[0].Name)
	require.Equal(t, 3, mined[0].LinkedFacts)

	concept, err := mgr.Store().GetConceptByName(ctx, "cat")
	require.NoError(t, err)
	require.Contains(t, concept.Definition, "an animal")

	// 已挂接的事实退出候选集，再挖一轮应当没有产出
	mined, err = miner.Mine(ctx)
	require.NoError(t, err)
	require.Empty(t, mined)
}

func TestGeneralizer_AbstractsSharedProperty(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	for _, subject := range []string{"sparrow", "eagle", "bat"} {
		_, err := mgr.AddSymbolicFact(ctx, subject, "can", "fly", nil, 0.8)
		require.NoError(t, err)
	}

	g := NewGeneralizer(mgr, nil, GeneralizerConfig{MinSubjects: 3}, zap.NewNop())
	gens, err := g.Generalize(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	require.Equal(t, "things-that-can-fly", gens[0].Name)
	require.ElementsMatch(t, []string{"sparrow", "eagle", "bat"}, gens[0].Members)

	facts, err := mgr.Store().FindFacts(ctx, "bat", "is a", "things-that-can-fly")
	require.NoError(t, err)
	require.Len(t, facts, 1)

	concept, err := mgr.Store().GetConceptByName(ctx, "things-that-can-fly")
	require.NoError(t, err)
	require.Contains(t, concept.Definition, "sparrow")
}

func TestInferencer_FindsMultiHopPath(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddSymbolicFact(ctx, "socrates", "is a", "man", nil, 0.9)
	require.NoError(t, err)
	_, err = mgr.AddSymbolicFact(ctx, "man", "is", "mortal", nil, 0.9)
	require.NoError(t, err)

	inf := NewInferencer(mgr.Store(), 4, zap.NewNop())
	path, err := inf.FindPath(ctx, "socrates", "mortal")
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Len(t, path.Hops, 2)
	require.Equal(t, "socrates is a man, and man is mortal.", path.Narrate())
}

func TestInferencer_BridgesCaseMismatchedHops(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	// 上一跳宾语小写，下一跳主语大写，图遍历要能接上
	_, err := mgr.AddSymbolicFact(ctx, "socrates", "is a", "man", nil, 0.9)
	require.NoError(t, err)
	_, err = mgr.AddSymbolicFact(ctx, "Man", "is", "mortal", nil, 0.9)
	require.NoError(t, err)

	inf := NewInferencer(mgr.Store(), 4, zap.NewNop())
	path, err := inf.FindPath(ctx, "socrates", "mortal")
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Len(t, path.Hops, 2)
	require.Equal(t, "Man", path.Hops[1].Subject)
}

func TestInferencer_UnreachableReturnsNil(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddSymbolicFact(ctx, "socrates", "is a", "man", nil, 0.9)
	require.NoError(t, err)

	inf := NewInferencer(mgr.Store(), 4, zap.NewNop())
	path, err := inf.FindPath(ctx, "socrates", "banana")
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestInferencer_RespectsHopLimit(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	chain := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < len(chain)-1; i++ {
		_, err := mgr.AddSymbolicFact(ctx, chain[i], "leads to", chain[i+1], nil, 0.9)
		require.NoError(t, err)
	}

	inf := NewInferencer(mgr.Store(), 2, zap.NewNop())
	path, err := inf.FindPath(ctx, "a", "e")
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestConsolidator_FullSleepCycle(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	// 噪声：过短主语
	_, err := mgr.AddSymbolicFact(ctx, "x", "is", "noise", nil, 0.2)
	require.NoError(t, err)
	// 大小写重复，去重保留先写入的小写版本
	_, err = mgr.AddSymbolicFact(ctx, "cat", "is", "an animal", nil, 0.8)
	require.NoError(t, err)
	_, err = mgr.AddSymbolicFact(ctx, "Cat", "IS", "an animal", nil, 0.8)
	require.NoError(t, err)
	// 密集主语
	for _, obj := range []string{"furry", "independent"} {
		_, err = mgr.AddSymbolicFact(ctx, "cat", "is described as", obj, nil, 0.8)
		require.NoError(t, err)
	}

	miner := NewConceptMiner(mgr, MinerConfig{MinFactCount: 3}, zap.NewNop())
	c := NewConsolidator(mgr, miner, nil, zap.NewNop())

	stats, err := c.Sleep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.NoiseFactsPruned)
	require.EqualValues(t, 1, stats.DuplicatesMerged)
	require.Equal(t, 1, stats.ConceptsMined)
}
