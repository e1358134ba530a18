package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/bus"
	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/reasoning"
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
		QueueCapacity:      16,
		EmbeddingDimension: 32,
	}, st, emb, zap.NewNop(), nil)
	require.NoError(t, err)
	return mgr
}

type fixedExtractor struct {
	triples []Triple
}

func (e fixedExtractor) Extract(context.Context, string) ([]Triple, error) {
	return e.triples, nil
}

func TestLearningAgent_ConsolidatesObservations(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	eventBus := bus.New(zap.NewNop(), nil)
	ctx := context.Background()

	var mu sync.Mutex
	var newMemories []bus.NewMemoryPayload
	eventBus.Subscribe(bus.EventLearningNewMemory, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		newMemories = append(newMemories, payload.(bus.NewMemoryPayload))
	})

	a := NewLearningAgent("learner", mgr, eventBus, nil, nil, zap.NewNop())
	require.NoError(t, a.Setup(ctx))
	defer a.Teardown(ctx)

	mgr.AddObservation("the sky is blue", "en.wikipedia.org/wiki/Sky")
	mgr.AddObservation("hot take about skies", "reddit.com/r/skies")
	require.NoError(t, a.ProcessStep(ctx))

	require.Equal(t, 0, mgr.QueueLen())
	require.EqualValues(t, 2, a.Consolidated())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, newMemories, 2)
	for _, p := range newMemories {
		m, err := mgr.Store().GetMemoryByID(ctx, p.MemoryID)
		require.NoError(t, err)
		require.Equal(t, "observation", m.ContentType)
	}

	patterns, err := mgr.Store().TopGrammarPatterns(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, patterns)
	// 模板和词类序列是两层不同的抽象
	require.NotEqual(t, patterns[0].Template, patterns[0].POSSequence)
}

func TestGrammarSignature(t *testing.T) {
	t.Parallel()

	hash, template, posSeq := grammarSignature("The cat has 4 legs")
	require.Equal(t, "CAP w w NUM w", posSeq)
	require.Equal(t, "the _ has NUM _", template)
	require.NotEqual(t, template, posSeq)
	require.NotEmpty(t, hash)

	// 同构句子落到同一个哈希
	hash2, _, _ := grammarSignature("The dog has 3 tails")
	require.Equal(t, hash, hash2)

	hash3, _, _ := grammarSignature("")
	require.Empty(t, hash3)
}

func TestLearningAgent_SourceTrustFlowsIntoFacts(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	eventBus := bus.New(zap.NewNop(), nil)
	ctx := context.Background()

	extractor := fixedExtractor{triples: []Triple{
		{Subject: "sky", Predicate: "is", Object: "blue"},
	}}
	a := NewLearningAgent("learner", mgr, eventBus, extractor, nil, zap.NewNop())
	require.NoError(t, a.Setup(ctx))
	defer a.Teardown(ctx)

	mgr.AddObservation("the sky is blue", "en.wikipedia.org/wiki/Sky")
	require.NoError(t, a.ProcessStep(ctx))

	facts, err := mgr.Store().FindFacts(ctx, "sky", "is", "blue")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.InDelta(t, 0.9, facts[0].Confidence, 1e-9)
}

func TestLearningAgent_StartStopEvents(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	eventBus := bus.New(zap.NewNop(), nil)
	ctx := context.Background()

	a := NewLearningAgent("learner", mgr, eventBus, nil, nil, zap.NewNop())
	require.NoError(t, a.Setup(ctx))
	defer a.Teardown(ctx)

	eventBus.Publish(bus.EventLearningStop, nil)
	mgr.AddObservation("ignored while paused", "somewhere.com")
	require.NoError(t, a.ProcessStep(ctx))
	require.Equal(t, 1, mgr.QueueLen())

	eventBus.Publish(bus.EventLearningStart, nil)
	require.NoError(t, a.ProcessStep(ctx))
	require.Equal(t, 0, mgr.QueueLen())
	require.EqualValues(t, 1, a.Consolidated())
}

func TestLearningAgent_ArbiterResolvesConflicts(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	eventBus := bus.New(zap.NewNop(), nil)
	ctx := context.Background()

	// 先种一条低置信度的旧事实
	oldID, err := mgr.AddSymbolicFact(ctx, "sky", "is", "green", nil, 0.3)
	require.NoError(t, err)

	arbiter := reasoning.NewArbiter(mgr, reasoning.ArbiterConfig{}, zap.NewNop())
	extractor := fixedExtractor{triples: []Triple{
		{Subject: "sky", Predicate: "is", Object: "blue"},
	}}
	a := NewLearningAgent("learner", mgr, eventBus, extractor, arbiter, zap.NewNop())
	require.NoError(t, a.Setup(ctx))
	defer a.Teardown(ctx)

	mgr.AddObservation("the sky is blue", "en.wikipedia.org/wiki/Sky")
	require.NoError(t, a.ProcessStep(ctx))

	old, err := mgr.Store().GetFactByID(ctx, oldID)
	require.NoError(t, err)
	require.InDelta(t, 0.2, old.Confidence, 1e-9)
}

func TestSourceTrust(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.9, sourceTrust("https://en.wikipedia.org/wiki/Go"), 1e-9)
	require.InDelta(t, 0.9, sourceTrust("https://www.mit.edu/research"), 1e-9)
	require.InDelta(t, 0.3, sourceTrust("https://reddit.com/r/golang"), 1e-9)
	require.InDelta(t, 0.5, sourceTrust("https://example.com/blog"), 1e-9)
}
