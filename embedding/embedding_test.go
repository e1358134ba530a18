package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_InvalidDimension(t *testing.T) {
	t.Parallel()

	_, err := NewHashEmbedder(0)
	require.ErrorIs(t, err, ErrInvalidDimension)

	_, err = NewHashEmbedder(-8)
	require.ErrorIs(t, err, ErrInvalidDimension)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	t.Parallel()

	e, err := NewHashEmbedder(64)
	require.NoError(t, err)

	ctx := context.Background()

	a, err := e.Embed(ctx, "lions eat meat")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "lions eat meat")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHashEmbedder_Normalized(t *testing.T) {
	t.Parallel()

	e, err := NewHashEmbedder(32)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
}

func TestHashEmbedder_EmptyTextZeroVector(t *testing.T) {
	t.Parallel()

	e, err := NewHashEmbedder(16)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, v, 16)
	for _, x := range v {
		require.Zero(t, x)
	}
}

func TestHashEmbedder_Batch(t *testing.T) {
	t.Parallel()

	e, err := NewHashEmbedder(16)
	require.NoError(t, err)

	ctx := context.Background()
	vecs, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, single, vecs[0])
}
