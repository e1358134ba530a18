package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVectorCache_EmptySearch(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(zap.NewNop())
	require.Empty(t, c.Search([]float64{1, 0}, 5, 0))
}

func TestVectorCache_TopKThenThreshold(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(zap.NewNop())
	c.Set(1, []float64{1, 0})
	c.Set(2, []float64{0, 1})
	c.Set(3, []float64{0.9, 0.1})

	// k=2 先取真 top-2（id 1 和 3），再过滤阈值；id 2 即使达标也轮不到
	hits := c.Search([]float64{1, 0}, 2, 0.5)
	require.Len(t, hits, 2)
	require.EqualValues(t, 1, hits[0].ID)
	require.EqualValues(t, 3, hits[1].ID)

	// 阈值在截断之后生效：top-2 中只有 id 1 过线
	hits = c.Search([]float64{1, 0}, 2, 0.95)
	require.Len(t, hits, 1)
	require.EqualValues(t, 1, hits[0].ID)
}

func TestVectorCache_DeterministicTieBreak(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(zap.NewNop())
	// 三个完全相同的向量：同分，按 ID 升序
	c.Set(7, []float64{1, 0})
	c.Set(3, []float64{1, 0})
	c.Set(5, []float64{1, 0})

	for i := 0; i < 5; i++ {
		hits := c.Search([]float64{1, 0}, 3, 0)
		require.Len(t, hits, 3)
		require.EqualValues(t, 3, hits[0].ID)
		require.EqualValues(t, 5, hits[1].ID)
		require.EqualValues(t, 7, hits[2].ID)
	}
}

func TestVectorCache_SetDeleteReplace(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(zap.NewNop())
	c.Set(1, []float64{1, 0})
	c.Set(2, []float64{0, 1})
	require.Equal(t, 2, c.Len())
	require.True(t, c.Contains(1))

	c.Delete(1)
	require.False(t, c.Contains(1))
	require.Equal(t, []uint{2}, c.IDs())

	c.ReplaceAll(map[uint][]float64{
		10: {1, 0},
		20: {0, 1},
		30: {0.5, 0.5},
	})
	require.Equal(t, 3, c.Len())
	require.Equal(t, []uint{10, 20, 30}, c.IDs())
}

func TestVectorCache_ZeroQueryDegenerate(t *testing.T) {
	t.Parallel()

	c := NewVectorCache(zap.NewNop())
	c.Set(1, []float64{1, 0})

	// 编码器失败降级为零向量：全零相似度，被正阈值过滤，不崩溃
	require.Empty(t, c.Search([]float64{0, 0}, 5, 0.1))

	hits := c.Search([]float64{0, 0}, 5, 0)
	require.Len(t, hits, 1)
	require.Zero(t, hits[0].Score)
}
