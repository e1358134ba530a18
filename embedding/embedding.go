package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// ErrInvalidDimension 向量维度非法（构造期错误，启动时即失败）
var ErrInvalidDimension = errors.New("embedding dimension must be positive")

// Embedder 文本向量化接口。
//
// 实现约定：
//  1. 相同输入必须得到相同输出（确定性）。
//  2. 输出向量必须做 L2 归一化，使点积 ≡ 余弦相似度。
//  3. 内部失败时返回全零向量而不是报错，调用方需容忍零相似度。
type Embedder interface {
	// Embed 将一段文本编码为定长向量
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch 批量编码
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension 输出向量的维度
	Dimension() int

	// ModelName 生成向量的模型标识，随向量一起持久化
	ModelName() string
}

// HashEmbedder 基于词元哈希投影的确定性向量化实现。
//
// 每个词元经 FNV 哈希落入一个维度桶，符号由第二个哈希决定，
// 最后整体 L2 归一化。没有任何语义理解，只保证：相同文本得到
// 相同向量、词元重叠的文本相似度高于完全无关的文本。
type HashEmbedder struct {
	dimension int
	modelName string
}

// NewHashEmbedder 创建哈希向量化器
func NewHashEmbedder(dimension int) (*HashEmbedder, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	return &HashEmbedder{
		dimension: dimension,
		modelName: "token-hash-v1",
	}, nil
}

// Embed 实现 Embedder 接口
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		// 约定：无法编码时返回全零向量
		return vec, nil
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimension))
		// 次高位决定符号，避免所有词元同向叠加
		if (sum>>32)&1 == 0 {
			vec[idx] += 1.0
		} else {
			vec[idx] -= 1.0
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch 实现 Embedder 接口
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Dimension 实现 Embedder 接口
func (e *HashEmbedder) Dimension() int { return e.dimension }

// ModelName 实现 Embedder 接口
func (e *HashEmbedder) ModelName() string { return e.modelName }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
