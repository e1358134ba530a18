// Package neuroswarm provides a top-level convenience entry point for
// assembling the memory core with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/neuroswarm"
//
//	sys, err := neuroswarm.New("knowledge.sqlite")
//	defer sys.Close()
//
//	sys.Memory.AddObservation("the sky is blue", "en.wikipedia.org")
//	hits, err := sys.Memory.FindRelevantMemories(ctx, "sky color", 3, 0.1)
//
// 需要完整控制（自定义编码器、指标、agent 调参）时直接使用各子包。
package neuroswarm

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/bus"
	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/store"
)

// defaultDimension 便捷入口的向量维度，与 config.DefaultConfig 一致
const defaultDimension = 128

// System 组装好的记忆核心：存储、记忆门面、事件总线
type System struct {
	Store  *store.Store
	Memory *memory.Manager
	Bus    *bus.EventBus
}

// New 用默认参数在 path 处打开（或创建）知识库并组装记忆核心。
func New(path string) (*System, error) {
	return NewWithLogger(path, zap.NewNop())
}

// NewWithLogger 同 New，但使用调用方提供的日志器。
func NewWithLogger(path string, logger *zap.Logger) (*System, error) {
	st, err := store.Open(path, logger)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.NewHashEmbedder(defaultDimension)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	mgr, err := memory.NewManager(context.Background(), memory.ManagerConfig{
		QueueCapacity:      256,
		EmbeddingDimension: defaultDimension,
	}, st, emb, logger, nil)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &System{
		Store:  st,
		Memory: mgr,
		Bus:    bus.New(logger, nil),
	}, nil
}

// Close 释放底层数据库连接
func (s *System) Close() error {
	return s.Store.Close()
}
