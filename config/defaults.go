package config

import "time"

// DefaultConfig 返回全部默认值。字段含义见 loader.go 中的结构定义。
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "neuroswarm.sqlite",
		},
		Memory: MemoryConfig{
			QueueCapacity:       256,
			PruneMaxAccessCount: 0,
			PruneOlderThan:      7 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Dimension: 128,
		},
		Agents: AgentsConfig{
			LearningInterval:  200 * time.Millisecond,
			ReasoningInterval: 100 * time.Millisecond,
			RetrievalTopK:     3,
			MinSimilarity:     0.1,
			GapThreshold:      0.4,
			ShutdownTimeout:   10 * time.Second,
		},
		Reasoning: ReasoningConfig{
			MinFactCount:      3,
			MinSharedSubjects: 3,
			ConflictDecay:     0.1,
			MaxInferenceHops:  4,
			SleepInterval:     5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Addr:      ":9090",
			Namespace: "neuroswarm",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}
