// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("neuroswarm.yaml").
//	    WithEnvPrefix("NEUROSWARM").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 neuroswarm 的完整配置结构
type Config struct {
	// Store 持久化存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Memory 记忆门面配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Embedding 向量编码配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Agents swarm 中各 agent 的调参
	Agents AgentsConfig `yaml:"agents" env:"AGENTS"`

	// Reasoning 符号推理配置
	Reasoning ReasoningConfig `yaml:"reasoning" env:"REASONING"`

	// Metrics 指标暴露配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// StoreConfig 持久化存储配置
type StoreConfig struct {
	// SQLite 数据库文件路径
	Path string `yaml:"path" env:"PATH"`
}

// MemoryConfig 记忆门面配置
type MemoryConfig struct {
	// 短期观察缓冲容量
	QueueCapacity int `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	// 睡眠维护删除访问次数不超过该值的记忆
	PruneMaxAccessCount int `yaml:"prune_max_access_count" env:"PRUNE_MAX_ACCESS_COUNT"`
	// 只删创建时间早于该时长的记忆，0 表示不按时间过滤
	PruneOlderThan time.Duration `yaml:"prune_older_than" env:"PRUNE_OLDER_THAN"`
}

// EmbeddingConfig 向量编码配置
type EmbeddingConfig struct {
	// 向量维度
	Dimension int `yaml:"dimension" env:"DIMENSION"`
}

// AgentsConfig swarm 中各 agent 的调参
type AgentsConfig struct {
	// 学习 agent 的轮询间隔
	LearningInterval time.Duration `yaml:"learning_interval" env:"LEARNING_INTERVAL"`
	// 推理 agent 的轮询间隔
	ReasoningInterval time.Duration `yaml:"reasoning_interval" env:"REASONING_INTERVAL"`
	// 每路检索候选数
	RetrievalTopK int `yaml:"retrieval_top_k" env:"RETRIEVAL_TOP_K"`
	// 进入回答的相似度下限
	MinSimilarity float64 `yaml:"min_similarity" env:"MIN_SIMILARITY"`
	// 低于该分数广播 gap_detected
	GapThreshold float64 `yaml:"gap_threshold" env:"GAP_THRESHOLD"`
	// 优雅停止超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// ReasoningConfig 符号推理配置
type ReasoningConfig struct {
	// 主语至少挂多少条未归类事实才结晶为概念
	MinFactCount int `yaml:"min_fact_count" env:"MIN_FACT_COUNT"`
	// 属性至少被多少个主语共享才抽象超类
	MinSharedSubjects int `yaml:"min_shared_subjects" env:"MIN_SHARED_SUBJECTS"`
	// 矛盾仲裁每次衰减的置信度
	ConflictDecay float64 `yaml:"conflict_decay" env:"CONFLICT_DECAY"`
	// 路径推理最大跳数
	MaxInferenceHops int `yaml:"max_inference_hops" env:"MAX_INFERENCE_HOPS"`
	// 两轮睡眠巩固之间的间隔
	SleepInterval time.Duration `yaml:"sleep_interval" env:"SLEEP_INTERVAL"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Prometheus HTTP 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "NEUROSWARM",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Store.Path == "" {
		errs = append(errs, "store path must not be empty")
	}
	if c.Memory.QueueCapacity <= 0 {
		errs = append(errs, "queue_capacity must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding dimension must be positive")
	}
	if c.Agents.MinSimilarity < 0 || c.Agents.MinSimilarity > 1 {
		errs = append(errs, "min_similarity must be between 0 and 1")
	}
	if c.Agents.GapThreshold < 0 || c.Agents.GapThreshold > 1 {
		errs = append(errs, "gap_threshold must be between 0 and 1")
	}
	if c.Reasoning.ConflictDecay <= 0 || c.Reasoning.ConflictDecay > 1 {
		errs = append(errs, "conflict_decay must be in (0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
