// neuroswarm 主入口
//
// 使用方法:
//
//	neuroswarm run                         # 启动 swarm
//	neuroswarm run --config swarm.yaml     # 指定配置文件
//	neuroswarm version                     # 显示版本信息
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/neuroswarm/agent"
	"github.com/BaSui01/neuroswarm/bus"
	"github.com/BaSui01/neuroswarm/config"
	"github.com/BaSui01/neuroswarm/embedding"
	"github.com/BaSui01/neuroswarm/internal/metrics"
	"github.com/BaSui01/neuroswarm/memory"
	"github.com/BaSui01/neuroswarm/reasoning"
	"github.com/BaSui01/neuroswarm/store"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runSwarm(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSwarm(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting neuroswarm",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(cfg.Metrics.Namespace, registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	emb, err := embedding.NewHashEmbedder(cfg.Embedding.Dimension)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}

	ctx := context.Background()
	mgr, err := memory.NewManager(ctx, memory.ManagerConfig{
		QueueCapacity:       cfg.Memory.QueueCapacity,
		EmbeddingDimension:  cfg.Embedding.Dimension,
		PruneMaxAccessCount: cfg.Memory.PruneMaxAccessCount,
		PruneOlderThan:      cfg.Memory.PruneOlderThan,
	}, st, emb, logger, collector)
	if err != nil {
		logger.Fatal("Failed to create memory manager", zap.Error(err))
	}

	eventBus := bus.New(logger, collector)

	arbiter := reasoning.NewArbiter(mgr, reasoning.ArbiterConfig{
		DecayAmount: cfg.Reasoning.ConflictDecay,
	}, logger)
	miner := reasoning.NewConceptMiner(mgr, reasoning.MinerConfig{
		MinFactCount: cfg.Reasoning.MinFactCount,
	}, logger)
	generalizer := reasoning.NewGeneralizer(mgr, nil, reasoning.GeneralizerConfig{
		MinSubjects: cfg.Reasoning.MinSharedSubjects,
	}, logger)
	consolidator := reasoning.NewConsolidator(mgr, miner, generalizer, logger)

	swarm := agent.NewSwarm(logger)
	swarm.Add(
		agent.NewLearningAgent("learner", mgr, eventBus, nil, arbiter, logger),
		cfg.Agents.LearningInterval,
	)
	swarm.Add(
		agent.NewReasoningAgent("reasoner", mgr, eventBus, nil, agent.ReasoningAgentConfig{
			TopK:          cfg.Agents.RetrievalTopK,
			MinSimilarity: cfg.Agents.MinSimilarity,
			GapThreshold:  cfg.Agents.GapThreshold,
		}, logger),
		cfg.Agents.ReasoningInterval,
	)

	if err := swarm.Start(); err != nil {
		logger.Fatal("Failed to start swarm", zap.Error(err))
	}

	// 后台睡眠巩固：固定周期做一轮离线维护
	sleepCtx, stopSleep := context.WithCancel(ctx)
	sleepDone := make(chan struct{})
	go func() {
		defer close(sleepDone)
		ticker := time.NewTicker(cfg.Reasoning.SleepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sleepCtx.Done():
				return
			case <-ticker.C:
				if _, err := consolidator.Sleep(sleepCtx); err != nil {
					logger.Error("sleep cycle failed", zap.Error(err))
				}
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	stopSleep()
	<-sleepDone

	// 关机前做最后一轮巩固，把这次会话学到的东西固化下来
	if _, err := consolidator.Sleep(ctx); err != nil {
		logger.Error("final sleep cycle failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Agents.ShutdownTimeout)
	defer cancel()
	if err := swarm.Stop(shutdownCtx); err != nil {
		logger.Error("swarm did not stop cleanly", zap.Error(err))
	}

	logger.Info("neuroswarm stopped")
}

func printVersion() {
	fmt.Printf("neuroswarm %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`neuroswarm - concurrent neuro-symbolic memory core

Usage:
  neuroswarm <command> [options]

Commands:
  run       Start the agent swarm
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)

Examples:
  neuroswarm run
  neuroswarm run --config /etc/neuroswarm/swarm.yaml
  neuroswarm version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
