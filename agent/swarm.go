package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Swarm 一组 Runner 的监督器：统一启动、统一停止、统一等待。
// agent 之间只通过事件总线和记忆门面交互，Swarm 不做任何路由。
type Swarm struct {
	runners []*Runner
	logger  *zap.Logger
	started bool
}

// NewSwarm 创建空的监督器
func NewSwarm(logger *zap.Logger) *Swarm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Swarm{logger: logger.With(zap.String("component", "swarm"))}
}

// Add 注册一个 agent，interval 是该 agent 的轮询间隔。
// 必须在 Start 之前调用。
func (s *Swarm) Add(a Agent, interval time.Duration) {
	s.runners = append(s.runners, NewRunner(a, interval, s.logger))
}

// Start 启动全部 agent。任何一个启动失败就停掉已启动的并报错。
func (s *Swarm) Start() error {
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	for i, r := range s.runners {
		if err := r.Start(); err != nil {
			for _, prev := range s.runners[:i] {
				prev.Stop()
			}
			return fmt.Errorf("start agent %q: %w", r.agent.Name(), err)
		}
	}
	s.logger.Info("swarm started", zap.Int("agents", len(s.runners)))
	return nil
}

// Stop 向全部 agent 发停止信号并等待退出。ctx 到期仍未退出的
// agent 记日志后放弃等待。
func (s *Swarm) Stop(ctx context.Context) error {
	for _, r := range s.runners {
		r.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.runners {
		r := r
		g.Go(func() error {
			select {
			case <-r.Done():
				return nil
			case <-ctx.Done():
				s.logger.Warn("agent did not stop in time",
					zap.String("agent", r.agent.Name()))
				return fmt.Errorf("agent %q: %w", r.agent.Name(), ctx.Err())
			}
		})
	}
	err := g.Wait()
	if err == nil {
		s.logger.Info("swarm stopped")
	}
	return err
}

// Running 还在运行的 agent 数
func (s *Swarm) Running() int {
	n := 0
	for _, r := range s.runners {
		if r.State() == StateRunning {
			n++
		}
	}
	return n
}
