package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State Agent 生命周期状态
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// ErrAlreadyStarted Runner 已经启动过
var ErrAlreadyStarted = errors.New("agent runner already started")

// Agent 协作式轮询 agent 的最小接口。
// Setup / ProcessStep / Teardown 都只会在 Runner 的专属 goroutine
// 上被调用，实现不需要自己做串行化。
type Agent interface {
	// Name agent 标识，进日志
	Name() string

	// Setup 循环开始前的一次性初始化；失败则循环不启动，直接 Teardown
	Setup(ctx context.Context) error

	// ProcessStep 一个工作单元。返回错误会被记日志并继续下一轮
	// ——单次存储抖动不应杀死 agent；panic 才终止循环。
	ProcessStep(ctx context.Context) error

	// Teardown 循环结束后的清理，无论循环因何退出都会执行
	Teardown(ctx context.Context)
}

// Runner 驱动一个 Agent：专属 goroutine 上跑
// setup → [process_step →]* → teardown 的协作式循环。
//
// Stop 只是置协作标志：进行中的 ProcessStep 会跑完，下一轮循环顶部
// 才退出。没有强杀原语——Join(timeout) 是诊断手段（"它到底停没停"），
// 不是强制终止。做外部 I/O 的步骤应自带请求级超时，保证下一轮能
// 及时看到停止信号。
type Runner struct {
	agent    Agent
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	cancel   context.CancelFunc
}

// NewRunner 创建 Runner。interval 是两轮 ProcessStep 之间的固定休眠，
// 非正值取 100ms——让出 CPU 的资源策略，不是正确性要求。
func NewRunner(a Agent, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Runner{
		agent:    a,
		interval: interval,
		logger:   logger.With(zap.String("component", "agent_runner"), zap.String("agent", a.Name())),
		state:    StateCreated,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// State 当前生命周期状态
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start 在新 goroutine 上启动循环；重复启动报错
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.state = StateRunning
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx)
	return nil
}

// Stop 置停止标志。协作式、尽力而为：只在循环顶部被观察到。
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("stop requested")
		close(r.stopCh)
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()
	})
}

// Done 循环 goroutine 退出时关闭
func (r *Runner) Done() <-chan struct{} { return r.doneCh }

// Join 等待循环 goroutine 退出，最多等 timeout。
// 返回 true 表示已退出。
func (r *Runner) Join(timeout time.Duration) bool {
	select {
	case <-r.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneCh)
	defer func() {
		r.mu.Lock()
		r.state = StateStopped
		r.mu.Unlock()
	}()

	r.logger.Info("agent starting")

	defer func() {
		// panic 是"未捕获异常"：记日志、跑 teardown、只终止本 agent
		if rec := recover(); rec != nil {
			r.logger.Error("agent crashed", zap.Any("recover", rec))
		}
		r.agent.Teardown(context.Background())
		r.logger.Info("agent stopped")
	}()

	if err := r.agent.Setup(ctx); err != nil {
		r.logger.Error("agent setup failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		if err := r.agent.ProcessStep(ctx); err != nil {
			// 单次步骤失败只记日志，下一轮轮询就是隐式重试
			r.logger.Error("process step failed", zap.Error(err))
		}

		select {
		case <-r.stopCh:
			return
		case <-time.After(r.interval):
		}
	}
}
