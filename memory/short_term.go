package memory

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidCapacity 短期记忆容量非法（构造期错误，启动时即失败）
var ErrInvalidCapacity = errors.New("short-term memory capacity must be positive")

// Observation 一条待巩固的原始观察。
// 只存在于短期缓冲中，被消费方 DrainAll 恰好取走一次，从不修改。
type Observation struct {
	Payload   string
	Source    string
	Timestamp time.Time
}

// ShortTermMemory 固定容量、线程安全的观察缓冲（环形队列）。
//
// 满员时 Add 淘汰最旧一项——这是接受的背压策略，数据丢失不算错误。
// 没有阻塞等待的变体，消费方轮询即可。
type ShortTermMemory struct {
	mu       sync.Mutex
	items    []Observation
	head     int
	size     int
	capacity int

	evicted uint64
	logger  *zap.Logger
}

// NewShortTermMemory 创建短期记忆缓冲，capacity 必须为正
func NewShortTermMemory(capacity int, logger *zap.Logger) (*ShortTermMemory, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortTermMemory{
		items:    make([]Observation, capacity),
		capacity: capacity,
		logger:   logger.With(zap.String("component", "short_term_memory")),
	}, nil
}

// Add 追加一条观察；满员时淘汰最旧一项。
// 返回本次是否发生了淘汰。
func (s *ShortTermMemory) Add(obs Observation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := (s.head + s.size) % s.capacity
	s.items[tail] = obs
	if s.size < s.capacity {
		s.size++
		return false
	}
	// 覆盖了最旧一项
	s.head = (s.head + 1) % s.capacity
	s.evicted++
	return true
}

// DrainAll 原子地取走当前全部观察并清空缓冲，保持到达顺序。
// 任何一条观察只会出现在一次 Drain 的结果里。
func (s *ShortTermMemory) DrainAll() []Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return nil
	}
	out := make([]Observation, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.items[(s.head+i)%s.capacity]
	}
	s.head = 0
	s.size = 0
	return out
}

// Peek 返回最近加入的一项但不移除；空缓冲返回 false
func (s *ShortTermMemory) Peek() (Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return Observation{}, false
	}
	return s.items[(s.head+s.size-1)%s.capacity], true
}

// Len 当前缓冲中的观察数
func (s *ShortTermMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity 构造时的固定容量
func (s *ShortTermMemory) Capacity() int { return s.capacity }

// Evicted 因满员被淘汰的累计条数
func (s *ShortTermMemory) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Clear 清空缓冲
func (s *ShortTermMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.size = 0
}
