package bus

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/neuroswarm/internal/metrics"
)

// Handler 事件回调。payload 的具体类型由事件类型约定（见 events.go）。
type Handler func(payload any)

type subscription struct {
	id      string
	handler Handler
}

// EventBus 线程安全的同步事件总线
type EventBus struct {
	mu sync.Mutex
	// listeners 每个事件类型一个有序订阅列表，保持订阅顺序
	listeners map[EventType][]subscription

	logger    *zap.Logger
	collector *metrics.Collector
}

// New 创建事件总线
func New(logger *zap.Logger, collector *metrics.Collector) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		listeners: make(map[EventType][]subscription),
		logger:    logger.With(zap.String("component", "event_bus")),
		collector: collector,
	}
}

// Subscribe 注册回调并返回订阅 ID（退订凭据——Go 的函数值不可比较，
// 不能按回调本身退订）。
func (b *EventBus) Subscribe(eventType EventType, handler Handler) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe 按订阅 ID 退订；未知 ID 是空操作
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.listeners {
		for i, sub := range subs {
			if sub.id == id {
				b.listeners[eventType] = append(subs[:i:i], subs[i+1:]...)
				if len(b.listeners[eventType]) == 0 {
					delete(b.listeners, eventType)
				}
				return
			}
		}
	}
}

// Publish 同步派发事件：锁内快照订阅列表，锁外按订阅顺序调用。
// 没有订阅者时是空操作。单个回调 panic 被捕获记日志，不影响
// 其余订阅者，也不上抛给发布者。
func (b *EventBus) Publish(eventType EventType, payload any) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.listeners[eventType]...)
	b.mu.Unlock()

	b.collector.EventPublished(string(eventType))

	for _, sub := range subs {
		b.dispatch(eventType, sub, payload)
	}
}

func (b *EventBus) dispatch(eventType EventType, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.collector.HandlerPanic(string(eventType))
			b.logger.Error("event handler panicked",
				zap.String("event_type", string(eventType)),
				zap.String("subscription", sub.id),
				zap.Any("recover", r))
		}
	}()
	sub.handler(payload)
}

// ListenerCount 某事件类型当前的订阅者数（诊断与测试用）
func (b *EventBus) ListenerCount(eventType EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[eventType])
}
