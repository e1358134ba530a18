// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 核心子系统的 Prometheus 指标收集器。
// 所有方法对 nil 接收者安全，组件可以无条件调用。
type Collector struct {
	observationsTotal prometheus.Counter
	queueEvictions    prometheus.Counter
	memoriesStored    prometheus.Counter
	memoriesPruned    prometheus.Counter
	factsAdded        *prometheus.CounterVec
	conceptsCreated   prometheus.Counter
	eventsPublished   *prometheus.CounterVec
	handlerPanics     *prometheus.CounterVec
	cacheSize         *prometheus.GaugeVec
	searchesTotal     *prometheus.CounterVec
	staleCacheHits    prometheus.Counter
}

// NewCollector 创建指标收集器并把所有指标注册到 reg；
// reg 为 nil 时使用默认 registry。
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		observationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total observations pushed into short-term memory",
		}),
		queueEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_evictions_total",
			Help:      "Observations evicted from the full short-term buffer",
		}),
		memoriesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_stored_total",
			Help:      "Memories committed to the long-term store",
		}),
		memoriesPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_pruned_total",
			Help:      "Memories deleted by sleep maintenance",
		}),
		factsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_added_total",
			Help:      "Symbolic facts ingested, by outcome",
		}, []string{"outcome"}),
		conceptsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concepts_created_total",
			Help:      "Concepts synthesized by the consolidation engine",
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the bus, by event type",
		}, []string{"event_type"}),
		handlerPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_panics_total",
			Help:      "Subscriber callbacks that panicked during dispatch",
		}, []string{"event_type"}),
		cacheSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_cache_size",
			Help:      "Entries currently held in each vector cache",
		}, []string{"cache"}),
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_searches_total",
			Help:      "Similarity searches served, by cache",
		}, []string{"cache"}),
		staleCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_cache_hits_total",
			Help:      "Search hits whose backing row no longer existed",
		}),
	}
}

// ObservationAdded 记一条观察入队
func (c *Collector) ObservationAdded() {
	if c == nil {
		return
	}
	c.observationsTotal.Inc()
}

// QueueEviction 记一次满员淘汰
func (c *Collector) QueueEviction() {
	if c == nil {
		return
	}
	c.queueEvictions.Inc()
}

// MemoryStored 记一条记忆落盘
func (c *Collector) MemoryStored() {
	if c == nil {
		return
	}
	c.memoriesStored.Inc()
}

// MemoriesPruned 记维护期删除的记忆数
func (c *Collector) MemoriesPruned(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.memoriesPruned.Add(float64(n))
}

// FactAdded 记一条事实摄入，outcome 为 "created" 或 "duplicate"
func (c *Collector) FactAdded(outcome string) {
	if c == nil {
		return
	}
	c.factsAdded.WithLabelValues(outcome).Inc()
}

// ConceptCreated 记一个概念生成
func (c *Collector) ConceptCreated() {
	if c == nil {
		return
	}
	c.conceptsCreated.Inc()
}

// EventPublished 记一次事件发布
func (c *Collector) EventPublished(eventType string) {
	if c == nil {
		return
	}
	c.eventsPublished.WithLabelValues(eventType).Inc()
}

// HandlerPanic 记一次订阅者回调崩溃
func (c *Collector) HandlerPanic(eventType string) {
	if c == nil {
		return
	}
	c.handlerPanics.WithLabelValues(eventType).Inc()
}

// SetCacheSize 更新某个向量缓存的当前条数
func (c *Collector) SetCacheSize(cache string, n int) {
	if c == nil {
		return
	}
	c.cacheSize.WithLabelValues(cache).Set(float64(n))
}

// SearchServed 记一次相似度检索
func (c *Collector) SearchServed(cache string) {
	if c == nil {
		return
	}
	c.searchesTotal.WithLabelValues(cache).Inc()
}

// StaleCacheHit 记一次缓存指向已删除行的命中
func (c *Collector) StaleCacheHit() {
	if c == nil {
		return
	}
	c.staleCacheHits.Inc()
}
