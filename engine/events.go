package engine

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/perf"
)

// Event topic names, per §6's observer boundary.
const (
	TopicCorrelationFound  = "correlationFound"
	TopicPerformanceMetrics = "performanceMetrics"
	TopicMemoryWarning     = "memoryWarning"
	TopicAdapterAdded      = "adapterAdded"
)

// MemoryWarning is the payload published on TopicMemoryWarning.
type MemoryWarning struct {
	UsedMB int
	MaxMB  int
}

// OnCorrelationFound subscribes fn to every emitted CorrelatedEvent,
// across every query currently running through this engine.
func (e *Engine) OnCorrelationFound(fn func(event.CorrelatedEvent)) error {
	return e.bus.SubscribeAsync(TopicCorrelationFound, fn, false)
}

// OnPerformanceMetrics subscribes fn to the periodic metrics snapshot.
func (e *Engine) OnPerformanceMetrics(fn func(perf.Metrics)) error {
	return e.bus.SubscribeAsync(TopicPerformanceMetrics, fn, false)
}

// OnMemoryWarning subscribes fn to heap-over-threshold notifications.
func (e *Engine) OnMemoryWarning(fn func(MemoryWarning)) error {
	return e.bus.SubscribeAsync(TopicMemoryWarning, fn, false)
}

// OnAdapterAdded subscribes fn to successful adapter registrations.
func (e *Engine) OnAdapterAdded(fn func(string)) error {
	return e.bus.SubscribeAsync(TopicAdapterAdded, fn, false)
}

// clearListeners unsubscribes everything the engine knows it registered
// internally; external subscribers are expected to have already
// unsubscribed their own handlers before calling destroy(), same as the
// teacher's health monitor unsubscribes "UPDATE" on its own teardown path
// rather than trying to track callers' handlers for them.
func (e *Engine) clearListeners() {
	e.bus = evbus.New()
}
