// Package perf implements the performance monitor (spec §4.8 / C8):
// commutative counters, throughput, latency, and memory-warning
// accounting that can be updated from any producer or joiner goroutine
// without a central lock per update.
package perf

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Monitor accumulates engine-wide counters. All Record* methods are safe
// for concurrent use — per §5, counters are "the only cross-task shared
// mutable state; updates are commutative increments that tolerate relaxed
// consistency."
type Monitor struct {
	startTime time.Time

	eventsProcessed   int64
	correlationsFound int64
	errors            int64
	duplicates        int64

	latencySumNanos int64
	latencyCount    int64
}

// New creates a Monitor whose uptime is measured from now.
func New() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// RecordEvent increments the processed-event counter.
func (m *Monitor) RecordEvent() {
	atomic.AddInt64(&m.eventsProcessed, 1)
}

// RecordCorrelation increments the emitted-correlation counter and
// accumulates the latency between the correlation's earliest event and
// now, for the rolling average §6's performanceMetrics event reports.
func (m *Monitor) RecordCorrelation(latency time.Duration) {
	atomic.AddInt64(&m.correlationsFound, 1)
	atomic.AddInt64(&m.latencySumNanos, int64(latency))
	atomic.AddInt64(&m.latencyCount, 1)
}

// RecordError increments the error counter.
func (m *Monitor) RecordError() {
	atomic.AddInt64(&m.errors, 1)
}

// RecordDuplicate increments the count of events the optional
// deduplicator (C12) suppressed before they reached a joiner.
func (m *Monitor) RecordDuplicate() {
	atomic.AddInt64(&m.duplicates, 1)
}

// Metrics is the point-in-time snapshot §6 defines as the
// performanceMetrics event payload.
type Metrics struct {
	EventsProcessed   int64
	CorrelationsFound int64
	AverageLatency    time.Duration
	Throughput        float64 // events/sec since start
	MemoryUsageBytes  uint64
	Errors            int64
	Duplicates        int64
	StartTime         time.Time
	Uptime            time.Duration
}

// Snapshot computes the current Metrics, reading runtime.MemStats for the
// memory figure §4.6/§5's memoryWarning threshold is compared against.
func (m *Monitor) Snapshot() Metrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	uptime := time.Since(m.startTime)
	events := atomic.LoadInt64(&m.eventsProcessed)

	var avgLatency time.Duration
	if count := atomic.LoadInt64(&m.latencyCount); count > 0 {
		avgLatency = time.Duration(atomic.LoadInt64(&m.latencySumNanos) / count)
	}

	var throughput float64
	if secs := uptime.Seconds(); secs > 0 {
		throughput = float64(events) / secs
	}

	return Metrics{
		EventsProcessed:   events,
		CorrelationsFound: atomic.LoadInt64(&m.correlationsFound),
		AverageLatency:    avgLatency,
		Throughput:        throughput,
		MemoryUsageBytes:  ms.HeapAlloc,
		Errors:            atomic.LoadInt64(&m.errors),
		Duplicates:        atomic.LoadInt64(&m.duplicates),
		StartTime:         m.startTime,
		Uptime:            uptime,
	}
}

// MemoryWarning reports whether current heap usage exceeds maxMB —
// the condition the engine's periodic GC task (§5) checks before
// emitting a memoryWarning event.
func (m *Monitor) MemoryWarning(maxMB int) (usedMB int, warn bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usedMB = int(ms.HeapAlloc / (1024 * 1024))
	return usedMB, usedMB > maxMB
}
