// Package backpressure implements the buffering gate (spec §4.5) that
// sits between producer sequences and the joiner: a bounded queue with
// high/low watermarks that drops overflow rather than blocking upstream
// indefinitely.
package backpressure

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/correlator/engine/event"
)

// Config parametrizes one Gate.
type Config struct {
	HighWaterMark int
	LowWaterMark  int
	MaxBufferSize int
}

// DefaultConfig mirrors the engine coordinator's bufferSize default
// (§4.6): highWaterMark == bufferSize, lowWaterMark at half, and a
// MaxBufferSize of twice the high watermark. Enqueue starts dropping as
// soon as the high watermark is reached, so with this config the buffer
// never holds more than HighWaterMark events.
func DefaultConfig(bufferSize int) Config {
	return Config{
		HighWaterMark: bufferSize,
		LowWaterMark:  bufferSize / 2,
		MaxBufferSize: bufferSize * 2,
	}
}

// Gate buffers one producer's events ahead of the joiner, dropping
// overflow once the high watermark is reached and resuming once it
// drains back to the low watermark.
type Gate struct {
	cfg Config

	mu     sync.Mutex
	buf    []event.LogEvent
	paused bool

	dropped    int64
	dropLogger *rate.Limiter // caps how often a drop is logged, not how often it happens
}

// New creates a Gate. dropLogRate bounds how often Dropped() transitions
// are worth logging by the caller — the gate itself never logs, it only
// exposes ShouldLogDrop for callers that want rate-limited visibility
// into a lossy stream without flooding output.
func New(cfg Config, dropLogRate rate.Limit) *Gate {
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = 1
	}
	return &Gate{
		cfg:        cfg,
		buf:        make([]event.LogEvent, 0, cfg.MaxBufferSize),
		dropLogger: rate.NewLimiter(dropLogRate, 1),
	}
}

// Enqueue attempts to buffer e, returning false if it was dropped because
// the gate is paused (at or above the high watermark) or the buffer is
// physically full.
func (g *Gate) Enqueue(e event.LogEvent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused || len(g.buf) >= g.cfg.MaxBufferSize {
		atomic.AddInt64(&g.dropped, 1)
		return false
	}

	g.buf = append(g.buf, e)
	if len(g.buf) >= g.cfg.HighWaterMark {
		g.paused = true
	}
	return true
}

// Dequeue pops the oldest buffered event, resuming intake once the
// buffer has drained to the low watermark.
func (g *Gate) Dequeue() (event.LogEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.buf) == 0 {
		return event.LogEvent{}, false
	}

	e := g.buf[0]
	g.buf = g.buf[1:]

	if g.paused && len(g.buf) <= g.cfg.LowWaterMark {
		g.paused = false
	}
	return e, true
}

// Len returns the current buffer depth.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buf)
}

// Paused reports whether the gate is currently refusing new enqueues.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Dropped returns the total number of events dropped since creation.
func (g *Gate) Dropped() int64 {
	return atomic.LoadInt64(&g.dropped)
}

// ShouldLogDrop reports whether the caller's rate budget for logging a
// drop event has capacity right now.
func (g *Gate) ShouldLogDrop() bool {
	return g.dropLogger.Allow()
}

// Pump drains in, enqueueing into the gate and forwarding whatever the
// gate accepts onto out, until in closes or ctx is cancelled. It is meant
// to run in its own goroutine, one per producer stream.
func Pump(ctx context.Context, g *Gate, in <-chan event.LogEvent, out chan<- event.LogEvent) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-in:
			if !ok {
				g.drainRemaining(ctx, out)
				return
			}
			g.Enqueue(e)
		case <-ticker.C:
			if e, ok := g.Dequeue(); ok {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gate) drainRemaining(ctx context.Context, out chan<- event.LogEvent) {
	for {
		e, ok := g.Dequeue()
		if !ok {
			return
		}
		select {
		case out <- e:
		case <-ctx.Done():
			return
		}
	}
}
