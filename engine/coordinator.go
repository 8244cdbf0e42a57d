package engine

import (
	"context"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/correlator/engine/adapter"
	"github.com/correlator/engine/backpressure"
	"github.com/correlator/engine/config"
	"github.com/correlator/engine/dedup"
	"github.com/correlator/engine/errs"
	"github.com/correlator/engine/event"
	"github.com/correlator/engine/joiner"
	"github.com/correlator/engine/logging"
	"github.com/correlator/engine/perf"
	"github.com/correlator/engine/query"
)

// Engine is the coordinator (§4.6, C9): it resolves adapters, parses
// queries, builds a joiner, fans input streams through back-pressure and
// the performance monitor, and republishes lifecycle events on its
// observer bus.
type Engine struct {
	cfg     *config.Config
	reg     *registry
	monitor *perf.Monitor
	log     zerolog.Logger

	mu     sync.Mutex
	bus    evbus.Bus
	cancel []context.CancelFunc
	wg     sync.WaitGroup

	gcStop      chan struct{}
	destroyOnce sync.Once
}

// New creates an Engine with the given config, falling back to
// config.DefaultConfig() if cfg is nil, and starts its periodic
// housekeeping task (§5's GC task, paced by cfg.GCInterval).
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		cfg:     cfg,
		reg:     newRegistry(),
		bus:     evbus.New(),
		monitor: perf.New(),
		log:     logging.Component("engine"),
		gcStop:  make(chan struct{}),
	}
	e.startHousekeeping()
	return e
}

// AddAdapter registers a, publishing adapterAdded on success.
func (e *Engine) AddAdapter(name string, a adapter.DataSourceAdapter) error {
	if err := e.reg.add(name, a); err != nil {
		return err
	}
	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()
	bus.Publish(TopicAdapterAdded, name)
	return nil
}

// GetAdapter looks up name, case-insensitive fallback, returning
// ADAPTER_NOT_FOUND with the currently registered names if absent.
func (e *Engine) GetAdapter(name string) (adapter.DataSourceAdapter, error) {
	a, ok := e.reg.get(name)
	if !ok {
		return nil, errs.AdapterNotFound(name, e.reg.names())
	}
	return a, nil
}

// ValidateQuery parses raw without building any streams.
func (e *Engine) ValidateQuery(raw string) bool {
	_, err := query.ParseAndValidate(raw)
	return err == nil
}

// Snapshot returns a point-in-time read of the performance counters.
func (e *Engine) Snapshot() perf.Metrics {
	return e.monitor.Snapshot()
}

// Correlate parses raw, resolves each declared stream's adapter, and
// returns the channel of CorrelatedEvents the join produces. It fails
// fast with ADAPTER_NOT_FOUND if any referenced source is unregistered,
// before any stream is created.
func (e *Engine) Correlate(ctx context.Context, raw string) (<-chan event.CorrelatedEvent, error) {
	runID := uuid.NewString()
	e.log.Debug().Str("runID", runID).Str("query", raw).Msg("correlate: starting run")

	parsed, err := query.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	streams := parsed.Streams()
	adapters := make([]adapter.DataSourceAdapter, len(streams))
	for i, sq := range streams {
		a, err := e.GetAdapter(sq.Source)
		if err != nil {
			return nil, err
		}
		adapters[i] = a
	}

	runCtx, cancel := context.WithCancel(ctx)

	refs := make([]joiner.StreamRef, len(streams))
	chans := make([]<-chan event.LogEvent, len(streams))
	for i, sq := range streams {
		timeRange := sq.TimeRange
		if timeRange <= 0 {
			timeRange = e.cfg.DefaultTimeWindow
		}
		rawStream, err := adapters[i].CreateStream(runCtx, sq.Selector, adapter.StreamOptions{TimeRange: timeRange.String()})
		if err != nil {
			cancel()
			return nil, errs.Upstream(sq.Source, err)
		}
		refs[i] = joiner.StreamRef{Alias: sq.Alias, Source: sq.Source}
		chans[i] = e.instrument(runCtx, rawStream)
	}

	clause := parsed.Joins[0]
	opts := joiner.FromClause(clause, parsed.Filter, e.cfg.DefaultTimeWindow, e.cfg.LateTolerance, e.cfg.MaxEvents, e.cfg.ProcessingInterval)

	var correlated <-chan event.CorrelatedEvent
	if len(streams) == 2 {
		correlated = joiner.Join(runCtx, chans[0], chans[1], refs[0], refs[1], opts)
	} else {
		jstreams := make([]joiner.Stream, len(streams))
		for i := range streams {
			jstreams[i] = joiner.Stream{Ref: refs[i], Ch: chans[i]}
		}
		correlated = joiner.JoinN(runCtx, jstreams, opts)
	}

	final := make(chan event.CorrelatedEvent)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		defer close(final)
		for ce := range correlated {
			e.monitor.RecordCorrelation(time.Since(ce.TimeWindow.Start))
			e.mu.Lock()
			bus := e.bus
			e.mu.Unlock()
			bus.Publish(TopicCorrelationFound, ce)
			select {
			case final <- ce:
			case <-runCtx.Done():
				return
			}
		}
		e.log.Debug().Str("runID", runID).Msg("correlate: run drained")
	}()

	e.mu.Lock()
	e.cancel = append(e.cancel, cancel)
	e.mu.Unlock()

	return final, nil
}

// instrument wraps a raw adapter stream with the back-pressure gate
// (§4.5), the optional deduplicator (C12, active when cfg.DedupWindow is
// non-zero), and the performance monitor's per-event counter, so every
// event reaching the joiner has already passed through all three
// regardless of which adapter produced it.
func (e *Engine) instrument(ctx context.Context, in <-chan event.LogEvent) <-chan event.LogEvent {
	gate := backpressure.New(backpressure.DefaultConfig(e.cfg.BufferSize), rate.Limit(1))
	gated := make(chan event.LogEvent)
	go func() {
		backpressure.Pump(ctx, gate, in, gated)
		close(gated)
	}()

	var dedupe *dedup.Deduplicator
	if e.cfg.DedupWindow > 0 {
		dedupe = dedup.New(e.cfg.DedupWindow, nil)
	}

	out := make(chan event.LogEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-gated:
				if !ok {
					return
				}
				if dedupe != nil && !dedupe.Allow(ev) {
					e.monitor.RecordDuplicate()
					continue
				}
				e.monitor.RecordEvent()
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// startHousekeeping runs the periodic GC task (§5): every GCInterval it
// publishes a performanceMetrics snapshot and, if heap usage exceeds
// MaxMemoryMB, a memoryWarning.
func (e *Engine) startHousekeeping() {
	interval := e.cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.mu.Lock()
				bus := e.bus
				e.mu.Unlock()
				bus.Publish(TopicPerformanceMetrics, e.monitor.Snapshot())
				if usedMB, warn := e.monitor.MemoryWarning(e.cfg.MaxMemoryMB); warn {
					bus.Publish(TopicMemoryWarning, MemoryWarning{UsedMB: usedMB, MaxMB: e.cfg.MaxMemoryMB})
				}
			case <-e.gcStop:
				return
			}
		}
	}()
}

// Destroy cancels every outstanding run, destroys all registered
// adapters concurrently, and clears the observer bus. Idempotent: a
// second call is a no-op, matching the DataSourceAdapter destroy()
// contract this mirrors at the coordinator level.
func (e *Engine) Destroy() error {
	e.destroyOnce.Do(func() {
		e.mu.Lock()
		cancels := e.cancel
		e.cancel = nil
		e.mu.Unlock()
		for _, c := range cancels {
			c()
		}
		e.wg.Wait()

		close(e.gcStop)

		var wg sync.WaitGroup
		for name, a := range e.reg.all() {
			wg.Add(1)
			go func(name string, a adapter.DataSourceAdapter) {
				defer wg.Done()
				if err := a.Destroy(); err != nil {
					e.log.Warn().Err(err).Str("adapter", name).Msg("destroy: adapter teardown failed")
				}
			}(name, a)
		}
		wg.Wait()

		e.mu.Lock()
		e.clearListeners()
		e.mu.Unlock()
	})
	return nil
}
