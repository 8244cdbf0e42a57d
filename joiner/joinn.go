package joiner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/syncx"
	"github.com/correlator/engine/timeutil"
	"github.com/correlator/engine/windowstore"
)

// Stream pairs one input channel with the StreamRef naming it, the unit
// JoinN fans in.
type Stream struct {
	Ref StreamRef
	Ch  <-chan event.LogEvent
}

// JoinN generalizes Join to N >= 2 streams (§4.4): each stream gets its
// own keyed buffer, and/or/unless emission rules apply across all N
// buffers instead of two. GroupLeft/GroupRight are ignored: JoinN does
// no grouping.
func JoinN(ctx context.Context, streams []Stream, opts Options) <-chan event.CorrelatedEvent {
	j := &nJoiner{
		opts:     opts,
		streams:  streams,
		out:      make(chan event.CorrelatedEvent),
		stores:   make([]*windowstore.Store, len(streams)),
		emitted:  make(map[string]bool),
		presence: syncx.NewMapSet[string, string](),
		nameIdx:  make(map[string]int, len(streams)),
	}
	for i := range streams {
		j.stores[i] = windowstore.New(storeConfig(opts))
		j.nameIdx[streams[i].Ref.name()] = i
	}
	go j.run(ctx)
	return j.out
}

type ntagged struct {
	stream int
	ev     event.LogEvent
}

type nJoiner struct {
	opts    Options
	streams []Stream
	out     chan event.CorrelatedEvent
	stores  []*windowstore.Store

	// presence tracks, per join key, which stream names have ever
	// admitted an event under it — a fast candidate set for sweep and
	// tryEmit so neither has to probe every store's Get for every key.
	// It is additive only (never cleared on per-store eviction), so a
	// key that later expires out of a store still shows up here; both
	// call sites still treat store.Get's ok return as authoritative,
	// so staleness here only costs a wasted probe, never a wrong result.
	presence *syncx.MapSet[string, string]
	nameIdx  map[string]int // stream name -> index into stores/streams

	mu      sync.Mutex
	emitted map[string]bool

	nextID int64
}

func (j *nJoiner) run(ctx context.Context) {
	defer close(j.out)

	merged := make(chan ntagged)
	var wg sync.WaitGroup
	wg.Add(len(j.streams))
	for i, s := range j.streams {
		go func(idx int, ch <-chan event.LogEvent) {
			defer wg.Done()
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return
					}
					select {
					case merged <- ntagged{idx, ev}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(i, s.Ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	interval := j.opts.ProcessingInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case t, ok := <-merged:
			if !ok {
				j.sweep(time.Now(), true)
				return
			}
			j.handle(t)
		case now := <-ticker.C:
			j.sweep(now, false)
		case <-ctx.Done():
			return
		}
	}
}

func (j *nJoiner) handle(t ntagged) {
	ev := t.ev
	if err := ev.Normalize(timeutil.ParseTimestamp); err != nil {
		return
	}
	key, ok := ExtractKey(ev, j.opts.JoinKeys, j.opts.Ignoring, j.opts.HasIgnoring)
	if !ok {
		return
	}

	store := j.stores[t.stream]
	store.Open(ev.Time(), j.opts.WindowSize)
	if res := store.Admit(key, ev); res != windowstore.Admitted {
		return
	}
	j.presence.Add(key, j.streams[t.stream].Ref.name())

	j.mu.Lock()
	terminal := j.emitted[key]
	j.mu.Unlock()
	if terminal {
		return
	}

	switch j.opts.Type {
	case JoinAnd:
		if j.tryEmit(key, true) {
			j.markTerminal(key)
		}
	case JoinOr:
		if j.tryEmit(key, false) {
			j.markTerminal(key)
		}
	case JoinUnless:
		// Resolved at sweep time; presence must be confirmed absent
		// across every window before anti-join completeness holds.
	}
}

func (j *nJoiner) markTerminal(key string) {
	j.mu.Lock()
	j.emitted[key] = true
	j.mu.Unlock()
}

// tryEmit assembles a correlation for key once present in all stores
// (and) or at least one store (or), reporting whether it actually sent
// one so handle can mark the key terminal (§4.2's "Matched --emit-->
// Emitted(terminal)") instead of re-emitting an overlapping correlation
// on every later event for an already-matched key. GroupLeft/GroupRight
// are not read here: there is no per-event fan-out, and the group labels
// are not carried into the correlation.
func (j *nJoiner) tryEmit(key string, requireAll bool) bool {
	candidates, _ := j.presence.Get(key)

	var members []event.CorrelatedMember
	present := 0
	for _, name := range candidates {
		i, ok := j.nameIdx[name]
		if !ok {
			continue
		}
		events, ok := j.stores[i].Get(key)
		if !ok {
			continue
		}
		present++
		for _, e := range events {
			members = append(members, toMember(j.streams[i].Ref, e))
		}
	}
	if requireAll && present != len(j.stores) {
		return false
	}
	if present == 0 {
		return false
	}

	members = applyPostFilter(members, j.opts.Filter)
	if len(members) == 0 {
		return false
	}

	if j.opts.HasWithin {
		earliest, latest := members[0].Timestamp, members[0].Timestamp
		for _, m := range members[1:] {
			if m.Timestamp.Before(earliest) {
				earliest = m.Timestamp
			}
			if m.Timestamp.After(latest) {
				latest = m.Timestamp
			}
		}
		if latest.Sub(earliest) > j.opts.Within {
			return false
		}
	}

	id := atomic.AddInt64(&j.nextID, 1)
	label := joinKeyLabel(j.opts.JoinKeys, j.opts.HasIgnoring)
	ce := buildCorrelation(id, label, key, members, len(j.stores), nil)
	j.out <- ce
	return true
}

// sweep handles unless (emit for keys present in exactly one stream, per
// the "exactly one" reading documented for the multi-stream case) once a
// key's owning window has expired.
func (j *nJoiner) sweep(now time.Time, final bool) {
	if j.opts.Type != JoinUnless {
		return
	}

	for _, key := range j.presence.Keys() {
		j.mu.Lock()
		if j.emitted[key] {
			j.mu.Unlock()
			continue
		}
		j.mu.Unlock()

		ownerIdx := -1
		expired := final
		presentCount := 0
		for i, store := range j.stores {
			if _, ok := store.Get(key); ok {
				presentCount++
				ownerIdx = i
				if store.IsExpired(now) {
					expired = true
				}
			}
		}
		if presentCount != 1 || !expired {
			continue
		}

		events, _ := j.stores[ownerIdx].Get(key)
		members := make([]event.CorrelatedMember, 0, len(events))
		for _, e := range events {
			members = append(members, toMember(j.streams[ownerIdx].Ref, e))
		}
		members = applyPostFilter(members, j.opts.Filter)

		j.mu.Lock()
		j.emitted[key] = true
		j.mu.Unlock()

		if len(members) == 0 {
			continue
		}
		id := atomic.AddInt64(&j.nextID, 1)
		label := joinKeyLabel(j.opts.JoinKeys, j.opts.HasIgnoring)
		ce := buildCorrelation(id, label, key, members, len(j.stores), nil)
		j.out <- ce
	}
}
