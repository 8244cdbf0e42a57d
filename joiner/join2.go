// Package joiner implements the streaming two-stream and multi-stream
// join (spec §4.2, §4.4): it buffers each input stream by join key in a
// windowstore.Store, assembles CorrelatedEvents as keys become complete,
// and emits anti-join/outer-join entries once a key's window expires
// without a completing side arriving.
package joiner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/timeutil"
	"github.com/correlator/engine/windowstore"
)

// side tags one merged input event with which stream it came from.
type side int

const (
	sideLeft side = iota
	sideRight
)

type tagged struct {
	side side
	ev   event.LogEvent
}

// Join runs a two-stream join over left and right, returning a channel of
// CorrelatedEvents that closes once both input channels are drained and
// ctx is not the reason for exit. Closing ctx tears the join down without
// further emission, matching §5's destroy semantics.
func Join(ctx context.Context, left, right <-chan event.LogEvent, leftRef, rightRef StreamRef, opts Options) <-chan event.CorrelatedEvent {
	j := &twoJoiner{
		opts:     opts,
		leftRef:  leftRef,
		rightRef: rightRef,
		out:      make(chan event.CorrelatedEvent),
		left:     windowstore.New(storeConfig(opts)),
		right:    windowstore.New(storeConfig(opts)),
		emitted:  make(map[string]bool),
	}
	go j.run(ctx, left, right)
	return j.out
}

// storeConfig builds an unopened store: windowStart/windowEnd are left
// zero and filled in by Store.Open on the store's first admitted event
// (whatever its key), so all keys in a store share one window,
// since a streaming joiner has no wall-clock notion of "window start"
// until events actually begin arriving.
func storeConfig(opts Options) windowstore.Config {
	return windowstore.Config{
		LateTolerance: opts.LateTolerance,
		MaxEvents:     opts.MaxEvents,
	}
}

type twoJoiner struct {
	opts     Options
	leftRef  StreamRef
	rightRef StreamRef
	out      chan event.CorrelatedEvent

	mu      sync.Mutex
	left    *windowstore.Store
	right   *windowstore.Store
	emitted map[string]bool // keys that have reached a terminal emission

	nextID int64

	Errors   int64
	Skipped  int64
	Dropped  int64
}

func (j *twoJoiner) run(ctx context.Context, left, right <-chan event.LogEvent) {
	defer close(j.out)

	merged := make(chan tagged)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev, ok := <-left:
				if !ok {
					return
				}
				select {
				case merged <- tagged{sideLeft, ev}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case ev, ok := <-right:
				if !ok {
					return
				}
				select {
				case merged <- tagged{sideRight, ev}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
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

func (j *twoJoiner) handle(t tagged) {
	ev := t.ev
	if err := ev.Normalize(timeutil.ParseTimestamp); err != nil {
		j.Errors++
		return
	}

	key, ok := ExtractKey(ev, j.opts.JoinKeys, j.opts.Ignoring, j.opts.HasIgnoring)
	if !ok {
		j.Skipped++
		return
	}

	store := j.left
	if t.side == sideRight {
		store = j.right
	}
	store.Open(ev.Time(), j.opts.WindowSize)

	res := store.Admit(key, ev)
	if res != windowstore.Admitted {
		j.Dropped++
		return
	}

	j.mu.Lock()
	alreadyTerminal := j.emitted[key]
	j.mu.Unlock()
	if alreadyTerminal {
		return
	}

	switch j.opts.Type {
	case JoinAnd, JoinOr:
		// Both join types emit the instant a key is Matched (both
		// sides present) — they differ only in what happens if a key's
		// window expires while still single-sided, handled in sweep.
		if j.tryEmitInner(key) {
			j.markTerminal(key)
		}
	case JoinUnless:
		// Anti-join completeness can only be known once the window
		// closes without a right-side arrival; see sweep.
	}
}

func (j *twoJoiner) markTerminal(key string) {
	j.mu.Lock()
	j.emitted[key] = true
	j.mu.Unlock()
}

// tryEmitInner reports whether it sent at least one correlation, so
// handle can mark the key terminal (§4.2's "Matched --emit-->
// Emitted(terminal)") and stop re-emitting for every later event on an
// already-matched key.
func (j *twoJoiner) tryEmitInner(key string) bool {
	leftEvents, lok := j.left.Get(key)
	rightEvents, rok := j.right.Get(key)
	if !lok || !rok {
		return false
	}
	return j.emitPair(key, leftEvents, rightEvents, false)
}

// emitPair assembles and sends correlation(s) for one key given its
// current left/right event lists, honoring grouping and temporal
// modifiers. outer relaxes the "both sides present" requirement so `or`
// can emit partial correlations. Reports whether anything was actually
// sent, since a post-filter can still swallow every candidate member.
func (j *twoJoiner) emitPair(key string, leftEvents, rightEvents []event.LogEvent, outer bool) bool {
	if j.opts.HasGroupLeft {
		sent := false
		for _, le := range leftEvents {
			matches, ok := withinOne(le, rightEvents, j.opts.Within, j.opts.HasWithin)
			if !ok && j.opts.HasWithin {
				continue
			}
			members := []event.CorrelatedMember{toMember(j.leftRef, le)}
			for _, re := range matches {
				members = append(members, toMember(j.rightRef, re))
			}
			if j.send(key, members) {
				sent = true
			}
		}
		return sent
	}
	if j.opts.HasGroupRight {
		sent := false
		for _, re := range rightEvents {
			matches, ok := withinOne(re, leftEvents, j.opts.Within, j.opts.HasWithin)
			if !ok && j.opts.HasWithin {
				continue
			}
			members := []event.CorrelatedMember{toMember(j.rightRef, re)}
			for _, le := range matches {
				members = append(members, toMember(j.leftRef, le))
			}
			if j.send(key, members) {
				sent = true
			}
		}
		return sent
	}

	l2, r2, ok := applyWithin(leftEvents, rightEvents, j.opts.Within, j.opts.HasWithin)
	if !ok {
		return false
	}
	if !outer && (len(l2) == 0 || len(r2) == 0) {
		return false
	}
	members := make([]event.CorrelatedMember, 0, len(l2)+len(r2))
	for _, le := range l2 {
		members = append(members, toMember(j.leftRef, le))
	}
	for _, re := range r2 {
		members = append(members, toMember(j.rightRef, re))
	}
	return j.send(key, members)
}

func (j *twoJoiner) send(key string, members []event.CorrelatedMember) bool {
	members = applyPostFilter(members, j.opts.Filter)
	if len(members) == 0 {
		return false
	}
	id := atomic.AddInt64(&j.nextID, 1)
	label := joinKeyLabel(j.opts.JoinKeys, j.opts.HasIgnoring)
	ce := buildCorrelation(id, label, key, members, 2, nil)
	j.out <- ce
	return true
}

// sweep emits unless/or-without-match correlations for keys whose window
// has expired (or, if final is true, for every remaining key — the
// input streams have drained so nothing more will ever arrive).
func (j *twoJoiner) sweep(now time.Time, final bool) {
	switch j.opts.Type {
	case JoinUnless:
		j.sweepUnless(now, final)
	case JoinOr:
		j.sweepOr(now, final)
	}
}

// sweepUnless emits the anti-join correlation for a left key once its
// window expires without a matching right-side arrival.
func (j *twoJoiner) sweepUnless(now time.Time, final bool) {
	for _, key := range j.left.Keys() {
		j.mu.Lock()
		if j.emitted[key] {
			j.mu.Unlock()
			continue
		}
		j.mu.Unlock()

		if !final && !j.left.IsExpired(now) {
			continue
		}
		if _, ok := j.right.Get(key); ok {
			continue
		}
		leftEvents, ok := j.left.Get(key)
		if !ok {
			continue
		}
		members := make([]event.CorrelatedMember, 0, len(leftEvents))
		for _, le := range leftEvents {
			members = append(members, toMember(j.leftRef, le))
		}
		members = applyPostFilter(members, j.opts.Filter)
		if len(members) == 0 {
			j.markTerminal(key)
			continue
		}
		id := atomic.AddInt64(&j.nextID, 1)
		label := joinKeyLabel(j.opts.JoinKeys, j.opts.HasIgnoring)
		ce := buildCorrelation(id, label, key, members, 2, nil)
		j.out <- ce
		j.markTerminal(key)
	}
}

// sweepOr emits a partial correlation for a left-side key that is still
// unmatched once its owning store's window expires — a key that matched
// on both sides was already emitted and marked terminal inside handle.
// Only left keys are visited (or is a left-outer join): a key seen only
// on the right never emits.
func (j *twoJoiner) sweepOr(now time.Time, final bool) {
	for _, key := range j.left.Keys() {
		j.mu.Lock()
		if j.emitted[key] {
			j.mu.Unlock()
			continue
		}
		j.mu.Unlock()

		leftEvents, lok := j.left.Get(key)
		rightEvents, rok := j.right.Get(key)

		expired := final
		if !expired && lok && j.left.IsExpired(now) {
			expired = true
		}
		if !expired && rok && j.right.IsExpired(now) {
			expired = true
		}
		if !expired {
			continue
		}

		j.emitPair(key, leftEvents, rightEvents, true)
		j.markTerminal(key)
	}
}
