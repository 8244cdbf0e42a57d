// Package dedup implements the optional windowed deduplicator (spec
// §2, C12): suppresses repeat events within a sliding time window, keyed
// by a hash of their identifying fields.
package dedup

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/correlator/engine/event"
)

// KeyFunc extracts the string a duplicate is detected on — typically
// source + message, or a join key, depending on what "duplicate" means
// for the adapter in question.
type KeyFunc func(event.LogEvent) string

// DefaultKeyFunc treats two events from the same source with the same
// message as duplicates.
func DefaultKeyFunc(e event.LogEvent) string {
	return e.Source + "\x00" + e.Message
}

type entry struct {
	hash uint64
	seen time.Time
}

// Deduplicator suppresses events whose KeyFunc output was already seen
// within the last Window, evicting stale hashes lazily as new events
// arrive.
type Deduplicator struct {
	mu      sync.Mutex
	window  time.Duration
	keyFunc KeyFunc
	order   *list.List // oldest-first list of *entry
	seen    map[uint64]*list.Element
}

// New creates a Deduplicator with the given sliding window and key
// function. A nil keyFunc uses DefaultKeyFunc.
func New(window time.Duration, keyFunc KeyFunc) *Deduplicator {
	if keyFunc == nil {
		keyFunc = DefaultKeyFunc
	}
	return &Deduplicator{
		window:  window,
		keyFunc: keyFunc,
		order:   list.New(),
		seen:    make(map[uint64]*list.Element),
	}
}

// Allow reports whether e is not a duplicate of something seen within the
// window, recording it either way. Call this once per ingested event,
// before admission into a time window store.
func (d *Deduplicator) Allow(e event.LogEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := e.Time()
	d.evictStale(now)

	h := xxhash.Sum64String(d.keyFunc(e))
	if el, ok := d.seen[h]; ok {
		ent := el.Value.(*entry)
		if now.Sub(ent.seen) <= d.window {
			return false
		}
		// Stale entry for this hash; refresh it below.
		d.order.Remove(el)
		delete(d.seen, h)
	}

	ent := &entry{hash: h, seen: now}
	el := d.order.PushBack(ent)
	d.seen[h] = el
	return true
}

func (d *Deduplicator) evictStale(now time.Time) {
	for el := d.order.Front(); el != nil; {
		ent := el.Value.(*entry)
		if now.Sub(ent.seen) <= d.window {
			break
		}
		next := el.Next()
		d.order.Remove(el)
		delete(d.seen, ent.hash)
		el = next
	}
}

// Len returns the number of hashes currently tracked.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
