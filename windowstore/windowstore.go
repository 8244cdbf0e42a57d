// Package windowstore implements the keyed, size-bounded event store
// spec.md §4.3 describes: events are admitted into ordered per-key lists,
// rejected when too old, too far in the future, or when the window is at
// capacity, and keys are evicted LRU-first once a byte budget is exceeded.
package windowstore

import (
	"container/list"
	"sync"
	"time"

	"github.com/correlator/engine/event"
	"github.com/correlator/engine/syncx"
)

// bytesPerEvent is the per-event size estimate §4.3/§5 use for the LRU
// byte budget ("each window estimates ~1 KiB per event").
const bytesPerEvent = 1024

// Config parametrizes one Store.
type Config struct {
	WindowStart   time.Time
	WindowEnd     time.Time
	LateTolerance time.Duration
	MaxEvents     int
	MaxBytes      int64 // 0 means unbounded
}

// Store is a keyed event store for one correlation pass (§3's
// "TimeWindow state"). One Store is owned by exactly one joiner; it is not
// safe to share across joiners, but internally it is safe for concurrent
// Admit/Get calls from the joiner's own goroutines.
type Store struct {
	mu sync.Mutex

	cfg Config

	total int // total admitted events, for maxEvents accounting

	entries map[string]*list.Element // key -> LRU list element
	lru     *list.List                // front = most recently used

	droppedFull  int64
	droppedOld   int64
	droppedFuture int64
	evicted      int64
}

type lruEntry struct {
	key    string
	events syncx.Slice[event.LogEvent]
}

// New creates a Store for one correlation pass.
func New(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Open anchors an otherwise-unbounded store's window to t on first call;
// later calls are no-ops. Streaming joiners don't know windowStart until
// the store receives its first event, so the window is opened lazily
// instead of at construction time; every key in the store shares that
// one window.
func (s *Store) Open(t time.Time, windowSize time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.WindowStart.IsZero() {
		return
	}
	s.cfg.WindowStart = t
	s.cfg.WindowEnd = t.Add(windowSize)
}

// AdmitResult reports why an event was or was not admitted.
type AdmitResult int

const (
	Admitted AdmitResult = iota
	RejectedTooOld
	RejectedFuture
	RejectedWindowFull
)

// Admit applies §4.3's admission rule to one event and, if admitted,
// appends it to its key's ordered list, refreshing that key's LRU
// recency and evicting older keys if the byte budget is exceeded.
func (s *Store) Admit(key string, e event.LogEvent) AdmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := e.Time()

	if !s.cfg.WindowStart.IsZero() && t.Before(s.cfg.WindowStart.Add(-s.cfg.LateTolerance)) {
		s.droppedOld++
		return RejectedTooOld
	}
	if !s.cfg.WindowEnd.IsZero() && t.After(s.cfg.WindowEnd) {
		s.droppedFuture++
		return RejectedFuture
	}
	if s.cfg.MaxEvents > 0 && s.total >= s.cfg.MaxEvents {
		s.droppedFull++
		return RejectedWindowFull
	}

	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.events.Add(e)
		s.lru.MoveToFront(el)
	} else {
		entry := &lruEntry{key: key}
		entry.events.Add(e)
		el := s.lru.PushFront(entry)
		s.entries[key] = el
	}
	s.total++

	s.evictIfOverBudget()

	return Admitted
}

// Get returns a copy of the ordered event list for a key, refreshing its
// LRU recency (a "get refreshes recency" per §4.3).
func (s *Store) Get(key string) ([]event.LogEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(el)

	entry := el.Value.(*lruEntry)
	return entry.events.ToSlice(), true
}

// Keys returns a snapshot of every key currently stored, most-recently-used
// first.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, s.lru.Len())
	for el := s.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*lruEntry).key)
	}
	return out
}

// Delete removes a key's entire list, used once its correlation has been
// emitted.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
}

func (s *Store) deleteLocked(key string) {
	el, ok := s.entries[key]
	if !ok {
		return
	}
	entry := el.Value.(*lruEntry)
	s.total -= entry.events.Len()
	s.lru.Remove(el)
	delete(s.entries, key)
}

// evictIfOverBudget evicts least-recently-used keys (whole lists) while the
// store's estimated byte size exceeds cfg.MaxBytes. Caller must hold s.mu.
func (s *Store) evictIfOverBudget() {
	if s.cfg.MaxBytes <= 0 {
		return
	}
	for int64(s.total)*bytesPerEvent > s.cfg.MaxBytes && s.lru.Len() > 0 {
		oldest := s.lru.Back()
		entry := oldest.Value.(*lruEntry)
		s.evicted++
		s.deleteLocked(entry.key)
	}
}

// IsExpired reports whether, at time now, this window's tolerance has
// fully elapsed (§4.3: now > windowEnd + lateTolerance).
func (s *Store) IsExpired(now time.Time) bool {
	if s.cfg.WindowEnd.IsZero() {
		return false
	}
	return now.After(s.cfg.WindowEnd.Add(s.cfg.LateTolerance))
}

// Stats is a point-in-time snapshot of store accounting, consumed by the
// performance monitor (C8).
type Stats struct {
	TotalEvents    int
	Keys           int
	DroppedTooOld  int64
	DroppedFuture  int64
	DroppedFull    int64
	Evicted        int64
}

// Snapshot returns the store's current accounting.
func (s *Store) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalEvents:   s.total,
		Keys:          len(s.entries),
		DroppedTooOld: s.droppedOld,
		DroppedFuture: s.droppedFuture,
		DroppedFull:   s.droppedFull,
		Evicted:       s.evicted,
	}
}
