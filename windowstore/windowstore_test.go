package windowstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator/engine/event"
)

func mkEvent(t time.Time, msg string) event.LogEvent {
	return event.LogEvent{Message: msg}.WithTime(t)
}

func TestStore_AdmitAndGet(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart:   start,
		WindowEnd:     start.Add(5 * time.Minute),
		LateTolerance: 10 * time.Second,
		MaxEvents:     100,
	})

	res := s.Admit("req-1", mkEvent(start.Add(time.Minute), "hello"))
	assert.Equal(t, Admitted, res)

	events, ok := s.Get("req-1")
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Message)
}

func TestStore_RejectsTooOld(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart:   start,
		WindowEnd:     start.Add(5 * time.Minute),
		LateTolerance: 10 * time.Second,
	})

	res := s.Admit("k", mkEvent(start.Add(-time.Minute), "late"))
	assert.Equal(t, RejectedTooOld, res)
}

func TestStore_RejectsFuture(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart: start,
		WindowEnd:   start.Add(time.Minute),
	})

	res := s.Admit("k", mkEvent(start.Add(time.Hour), "future"))
	assert.Equal(t, RejectedFuture, res)
}

func TestStore_RejectsWhenFull(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart: start,
		WindowEnd:   start.Add(time.Minute),
		MaxEvents:   1,
	})

	assert.Equal(t, Admitted, s.Admit("k1", mkEvent(start, "a")))
	assert.Equal(t, RejectedWindowFull, s.Admit("k2", mkEvent(start, "b")))
}

func TestStore_EvictsLRUUnderByteBudget(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart: start,
		WindowEnd:   start.Add(time.Minute),
		MaxBytes:    bytesPerEvent * 2, // room for ~2 events
	})

	s.Admit("k1", mkEvent(start, "a"))
	s.Admit("k2", mkEvent(start, "b"))
	s.Admit("k3", mkEvent(start, "c")) // should evict k1 (least recently used)

	_, ok := s.Get("k1")
	assert.False(t, ok)
	_, ok = s.Get("k2")
	assert.True(t, ok)
	_, ok = s.Get("k3")
	assert.True(t, ok)

	assert.Equal(t, int64(1), s.Snapshot().Evicted)
}

func TestStore_GetRefreshesRecency(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart: start,
		WindowEnd:   start.Add(time.Minute),
		MaxBytes:    bytesPerEvent * 2,
	})

	s.Admit("k1", mkEvent(start, "a"))
	s.Admit("k2", mkEvent(start, "b"))
	s.Get("k1") // k1 now more recently used than k2
	s.Admit("k3", mkEvent(start, "c")) // should evict k2, not k1

	_, ok := s.Get("k1")
	assert.True(t, ok)
	_, ok = s.Get("k2")
	assert.False(t, ok)
}

func TestStore_IsExpired(t *testing.T) {
	start := time.Now()
	s := New(Config{
		WindowStart:   start,
		WindowEnd:     start.Add(time.Minute),
		LateTolerance: 10 * time.Second,
	})

	assert.False(t, s.IsExpired(start.Add(time.Minute)))
	assert.False(t, s.IsExpired(start.Add(time.Minute+5*time.Second)))
	assert.True(t, s.IsExpired(start.Add(time.Minute+11*time.Second)))
}

func TestStore_DeleteRemovesKey(t *testing.T) {
	start := time.Now()
	s := New(Config{WindowStart: start, WindowEnd: start.Add(time.Minute)})

	s.Admit("k1", mkEvent(start, "a"))
	s.Delete("k1")

	_, ok := s.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Snapshot().TotalEvents)
}

func TestStore_Keys_MostRecentFirst(t *testing.T) {
	start := time.Now()
	s := New(Config{WindowStart: start, WindowEnd: start.Add(time.Minute)})

	s.Admit("k1", mkEvent(start, "a"))
	s.Admit("k2", mkEvent(start, "b"))
	s.Get("k1")

	assert.Equal(t, []string{"k1", "k2"}, s.Keys())
}
