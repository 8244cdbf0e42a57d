package syncx

import (
	"sync"

	set "github.com/deckarep/golang-set/v2"
)

// MapSet maps keys to sets of values, guarded by a single mutex. Used by the
// multi-stream joiner to track which streams have contributed to a join key
// (§4.4).
type MapSet[K comparable, T comparable] struct {
	mu   sync.RWMutex
	data map[K]set.Set[T]
}

// NewMapSet initializes a new MapSet.
func NewMapSet[K comparable, T comparable]() *MapSet[K, T] {
	return &MapSet[K, T]{data: make(map[K]set.Set[T])}
}

// Add inserts a value into the set associated with the key.
func (ms *MapSet[K, T]) Add(key K, value T) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.data[key]; !exists {
		ms.data[key] = set.NewSet[T]()
	}
	ms.data[key].Add(value)
}

// Remove removes a value from the set associated with the key.
func (ms *MapSet[K, T]) Remove(key K, value T) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.data[key]; !exists {
		return
	}
	ms.data[key].Remove(value)
}

// DeleteKey drops the entire set for a key.
func (ms *MapSet[K, T]) DeleteKey(key K) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, key)
}

// Get retrieves a snapshot of the set of values associated with a key.
func (ms *MapSet[K, T]) Get(key K) ([]T, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, exists := ms.data[key]
	if !exists {
		return nil, false
	}
	return s.ToSlice(), true
}

// ContainsOne returns whether val exists in the set at key.
func (ms *MapSet[K, T]) ContainsOne(key K, val T) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, exists := ms.data[key]
	if !exists {
		return false
	}
	return s.ContainsOne(val)
}

// Cardinality returns the number of values in the set at key.
func (ms *MapSet[K, T]) Cardinality(key K) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, exists := ms.data[key]
	if !exists {
		return 0
	}
	return s.Cardinality()
}

// Keys returns a snapshot of all keys currently tracked.
func (ms *MapSet[K, T]) Keys() []K {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	keys := make([]K, 0, len(ms.data))
	for k := range ms.data {
		keys = append(keys, k)
	}
	return keys
}
