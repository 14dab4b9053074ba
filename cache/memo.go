package cache

import (
	"sync"
)

// Memo is a populate-once map. Readers of an existing entry only take the
// read lock; population and replacement serialize on the write lock.
// Entries are never evicted.
type Memo[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

func NewMemo[K comparable, V any](capacity int) *Memo[K, V] {
	return &Memo[K, V]{
		data: make(map[K]V, capacity),
	}
}

func (m *Memo[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// GetOrCompute returns the cached value for key, computing it under the write
// lock on a miss. A failed computation leaves the cache untouched so the next
// caller retries.
func (m *Memo[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	// Fast path
	m.mu.RLock()
	if v, ok := m.data[key]; ok {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := m.data[key]; ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	m.data[key] = v
	return v, nil
}

// Replace swaps the entry for key with the result of update. The previous
// value (and whether it existed) is handed to update under the write lock.
func (m *Memo[K, V]) Replace(key K, update func(old V, ok bool) (V, error)) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.data[key]
	v, err := update(old, ok)
	if err != nil {
		var zero V
		return zero, err
	}
	m.data[key] = v
	return v, nil
}

// Len returns the number of cached entries.
func (m *Memo[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
