// Package collection provides small generic concurrency-safe containers
// shared by the gateway's registries (sessions, SSE streams, subscriptions).
package collection

import "sync"

// SyncMap is a mutex-guarded map. Registries favor this over sync.Map
// because iteration (Range) needs a consistent snapshot for the
// snapshot-before-I/O pattern the notification router relies on.
type SyncMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewSyncMap creates an empty SyncMap.
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{m: make(map[K]V)}
}

// Get returns the value for key and whether it was present.
func (s *SyncMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Put stores value under key.
func (s *SyncMap[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key, if present.
func (s *SyncMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Range calls f for every entry until f returns false. Range snapshots the
// map under the read lock and holds no lock during the callbacks, so f may
// call back into the SyncMap; callers that need global consistency should
// treat the walk as "at some moment during the call", not atomic.
func (s *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	s.mu.RLock()
	snapshot := make(map[K]V, len(s.m))
	for k, v := range s.m {
		snapshot[k] = v
	}
	s.mu.RUnlock()
	for k, v := range snapshot {
		if !f(k, v) {
			return
		}
	}
}

// Len returns the current number of entries.
func (s *SyncMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
