// Package subscription tracks which sessions are subscribed to which
// resource URIs (spec.md §3 Subscription, §4.6 Subscription Registry).
package subscription

import (
	"sync"

	"github.com/viant/mcpgateway/internal/collection"
)

// Set is a single session's subscribed-URI set. It is embedded on
// base.Session.
type Set struct {
	mu   sync.RWMutex
	uris map[string]struct{}
}

// NewSet creates an empty subscription set.
func NewSet() *Set {
	return &Set{uris: make(map[string]struct{})}
}

// Add adds uri to the set, returning true if it was newly added (idempotent
// per spec.md §8: a duplicate resources/subscribe is a no-op success).
func (s *Set) Add(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uris[uri]; ok {
		return false
	}
	s.uris[uri] = struct{}{}
	return true
}

// Remove removes uri from the set, returning true if it was present.
func (s *Set) Remove(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uris[uri]; !ok {
		return false
	}
	delete(s.uris, uri)
	return true
}

// Has reports whether uri is currently subscribed.
func (s *Set) Has(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.uris[uri]
	return ok
}

// All returns a snapshot slice of subscribed URIs.
func (s *Set) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.uris))
	for u := range s.uris {
		out = append(out, u)
	}
	return out
}

// Registry is the reverse index uri -> subscribed session ids, used by the
// Notification Router to fan a resources/updated notification out to every
// interested session without scanning the whole Session Registry.
type Registry struct {
	byURI *collection.SyncMap[string, *sessionSet]
}

type sessionSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byURI: collection.NewSyncMap[string, *sessionSet]()}
}

// Subscribe records that sessionID is interested in uri. Returns false if
// already subscribed (idempotent).
func (r *Registry) Subscribe(uri, sessionID string) bool {
	set, ok := r.byURI.Get(uri)
	if !ok {
		set = &sessionSet{ids: make(map[string]struct{})}
		r.byURI.Put(uri, set)
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	if _, ok := set.ids[sessionID]; ok {
		return false
	}
	set.ids[sessionID] = struct{}{}
	return true
}

// Unsubscribe removes sessionID's interest in uri. Returns false if it
// wasn't subscribed.
func (r *Registry) Unsubscribe(uri, sessionID string) bool {
	set, ok := r.byURI.Get(uri)
	if !ok {
		return false
	}
	set.mu.Lock()
	removed := false
	if _, ok := set.ids[sessionID]; ok {
		delete(set.ids, sessionID)
		removed = true
	}
	empty := len(set.ids) == 0
	set.mu.Unlock()
	if empty {
		r.byURI.Delete(uri)
	}
	return removed
}

// UnsubscribeAll drops sessionID's subscription to each of uris (typically
// the session's own Set.All()), used when a session is torn down (spec.md
// §3: "subscriptions are dropped when the owning session is removed").
func (r *Registry) UnsubscribeAll(sessionID string, uris []string) {
	for _, uri := range uris {
		r.Unsubscribe(uri, sessionID)
	}
}

// Subscribers returns a snapshot of the session ids subscribed to uri, safe
// to iterate without holding any lock (snapshot-before-I/O, spec.md §5).
func (r *Registry) Subscribers(uri string) []string {
	set, ok := r.byURI.Get(uri)
	if !ok {
		return nil
	}
	set.mu.RLock()
	defer set.mu.RUnlock()
	out := make([]string, 0, len(set.ids))
	for id := range set.ids {
		out = append(out, id)
	}
	return out
}
