// Package ssereg is the SSE Stream Registry (spec.md §4.5/§4.6): the set of
// live SSE writers per session, with failed-stream eviction and
// snapshot-before-I/O broadcast.
package ssereg

import (
	"io"
	"sync"

	"github.com/viant/mcpgateway/internal/collection"
)

// Writer is a single registered SSE connection's sink. Flush is called
// after every Write so events reach the client immediately.
type Writer interface {
	io.Writer
}

type streamSet struct {
	mu      sync.RWMutex
	writers map[string]Writer
}

// Registry tracks every live SSE stream, keyed by session id then by a
// per-stream handle id (so one session may have more than one concurrent
// GET /mcp connection, e.g. during a reconnect race).
type Registry struct {
	sessions *collection.SyncMap[string, *streamSet]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{sessions: collection.NewSyncMap[string, *streamSet]()}
}

// Register adds w as a live stream for sessionID under handle streamHandle
// (typically a random id distinguishing concurrent connections).
func (r *Registry) Register(sessionID, streamHandle string, w Writer) {
	set, ok := r.sessions.Get(sessionID)
	if !ok {
		set = &streamSet{writers: make(map[string]Writer)}
		r.sessions.Put(sessionID, set)
	}
	set.mu.Lock()
	set.writers[streamHandle] = w
	set.mu.Unlock()
}

// Unregister removes one stream handle for sessionID.
func (r *Registry) Unregister(sessionID, streamHandle string) {
	set, ok := r.sessions.Get(sessionID)
	if !ok {
		return
	}
	set.mu.Lock()
	delete(set.writers, streamHandle)
	empty := len(set.writers) == 0
	set.mu.Unlock()
	if empty {
		r.sessions.Delete(sessionID)
	}
}

// UnregisterSession drops every stream for sessionID (session deleted or
// expired).
func (r *Registry) UnregisterSession(sessionID string) {
	r.sessions.Delete(sessionID)
}

// Broadcast writes frame to every live stream of sessionID. Writers whose
// Write fails are evicted; the snapshot of writers is taken under lock and
// the actual I/O happens lock-free (spec.md §4.5 "snapshot-and-release").
func (r *Registry) Broadcast(sessionID string, frame []byte) {
	set, ok := r.sessions.Get(sessionID)
	if !ok {
		return
	}
	set.mu.RLock()
	snapshot := make(map[string]Writer, len(set.writers))
	for k, v := range set.writers {
		snapshot[k] = v
	}
	set.mu.RUnlock()

	var dead []string
	for handle, w := range snapshot {
		if _, err := w.Write(frame); err != nil {
			dead = append(dead, handle)
		}
	}
	for _, handle := range dead {
		r.Unregister(sessionID, handle)
	}
}

// BroadcastAll writes frame to every live stream across every session
// (spec.md §4.5: tools/list_changed, prompts/list_changed, logging
// notifications broadcast to every live session).
func (r *Registry) BroadcastAll(frame []byte) {
	r.sessions.Range(func(sessionID string, _ *streamSet) bool {
		r.Broadcast(sessionID, frame)
		return true
	})
}

// Sessions returns a snapshot of session ids with at least one live stream.
func (r *Registry) Sessions() []string {
	var out []string
	r.sessions.Range(func(sessionID string, _ *streamSet) bool {
		out = append(out, sessionID)
		return true
	})
	return out
}

// Len reports how many live streams sessionID currently has.
func (r *Registry) Len(sessionID string) int {
	set, ok := r.sessions.Get(sessionID)
	if !ok {
		return 0
	}
	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.writers)
}
