// Package router is the Notification Router (spec.md §4.5): it takes an
// outbound notification, assigns it an event id per target session,
// appends it to that session's replay buffer, and broadcasts it to every
// live SSE stream of the session (filtered by subscription for resource
// updates).
package router

import (
	"context"
	"encoding/json"
	"strings"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/ssereg"
	"github.com/viant/mcpgateway/subscription"
	"github.com/viant/mcpgateway/transport/server/base"
)

const (
	methodToolsListChanged     = "notifications/tools/list_changed"
	methodPromptsListChanged   = "notifications/prompts/list_changed"
	methodResourcesUpdated     = "notifications/resources/updated"
	methodLoggingMessage       = "notifications/message"
)

// Router ties the Session Registry, SSE Stream Registry, and Subscription
// Registry together so a single call delivers a notification consistently
// across every matching live stream (spec.md §4.5).
type Router struct {
	Sessions      SessionLookup
	Streams       *ssereg.Registry
	Subscriptions *subscription.Registry
	Logger        jsonrpc.Logger
}

// SessionLookup resolves a session id to its Session, abstracting over the
// concrete store used by each transport (in-memory or Redis-backed).
type SessionLookup interface {
	Get(id string) (*base.Session, bool)
	Range(func(id string, s *base.Session) bool)
}

// New builds a Router.
func New(sessions SessionLookup, streams *ssereg.Registry, subs *subscription.Registry, logger jsonrpc.Logger) *Router {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Router{Sessions: sessions, Streams: streams, Subscriptions: subs, Logger: logger}
}

// Route delivers notification to every matching session, per spec.md §4.5's
// method-name based fan-out rules.
func (r *Router) Route(ctx context.Context, notification *jsonrpc.Notification) {
	switch notification.Method {
	case methodToolsListChanged, methodPromptsListChanged, methodLoggingMessage:
		r.broadcastAll(ctx, notification)
	case methodResourcesUpdated:
		uri := resourceURI(notification.Params)
		if uri == "" {
			r.broadcastAll(ctx, notification)
			return
		}
		r.deliverTo(ctx, notification, r.Subscriptions.Subscribers(uri))
	default:
		r.broadcastAll(ctx, notification)
	}
}

func (r *Router) broadcastAll(ctx context.Context, notification *jsonrpc.Notification) {
	var targets []string
	r.Sessions.Range(func(id string, _ *base.Session) bool {
		targets = append(targets, id)
		return true
	})
	r.deliverTo(ctx, notification, targets)
}

func (r *Router) deliverTo(ctx context.Context, notification *jsonrpc.Notification, sessionIDs []string) {
	data, err := json.Marshal(notification)
	if err != nil {
		r.Logger.Errorf("router: failed to marshal notification %s: %v", notification.Method, err)
		return
	}
	for _, id := range sessionIDs {
		sess, ok := r.Sessions.Get(id)
		if !ok {
			continue
		}
		eventID := sess.AppendEvent(data)
		if eventID == "" {
			continue
		}
		r.Streams.Broadcast(id, sseFrame(eventID, data))
	}
}

func sseFrame(id string, data []byte) []byte {
	var b strings.Builder
	b.WriteString("id: ")
	b.WriteString(id)
	b.WriteString("\nevent: message\ndata: ")
	b.WriteString(strings.TrimSpace(string(data)))
	b.WriteString("\n\n")
	return []byte(b.String())
}

func resourceURI(params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	var payload struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &payload); err != nil {
		return ""
	}
	return payload.URI
}
