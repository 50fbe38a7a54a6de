package auth

import (
	"context"
	"fmt"
	"time"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/hooks"
)

// grantAuthorizationHook implements hooks.Hook (spec.md §4.8's named
// authorization use case): it requires an authenticated Grant in ctx
// carrying every scope requiredScopes names for the invoked method.
type grantAuthorizationHook struct {
	store          Store
	requiredScopes func(method string) []string
}

// NewGrantAuthorizationHook wires the BFF grant model into the Lifecycle
// Hook Runner. requiredScopes returns the scopes a method needs; a nil or
// empty result means the method is open to every caller, with or without a
// grant in ctx.
func NewGrantAuthorizationHook(store Store, requiredScopes func(method string) []string) hooks.Hook {
	return &grantAuthorizationHook{store: store, requiredScopes: requiredScopes}
}

// OnInvoking rejects the call with an error (mapped by the dispatcher to a
// -32603 internal error per spec.md §4.8) when the request's grant is
// missing or lacks a required scope.
func (h *grantAuthorizationHook) OnInvoking(ctx context.Context, method, name string, request *jsonrpc.Request) error {
	required := h.requiredScopes(method)
	if len(required) == 0 {
		return nil
	}
	grant, ok := GrantFromContext(ctx)
	if !ok {
		return fmt.Errorf("method %q requires an authenticated grant", method)
	}
	have := make(map[string]bool, len(grant.Scopes))
	for _, s := range grant.Scopes {
		have[s] = true
	}
	for _, s := range required {
		if !have[s] {
			return fmt.Errorf("grant %s missing required scope %q for method %q", grant.ID, s, method)
		}
	}
	if h.store != nil {
		_ = h.store.Touch(ctx, grant.ID, time.Now())
	}
	return nil
}

// OnCompleted is a no-op: authorization is only ever enforced up front.
func (h *grantAuthorizationHook) OnCompleted(context.Context, string, string, *jsonrpc.Response, time.Duration) {
}

// OnFailed is a no-op: authorization is only ever enforced up front.
func (h *grantAuthorizationHook) OnFailed(context.Context, string, string, error, time.Duration) {}
