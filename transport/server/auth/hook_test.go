package auth

import (
	"context"
	"testing"

	jsonrpc "github.com/viant/mcpgateway"
)

func TestGrantAuthorizationHook_MissingGrantFails(t *testing.T) {
	hook := NewGrantAuthorizationHook(nil, func(method string) []string {
		return []string{"tools:write"}
	})
	err := hook.OnInvoking(context.Background(), "tools/call", "delete_file", &jsonrpc.Request{})
	if err == nil {
		t.Fatalf("expected error when no grant is present in ctx")
	}
}

func TestGrantAuthorizationHook_InsufficientScopeFails(t *testing.T) {
	hook := NewGrantAuthorizationHook(nil, func(method string) []string {
		return []string{"tools:write"}
	})
	ctx := WithGrant(context.Background(), &Grant{ID: "g1", Scopes: []string{"tools:read"}})
	if err := hook.OnInvoking(ctx, "tools/call", "delete_file", &jsonrpc.Request{}); err == nil {
		t.Fatalf("expected error for insufficient scope")
	}
}

func TestGrantAuthorizationHook_SufficientScopePasses(t *testing.T) {
	hook := NewGrantAuthorizationHook(nil, func(method string) []string {
		return []string{"tools:write"}
	})
	ctx := WithGrant(context.Background(), &Grant{ID: "g1", Scopes: []string{"tools:read", "tools:write"}})
	if err := hook.OnInvoking(ctx, "tools/call", "delete_file", &jsonrpc.Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGrantAuthorizationHook_NoRequiredScopesAllowsUnauthenticated(t *testing.T) {
	hook := NewGrantAuthorizationHook(nil, func(method string) []string { return nil })
	if err := hook.OnInvoking(context.Background(), "tools/call", "ping", &jsonrpc.Request{}); err != nil {
		t.Fatalf("unexpected error for method requiring no scopes: %v", err)
	}
}
