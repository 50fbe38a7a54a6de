package streamable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/viant/mcpgateway/transport"
	"github.com/viant/mcpgateway/transport/server/auth"
)

func TestRehydrateOnHandshake_WithSignedAuthCookie(t *testing.T) {
	store := auth.NewMemoryStore(14*24*time.Hour, 90*24*time.Hour, 30*time.Second)
	g := auth.NewGrant("user-123")
	if err := store.Put(context.Background(), g); err != nil {
		t.Fatalf("put grant: %v", err)
	}
	signer, err := auth.NewCookieSigner([]byte("test-secret"), "BFF-Auth-Session")
	if err != nil {
		t.Fatalf("NewCookieSigner failed: %v", err)
	}

	h := New(func(ctx context.Context, tr transport.Transport) transport.Handler { return &noopSrv{} },
		WithURI("/mcp-auth"),
		WithAuthStore(store),
		WithBFFAuthCookie(&BFFAuthCookie{Name: "BFF-Auth-Session", HttpOnly: true}),
		WithAuthCookieSigner(signer),
		WithRehydrateOnHandshake(true),
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp-auth", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp-auth", nil)
	req.AddCookie(&http.Cookie{Name: "BFF-Auth-Session", Value: signer.Sign(g.ID)})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	_ = resp.Body.Close()
	if sid := resp.Header.Get(defaultSessionHeaderKey); sid == "" {
		t.Fatalf("expected %s header to be set for a validly signed cookie", defaultSessionHeaderKey)
	}
}

func TestRehydrateOnHandshake_RejectsTamperedSignedCookie(t *testing.T) {
	store := auth.NewMemoryStore(14*24*time.Hour, 90*24*time.Hour, 30*time.Second)
	g := auth.NewGrant("user-123")
	_ = store.Put(context.Background(), g)
	signer, _ := auth.NewCookieSigner([]byte("test-secret"), "BFF-Auth-Session")

	h := New(func(ctx context.Context, tr transport.Transport) transport.Handler { return &noopSrv{} },
		WithURI("/mcp-auth"),
		WithAuthStore(store),
		WithBFFAuthCookie(&BFFAuthCookie{Name: "BFF-Auth-Session", HttpOnly: true}),
		WithAuthCookieSigner(signer),
		WithRehydrateOnHandshake(true),
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp-auth", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp-auth", nil)
	req.AddCookie(&http.Cookie{Name: "BFF-Auth-Session", Value: g.ID}) // unsigned, should fail verification
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unsigned cookie value when a signer is configured, got %d", resp.StatusCode)
	}
}
