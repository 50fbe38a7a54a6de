package legacy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport"
)

type echoHandler struct{}

func (echoHandler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Result = []byte(`{"echo":true}`)
}

func (echoHandler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {}

func echoFactory(ctx context.Context, t transport.Transport) transport.Handler {
	return echoHandler{}
}

func TestHandler_ServeHTTP_Request(t *testing.T) {
	h := New(echoFactory)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rpc", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandler_ServeHTTP_NoSessionPersisted(t *testing.T) {
	h := New(echoFactory)
	if got := h.base.Sessions.Len(); got != 0 {
		t.Fatalf("expected no sessions registered before any request, got %d", got)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()
	_, _ = http.Post(srv.URL+"/rpc", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if got := h.base.Sessions.Len(); got != 0 {
		t.Fatalf("legacy transport must not register sessions, got %d", got)
	}
}

func TestHandler_ServeHTTP_MethodNotAllowed(t *testing.T) {
	h := New(echoFactory)
	srv := httptest.NewServer(h)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/rpc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
