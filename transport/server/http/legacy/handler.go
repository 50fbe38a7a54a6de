// Package legacy implements the stateless "POST /rpc" auxiliary transport
// (spec.md §6, SPEC_FULL.md §5.9): one JSON-RPC request in, one response
// out, no session registry entry and no replay across requests.
package legacy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport"
	"github.com/viant/mcpgateway/transport/server/base"
)

const defaultURI = "/rpc"

// Handler implements the legacy stateless JSON-RPC transport.
type Handler struct {
	Options
	base       *base.Handler
	newHandler transport.NewHandler
}

// ServeHTTP implements http.Handler: every request is POST-only and
// answered synchronously, matching the non-streaming contract spec.md §6
// carves out of the Streamable HTTP transport.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.URI != "" && !strings.HasSuffix(r.URL.Path, h.URI) {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	// A transient session is created purely so the dispatcher's
	// transport.Handler signature (bound to a *transport.Transport) is
	// satisfied; it is never registered in the Session Registry and is
	// dropped after the request, so nothing its default replay buffer holds
	// is ever replayed (spec.md §1 non-goal: stateless JSON-RPC).
	aSession := base.NewSession(r.Context(), "", io.Discard, h.newHandler)
	ctx := context.WithValue(r.Context(), jsonrpc.SessionKey, aSession)

	buffer := bytes.Buffer{}
	h.base.HandleMessage(ctx, aSession, data, &buffer)

	if buffer.Len() == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buffer.Bytes())
}

// New constructs Handler with default settings and provided options.
func New(newHandler transport.NewHandler, opts ...Option) *Handler {
	h := &Handler{
		newHandler: newHandler,
		Options:    Options{URI: defaultURI},
		base:       base.NewHandler(),
	}
	for _, o := range opts {
		o(&h.Options)
	}
	return h
}
