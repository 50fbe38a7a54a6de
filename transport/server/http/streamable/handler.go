package streamable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport"
	"github.com/viant/mcpgateway/transport/server/auth"
	"github.com/viant/mcpgateway/transport/server/base"
	"github.com/viant/mcpgateway/transport/server/http/common"
	"github.com/viant/mcpgateway/transport/server/http/session"
)

// Default values following the MCP spec.
const (
	defaultURI = ""
	// default header name for session id; may be overridden via Options.SessionLocation
	defaultSessionHeaderKey = "Mcp-Session-Id"
	sseMime                 = "text/event-stream"

	headerProtocolVersion = "MCP-Protocol-Version"
	headerLastEventID     = "Last-Event-ID"
)

// Handler implements server-side of Streamable-HTTP transport (Model Context Protocol).
// Single endpoint (URI) is used for handshake, message exchange and streaming.
// Operation mode is distinguished by HTTP method and Accept header value.
type Handler struct {
	Options
	base            *base.Handler
	locator         session.Locator
	newHandler      transport.NewHandler
	streamHandleSeq uint64
	stopSweep       chan struct{}
}

// ServeHTTP implements http.Handler.
// POST (no session header) – handshake creates a session, returns session id in header.
// POST (with Mcp-Session-Id) – JSON-RPC message for the session; response returned sync.
// GET  (with Accept: text/event-stream & Mcp-Session-Id) – opens long-lived streaming connection.
// DELETE (with Mcp-Session-Id) – terminates session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.URI != "" && !strings.HasSuffix(r.URL.Path, h.URI) {
		http.NotFound(w, r)
		return
	}
	h.writeCORSHeaders(w, r)

	version, vErr := h.negotiateProtocolVersion(r)
	if vErr != nil {
		writeJSONRPCError(w, http.StatusBadRequest, vErr)
		return
	}
	w.Header().Set(headerProtocolVersion, version)

	switch r.Method {
	case http.MethodPost:
		h.handlePOST(w, r)
	case http.MethodGet:
		h.handleGET(w, r)
	case http.MethodDelete:
		h.handleDELETE(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// negotiateProtocolVersion validates the MCP-Protocol-Version header
// (spec.md §4.3/§6/§8): missing defaults to LegacyProtocolVersion; present
// but unsupported is rejected with a JSON-RPC-shaped 400.
func (h *Handler) negotiateProtocolVersion(r *http.Request) (string, *jsonrpc.Error) {
	v := strings.TrimSpace(r.Header.Get(headerProtocolVersion))
	if v == "" {
		return jsonrpc.LegacyProtocolVersion, nil
	}
	for _, supported := range jsonrpc.SupportedProtocolVersions {
		if v == supported {
			return v, nil
		}
	}
	msg := fmt.Sprintf("Unsupported protocol version %q; supported versions: %s", v, strings.Join(jsonrpc.SupportedProtocolVersions, ", "))
	return "", jsonrpc.NewVersionError(nil, msg, jsonrpc.SupportedProtocolVersions)
}

func writeJSONRPCError(w http.ResponseWriter, status int, rpcErr *jsonrpc.Error) {
	resp := &jsonrpc.Response{Jsonrpc: jsonrpc.Version, Error: rpcErr}
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, rpcErr.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeCORSHeaders mirrors a browser-facing CORS policy: when no allow-list
// is configured every origin is accepted (the historical default); when one
// is configured only a listed Origin is echoed back, and credentials are
// only allowed alongside an explicit origin (never "*").
func (h *Handler) writeCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if len(h.AllowedOrigins) == 0 {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		return
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			if h.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			return
		}
	}
}

func (h *Handler) handlePOST(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.NewInvalidRequest(nil, fmt.Errorf("failed to read request body: %w", err), nil))
		return
	}
	_ = r.Body.Close()

	if sessionID != "" {
		if aSession, ok := h.base.Sessions.Get(sessionID); ok {
			h.handleBody(w, r, aSession, data)
			return
		}
		// Unknown/expired session id. An initialize call is still allowed to
		// mint a fresh session (spec.md §4.3); any other method gets the
		// re-init hint.
		if !isInitializeMethod(data) {
			writeJSONRPCError(w, http.StatusNotFound, jsonrpc.NewInvalidRequest(nil,
				fmt.Errorf("session %q not found or expired; re-initialize", sessionID), nil))
			return
		}
	}

	aSession, authErr := h.initHandshake(w, r)
	if authErr != nil {
		writeJSONRPCError(w, http.StatusUnauthorized, authErr)
		return
	}
	h.handleBody(w, r, aSession, data)
}

// isInitializeMethod reports whether data (a single envelope or a batch)
// contains an "initialize" request, used to decide whether an unknown
// session id should still be allowed to hand shake a fresh session.
func isInitializeMethod(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true // empty body treated as a bare handshake probe
	}
	if trimmed[0] == '[' {
		var batch []struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return false
		}
		for _, b := range batch {
			if b.Method == "initialize" {
				return true
			}
		}
		return false
	}
	var single struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return false
	}
	return single.Method == "initialize"
}

func (h *Handler) handleGET(w http.ResponseWriter, r *http.Request) {
	if !acceptsSSE(r.Header) {
		http.Error(w, "SSE not supported on this endpoint", http.StatusMethodNotAllowed)
		return
	}
	// locate session using configured location (default: header)
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)
	if sessionID == "" {
		// Try query param fallback (for debug convenience)
		sessionID = r.URL.Query().Get(h.SessionLocation.Name)
	}
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.NewInvalidRequest(nil, fmt.Errorf("missing %s", h.SessionLocation.Name), nil))
		return
	}

	aSession, ok := h.base.Sessions.Get(sessionID)
	if !ok {
		writeJSONRPCError(w, http.StatusNotFound, jsonrpc.NewInvalidRequest(nil,
			fmt.Errorf("session %q not found or expired; re-initialize", sessionID), nil))
		return
	}

	// Prepare SSE response headers.
	w.Header().Set("Content-Type", sseMime+"; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flushWriter := common.NewFlushWriter(w)
	aSession.MarkActiveWithWriter(flushWriter)
	base.WithFramer(frameSSE)(aSession)
	if h.MaxEventBuffer > 0 {
		base.WithEventBuffer(h.MaxEventBuffer)(aSession)
	}
	base.WithSSE()(aSession)

	var streamHandle string
	if h.Streams != nil {
		streamHandle = fmt.Sprintf("%d", atomic.AddUint64(&h.streamHandleSeq, 1))
		h.Streams.Register(sessionID, streamHandle, flushWriter)
		defer h.Streams.Unregister(sessionID, streamHandle)
	}

	// Replay buffered events after Last-Event-ID (spec.md §4.3/§8): with
	// no Last-Event-ID header nothing is replayed; an id evicted by
	// overflow falls back to a full-buffer replay (handled inside
	// EventsAfter itself).
	if last := strings.TrimSpace(r.Header.Get(headerLastEventID)); last != "" {
		for _, msg := range aSession.EventsAfter(last) {
			_, _ = flushWriter.Write(msg)
		}
	}

	generation := aSession.WriterGeneration()
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.onStreamClosed(sessionID, aSession, generation)
			return
		case <-keepAlive.C:
			if aSession.WriterGeneration() != generation {
				// Superseded by a reconnect; this goroutine's writer is stale.
				return
			}
			if _, err := flushWriter.Write([]byte(": keep-alive\n\n")); err != nil {
				h.onStreamClosed(sessionID, aSession, generation)
				return
			}
		}
	}
}

// onStreamClosed reacts to a GET stream ending, either by client
// disconnect or a write failure (spec.md §5 cancellation). Unless the
// writer was already superseded by a reconnect, the session is marked
// detached for the sweeper (or deleted outright when neither
// ReconnectGrace nor CleanupInterval is set).
func (h *Handler) onStreamClosed(sessionID string, aSession *base.Session, generation uint64) {
	if aSession.WriterGeneration() != generation {
		return
	}
	if h.ReconnectGrace <= 0 && h.CleanupInterval <= 0 {
		h.removeSession(sessionID, aSession)
		return
	}
	aSession.MarkDetached()
}

func (h *Handler) handleDELETE(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := h.locator.Locate(h.SessionLocation, r)
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.NewInvalidRequest(nil, fmt.Errorf("missing %s", h.SessionLocation.Name), nil))
		return
	}
	aSession, ok := h.base.Sessions.Get(sessionID)
	if !ok {
		writeJSONRPCError(w, http.StatusNotFound, jsonrpc.NewInvalidRequest(nil, fmt.Errorf("session %q not found", sessionID), nil))
		return
	}
	h.removeSession(sessionID, aSession)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) removeSession(sessionID string, aSession *base.Session) {
	h.base.Sessions.Delete(sessionID)
	if h.Subscriptions != nil {
		h.Subscriptions.UnsubscribeAll(sessionID, aSession.Subscriptions.All())
	}
	if h.Streams != nil {
		h.Streams.UnregisterSession(sessionID)
	}
	if h.OnSessionClose != nil {
		h.OnSessionClose(aSession)
	}
}

// initHandshake creates a new session and returns its id in response header.
// When RehydrateOnHandshake is enabled, a BFF auth cookie is required and
// validated against AuthStore before a session is minted.
func (h *Handler) initHandshake(w http.ResponseWriter, r *http.Request) (*base.Session, *jsonrpc.Error) {
	ctx := r.Context()

	if h.RehydrateOnHandshake && h.AuthStore != nil && h.AuthCookie != nil {
		grant := h.resolveGrant(r)
		if grant == nil {
			return nil, jsonrpc.NewAuthorizationError(nil, "missing or invalid authentication cookie")
		}
		_ = h.AuthStore.Touch(ctx, grant.ID, time.Now())
	}

	aSession := base.NewSession(ctx, "", io.Discard, h.newHandler)
	if h.MaxEventBuffer > 0 {
		base.WithEventBuffer(h.MaxEventBuffer)(aSession)
	}
	if h.OverflowPolicy != 0 {
		base.WithOverflowPolicy(h.OverflowPolicy)(aSession)
	}

	h.base.Sessions.Put(aSession.Id, aSession)
	if h.SessionLocation != nil && h.SessionLocation.Kind == "header" {
		w.Header().Set(h.SessionLocation.Name, aSession.Id)
	} else {
		w.Header().Set(defaultSessionHeaderKey, aSession.Id)
	}
	h.applySessionCookie(w, r, aSession.Id)
	return aSession, nil
}

// resolveGrant looks up the BFF auth grant named by the auth cookie, if
// one is configured and present. It returns nil on any missing/invalid
// cookie, signature or store lookup rather than erroring, since not every
// caller treats an absent grant as fatal (NewGrantAuthorizationHook does,
// per-request; initHandshake's RehydrateOnHandshake path does too).
func (h *Handler) resolveGrant(r *http.Request) *auth.Grant {
	if h.AuthStore == nil || h.AuthCookie == nil {
		return nil
	}
	cookie, err := r.Cookie(h.AuthCookie.Name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	grantID := cookie.Value
	if h.AuthCookieSigner != nil {
		var ok bool
		grantID, ok = h.AuthCookieSigner.Verify(cookie.Value)
		if !ok {
			return nil
		}
	}
	grant, err := h.AuthStore.Get(r.Context(), grantID)
	if err != nil {
		return nil
	}
	return grant
}

func (h *Handler) applySessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.CookieSession == nil {
		return
	}
	domain := h.CookieSession.Domain
	if domain == "" && h.CookieUseTopDomain {
		if top, err := common.TopDomain(common.ClientHost(r)); err == nil {
			domain = top
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieSession.Name,
		Value:    sessionID,
		Path:     h.CookieSession.Path,
		Domain:   domain,
		Secure:   h.CookieSession.Secure,
		HttpOnly: h.CookieSession.HttpOnly,
		SameSite: h.CookieSession.SameSite,
		MaxAge:   h.CookieSession.MaxAge,
	})
}

func (h *Handler) handleBody(w http.ResponseWriter, r *http.Request, aSession *base.Session, data []byte) {
	aSession.Touch()
	ctx := context.WithValue(r.Context(), jsonrpc.SessionKey, aSession)
	if grant := h.resolveGrant(r); grant != nil {
		ctx = auth.WithGrant(ctx, grant)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		h.handleBatch(ctx, w, aSession, trimmed)
		return
	}

	// If client accepts SSE, and this is a JSON-RPC request, stream the
	// response (and any further server-initiated messages) via SSE.
	if acceptsSSE(r.Header) && isJSONRPCRequest(data) && hasID(data) {
		w.Header().Set("Content-Type", sseMime+"; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flushWriter := common.NewFlushWriter(w)
		aSession.MarkActiveWithWriter(flushWriter)
		base.WithFramer(frameSSE)(aSession)
		if h.MaxEventBuffer > 0 {
			base.WithEventBuffer(h.MaxEventBuffer)(aSession)
		}
		base.WithSSE()(aSession)
		h.base.HandleMessage(ctx, aSession, data, nil)
		return
	}

	// Default: synchronous JSON response or 204 No Content for notifications
	buffer := bytes.Buffer{}
	h.base.HandleMessage(ctx, aSession, data, &buffer)
	if buffer.Len() == 0 { // notification (no response)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buffer.Bytes())
}

// handleBatch answers a JSON-RPC batch (spec.md §4.3): one entry per
// request, in input order, notifications omitted entirely.
func (h *Handler) handleBatch(ctx context.Context, w http.ResponseWriter, aSession *base.Session, data []byte) {
	var batch jsonrpc.BatchRequest
	if err := json.Unmarshal(data, &batch); err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.NewInvalidRequest(nil, err, nil))
		return
	}

	responses := make([]json.RawMessage, 0, len(batch))
	for _, request := range batch {
		reqBytes, err := json.Marshal(request)
		if err != nil {
			continue
		}
		var out bytes.Buffer
		h.base.HandleMessage(ctx, aSession, reqBytes, &out)
		if out.Len() > 0 {
			responses = append(responses, append([]byte(nil), out.Bytes()...))
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	body, err := json.Marshal(responses)
	if err != nil {
		writeJSONRPCError(w, http.StatusInternalServerError, jsonrpc.NewInternalError(nil, err, nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Helper – checks if Accept header contains text/event-stream
func acceptsSSE(hdr http.Header) bool {
	for _, v := range hdr.Values("Accept") {
		if strings.Contains(v, sseMime) {
			return true
		}
	}
	return false
}

// isJSONRPCRequest returns true if data looks like a JSON-RPC request (has method and optional id)
func isJSONRPCRequest(data []byte) bool {
	var tmp struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return false
	}
	return tmp.Method != ""
}

// hasID returns true if the JSON has a non-null id field
func hasID(data []byte) bool {
	var tmp struct {
		ID *json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return false
	}
	return tmp.ID != nil
}

// startSweeper runs the periodic session-lifecycle sweep (spec.md §3/§5:
// "Expired sessions are removed on next access and on periodic sweeps").
// It is the one place ReconnectGrace/IdleTTL/MaxLifetime are enforced for
// sessions that are never touched again after going stale.
func (h *Handler) startSweeper() {
	if h.CleanupInterval <= 0 {
		return
	}
	h.stopSweep = make(chan struct{})
	ticker := time.NewTicker(h.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopSweep:
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *Handler) sweep() {
	now := time.Now()
	var stale []string
	h.base.Sessions.Range(func(id string, s *base.Session) bool {
		if h.MaxLifetime > 0 && s.Age(now) > h.MaxLifetime {
			stale = append(stale, id)
			return true
		}
		if h.IdleTTL > 0 && s.IdleFor(now) > h.IdleTTL {
			stale = append(stale, id)
			return true
		}
		if s.State == base.SessionStateDetached && s.DetachedAt != nil {
			if h.ReconnectGrace <= 0 || now.Sub(*s.DetachedAt) > h.ReconnectGrace {
				stale = append(stale, id)
			}
		}
		return true
	})
	for _, id := range stale {
		if s, ok := h.base.Sessions.Get(id); ok {
			h.removeSession(id, s)
		}
	}
}

// Stop halts the background cleanup sweeper, if one was started.
func (h *Handler) Stop() {
	if h.stopSweep != nil {
		close(h.stopSweep)
		h.stopSweep = nil
	}
}

// New constructs Handler with default settings and provided options.
func New(newHandler transport.NewHandler, opts ...Option) *Handler {
	h := &Handler{
		newHandler: newHandler,
		Options: Options{
			URI:             defaultURI,
			SessionLocation: session.NewHeaderLocation(defaultSessionHeaderKey),
		},
		base:    base.NewHandler(),
		locator: session.NewLocator(),
	}
	for _, o := range opts {
		o(&h.Options)
	}
	h.startSweeper()
	return h
}
