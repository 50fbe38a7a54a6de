// Package ws implements the WebSocket Streaming Transport (spec.md §4.4): a
// single persistent, full-duplex connection carrying JSON-RPC envelopes and
// the start/chunk/done/error streaming sub-protocol, driving a
// *StreamConnector per BinaryStreaming/TextStreaming tool call.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport"
	"github.com/viant/mcpgateway/transport/server/base"
)

const defaultURI = "/ws"

// Handler upgrades incoming HTTP requests to WebSocket connections and runs
// the per-connection read loop.
type Handler struct {
	Options
	base       *base.Handler
	newHandler transport.NewHandler
	upgrader   websocket.Upgrader
	reqSeq     uint64
}

// New constructs Handler with default settings and provided options.
func New(newHandler transport.NewHandler, opts ...Option) *Handler {
	h := &Handler{
		newHandler: newHandler,
		Options: Options{
			URI:         defaultURI,
			IdleTimeout: DefaultIdleTimeout,
		},
		base: base.NewHandler(),
	}
	for _, o := range opts {
		o(&h.Options)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  h.ReadBufferSize,
		WriteBufferSize: h.WriteBufferSize,
		CheckOrigin:     h.CheckOrigin,
	}
	return h
}

func (h *Handler) log() jsonrpc.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return jsonrpc.DefaultLogger
}

// ServeHTTP upgrades the connection and blocks running the read loop until
// the peer disconnects or the idle timeout closes the stream.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.URI != "" && !strings.HasSuffix(r.URL.Path, h.URI) {
		http.NotFound(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().Errorf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	writer := newConnWriter(conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var sessOpts []base.Option
	if h.MaxEventBuffer > 0 {
		sessOpts = append(sessOpts, base.WithEventBuffer(h.MaxEventBuffer))
	}
	if h.Logger != nil {
		sessOpts = append(sessOpts, base.WithLogger(h.Logger))
	}
	aSession := base.NewSession(ctx, "", writer, h.newHandler, sessOpts...)
	h.base.Sessions.Put(aSession.Id, aSession)
	ctx = context.WithValue(ctx, jsonrpc.SessionKey, aSession)

	defer func() {
		h.base.Sessions.Delete(aSession.Id)
		if h.OnSessionClose != nil {
			h.OnSessionClose(aSession)
		}
	}()

	state := newConnState()
	h.readLoop(ctx, conn, aSession, writer, state)
}

// readLoop is the single-threaded frame pump (spec.md §5: "within a single
// WebSocket connection the read loop is single-threaded"). JSON-RPC
// envelopes are dispatched into their own goroutine so a blocking tool call
// never stalls the pump that feeds its own StreamConnector.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, session *base.Session, writer *connWriter, state *connState) {
	idleTimeout := h.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		mt, data, err := conn.ReadMessage()
		if err != nil {
			state.failAll(timeoutError(err))
			return
		}
		session.Touch()
		switch mt {
		case websocket.BinaryMessage:
			h.handleBinaryFrame(writer, state, data)
		case websocket.TextMessage:
			h.handleTextFrame(ctx, session, writer, state, data)
		}
	}
}

func timeoutError(err error) *jsonrpc.Error {
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return jsonrpc.NewTransportError(nil, fmt.Errorf("Stream timeout"))
	}
	return nil
}

func (h *Handler) handleBinaryFrame(writer *connWriter, state *connState, data []byte) {
	streamID, index, payload, err := jsonrpc.DecodeBinaryChunkHeader(data)
	if err != nil {
		h.log().Errorf("ws: malformed binary frame: %v", err)
		rpcErr := jsonrpc.NewTransportError(nil, fmt.Errorf("malformed binary chunk frame: %v", err))
		state.errorActive(writer, rpcErr)
		return
	}
	connector, ok := state.get(streamID)
	if !ok {
		h.log().Errorf("ws: binary chunk for unknown stream %q", streamID)
		return
	}
	if rpcErr := connector.onBinary(index, payload); rpcErr != nil {
		_ = writer.writeStreamMessage(&jsonrpc.StreamMessage{Type: jsonrpc.StreamError, Id: streamID, Error: rpcErr})
	}
}

type textProbe struct {
	Type    string `json:"type"`
	Jsonrpc string `json:"jsonrpc"`
}

func (h *Handler) handleTextFrame(ctx context.Context, session *base.Session, writer *connWriter, state *connState, data []byte) {
	var probe textProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		session.SendError(ctx, nil, jsonrpc.NewParsingError(nil, err, data))
		return
	}
	if probe.Jsonrpc == jsonrpc.Version {
		go h.base.HandleMessage(ctx, session, data, nil)
		return
	}

	switch jsonrpc.StreamMessageType(probe.Type) {
	case jsonrpc.StreamStart, jsonrpc.StreamChunk, jsonrpc.StreamDone, jsonrpc.StreamError:
		h.handleStreamFrame(ctx, session, writer, state, data)
	default:
		session.SendError(ctx, nil, jsonrpc.NewInvalidRequest(nil, fmt.Errorf("unrecognized text frame"), data))
	}
}

func (h *Handler) handleStreamFrame(ctx context.Context, session *base.Session, writer *connWriter, state *connState, data []byte) {
	var sm jsonrpc.StreamMessage
	if err := json.Unmarshal(data, &sm); err != nil {
		session.SendError(ctx, nil, jsonrpc.NewParsingError(nil, err, data))
		return
	}

	if sm.Type == jsonrpc.StreamStart {
		if existing, ok := state.get(sm.Id); ok {
			existing.onText(&sm)
			return
		}
		h.openInboundStream(ctx, session, writer, state, &sm)
		return
	}

	connector, ok := state.get(sm.Id)
	if !ok {
		h.log().Errorf("ws: %s frame for unknown stream %q", sm.Type, sm.Id)
		return
	}
	if rpcErr := connector.onText(&sm); rpcErr != nil {
		_ = writer.writeStreamMessage(&jsonrpc.StreamMessage{Type: jsonrpc.StreamError, Id: sm.Id, Error: rpcErr})
	}
}

// openInboundStream resolves a fresh "start" frame to a synthesized
// tools/call request, hands the new StreamConnector to the handler through
// context, and registers it so subsequent chunk/binary/done frames route to
// it; it stays registered after the tool invocation completes.
func (h *Handler) openInboundStream(ctx context.Context, session *base.Session, writer *connWriter, state *connState, sm *jsonrpc.StreamMessage) {
	if sm.Meta == nil || sm.Meta.Method == "" {
		_ = writer.writeStreamMessage(&jsonrpc.StreamMessage{
			Type:  jsonrpc.StreamError,
			Id:    sm.Id,
			Error: jsonrpc.NewInvalidRequest(nil, fmt.Errorf("start frame missing meta.method"), nil),
		})
		return
	}

	connector := newStreamConnector(sm.Id, sm.Meta.Binary, writer)
	state.put(sm.Id, connector)

	params, _ := json.Marshal(map[string]interface{}{
		"name":      sm.Meta.Method,
		"arguments": map[string]interface{}{},
	})
	reqID := int(atomic.AddUint64(&h.reqSeq, 1))
	req := &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: reqID, Method: "tools/call", Params: params}
	reqData, err := json.Marshal(req)
	if err != nil {
		state.remove(sm.Id)
		return
	}

	// The connector stays registered under sm.Id for the rest of the
	// connection's lifetime: any frame arriving for this id after the tool
	// call completes is "late data after done" and must keep producing the
	// -32000 error (spec.md §4.4), not be silently dropped.
	streamCtx := WithConnector(ctx, connector)
	go h.base.HandleMessage(streamCtx, session, reqData, nil)
}

// connState tracks the StreamConnectors active on one connection, keyed by
// stream id. A connection typically has at most one active connector (one
// in-flight streaming tool call) but the map tolerates overlap.
type connState struct {
	mu         sync.Mutex
	connectors map[string]*StreamConnector
}

func newConnState() *connState {
	return &connState{connectors: map[string]*StreamConnector{}}
}

func (s *connState) get(id string) (*StreamConnector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[id]
	return c, ok
}

func (s *connState) put(id string, c *StreamConnector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectors[id] = c
}

func (s *connState) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connectors, id)
}

// errorActive fails every connector that hasn't already reached a terminal
// state, writing it a StreamError frame (spec.md §8: a malformed binary
// chunk frame, whose header can't even be decoded to find its stream id,
// still errors whichever stream was actively receiving binary chunks).
func (s *connState) errorActive(writer *connWriter, rpcErr *jsonrpc.Error) {
	s.mu.Lock()
	active := make([]*StreamConnector, 0, len(s.connectors))
	for _, c := range s.connectors {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			active = append(active, c)
		}
	}
	s.mu.Unlock()

	for _, c := range active {
		c.mu.Lock()
		cb := c.cb
		c.mu.Unlock()
		if cb.OnError != nil {
			cb.OnError(rpcErr)
		}
		_ = writer.writeStreamMessage(&jsonrpc.StreamMessage{Type: jsonrpc.StreamError, Id: c.id, Error: rpcErr})
		c.finish(true)
	}
}

func (s *connState) failAll(rpcErr *jsonrpc.Error) {
	s.mu.Lock()
	connectors := make([]*StreamConnector, 0, len(s.connectors))
	for _, c := range s.connectors {
		connectors = append(connectors, c)
	}
	s.connectors = map[string]*StreamConnector{}
	s.mu.Unlock()

	if rpcErr == nil {
		for _, c := range connectors {
			c.finish(true)
		}
		return
	}
	for _, c := range connectors {
		c.mu.Lock()
		cb := c.cb
		c.mu.Unlock()
		if cb.OnError != nil {
			cb.OnError(rpcErr)
		}
		_ = c.write.writeStreamMessage(&jsonrpc.StreamMessage{Type: jsonrpc.StreamError, Id: c.id, Error: rpcErr})
		c.finish(true)
	}
}
