package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport"
)

// echoHandler implements transport.Handler: plain JSON-RPC requests are
// echoed back with the method name as the result; tools/call requests drive
// a StreamConnector when one is present in ctx, counting binary chunks.
type echoHandler struct{}

func (h *echoHandler) Serve(ctx context.Context, req *jsonrpc.Request, resp *jsonrpc.Response) {
	resp.Jsonrpc = jsonrpc.Version
	resp.Id = req.Id

	if req.Method != "tools/call" {
		data, _ := json.Marshal(map[string]string{"echo": req.Method})
		resp.Result = data
		return
	}

	connector, ok := ConnectorFromContext(ctx)
	if !ok {
		resp.Error = jsonrpc.NewInternalError(req.Id, context.Canceled, nil)
		return
	}

	var mu sync.Mutex
	var indices []uint64
	connector.SetCallbacks(Callbacks{
		OnBinaryChunk: func(index uint64, payload []byte) {
			mu.Lock()
			indices = append(indices, index)
			mu.Unlock()
		},
	})

	select {
	case <-connector.Done():
	case <-ctx.Done():
	}

	mu.Lock()
	count := len(indices)
	mu.Unlock()

	data, _ := json.Marshal(map[string]int{"chunks": count})
	resp.Result = data
}

func (h *echoHandler) OnNotification(context.Context, *jsonrpc.Notification) {}

func newHandler(ctx context.Context, tr transport.Transport) transport.Handler {
	return &echoHandler{}
}

func wsURL(t *testing.T, srv *httptest.Server, path string) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWS_JSONRPCRoundTrip(t *testing.T) {
	h := New(newHandler, WithURI("/ws-test"))
	mux := http.NewServeMux()
	mux.Handle("/ws-test", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "/ws-test"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	req := &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 1, Method: "ping"}
	data, _ := json.Marshal(req)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result map[string]string
	_ = json.Unmarshal(resp.Result, &result)
	if result["echo"] != "ping" {
		t.Fatalf("expected echo=ping, got %+v", result)
	}
}

func TestWS_BinaryStreamingSanity(t *testing.T) {
	h := New(newHandler, WithURI("/ws-test"))
	mux := http.NewServeMux()
	mux.Handle("/ws-test", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "/ws-test"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	streamID := jsonrpc.NewStreamID()
	start := &jsonrpc.StreamMessage{
		Type: jsonrpc.StreamStart,
		Id:   streamID,
		Meta: &jsonrpc.StreamMeta{Method: "echo_stream", Binary: true},
	}
	startData, _ := json.Marshal(start)
	if err := conn.WriteMessage(websocket.TextMessage, startData); err != nil {
		t.Fatalf("write start failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		header, err := jsonrpc.EncodeBinaryChunkHeader(streamID, uint64(i))
		if err != nil {
			t.Fatalf("encode header: %v", err)
		}
		payload := bytes.Repeat([]byte{byte(i)}, 100)
		if err := conn.WriteMessage(websocket.BinaryMessage, append(header, payload...)); err != nil {
			t.Fatalf("write binary chunk %d: %v", i, err)
		}
	}

	done := &jsonrpc.StreamMessage{Type: jsonrpc.StreamDone, Id: streamID}
	doneData, _ := json.Marshal(done)
	if err := conn.WriteMessage(websocket.TextMessage, doneData); err != nil {
		t.Fatalf("write done failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result map[string]int
	_ = json.Unmarshal(resp.Result, &result)
	if result["chunks"] != 10 {
		t.Fatalf("expected 10 chunks, got %+v", result)
	}
}

func TestWS_LateDataAfterDoneErrors(t *testing.T) {
	h := New(newHandler, WithURI("/ws-test"))
	mux := http.NewServeMux()
	mux.Handle("/ws-test", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "/ws-test"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	streamID := jsonrpc.NewStreamID()
	start := &jsonrpc.StreamMessage{Type: jsonrpc.StreamStart, Id: streamID, Meta: &jsonrpc.StreamMeta{Method: "echo_stream", Binary: true}}
	startData, _ := json.Marshal(start)
	_ = conn.WriteMessage(websocket.TextMessage, startData)

	done := &jsonrpc.StreamMessage{Type: jsonrpc.StreamDone, Id: streamID}
	doneData, _ := json.Marshal(done)
	_ = conn.WriteMessage(websocket.TextMessage, doneData)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read tools/call response failed: %v", err)
	}
	var resp jsonrpc.Response
	_ = json.Unmarshal(respData, &resp)
	if resp.Error != nil {
		t.Fatalf("unexpected error on completed stream: %+v", resp.Error)
	}

	header, _ := jsonrpc.EncodeBinaryChunkHeader(streamID, 0)
	_ = conn.WriteMessage(websocket.BinaryMessage, append(header, []byte("late")...))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, lateData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read late-data response failed: %v", err)
	}
	var lateSM jsonrpc.StreamMessage
	if err := json.Unmarshal(lateData, &lateSM); err != nil {
		t.Fatalf("unmarshal stream message: %v", err)
	}
	if lateSM.Type != jsonrpc.StreamError {
		t.Fatalf("expected error frame, got %+v", lateSM)
	}
	if lateSM.Error == nil || lateSM.Error.Code != jsonrpc.TransportError {
		t.Fatalf("expected transport error code %d, got %+v", jsonrpc.TransportError, lateSM.Error)
	}
}

func TestWS_MalformedBinaryFrameErrorsActiveStream(t *testing.T) {
	h := New(newHandler, WithURI("/ws-test"))
	mux := http.NewServeMux()
	mux.Handle("/ws-test", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(t, srv, "/ws-test"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	streamID := jsonrpc.NewStreamID()
	start := &jsonrpc.StreamMessage{Type: jsonrpc.StreamStart, Id: streamID, Meta: &jsonrpc.StreamMeta{Method: "echo_stream", Binary: true}}
	startData, _ := json.Marshal(start)
	if err := conn.WriteMessage(websocket.TextMessage, startData); err != nil {
		t.Fatalf("write start failed: %v", err)
	}

	// A binary frame shorter than the 24-byte header (spec.md §8 boundary
	// behavior: "Binary frame shorter than 24 bytes -> stream errored with
	// -32000").
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("short")); err != nil {
		t.Fatalf("write malformed binary frame failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error frame failed: %v", err)
	}
	var sm jsonrpc.StreamMessage
	if err := json.Unmarshal(respData, &sm); err != nil {
		t.Fatalf("unmarshal stream message: %v", err)
	}
	if sm.Type != jsonrpc.StreamError {
		t.Fatalf("expected error frame, got %+v", sm)
	}
	if sm.Error == nil || sm.Error.Code != jsonrpc.TransportError {
		t.Fatalf("expected transport error code %d, got %+v", jsonrpc.TransportError, sm.Error)
	}
	if sm.Id != streamID {
		t.Fatalf("expected error frame for active stream %q, got %q", streamID, sm.Id)
	}
}
