package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	jsonrpc "github.com/viant/mcpgateway"
)

// connWriter serializes every outbound frame (JSON-RPC responses/requests/
// notifications and StreamMessage/binary chunk frames) through one mutex, so
// concurrent writers never interleave partial WebSocket frames (spec.md §5:
// "writes may be serialized by a per-connection mutex to preserve frame
// atomicity").
type connWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newConnWriter(conn *websocket.Conn) *connWriter {
	return &connWriter{conn: conn}
}

// Write implements io.Writer so *connWriter can be used directly as a
// base.Session's Writer: every call is one JSON-RPC envelope, sent as a
// single Text WebSocket message.
func (w *connWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *connWriter) writeStreamMessage(sm *jsonrpc.StreamMessage) error {
	data, err := json.Marshal(sm)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *connWriter) writeBinary(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}
