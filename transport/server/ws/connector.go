package ws

import (
	"fmt"
	"sync"

	jsonrpc "github.com/viant/mcpgateway"
)

// Callbacks are the inbound-frame handlers a streaming tool registers on its
// StreamConnector (spec.md §4.4): chunk fires OnTextChunk/OnBinaryChunk,
// done fires OnDone, error fires OnError.
type Callbacks struct {
	OnTextChunk   func(index uint64, data interface{})
	OnBinaryChunk func(index uint64, payload []byte)
	OnDone        func(summary interface{})
	OnError       func(err *jsonrpc.Error)
}

// StreamConnector owns one WebSocket connection's socket for the lifetime of
// a single BinaryStreaming/TextStreaming tool call (spec.md §4.4). It is
// constructed by the read loop on an inbound "start" frame and handed to the
// tool handler via context (WithConnector); the handler registers Callbacks
// and blocks on Done() until the inbound side reaches "done" or "error".
type StreamConnector struct {
	id     string
	binary bool

	write *connWriter

	mu        sync.Mutex
	cb        Callbacks
	closed    bool
	errored   bool
	nextIndex uint64
	doneCh    chan struct{}
}

func newStreamConnector(id string, binary bool, write *connWriter) *StreamConnector {
	return &StreamConnector{id: id, binary: binary, write: write, doneCh: make(chan struct{})}
}

// ID returns the stream identifier carried by the inbound "start" frame.
func (c *StreamConnector) ID() string { return c.id }

// SetCallbacks registers the handler's frame callbacks. Must be called
// before the read loop can deliver any chunk/done/error frame; frames that
// arrive before registration are not buffered, matching the synchronous,
// single tool-invocation-per-connector model.
func (c *StreamConnector) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

// Done returns a channel closed once the inbound stream reaches a terminal
// state (done or error), for the handler to block on.
func (c *StreamConnector) Done() <-chan struct{} {
	return c.doneCh
}

// Errored reports whether the inbound stream ended with an error frame.
func (c *StreamConnector) Errored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errored
}

func (c *StreamConnector) finish(errored bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.errored = errored
	c.mu.Unlock()
	close(c.doneCh)
}

// onText handles an inbound StreamMessage text frame for this connector's id.
func (c *StreamConnector) onText(sm *jsonrpc.StreamMessage) *jsonrpc.Error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: data received after done", c.id))
	}
	cb := c.cb
	c.mu.Unlock()

	switch sm.Type {
	case jsonrpc.StreamStart:
		// a "start" for a sub-stream is accepted and otherwise ignored.
		return nil
	case jsonrpc.StreamChunk:
		if c.binary {
			rpcErr := jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: text chunk on binary stream", c.id))
			c.finish(true)
			return rpcErr
		}
		var idx uint64
		if sm.Index != nil {
			idx = *sm.Index
		}
		if cb.OnTextChunk != nil {
			cb.OnTextChunk(idx, sm.Data)
		}
		return nil
	case jsonrpc.StreamDone:
		if cb.OnDone != nil {
			cb.OnDone(sm.Summary)
		}
		c.finish(false)
		return nil
	case jsonrpc.StreamError:
		if cb.OnError != nil {
			cb.OnError(sm.Error)
		}
		c.finish(true)
		return nil
	default:
		return jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: unknown frame type %q", c.id, sm.Type))
	}
}

// onBinary handles an inbound binary chunk frame for this connector's id.
func (c *StreamConnector) onBinary(index uint64, payload []byte) *jsonrpc.Error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: data received after done", c.id))
	}
	if !c.binary {
		c.mu.Unlock()
		rpcErr := jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: binary chunk on text stream", c.id))
		c.finish(true)
		return rpcErr
	}
	if index < c.nextIndex {
		c.mu.Unlock()
		rpcErr := jsonrpc.NewTransportError(nil, fmt.Errorf("stream %q: out-of-order chunk index %d", c.id, index))
		c.finish(true)
		return rpcErr
	}
	c.nextIndex = index + 1
	cb := c.cb
	c.mu.Unlock()

	if cb.OnBinaryChunk != nil {
		cb.OnBinaryChunk(index, payload)
	}
	return nil
}

// WriteHandle is the outbound side opened by OpenWrite: a text handle
// (WriteChunk) or a binary handle (Write), each completed by Complete or
// Fail (spec.md §4.4).
type WriteHandle struct {
	connector *StreamConnector
	id        string
	binary    bool
	done      bool
	index     uint64
	mu        sync.Mutex
}

// OpenWrite sends a "start" frame with a fresh UUID and returns the handle
// used to push chunks back to the client.
func (c *StreamConnector) OpenWrite(meta *jsonrpc.StreamMeta) (*WriteHandle, error) {
	id := jsonrpc.NewStreamID()
	sm := &jsonrpc.StreamMessage{Type: jsonrpc.StreamStart, Id: id, Meta: meta}
	if err := c.write.writeStreamMessage(sm); err != nil {
		return nil, err
	}
	return &WriteHandle{connector: c, id: id, binary: meta != nil && meta.Binary}, nil
}

// WriteChunk sends a text chunk frame. Valid only on a non-binary handle.
func (h *WriteHandle) WriteChunk(data interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.binary {
		return fmt.Errorf("stream %q: WriteChunk called on a binary handle", h.id)
	}
	if h.done {
		return fmt.Errorf("stream %q: write after done", h.id)
	}
	idx := h.index
	h.index++
	sm := &jsonrpc.StreamMessage{Type: jsonrpc.StreamChunk, Id: h.id, Index: &idx, Data: data}
	return h.connector.write.writeStreamMessage(sm)
}

// Write sends a binary chunk frame: [UUID][index++][payload]. Valid only on
// a binary handle.
func (h *WriteHandle) Write(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.binary {
		return fmt.Errorf("stream %q: Write called on a text handle", h.id)
	}
	if h.done {
		return fmt.Errorf("stream %q: write after done", h.id)
	}
	idx := h.index
	h.index++
	header, err := jsonrpc.EncodeBinaryChunkHeader(h.id, idx)
	if err != nil {
		return err
	}
	return h.connector.write.writeBinary(append(header, payload...))
}

// Complete sends a "done" frame and marks the handle closed.
func (h *WriteHandle) Complete(summary interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return nil
	}
	h.done = true
	sm := &jsonrpc.StreamMessage{Type: jsonrpc.StreamDone, Id: h.id, Summary: summary}
	return h.connector.write.writeStreamMessage(sm)
}

// Fail sends an "error" frame and marks the handle closed.
func (h *WriteHandle) Fail(rpcErr *jsonrpc.Error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return nil
	}
	h.done = true
	sm := &jsonrpc.StreamMessage{Type: jsonrpc.StreamError, Id: h.id, Error: rpcErr}
	return h.connector.write.writeStreamMessage(sm)
}
