package base

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/eventid"
	"github.com/viant/mcpgateway/subscription"
	"github.com/viant/mcpgateway/transport"
)

// DefaultBufferSize is the default MessageBuffer capacity (spec §3).
const DefaultBufferSize = 100

// Session is the server-side context bound to an MCP-Session-Id: it owns
// an event counter, a bounded FIFO replay buffer, and the set of resource
// URIs the client has subscribed to (spec §3 Session).
type Session struct {
	Id            string `json:"id"`
	RoundTrips    *transport.RoundTrips
	Writer        io.Writer
	Handler       transport.Handler
	Subscriptions *subscription.Set

	framer       FrameMessage
	RequestIdSeq uint64
	bufferSize   int
	events       []event
	eventSeq     eventid.Counter
	sync.Mutex

	CreatedAt     time.Time
	LastSeen      time.Time
	DetachedAt    *time.Time
	State         SessionState
	WriterPresent bool

	overflowPolicy OverflowPolicy
	overflowed     bool

	writerGen uint64

	Logger jsonrpc.Logger
}

type event struct {
	id   string
	data []byte
}

// LastRequestID returns the most recently generated outbound request id
// without mutating the underlying sequence.
func (s *Session) LastRequestID() jsonrpc.RequestId {
	return int(atomic.LoadUint64(&s.RequestIdSeq))
}

// NextRequestID returns the next outbound request id for server->client
// requests issued on this session's Transport.
func (s *Session) NextRequestID() jsonrpc.RequestId {
	return int(atomic.AddUint64(&s.RequestIdSeq, 1))
}

func (s *Session) log() jsonrpc.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return jsonrpc.DefaultLogger
}

func (s *Session) frameMessage(id string, data []byte) []byte {
	if s.framer == nil {
		return data
	}
	return s.framer(id, data)
}

// SendError sends a JSON-RPC error response down the session, wrapping err
// in the {jsonrpc, id, error} envelope (id is nil for parse errors raised
// before a request id could be read, per spec.md §7).
func (s *Session) SendError(ctx context.Context, id jsonrpc.RequestId, err *jsonrpc.Error) {
	s.SendResponse(ctx, &jsonrpc.Response{Id: id, Jsonrpc: jsonrpc.Version, Error: err})
}

// SendResponse sends a JSON-RPC response down the session.
func (s *Session) SendResponse(ctx context.Context, response *jsonrpc.Response) {
	if response.Error != nil {
		response.Result = nil
	}
	data, err := json.Marshal(response)
	if err != nil {
		s.log().Errorf("session %s: failed to marshal response: %v", s.Id, err)
		return
	}
	s.SendData(ctx, data)
}

// SendRequest sends a server-initiated JSON-RPC request down the session.
func (s *Session) SendRequest(ctx context.Context, request *jsonrpc.Request) {
	data, err := json.Marshal(request)
	if err != nil {
		s.log().Errorf("session %s: failed to marshal request: %v", s.Id, err)
		return
	}
	s.SendData(ctx, data)
}

// SendNotification sends a JSON-RPC notification down the session directly.
// The Streamable HTTP path normally goes through router.Router instead, so
// buffering and SSE fan-out stay consistent across multiple live streams;
// this is used by transports with a single writer per session (stdio,
// legacy SSE) that have no separate SSE Stream Registry to fan out to.
func (s *Session) SendNotification(ctx context.Context, notification *jsonrpc.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	s.SendData(ctx, data)
	return nil
}

// SendData writes framed bytes to the session's current writer and, if
// buffering is enabled, appends the message (with a fresh event id) to the
// replay buffer.
func (s *Session) SendData(ctx context.Context, data []byte) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.LastSeen = time.Now()
	var id string
	if s.bufferSize > 0 {
		id = s.eventSeq.Next(s.Id)
	}
	framed := s.frameMessage(id, data)
	if s.Writer != nil {
		if _, err := s.Writer.Write(framed); err != nil {
			s.log().Errorf("session %s: write failed: %v", s.Id, err)
		}
	}
	if id != "" {
		s.storeEvent(id, framed)
	}
}

// AppendEvent assigns the next event id to data and appends it to the
// replay buffer without writing to the session's own Writer. The
// Notification Router uses this for multi-stream SSE fan-out, where
// delivery happens through the SSE Stream Registry instead of Session.Writer.
func (s *Session) AppendEvent(data []byte) (eventID string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if s.bufferSize <= 0 {
		return ""
	}
	id := s.eventSeq.Next(s.Id)
	s.storeEvent(id, data)
	return id
}

func (s *Session) storeEvent(id string, data []byte) {
	s.events = append(s.events, event{id: id, data: append([]byte(nil), data...)})
	if len(s.events) > s.bufferSize {
		if s.overflowPolicy == OverflowMark {
			s.overflowed = true
		}
		excess := len(s.events) - s.bufferSize
		s.events = s.events[excess:]
	}
}

// Overflowed reports whether the buffer has ever dropped an entry while the
// OverflowMark policy is in effect.
func (s *Session) Overflowed() bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	return s.overflowed
}

// EventsAfter returns buffered framed messages with an event id strictly
// after lastEventID, in FIFO order. When lastEventID is empty, the whole
// buffer is returned (initial connect, no Last-Event-ID supplied). When
// lastEventID is non-empty but not found (evicted by overflow), the whole
// buffer is returned too, matching spec §4.3/§8's "client too far behind"
// rule.
func (s *Session) EventsAfter(lastEventID string) [][]byte {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if lastEventID == "" || len(s.events) == 0 {
		return copyData(s.events)
	}
	idx := -1
	for i, ev := range s.events {
		if ev.id == lastEventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return copyData(s.events)
	}
	return copyData(s.events[idx+1:])
}

func copyData(evs []event) [][]byte {
	res := make([][]byte, len(evs))
	for i, ev := range evs {
		res[i] = ev.data
	}
	return res
}

// NewSession creates a new Session, generating a random id when none is
// supplied (the stdio transport pins a fixed id; HTTP/WS transports leave
// id empty and get a fresh UUID).
func NewSession(ctx context.Context, id string, writer io.Writer, newHandler transport.NewHandler, options ...Option) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	ret := &Session{
		Id:            id,
		Writer:        writer,
		RoundTrips:    transport.NewRoundTrips(20),
		Subscriptions: subscription.NewSet(),
		CreatedAt:     time.Now(),
		LastSeen:      time.Now(),
		State:         SessionStateActive,
		WriterPresent: writer != nil,
		bufferSize:    DefaultBufferSize,
	}
	ret.Handler = newHandler(ctx, NewTransport(ret.RoundTrips, ret.SendData, ret))
	for _, option := range options {
		option(ret)
	}
	return ret
}

// SessionState represents the lifecycle state of a session (spec §3 plus
// the supplemental detach/reconnect-grace behavior, SPEC_FULL §4).
type SessionState int

const (
	SessionStateActive SessionState = iota
	SessionStateDetached
	SessionStateClosed
)

// Touch refreshes LastSeen, used on every validated request (spec §3:
// "validated+lastActivity-bumped on every request").
func (s *Session) Touch() {
	s.Mutex.Lock()
	s.LastSeen = time.Now()
	s.Mutex.Unlock()
}

// MarkDetached marks the session as having lost its live writer while
// remaining eligible for reconnection within the configured grace period.
func (s *Session) MarkDetached() {
	s.Mutex.Lock()
	now := time.Now()
	s.DetachedAt = &now
	s.State = SessionStateDetached
	s.WriterPresent = false
	s.Mutex.Unlock()
}

// MarkActiveWithWriter re-attaches a writer (e.g. a new SSE GET stream) and
// marks the session active again.
func (s *Session) MarkActiveWithWriter(w io.Writer) {
	s.Mutex.Lock()
	s.Writer = w
	s.WriterPresent = w != nil
	s.State = SessionStateActive
	s.DetachedAt = nil
	s.LastSeen = time.Now()
	atomic.AddUint64(&s.writerGen, 1)
	s.Mutex.Unlock()
}

// WriterGeneration returns the current writer-attachment generation,
// letting a long-lived goroutine (the SSE keep-alive loop) detect it has
// been superseded by a reconnect.
func (s *Session) WriterGeneration() uint64 {
	return atomic.LoadUint64(&s.writerGen)
}

// IdleFor reports how long the session has gone without activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	return now.Sub(s.LastSeen)
}

// Age reports how long the session has existed.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
