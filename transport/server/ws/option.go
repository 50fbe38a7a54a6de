package ws

import (
	"net/http"
	"time"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/transport/server/base"
)

// DefaultIdleTimeout is the stream idle timeout (spec.md §5/§6): 30s without
// any frame fails every open stream with a transport error and closes the
// connection.
const DefaultIdleTimeout = 30 * time.Second

// Options exposes configurable attributes of the Handler.
type Options struct {
	// URI the handler is mounted on (matched by suffix like other transports).
	URI string

	// IdleTimeout bounds how long the read loop waits for the next frame.
	IdleTimeout time.Duration

	// MaxEventBuffer sizes the session's replay buffer; WS has its own
	// full-duplex push channel so this mainly matters for Overflowed()
	// bookkeeping parity with the other transports.
	MaxEventBuffer int

	// CheckOrigin is passed straight to the gorilla/websocket Upgrader.
	// Defaults to allowing same-origin-or-empty-Origin requests.
	CheckOrigin func(r *http.Request) bool

	ReadBufferSize  int
	WriteBufferSize int

	OnSessionClose func(*base.Session)
	Logger         jsonrpc.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithURI sets the mount path.
func WithURI(uri string) Option { return func(o *Options) { o.URI = uri } }

// WithIdleTimeout overrides the default stream idle timeout.
func WithIdleTimeout(d time.Duration) Option { return func(o *Options) { o.IdleTimeout = d } }

// WithMaxEventBuffer overrides the session's replay buffer size.
func WithMaxEventBuffer(n int) Option { return func(o *Options) { o.MaxEventBuffer = n } }

// WithCheckOrigin overrides the Upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(o *Options) { o.CheckOrigin = fn }
}

// WithBufferSizes overrides the Upgrader's read/write buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(o *Options) { o.ReadBufferSize = read; o.WriteBufferSize = write }
}

// WithOnSessionClose registers a hook invoked when a connection's session is
// torn down.
func WithOnSessionClose(fn func(*base.Session)) Option {
	return func(o *Options) { o.OnSessionClose = fn }
}

// WithLogger attaches a logger used for upgrade/write failures.
func WithLogger(logger jsonrpc.Logger) Option { return func(o *Options) { o.Logger = logger } }
