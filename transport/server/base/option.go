package base

import jsonrpc "github.com/viant/mcpgateway"

// Option represents option
type Option func(s *Session)

// WithFramer sets the wire framer used by SendData (plain NDJSON, SSE, ...).
func WithFramer(framer FrameMessage) Option {
	return func(s *Session) {
		s.framer = framer
	}
}

// WithEventBuffer overrides the default replay buffer size (spec.md §3
// MessageBuffer, default 100).
func WithEventBuffer(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithOverflowPolicy sets the buffer's overflow behavior.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(s *Session) {
		s.overflowPolicy = p
	}
}

// WithSSE returns an option that leaves the session unchanged; the SSE
// framer is installed separately via WithFramer. It is kept as a distinct
// option so callers that toggle SSE mode don't need to know the framer's
// implementation.
func WithSSE() Option {
	return func(s *Session) {}
}

// WithLogger attaches a logger used for write/marshal failures.
func WithLogger(logger jsonrpc.Logger) Option {
	return func(s *Session) {
		s.Logger = logger
	}
}
