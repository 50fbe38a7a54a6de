// Package eventid generates the monotonically increasing event ids used by
// the SSE replay buffer: "{sessionId}-{n}" when a session is known, and
// "{n}" when the session id is empty.
package eventid

import (
	"strconv"
	"sync/atomic"
)

// Counter is a single monotonic sequence, safe for concurrent use. The zero
// value starts counting from 1.
type Counter struct {
	n uint64
}

// Raw returns the next raw numeric value in the sequence.
func (c *Counter) Raw() uint64 {
	return atomic.AddUint64(&c.n, 1)
}

// Next advances c and formats the result as an event id for sessionID. An
// empty sessionID yields the bare numeric form.
func (c *Counter) Next(sessionID string) string {
	return Format(sessionID, c.Raw())
}

// Format renders n as an event id for sessionID.
func Format(sessionID string, n uint64) string {
	if sessionID == "" {
		return strconv.FormatUint(n, 10)
	}
	return sessionID + "-" + strconv.FormatUint(n, 10)
}
