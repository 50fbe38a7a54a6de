package base

// RemovalPolicy determines when a session should be removed from the session store.
type RemovalPolicy int

const (
	// RemovalOnDisconnect removes session as soon as streaming connection closes.
	// Useful for strict cleanup behavior.
	RemovalOnDisconnect RemovalPolicy = iota
	// RemovalAfterGrace keeps session for a grace period to allow quick reconnects.
	RemovalAfterGrace
	// RemovalAfterIdle removes session after it has been idle for a configured TTL.
	RemovalAfterIdle
	// RemovalManual leaves removal entirely to explicit DELETE or external cleanup.
	RemovalManual
)

// OverflowPolicy determines what happens when a session's replay buffer is
// full and a new event is appended (spec §3 MessageBuffer, §8 overflow
// boundary case).
type OverflowPolicy int

const (
	// OverflowDrop silently discards the oldest buffered event to make room
	// for the new one. This is the default.
	OverflowDrop OverflowPolicy = iota
	// OverflowMark behaves like OverflowDrop but additionally latches
	// Session.Overflowed() so a resumed GET stream can decide to tear down
	// and force the client to reinitialize rather than replay a gapped feed.
	OverflowMark
)
