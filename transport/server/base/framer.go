package base

// FrameMessage wraps a message before it is written to the client. id is
// the event id assigned to this message when the session buffers events
// (empty otherwise); frame implementations that don't need replay ids
// (plain NDJSON) simply ignore it.
type FrameMessage func(id string, data []byte) []byte
