package jsonrpc

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// StreamMessageType enumerates the WebSocket streaming sub-protocol frame
// kinds (spec §3 StreamMessage).
type StreamMessageType string

const (
	StreamStart StreamMessageType = "start"
	StreamChunk StreamMessageType = "chunk"
	StreamDone  StreamMessageType = "done"
	StreamError StreamMessageType = "error"
)

// StreamMeta describes a stream opened with a "start" frame.
type StreamMeta struct {
	Method      string `json:"method"`
	Binary      bool   `json:"binary"`
	Name        string `json:"name,omitempty"`
	Mime        string `json:"mime,omitempty"`
	TotalSize   int64  `json:"totalSize,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	Compression string `json:"compression,omitempty"`
}

// StreamMessage is the text-frame envelope of the WebSocket streaming
// sub-protocol (spec §3/§4.4). Binary payloads never populate Data; they
// travel as a separate Binary WebSocket frame framed by BinaryChunkHeader.
type StreamMessage struct {
	Type    StreamMessageType `json:"type"`
	Id      string            `json:"id"`
	Index   *uint64           `json:"index,omitempty"`
	Meta    *StreamMeta       `json:"meta,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Summary interface{}       `json:"summary,omitempty"`
	Error   *Error            `json:"error,omitempty"`
}

// NewStreamID returns a fresh stream identifier in canonical UUID form.
func NewStreamID() string {
	return uuid.NewString()
}

// BinaryChunkHeaderSize is the fixed size, in bytes, of the header that
// precedes every binary WebSocket chunk frame: 16-byte stream UUID followed
// by an 8-byte big-endian chunk index (spec §3/§6).
const BinaryChunkHeaderSize = 16 + 8

// EncodeBinaryChunkHeader renders the 24-byte header for a binary chunk
// frame. streamID must be a canonical (hyphenated) UUID string.
func EncodeBinaryChunkHeader(streamID string, index uint64) ([]byte, error) {
	id, err := uuid.Parse(streamID)
	if err != nil {
		return nil, fmt.Errorf("invalid stream id %q: %w", streamID, err)
	}
	header := make([]byte, BinaryChunkHeaderSize)
	copy(header[:16], id[:])
	binary.BigEndian.PutUint64(header[16:], index)
	return header, nil
}

// DecodeBinaryChunkHeader parses the 24-byte header from the front of a
// binary WebSocket frame, returning the stream id, chunk index, and the
// remaining payload. It fails closed (returns an error) on frames shorter
// than BinaryChunkHeaderSize, matching spec §8's boundary behavior.
func DecodeBinaryChunkHeader(frame []byte) (streamID string, index uint64, payload []byte, err error) {
	if len(frame) < BinaryChunkHeaderSize {
		return "", 0, nil, fmt.Errorf("binary frame too short: got %d bytes, need at least %d", len(frame), BinaryChunkHeaderSize)
	}
	var id uuid.UUID
	copy(id[:], frame[:16])
	index = binary.BigEndian.Uint64(frame[16:24])
	return id.String(), index, frame[24:], nil
}
