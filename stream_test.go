package jsonrpc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeBinaryChunkHeader(t *testing.T) {
	streamID := uuid.NewString()

	testCases := []struct {
		name  string
		index uint64
	}{
		{name: "first chunk", index: 0},
		{name: "mid chunk", index: 7},
		{name: "large index", index: 1 << 40},
	}

	for _, tc := range testCases {
		header, err := EncodeBinaryChunkHeader(streamID, tc.index)
		assert.NoError(t, err, tc.name)
		assert.Equal(t, BinaryChunkHeaderSize, len(header), tc.name)

		frame := append(header, []byte("payload")...)
		gotID, gotIndex, gotPayload, err := DecodeBinaryChunkHeader(frame)
		assert.NoError(t, err, tc.name)
		assert.EqualValues(t, streamID, gotID, tc.name)
		assert.EqualValues(t, tc.index, gotIndex, tc.name)
		assert.EqualValues(t, []byte("payload"), gotPayload, tc.name)
	}
}

func TestEncodeBinaryChunkHeader_InvalidStreamID(t *testing.T) {
	_, err := EncodeBinaryChunkHeader("not-a-uuid", 0)
	assert.Error(t, err)
}

func TestDecodeBinaryChunkHeader_FrameTooShort(t *testing.T) {
	_, _, _, err := DecodeBinaryChunkHeader(make([]byte, BinaryChunkHeaderSize-1))
	assert.Error(t, err)
}
