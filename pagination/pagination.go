// Package pagination implements the opaque offset cursor used by every
// catalog listing method (spec.md §4.7): base64(JSON {"offset": int}).
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// DefaultPageSize is used when the caller passes a non-positive pageSize.
const DefaultPageSize = 100

type cursorPayload struct {
	Offset int `json:"offset"`
}

// Encode renders offset as an opaque cursor string.
func Encode(offset int) string {
	data, _ := json.Marshal(cursorPayload{Offset: offset})
	return base64.URLEncoding.EncodeToString(data)
}

// Decode parses cursor back into an offset. An empty, malformed, or
// undecodable cursor decodes to offset 0, per spec.md §3 ("invalid cursors
// are treated as offset=0").
func Decode(cursor string) int {
	if cursor == "" {
		return 0
	}
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Offset < 0 {
		return 0
	}
	return payload.Offset
}

// Page is a generic paginated slice of T, mirroring the dispatcher's
// tools/list-style {items, nextCursor?} shape.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Paginate slices items starting at the offset encoded by cursor, returning
// at most pageSize entries and a nextCursor iff the window did not reach
// the end of items. pageSize <= 0 uses DefaultPageSize; it is further
// capped to len(items).
func Paginate[T any](items []T, cursor string, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset := Decode(cursor)
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}
	page := Page[T]{Items: items[offset:end]}
	if end < len(items) {
		page.NextCursor = Encode(end)
	}
	return page
}
