package sse

import "fmt"

// frameSSE formats data as one SSE event. id is ignored: the legacy SSE
// transport has one stream per session and no Last-Event-ID resumability
// (spec.md §6, §9 "legacy auxiliary transports keep their original wire
// shape").
func frameSSE(_ string, data []byte) []byte {
	expanded := fmt.Sprintf("event: message\ndata: %s\n", string(data))
	return []byte(expanded)
}
