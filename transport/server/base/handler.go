package base

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/internal/collection"
	"github.com/viant/mcpgateway/transport/base"
)

// Handler represents a jsonrpc endpoint: it classifies an inbound frame
// (request/response/notification) and routes it to the owning Session.
type Handler struct {
	Sessions *collection.SyncMap[string, *Session]
	Logger   jsonrpc.Logger // Logger for error messages
}

func (e *Handler) log() jsonrpc.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return jsonrpc.DefaultLogger
}

// requestIntId returns the integer value of id when it was transmitted as a
// JSON number, so the session's outbound id sequence never collides with an
// id the client has already used inbound.
func requestIntId(id jsonrpc.RequestId) (int, bool) {
	switch v := id.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (e *Handler) HandleMessage(ctx context.Context, session *Session, data []byte, output *bytes.Buffer) {
	messageType := base.MessageType(data)
	switch messageType {
	case jsonrpc.MessageTypeRequest:
		request := &jsonrpc.Request{}
		if err := json.Unmarshal(data, request); err != nil {
			session.SendError(ctx, nil, jsonrpc.NewParsingError(nil, err, data))
			return
		}
		if request.Id != nil {
			if intId, ok := requestIntId(request.Id); ok {
				for {
					current := atomic.LoadUint64(&session.RequestIdSeq)
					next := uint64(intId)
					if next <= current {
						break
					}
					if atomic.CompareAndSwapUint64(&session.RequestIdSeq, current, next) {
						break
					}
				}
			}
		}

		response := &jsonrpc.Response{Id: request.Id, Jsonrpc: request.Jsonrpc}
		session.Handler.Serve(ctx, request, response)
		if output != nil {
			if response.Error != nil {
				response.Result = nil
			}
			data, err := json.Marshal(response)
			if err != nil {
				e.log().Errorf("failed to encode response: %v", err)
				return
			}
			output.Write(data)
		} else {
			session.SendResponse(ctx, response)
		}
	case jsonrpc.MessageTypeResponse:
		response := &jsonrpc.Response{}
		if err := json.Unmarshal(data, response); err != nil {
			e.log().Errorf("failed to parse response: %v", err)
			return
		}
		aTrip, err := session.RoundTrips.Match(response.Id)
		if err != nil {
			return
		}
		aTrip.SetResponse(response)
	case jsonrpc.MessageTypeNotification:
		notification := &jsonrpc.Notification{}
		if err := json.Unmarshal(data, notification); err != nil {
			e.log().Errorf("failed to parse notification: %v", err)
			return
		}
		session.Handler.OnNotification(ctx, notification)
	}
}

func NewHandler() *Handler {
	return &Handler{
		Sessions: collection.NewSyncMap[string, *Session](),
		Logger:   jsonrpc.DefaultLogger,
	}
}
