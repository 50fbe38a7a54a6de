package ws

import "context"

type contextKey string

// connectorKey carries the active *StreamConnector through context.Context so
// a catalog.ToolHandler invoked for a BinaryStreaming/TextStreaming tool can
// retrieve it without changing the ToolHandler signature (spec.md §4.4).
const connectorKey contextKey = "mcpgateway.ws.connector"

// WithConnector returns ctx carrying connector.
func WithConnector(ctx context.Context, connector *StreamConnector) context.Context {
	return context.WithValue(ctx, connectorKey, connector)
}

// ConnectorFromContext retrieves the StreamConnector injected by the
// WebSocket transport, if any. Non-streaming transports never set one.
func ConnectorFromContext(ctx context.Context) (*StreamConnector, bool) {
	v := ctx.Value(connectorKey)
	if v == nil {
		return nil, false
	}
	connector, ok := v.(*StreamConnector)
	return connector, ok
}
