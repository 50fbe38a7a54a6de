package jsonrpc

// Version is the JSON-RPC protocol version.
const Version = "2.0"

const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Transport/auth error band, surfaced before dispatch (HTTP 400/401/403).
const (
	TransportError     = -32000
	ProtocolVersionError = -32001
	AuthorizationError = -32002
)

// DefaultProtocolVersion is reported by "initialize" unless overridden via
// the MCP_PROTOCOL_VERSION configuration.
const DefaultProtocolVersion = "2025-11-25"

// SupportedProtocolVersions are the header values accepted on transports
// that negotiate MCP-Protocol-Version.
var SupportedProtocolVersions = []string{"2025-11-25", "2025-06-18", "2025-03-26"}

// LegacyProtocolVersion is assumed when a request omits MCP-Protocol-Version.
const LegacyProtocolVersion = "2025-03-26"
