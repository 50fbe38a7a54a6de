package jsonrpc

// NewParsingError creates a new parsing error
func NewParsingError(id RequestId, err error, data []byte) *Error {
	return NewError(id, NewInnerError(ParseError, err.Error(), data))
}

// NewInternalError creates a new internal error
func NewInternalError(id RequestId, err error, data []byte) *Error {
	return NewError(id, NewInnerError(InternalError, err.Error(), data))
}

// NewInvalidRequest creates a new invalid request error
func NewInvalidRequest(id RequestId, err error, data []byte) *Error {
	return NewError(id, NewInnerError(InvalidRequest, err.Error(), data))
}

// NewInvalidParams creates a new invalid params error
func NewInvalidParams(id RequestId, err error, data []byte) *Error {
	return NewError(id, NewInnerError(InvalidParams, err.Error(), data))
}

// NewMethodNotFound creates a new method not found error
func NewMethodNotFound(id RequestId, err error, data []byte) *Error {
	return NewError(id, NewInnerError(MethodNotFound, err.Error(), data))
}

// NewTransportError creates a generic transport-layer error (-32000).
func NewTransportError(id RequestId, err error) *Error {
	return NewError(id, NewInnerError(TransportError, err.Error(), nil))
}

// NewVersionError creates a protocol-version mismatch error (-32001) whose
// data lists the versions the transport accepts.
func NewVersionError(id RequestId, message string, supported []string) *Error {
	return NewError(id, NewInnerError(ProtocolVersionError, message, map[string]interface{}{
		"supportedVersions": supported,
	}))
}

// NewAuthorizationError creates an authorization failure (-32002), raised at
// the transport layer before dispatch (e.g. a missing or invalid auth
// cookie). Errors returned by a Lifecycle Hook are mapped to -32603 instead.
func NewAuthorizationError(id RequestId, message string) *Error {
	return NewError(id, NewInnerError(AuthorizationError, message, nil))
}
