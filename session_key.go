package jsonrpc

// contextKey is an unexported type so values placed in a context.Context
// by this package can't collide with keys from other packages.
type contextKey int

const sessionContextKey contextKey = iota

// SessionKey is the context.Context key transports use to carry the active
// session (a *base.Session, stored as interface{} to avoid an import cycle
// between the root codec and transport/server/base).
var SessionKey interface{} = sessionContextKey
