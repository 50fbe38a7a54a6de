package auth

import "context"

type contextKey string

const grantKey contextKey = "mcpgateway.auth.grant"

// WithGrant attaches the authenticated BFF grant to ctx, the same
// context-carrying pattern jsonrpc.SessionKey uses for *base.Session.
func WithGrant(ctx context.Context, grant *Grant) context.Context {
	return context.WithValue(ctx, grantKey, grant)
}

// GrantFromContext retrieves the grant attached by WithGrant, if any.
func GrantFromContext(ctx context.Context) (*Grant, bool) {
	v := ctx.Value(grantKey)
	if v == nil {
		return nil, false
	}
	grant, ok := v.(*Grant)
	return grant, ok
}
