package stellarauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses
// it for token binding, lockout audit records, and security events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used for
// token binding: in strict mode a token presented from a different
// client context is rejected as possible theft.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
