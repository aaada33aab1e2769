package authflow

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type flowSessionContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Flow controllers
// forward it to the remote account service and stamp it on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. The HTTP
// account service client forwards it on every remote call.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithFlowSession overrides the flow-session identifier used for audit
// events and vault keys. Controllers normally mint their own.
func WithFlowSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, flowSessionContextKey{}, session)
}

// ClientIPFromContext returns the IP attached by [WithClientIP], or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// UserAgentFromContext returns the value attached by [WithUserAgent], or "".
func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func flowSessionFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	session, _ := ctx.Value(flowSessionContextKey{}).(string)
	if session == "" {
		return "", false
	}

	return session, true
}
