package middleware

import "context"

// Context keys for storing request metadata
type contextKey string

const (
	requestIDKey      contextKey = "request_id"
	remoteIPKey       contextKey = "remote_ip"
	remoteProtocolKey contextKey = "remote_protocol"
)

// RemoteMetadata holds what we know about the client behind any reverse proxy
type RemoteMetadata struct {
	IP       string
	Protocol string
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, requestIDKey)
}

// ContextWithRemote adds remote metadata to the context
func ContextWithRemote(ctx context.Context, metadata RemoteMetadata) context.Context {
	ctx = context.WithValue(ctx, remoteIPKey, metadata.IP)
	ctx = context.WithValue(ctx, remoteProtocolKey, metadata.Protocol)
	return ctx
}

// RemoteFromContext retrieves remote metadata from the context
func RemoteFromContext(ctx context.Context) RemoteMetadata {
	return RemoteMetadata{
		IP:       getStringFromContext(ctx, remoteIPKey),
		Protocol: getStringFromContext(ctx, remoteProtocolKey),
	}
}

func getStringFromContext(ctx context.Context, key contextKey) string {
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}
