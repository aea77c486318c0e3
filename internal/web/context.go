package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/jsonlines/internal/core"
)

// WithRequestMetadata adds the client address to context for transfer logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, clientIP(r))
}

// clientIP returns RemoteAddr without its port. TrustedRealIP has already
// replaced it with the forwarded address for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
