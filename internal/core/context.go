package core

import "context"

type contextKey string

const (
	ctxKeyTransferID contextKey = "transfer_id"
	ctxKeyClientIP   contextKey = "client_ip"
)

// ContextWithTransferID sets the id a transfer started with ctx reports.
// Without it the service generates one.
func ContextWithTransferID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTransferID, id)
}

// TransferIDFromContext extracts the transfer id from context.
func TransferIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTransferID).(string); ok {
		return v
	}
	return ""
}

// ContextWithClientIP adds the client address to context for transfer logs.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext extracts the client address from context.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}
