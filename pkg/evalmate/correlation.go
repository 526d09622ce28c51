package evalmate

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// WithCorrelation attaches a correlation identifier to the context so every
// request issued under it carries the same X-Correlation-ID header.
func WithCorrelation(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, strings.TrimSpace(id))
}

// correlationID returns the bound identifier, minting one per request when
// the context carries none.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if value := ctx.Value(correlationKey); value != nil {
			if id, ok := value.(string); ok && id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
