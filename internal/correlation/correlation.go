// Package correlation carries the id that ties together all artifacts
// produced while handling one causal event.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Header is the transport key the id travels under on HTTP hops.
const Header = "X-Correlation-ID"

type ctxKey struct{}

// EnsureID returns id unchanged when non-empty, otherwise a fresh uuid.
func EnsureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// WithID stores the correlation id on the context for log enrichment.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the stored correlation id, or "" when absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
