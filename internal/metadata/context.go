// Package metadata carries per-request metadata through the Context so the
// composition root and the service layer stay decoupled.
package metadata

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// RequestMetadata holds caller-supplied request context: the idempotency key
// used by CreateOrder replays and the id of the acting user.
type RequestMetadata struct {
	IdempotencyKey string
	ActorID        string
}

// IsZero reports whether the metadata carries nothing.
func (m RequestMetadata) IsZero() bool {
	return m.IdempotencyKey == "" && m.ActorID == ""
}

// ActorUUID parses ActorID as a UUID.
func (m RequestMetadata) ActorUUID() (uuid.UUID, bool) {
	if strings.TrimSpace(m.ActorID) == "" {
		return uuid.Nil, false
	}
	value, err := uuid.Parse(m.ActorID)
	if err != nil {
		return uuid.Nil, false
	}
	return value, true
}

type ctxKey struct{}

// Inject stores metadata in the context. A zero value is not stored.
func Inject(ctx context.Context, meta RequestMetadata) context.Context {
	if meta.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext reads metadata injected upstream.
func FromContext(ctx context.Context) (RequestMetadata, bool) {
	if ctx == nil {
		return RequestMetadata{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(RequestMetadata)
	return meta, ok
}

// IdempotencyKeyFromContext returns the trimmed idempotency key, if any.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	meta, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	key := strings.TrimSpace(meta.IdempotencyKey)
	return key, key != ""
}
