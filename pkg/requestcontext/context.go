// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	requester := requestcontext.Requester(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRequester(ctx, requester)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "civreg/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	requesterKey   struct{}
	authorityKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequester   = requesterKey{}
	ContextKeyAuthority   = authorityKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Requester retrieves the requesting identity from the context.
// Returns the zero value if not set.
func Requester(ctx context.Context) id.Requester {
	if r, ok := ctx.Value(ContextKeyRequester).(id.Requester); ok {
		return r
	}
	return id.Requester{}
}

// WithRequester injects a requester identity into the context.
func WithRequester(ctx context.Context, r id.Requester) context.Context {
	return context.WithValue(ctx, ContextKeyRequester, r)
}

// CatchmentAuthority retrieves the caller's catchment authority claim.
// Empty means the caller holds no catchment-scoped rights.
func CatchmentAuthority(ctx context.Context) []string {
	if a, ok := ctx.Value(ContextKeyAuthority).([]string); ok {
		return a
	}
	return nil
}

// WithCatchmentAuthority injects a catchment authority claim into the context.
func WithCatchmentAuthority(ctx context.Context, catchments []string) context.Context {
	return context.WithValue(ctx, ContextKeyAuthority, catchments)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts like workers and tests
// that have not pinned a time.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain, and for workers that
// need a consistent time within a batch operation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
