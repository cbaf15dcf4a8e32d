// Package requesttime pins a single timestamp and request ID per request so
// every store write within one operation carries the same time-ordered
// identifier.
package requesttime

import (
	"net/http"

	"github.com/google/uuid"

	"civreg/pkg/requestcontext"
)

// Middleware injects the request time and a request ID into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), requestcontext.Now(r.Context()))
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
