// Package auth extracts requester identity and catchment authority from
// bearer tokens and places them in the request context for services.
package auth

import (
	"net/http"
	"strings"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// Claims are the token claims the registry consumes.
type Claims struct {
	FacilityID string
	ProviderID string
	AdminID    string
	Catchments []string
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Middleware authenticates requests and injects requester identity and
// catchment authority into the context. Requests without a bearer token are
// rejected.
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithRequester(r.Context(), id.Requester{
				FacilityID: claims.FacilityID,
				ProviderID: claims.ProviderID,
				AdminID:    claims.AdminID,
			})
			ctx = requestcontext.WithCatchmentAuthority(ctx, claims.Catchments)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
