// Package middleware provides transport-level request middleware. It
// produces the authenticated account ID in the request context; how a
// token maps to an account stays behind the TokenValidator interface.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// TokenValidator maps a bearer token to an account ID
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// TokenValidatorFunc adapts a function to the TokenValidator interface
type TokenValidatorFunc func(ctx context.Context, token string) (int64, error)

func (f TokenValidatorFunc) ValidateToken(ctx context.Context, token string) (int64, error) {
	return f(ctx, token)
}

// AuthMiddleware authenticates requests by bearer token and puts the
// account ID into the request context.
type AuthMiddleware struct {
	validator TokenValidator
	optional  bool // allow unauthenticated requests through
}

// NewAuthMiddleware creates an authentication middleware. With optional
// set, requests without an Authorization header pass through anonymously;
// a present but invalid token is still rejected.
func NewAuthMiddleware(validator TokenValidator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, optional: optional}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		accountID, err := m.validator.ValidateToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
