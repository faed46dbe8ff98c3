package middleware

import (
	"net/http"
	"strconv"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// TrustedHeaderAuth reads the caller identity from a header set by an
// authenticating gateway in front of the service. Only deploy behind a
// proxy that strips the header from client traffic.
type TrustedHeaderAuth struct {
	header   string
	optional bool
}

// NewTrustedHeaderAuth creates a trusted-header identity middleware
func NewTrustedHeaderAuth(header string, optional bool) *TrustedHeaderAuth {
	if header == "" {
		header = "X-Account-ID"
	}
	return &TrustedHeaderAuth{header: header, optional: optional}
}

// Handler wraps an HTTP handler with header-based identity
func (m *TrustedHeaderAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := r.Header.Get(m.header)
		if value == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing identity header")
			return
		}

		accountID, err := strconv.ParseInt(value, 10, 64)
		if err != nil || accountID <= 0 {
			httputil.WriteUnauthorized(w, "invalid identity header")
			return
		}

		ctx := contextkeys.WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
