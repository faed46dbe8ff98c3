package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustedHeaderAuth(t *testing.T) {
	handler, seen := echoAccountHandler()
	mw := NewTrustedHeaderAuth("X-Account-ID", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Account-ID", "42")
	rec := httptest.NewRecorder()
	mw.Handler(handler).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, *seen)

	for name, value := range map[string]string{
		"missing":  "",
		"garbage":  "abc",
		"negative": "-1",
		"zero":     "0",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if value != "" {
				req.Header.Set("X-Account-ID", value)
			}
			rec := httptest.NewRecorder()
			mw.Handler(handler).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
