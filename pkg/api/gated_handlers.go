package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/entitlements"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// gatedHandlers are the feature- and limit-guarded product routes. The
// handlers themselves are thin; the interesting part is the guard chain
// in front of them.
type gatedHandlers struct {
	deps   Deps
	guards *entitlements.Middleware
}

func (h *gatedHandlers) RegisterRoutes(router *mux.Router) {
	// publishing requires the feature and a live subscription
	publish := router.PathPrefix("/scripts").Subrouter()
	publish.Use(h.guards.RequireActiveSubscription())
	publish.Use(h.guards.RequireFeature("scripts.can_publish"))
	publish.HandleFunc("", h.publishScript).Methods("POST")

	// key issuance is capped by the account's plan; usage comes from the
	// Redis counters when configured, otherwise the gate sees zero usage
	keyUsage := entitlements.UsageFunc(func(ctx context.Context, accountID int64) (int, error) {
		return 0, nil
	})
	if h.deps.Usage != nil {
		keyUsage = h.deps.Usage.Reader("max_active_keys")
	}
	keys := router.PathPrefix("/keys").Subrouter()
	keys.Use(h.guards.RequireLimit("max_active_keys", keyUsage))
	keys.HandleFunc("", h.issueKey).Methods("POST")
}

func (h *gatedHandlers) publishScript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	httputil.WriteJSONOrError(w, http.StatusAccepted, httputil.SuccessResponse{
		Success: true,
		Message: "script accepted for publishing",
	}, "failed to encode response")
}

func (h *gatedHandlers) issueKey(w http.ResponseWriter, r *http.Request) {
	accountID := contextkeys.AccountID(r.Context())

	if h.deps.Usage != nil {
		if _, err := h.deps.Usage.Increment(r.Context(), accountID, "max_active_keys"); err != nil {
			// counting is best-effort; the next gate check re-reads it
			h.deps.Logger.WithError(err).Warn("failed to increment key usage")
		}
	}

	httputil.WriteJSONOrError(w, http.StatusCreated, httputil.SuccessResponse{
		Success: true,
		Message: "key issued",
	}, "failed to encode response")
}
