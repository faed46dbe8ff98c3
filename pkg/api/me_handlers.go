package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/entitlements"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/grants"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/subscriptions"
)

// meHandlers serve the authenticated account's own entitlement state
type meHandlers struct {
	deps Deps
}

func (h *meHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me/entitlements", h.getEntitlements).Methods("GET")
	router.HandleFunc("/me/subscription", h.getSubscription).Methods("GET")
}

// entitlementsResponse is the resolved snapshot plus active grants
type entitlementsResponse struct {
	Role               string            `json:"role"`
	Rank               int               `json:"rank"`
	Features           roles.FeatureTree `json:"features"`
	Limits             roles.Limits      `json:"limits"`
	Grants             []*grants.Grant   `json:"grants"`
	SubscriptionActive bool              `json:"subscription_active"`
}

func (h *meHandlers) getEntitlements(w http.ResponseWriter, r *http.Request) {
	accountID := contextkeys.AccountID(r.Context())
	if accountID == 0 {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	role, err := h.deps.Resolver.Resolve(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, entitlements.ErrNotFound) {
			httputil.WriteNotFoundError(w, "account not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	activeGrants, err := h.deps.Grants.ListActive(r.Context(), accountID, time.Now().UTC())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if activeGrants == nil {
		activeGrants = []*grants.Grant{}
	}

	subActive, err := h.deps.SubManager.IsActive(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, entitlementsResponse{
		Role:               role.Name,
		Rank:               role.Rank,
		Features:           role.Features,
		Limits:             role.Limits,
		Grants:             activeGrants,
		SubscriptionActive: subActive,
	}, "failed to encode entitlements")
}

func (h *meHandlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := contextkeys.AccountID(r.Context())
	if accountID == 0 {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	sub, err := h.deps.Subscriptions.GetActiveForAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			httputil.WriteNotFoundError(w, "no active subscription")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, sub, "failed to encode subscription")
}
