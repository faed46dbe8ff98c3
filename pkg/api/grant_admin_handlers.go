package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/audit"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/grants"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// grantAdminHandlers expose custom grant management to admins
type grantAdminHandlers struct {
	deps Deps
}

func (h *grantAdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id:[0-9]+}/grants", h.listGrants).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}/grants", h.createGrant).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}/grants/{key}", h.revokeGrant).Methods("DELETE")
}

func (h *grantAdminHandlers) listGrants(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.deps.Grants.ListActive(r.Context(), accountID, time.Now().UTC())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*grants.Grant{}
	}
	httputil.WriteJSONOrError(w, http.StatusOK, list, "failed to encode grants")
}

func (h *grantAdminHandlers) createGrant(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		PermissionKey string     `json:"permission_key"`
		Value         string     `json:"permission_value"`
		ExpiresAt     *time.Time `json:"expires_at"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PermissionKey, "permission_key") {
		return
	}

	grant := &grants.Grant{
		UserID:        accountID,
		PermissionKey: req.PermissionKey,
		Value:         req.Value,
		ExpiresAt:     req.ExpiresAt,
	}
	if actor := contextkeys.AccountID(r.Context()); actor != 0 {
		grant.GrantedBy = &actor
	}

	if err := h.deps.Grants.Grant(r.Context(), grant); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionGrant, accountID, req.PermissionKey)
	httputil.WriteJSONOrError(w, http.StatusCreated, grant, "failed to encode grant")
}

func (h *grantAdminHandlers) revokeGrant(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	if err := h.deps.Grants.Revoke(r.Context(), accountID, key); err != nil {
		if errors.Is(err, grants.ErrNotFound) {
			httputil.WriteNotFoundError(w, "grant not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionRevoke, accountID, key)
	httputil.WriteNoContent(w)
}

func (h *grantAdminHandlers) recordAudit(r *http.Request, action string, accountID int64, key string) {
	var actor *int64
	if id := contextkeys.AccountID(r.Context()); id != 0 {
		actor = &id
	}
	err := h.deps.Audit.Record(r.Context(), &audit.Entry{
		ActorID:    actor,
		Action:     action,
		Resource:   audit.ResourceGrant,
		ResourceID: fmt.Sprintf("%d:%s", accountID, key),
	})
	if err != nil && h.deps.Logger != nil {
		h.deps.Logger.WithError(err).Warn("audit write failed")
	}
}
