package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/audit"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

// roleAdminHandlers expose role registry CRUD to admins
type roleAdminHandlers struct {
	deps Deps
}

func (h *roleAdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.listRoles).Methods("GET")
	router.HandleFunc("/roles", h.createRole).Methods("POST")
	router.HandleFunc("/roles/{id:[0-9]+}", h.getRole).Methods("GET")
	router.HandleFunc("/roles/{id:[0-9]+}", h.updateRole).Methods("PUT")
	router.HandleFunc("/roles/{id:[0-9]+}/active", h.setActive).Methods("PUT")
}

func (h *roleAdminHandlers) actor(r *http.Request) *int64 {
	id := contextkeys.AccountID(r.Context())
	if id == 0 {
		return nil
	}
	return &id
}

func (h *roleAdminHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := httputil.ParseQueryBool(r, "active", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	list, err := h.deps.Roles.ListRoles(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, list, "failed to encode roles")
}

func (h *roleAdminHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.deps.Roles.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, role, "failed to encode role")
}

func (h *roleAdminHandlers) createRole(w http.ResponseWriter, r *http.Request) {
	var role roles.Role
	if !httputil.ParseJSONOrError(w, r, &role) {
		return
	}
	if !httputil.RequireNonEmpty(w, role.Name, "name") {
		return
	}

	if err := h.deps.Roles.CreateRole(r.Context(), &role); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionCreate, role.ID, map[string]interface{}{"name": role.Name})
	httputil.WriteJSONOrError(w, http.StatusCreated, role, "failed to encode role")
}

func (h *roleAdminHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var role roles.Role
	if !httputil.ParseJSONOrError(w, r, &role) {
		return
	}
	role.ID = id

	if err := h.deps.Roles.UpdateRole(r.Context(), &role); err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionUpdate, id, map[string]interface{}{"name": role.Name})
	httputil.WriteJSONOrError(w, http.StatusOK, role, "failed to encode role")
}

func (h *roleAdminHandlers) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Roles.SetActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			httputil.WriteNotFoundError(w, "role not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionUpdate, id, map[string]interface{}{"active": req.Active})
	httputil.WriteNoContent(w)
}

func (h *roleAdminHandlers) recordAudit(r *http.Request, action string, roleID int64, detail map[string]interface{}) {
	err := h.deps.Audit.Record(r.Context(), &audit.Entry{
		ActorID:    h.actor(r),
		Action:     action,
		Resource:   audit.ResourceRole,
		ResourceID: fmt.Sprintf("%d", roleID),
		Detail:     detail,
	})
	if err != nil && h.deps.Logger != nil {
		h.deps.Logger.WithError(err).Warn("audit write failed")
	}
}
