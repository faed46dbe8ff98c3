package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/audit"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// banAdminHandlers expose ban management to admins
type banAdminHandlers struct {
	deps Deps
}

func (h *banAdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id:[0-9]+}/bans", h.listBans).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}/bans", h.createBan).Methods("POST")
	router.HandleFunc("/bans/{banId:[0-9]+}", h.liftBan).Methods("DELETE")
}

func (h *banAdminHandlers) listBans(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.deps.Bans.ListForAccount(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*bans.Ban{}
	}
	httputil.WriteJSONOrError(w, http.StatusOK, list, "failed to encode bans")
}

func (h *banAdminHandlers) createBan(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Reason        string `json:"reason"`
		Type          string `json:"type"`
		DurationHours *int   `json:"duration_hours"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ban := &bans.Ban{
		UserID:        accountID,
		Reason:        req.Reason,
		Type:          bans.Type(req.Type),
		DurationHours: req.DurationHours,
	}
	if err := h.deps.Bans.CreateBan(r.Context(), ban); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	h.recordAudit(r, audit.ActionBan, ban.ID, map[string]interface{}{
		"account_id": accountID,
		"type":       req.Type,
	})
	httputil.WriteJSONOrError(w, http.StatusCreated, ban, "failed to encode ban")
}

func (h *banAdminHandlers) liftBan(w http.ResponseWriter, r *http.Request) {
	banID, ok := httputil.ParsePathInt64OrError(w, r, "banId")
	if !ok {
		return
	}

	if err := h.deps.Bans.LiftBan(r.Context(), banID); err != nil {
		if errors.Is(err, bans.ErrNotFound) {
			httputil.WriteNotFoundError(w, "active ban not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionUnban, banID, nil)
	httputil.WriteNoContent(w)
}

func (h *banAdminHandlers) recordAudit(r *http.Request, action string, banID int64, detail map[string]interface{}) {
	var actor *int64
	if id := contextkeys.AccountID(r.Context()); id != 0 {
		actor = &id
	}
	err := h.deps.Audit.Record(r.Context(), &audit.Entry{
		ActorID:    actor,
		Action:     action,
		Resource:   audit.ResourceBan,
		ResourceID: fmt.Sprintf("%d", banID),
		Detail:     detail,
	})
	if err != nil && h.deps.Logger != nil {
		h.deps.Logger.WithError(err).Warn("audit write failed")
	}
}
