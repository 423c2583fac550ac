package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/httputil"
)

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "user id must be numeric")
	}
	return id, nil
}

func (h *Handler) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.users.GetProfile(r.Context(), id)
	if err != nil {
		h.logServerError(r, "user profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUserLog(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log, err := h.users.Log(r.Context(), id)
	if err != nil {
		h.logServerError(r, "user log", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.users.Stats(r.Context(), id)
	if err != nil {
		h.logServerError(r, "user stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

type migrateRequest struct {
	TargetID int64 `json:"targetId"`
}

func (h *Handler) handleUserMigrate(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	if req.TargetID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "targetId is required"))
		return
	}

	user, err := h.users.Migrate(r.Context(), id, req.TargetID)
	if err != nil {
		h.logServerError(r, "migrate user", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}
