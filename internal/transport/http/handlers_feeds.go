package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailmark/pkg/platform/httputil"
)

func (h *Handler) handlePlaceLog(w http.ResponseWriter, r *http.Request) {
	public, err := publicFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log, err := h.checkins.PlaceLog(r.Context(), chi.URLParam(r, "placeID"), public)
	if err != nil {
		h.logServerError(r, "place log", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handlePlaceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.checkins.PlaceStats(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		h.logServerError(r, "place stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handlePlaceUsers(w http.ResponseWriter, r *http.Request) {
	rollups, err := h.checkins.PlaceUsers(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		h.logServerError(r, "place users", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rollups)
}

func (h *Handler) handleListLog(w http.ResponseWriter, r *http.Request) {
	public, err := publicFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log, err := h.checkins.ListLog(r.Context(), chi.URLParam(r, "listID"), public)
	if err != nil {
		h.logServerError(r, "list log", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleListStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.checkins.ListStats(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		h.logServerError(r, "list stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	rollups, err := h.checkins.ListUsers(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		h.logServerError(r, "list users", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rollups)
}

func (h *Handler) handleListJoin(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.JoinList(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		h.logServerError(r, "join list", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListLeave(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.LeaveList(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		h.logServerError(r, "leave list", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}
