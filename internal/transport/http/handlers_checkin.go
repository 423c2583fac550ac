package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trailmark/internal/checkin/models"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/httputil"
)

type createCheckinRequest struct {
	Timestamp *time.Time          `json:"timestamp"`
	Location  *models.Coordinates `json:"location"`
	Public    bool                `json:"public"`
	PlaceID   string              `json:"placeId"`
	Comment   *string             `json:"comment"`
	PhotoRef  *string             `json:"photoRef"`
}

func (h *Handler) handleCheckinCreate(w http.ResponseWriter, r *http.Request) {
	var req createCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	if req.Location == nil {
		httputil.WriteError(w, dErrors.NewValidation(map[string][]string{
			"location": {"location is required"},
		}))
		return
	}

	draft := models.Draft{
		Location: *req.Location,
		Public:   req.Public,
		PlaceID:  req.PlaceID,
		Comment:  req.Comment,
		PhotoRef: req.PhotoRef,
	}
	if req.Timestamp != nil {
		draft.Timestamp = *req.Timestamp
	}

	checkin, err := h.checkins.Create(r.Context(), draft)
	if err != nil {
		h.logServerError(r, "create check-in", err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/checkins/"+checkin.ID)
	httputil.WriteJSON(w, http.StatusCreated, checkin)
}

func (h *Handler) handleCheckinGet(w http.ResponseWriter, r *http.Request) {
	checkin, err := h.checkins.Get(r.Context(), chi.URLParam(r, "checkinID"))
	if err != nil {
		h.logServerError(r, "get check-in", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkin)
}

type updateCheckinRequest struct {
	Public   *bool   `json:"public"`
	Comment  *string `json:"comment"`
	PhotoRef *string `json:"photoRef"`
}

func (h *Handler) handleCheckinUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	update := models.Update{Public: req.Public, Comment: req.Comment, PhotoRef: req.PhotoRef}
	checkin, err := h.checkins.Update(r.Context(), chi.URLParam(r, "checkinID"), update)
	if err != nil {
		h.logServerError(r, "update check-in", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkin)
}

func (h *Handler) handleCheckinDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.checkins.Delete(r.Context(), chi.URLParam(r, "checkinID")); err != nil {
		h.logServerError(r, "delete check-in", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publicFilter parses the optional ?public=true|false query parameter.
func publicFilter(r *http.Request) (*bool, error) {
	raw := r.URL.Query().Get("public")
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "public must be true or false")
	}
	return &value, nil
}

// logServerError records 5xx-class causes with full detail; 4xx-class
// failures carry their own description to the caller and stay unlogged.
func (h *Handler) logServerError(r *http.Request, op string, err error) {
	if httputil.ToHTTPStatus(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(r.Context(), op+" failed",
		"path", r.URL.Path,
		"error", err,
	)
}
