package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/matchcore/internal/service"
)

// AdminHandler handles operator endpoints.
type AdminHandler struct {
	adminSvc *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc *service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

type dailyLimitRequest struct {
	Open *bool `json:"open"`
}

type pruneRequest struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Users []string `json:"users"`
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

type statusResponse struct {
	Status   string  `json:"status"`
	Source   string  `json:"source,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	PausedAt *string `json:"paused_at,omitempty"`
}

// SetDailyLimit handles POST /admin/products/{product_id}/daily-limit.
func (h *AdminHandler) SetDailyLimit(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req dailyLimitRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Open == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "open is required")
		return
	}

	if err := h.adminSvc.SetDailyLimit(r.Context(), productID, *req.Open); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"product_id": productID, "open": *req.Open})
}

// CancelAll handles POST /admin/cancel-all.
func (h *AdminHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	if err := h.adminSvc.CancelAll(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Prune handles POST /admin/prune. Times are RFC 3339; an empty end means
// now.
func (h *AdminHandler) Prune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "start must be a valid RFC 3339 timestamp")
		return
	}
	var end time.Time
	if req.End != "" {
		if end, err = time.Parse(time.RFC3339, req.End); err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "end must be a valid RFC 3339 timestamp")
			return
		}
	}

	err = h.adminSvc.Prune(r.Context(), service.PruneRequest{Start: start, End: end, Users: req.Users})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Pause handles POST /admin/pause.
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if r.ContentLength != 0 {
		if err := ParseJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "maintenance"
	}
	h.adminSvc.Pause(req.Reason)
	WriteJSON(w, http.StatusOK, h.status())
}

// Resume handles POST /admin/resume.
func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if !h.adminSvc.Resume() {
		WriteError(w, http.StatusConflict, "not_paused", "The service is not paused")
		return
	}
	WriteJSON(w, http.StatusOK, h.status())
}

// Healthz handles GET /healthz. It answers 503 while intake is paused.
func (h *AdminHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := h.status()
	if resp.Status != "ok" {
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) status() statusResponse {
	st := h.adminSvc.Status()
	if !st.Paused {
		return statusResponse{Status: "ok"}
	}
	at := st.PausedAt.UTC().Format(timeFormat)
	return statusResponse{
		Status:   "paused",
		Source:   st.Source,
		Reason:   st.Reason,
		PausedAt: &at,
	}
}
