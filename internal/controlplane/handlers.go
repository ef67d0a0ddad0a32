package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/technosupport/cvpipeline/internal/registry"
)

// Handler is the HTTP framing layer over a CameraManager: it decodes
// requests, calls the core, and maps the result (or error) onto the
// status codes in spec §6's operation table.
type Handler struct {
	mgr *CameraManager
}

func NewHandler(mgr *CameraManager) *Handler {
	return &Handler{mgr: mgr}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a core error to the HTTP status spec §6 assigns it:
// 404 unknown camera, 401 unentitled, 400 malformed/unknown-type/missing
// dependency, 500 anything else.
func statusFor(err error) int {
	var notEntitled *ErrNotEntitled
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCameraNotRunning), errors.Is(err, ErrNoTelemetry):
		return http.StatusNotFound
	case errors.As(err, &notEntitled):
		return http.StatusUnauthorized
	case errors.Is(err, registry.ErrUnknownType), errors.Is(err, registry.ErrMissingDependency):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

// GET /api/v1/cameras
func (h *Handler) ListCameras(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mgr.ListCameras())
}

// POST /api/v1/cameras
func (h *Handler) CreateCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	summary, err := h.mgr.CreateCamera(r.Context(), req.ID, req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, summary)
}

// PATCH /api/v1/cameras/{id}
func (h *Handler) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name    *string `json:"name"`
		Running *bool   `json:"running"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.mgr.UpdateCamera(r.Context(), id, req.Name, req.Running); err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DELETE /api/v1/cameras/{id}
func (h *Handler) DeleteCamera(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.mgr.DeleteCamera(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type attachRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

// POST /api/v1/cameras/{id}/source
func (h *Handler) AttachSource(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.mgr.AttachSource(r.Context(), cameraID, req.Type, req.ID, req.Config); err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/cameras/{id}/processors
func (h *Handler) AttachProcessor(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.mgr.AttachProcessor(r.Context(), cameraID, req.Type, req.ID, req.Config); err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/cameras/{id}/sinks
func (h *Handler) AttachSink(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.mgr.AttachSink(r.Context(), cameraID, req.Type, req.ID, req.Config); err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func qualityParam(r *http.Request) int {
	q, err := strconv.Atoi(r.URL.Query().Get("quality"))
	if err != nil || q <= 0 {
		return 85
	}
	return q
}

// GET /api/v1/cameras/{id}/frame
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	jpg, err := h.mgr.GetFrame(r.Context(), cameraID, qualityParam(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}

// GET /api/v1/cameras/{id}/frame/raw
func (h *Handler) GetRawFrame(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	jpg, err := h.mgr.GetRawFrame(r.Context(), cameraID, qualityParam(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}

// GET /api/v1/cameras/{id}/analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	summary, err := h.mgr.Analytics(r.Context(), cameraID)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func parseTimeParam(r *http.Request, name string, fallback time.Time) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return fallback
}

// GET /api/v1/cameras/{id}/time_series
func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	to := parseTimeParam(r, "to", time.Now())
	from := parseTimeParam(r, "from", to.Add(-time.Hour))

	points, err := h.mgr.TimeSeries(r.Context(), cameraID, from, to, r.URL.Query().Get("event_type"), r.URL.Query().Get("bucket_size"))
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// GET /api/v1/cameras/{id}/dwell_times
func (h *Handler) DwellTime(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	to := parseTimeParam(r, "end", time.Now())
	from := parseTimeParam(r, "start", time.Time{})
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	dwell, err := h.mgr.DwellTime(r.Context(), cameraID, from, to, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dwell)
}
