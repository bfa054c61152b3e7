package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/camera"
	natsutil "github.com/halcyon-security/framewatch/pkg/nats"
)

// CameraStore is the persistence surface the camera handler needs.
// *postgres.Pool satisfies it.
type CameraStore interface {
	ListCameras(ctx context.Context) ([]camera.Config, error)
	CameraConfig(ctx context.Context, cameraID string) (*camera.Config, error)
	UpsertCamera(ctx context.Context, cfg *camera.Config) error
}

// ResetPublisher publishes session reset control messages.
// *nats.Conn satisfies it.
type ResetPublisher interface {
	Publish(subject string, data []byte) error
}

// CameraHandler handles camera configuration HTTP requests
type CameraHandler struct {
	db     CameraStore
	nc     ResetPublisher
	logger zerolog.Logger
}

// NewCameraHandler creates a new CameraHandler
func NewCameraHandler(db CameraStore, nc ResetPublisher, logger zerolog.Logger) *CameraHandler {
	return &CameraHandler{
		db:     db,
		nc:     nc,
		logger: logger.With().Str("handler", "cameras").Logger(),
	}
}

// Routes returns the camera routes
func (h *CameraHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCameras)
	r.Get("/{cameraId}", h.GetCamera)
	r.Put("/{cameraId}", h.UpsertCamera)
	r.Post("/{cameraId}/reset", h.ResetCamera)

	return r
}

// CameraListResponse represents the response for listing cameras
type CameraListResponse struct {
	Cameras       []camera.Config `json:"cameras"`
	Total         int             `json:"total"`
	CorrelationID string          `json:"correlation_id"`
}

// ListCameras handles GET /api/v1/cameras
func (h *CameraHandler) ListCameras(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	cameras, err := h.db.ListCameras(ctx)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to list cameras")
		WriteError(w, http.StatusInternalServerError, "Failed to list cameras", correlationID)
		return
	}

	if cameras == nil {
		cameras = []camera.Config{}
	}

	WriteJSON(w, http.StatusOK, CameraListResponse{
		Cameras:       cameras,
		Total:         len(cameras),
		CorrelationID: correlationID,
	})
}

// CameraDetailResponse represents the response for a single camera
type CameraDetailResponse struct {
	Camera        camera.Config `json:"camera"`
	CorrelationID string        `json:"correlation_id"`
}

// GetCamera handles GET /api/v1/cameras/{cameraId}
func (h *CameraHandler) GetCamera(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)
	cameraID := chi.URLParam(r, "cameraId")

	if cameraID == "" {
		WriteError(w, http.StatusBadRequest, "Camera ID is required", correlationID)
		return
	}

	cfg, err := h.db.CameraConfig(ctx, cameraID)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Str("camera_id", cameraID).Msg("Failed to get camera")
		WriteError(w, http.StatusInternalServerError, "Failed to get camera", correlationID)
		return
	}

	WriteJSON(w, http.StatusOK, CameraDetailResponse{
		Camera:        *cfg,
		CorrelationID: correlationID,
	})
}

// UpsertCamera handles PUT /api/v1/cameras/{cameraId}
func (h *CameraHandler) UpsertCamera(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)
	cameraID := chi.URLParam(r, "cameraId")

	if cameraID == "" {
		WriteError(w, http.StatusBadRequest, "Camera ID is required", correlationID)
		return
	}

	var cfg camera.Config
	if err := DecodeJSON(r, &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid camera configuration", correlationID)
		return
	}
	cfg.CameraID = cameraID

	if err := h.db.UpsertCamera(ctx, &cfg); err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Str("camera_id", cameraID).Msg("Failed to upsert camera")
		WriteError(w, http.StatusInternalServerError, "Failed to save camera", correlationID)
		return
	}

	WriteSuccess(w, http.StatusOK, "Camera saved", cfg, correlationID)
}

// ResetCamera handles POST /api/v1/cameras/{cameraId}/reset. It publishes a
// control message that tells the analyzer to drop the camera's tracking
// state at a session boundary (new uploaded video, stream restart).
func (h *CameraHandler) ResetCamera(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)
	cameraID := chi.URLParam(r, "cameraId")

	if cameraID == "" {
		WriteError(w, http.StatusBadRequest, "Camera ID is required", correlationID)
		return
	}

	if err := h.nc.Publish(natsutil.ResetSubjectPrefix+cameraID, nil); err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Str("camera_id", cameraID).Msg("Failed to publish reset")
		WriteError(w, http.StatusInternalServerError, "Failed to reset camera session", correlationID)
		return
	}

	h.logger.Info().Str("camera_id", cameraID).Str("correlation_id", correlationID).Msg("Camera session reset requested")
	WriteSuccess(w, http.StatusAccepted, "Camera session reset requested", nil, correlationID)
}
