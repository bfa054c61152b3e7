// Package handler provides HTTP handlers for the framewatch API gateway
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/postgres"
)

// AlertStore is the persistence surface the alert handler needs.
// *postgres.Pool satisfies it.
type AlertStore interface {
	ListAlerts(ctx context.Context, filter postgres.AlertFilter) ([]messages.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*messages.Alert, error)
	ResolveAlert(ctx context.Context, alertID string) (bool, error)
	GetAlertStats(ctx context.Context) (*postgres.AlertStats, error)
}

// AlertHandler handles alert-related HTTP requests
type AlertHandler struct {
	db     AlertStore
	logger zerolog.Logger
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(db AlertStore, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		db:     db,
		logger: logger.With().Str("handler", "alerts").Logger(),
	}
}

// Routes returns the alert routes
func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListAlerts)
	r.Get("/recent", h.RecentAlerts)
	r.Get("/stats", h.GetStats)
	r.Get("/{alertId}", h.GetAlert)
	r.Post("/{alertId}/resolve", h.ResolveAlert)

	return r
}

// AlertListResponse represents the response for listing alerts
type AlertListResponse struct {
	Alerts        []messages.Alert `json:"alerts"`
	Total         int              `json:"total"`
	Limit         int              `json:"limit"`
	Offset        int              `json:"offset"`
	CorrelationID string           `json:"correlation_id"`
}

func alertFilterFromQuery(r *http.Request) postgres.AlertFilter {
	filter := postgres.AlertFilter{
		CameraID: r.URL.Query().Get("camera_id"),
		Type:     r.URL.Query().Get("type"),
		Severity: r.URL.Query().Get("severity"),
		Status:   r.URL.Query().Get("status"),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		if since, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = &since
		}
	}

	return filter
}

// ListAlerts handles GET /api/v1/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	filter := alertFilterFromQuery(r)

	alerts, err := h.db.ListAlerts(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to list alerts")
		WriteError(w, http.StatusInternalServerError, "Failed to list alerts", correlationID)
		return
	}

	if alerts == nil {
		alerts = []messages.Alert{}
	}

	WriteJSON(w, http.StatusOK, AlertListResponse{
		Alerts:        alerts,
		Total:         len(alerts),
		Limit:         filter.Limit,
		Offset:        filter.Offset,
		CorrelationID: correlationID,
	})
}

// RecentAlerts handles GET /api/v1/alerts/recent. It is ListAlerts with a
// default trailing window for dashboard polling.
func (h *AlertHandler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	filter := alertFilterFromQuery(r)
	if filter.Since == nil {
		since := time.Now().Add(-15 * time.Minute)
		filter.Since = &since
	}

	alerts, err := h.db.ListAlerts(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to list recent alerts")
		WriteError(w, http.StatusInternalServerError, "Failed to list recent alerts", correlationID)
		return
	}

	if alerts == nil {
		alerts = []messages.Alert{}
	}

	WriteJSON(w, http.StatusOK, AlertListResponse{
		Alerts:        alerts,
		Total:         len(alerts),
		Limit:         filter.Limit,
		Offset:        filter.Offset,
		CorrelationID: correlationID,
	})
}

// AlertDetailResponse represents the detailed response for a single alert
type AlertDetailResponse struct {
	Alert         messages.Alert `json:"alert"`
	CorrelationID string         `json:"correlation_id"`
}

// GetAlert handles GET /api/v1/alerts/{alertId}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)
	alertID := chi.URLParam(r, "alertId")

	if alertID == "" {
		WriteError(w, http.StatusBadRequest, "Alert ID is required", correlationID)
		return
	}

	alert, err := h.db.GetAlert(ctx, alertID)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Str("alert_id", alertID).Msg("Failed to get alert")
		WriteError(w, http.StatusInternalServerError, "Failed to get alert", correlationID)
		return
	}

	if alert == nil {
		WriteError(w, http.StatusNotFound, "Alert not found", correlationID)
		return
	}

	WriteJSON(w, http.StatusOK, AlertDetailResponse{
		Alert:         *alert,
		CorrelationID: correlationID,
	})
}

// ResolveAlert handles POST /api/v1/alerts/{alertId}/resolve
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)
	alertID := chi.URLParam(r, "alertId")

	if alertID == "" {
		WriteError(w, http.StatusBadRequest, "Alert ID is required", correlationID)
		return
	}

	resolved, err := h.db.ResolveAlert(ctx, alertID)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Str("alert_id", alertID).Msg("Failed to resolve alert")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve alert", correlationID)
		return
	}

	if !resolved {
		WriteError(w, http.StatusConflict, "Alert not found or already resolved", correlationID)
		return
	}

	WriteSuccess(w, http.StatusOK, "Alert resolved", nil, correlationID)
}

// StatsResponse represents the alert statistics response
type StatsResponse struct {
	Stats         postgres.AlertStats `json:"stats"`
	CorrelationID string              `json:"correlation_id"`
}

// GetStats handles GET /api/v1/alerts/stats
func (h *AlertHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := GetCorrelationID(ctx)

	stats, err := h.db.GetAlertStats(ctx)
	if err != nil {
		h.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to get alert stats")
		WriteError(w, http.StatusInternalServerError, "Failed to get alert stats", correlationID)
		return
	}

	WriteJSON(w, http.StatusOK, StatsResponse{
		Stats:         *stats,
		CorrelationID: correlationID,
	})
}
