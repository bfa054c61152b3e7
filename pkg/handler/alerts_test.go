package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/postgres"
)

// stubAlertStore records the last filter it saw and serves canned alerts.
type stubAlertStore struct {
	alerts     []messages.Alert
	lastFilter postgres.AlertFilter
	resolved   map[string]bool
	err        error
}

func (s *stubAlertStore) ListAlerts(_ context.Context, filter postgres.AlertFilter) ([]messages.Alert, error) {
	s.lastFilter = filter
	return s.alerts, s.err
}

func (s *stubAlertStore) GetAlert(_ context.Context, alertID string) (*messages.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.alerts {
		if s.alerts[i].AlertID == alertID {
			return &s.alerts[i], nil
		}
	}
	return nil, nil
}

func (s *stubAlertStore) ResolveAlert(_ context.Context, alertID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.resolved[alertID] {
		return false, nil
	}
	if s.resolved == nil {
		s.resolved = map[string]bool{}
	}
	s.resolved[alertID] = true
	return true, nil
}

func (s *stubAlertStore) GetAlertStats(context.Context) (*postgres.AlertStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &postgres.AlertStats{Total: len(s.alerts)}, nil
}

func serveAlerts(store *stubAlertStore, method, target string) *httptest.ResponseRecorder {
	h := NewAlertHandler(store, zerolog.Nop())
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(WithCorrelationID(req.Context(), "corr-test"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestListAlertsAppliesQueryFilter(t *testing.T) {
	store := &stubAlertStore{alerts: []messages.Alert{
		{AlertID: "a1", CameraID: "cam-01", Type: messages.TypeWeaponDetected, Severity: messages.SeverityHigh},
	}}

	rec := serveAlerts(store, http.MethodGet,
		"/?camera_id=cam-01&severity=high&status=pending&limit=25&offset=5")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "cam-01", store.lastFilter.CameraID)
	assert.Equal(t, "high", store.lastFilter.Severity)
	assert.Equal(t, "pending", store.lastFilter.Status)
	assert.Equal(t, 25, store.lastFilter.Limit)
	assert.Equal(t, 5, store.lastFilter.Offset)

	var resp AlertListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "corr-test", resp.CorrelationID)
}

func TestListAlertsDefaultsLimit(t *testing.T) {
	store := &stubAlertStore{}
	rec := serveAlerts(store, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, store.lastFilter.Limit)

	// A nil store result is served as an empty list, not null
	var resp AlertListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Alerts)
	assert.Empty(t, resp.Alerts)
}

func TestRecentAlertsDefaultsWindow(t *testing.T) {
	store := &stubAlertStore{}
	rec := serveAlerts(store, http.MethodGet, "/recent")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, store.lastFilter.Since)
	assert.WithinDuration(t, time.Now().Add(-15*time.Minute), *store.lastFilter.Since, 5*time.Second)
}

func TestRecentAlertsHonorsExplicitSince(t *testing.T) {
	store := &stubAlertStore{}
	since := "2026-08-25T10:00:00Z"
	rec := serveAlerts(store, http.MethodGet, "/recent?since="+since)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, store.lastFilter.Since)
	assert.Equal(t, since, store.lastFilter.Since.Format(time.RFC3339))
}

func TestGetAlertNotFound(t *testing.T) {
	store := &stubAlertStore{}
	rec := serveAlerts(store, http.MethodGet, "/a-missing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestGetAlertByID(t *testing.T) {
	store := &stubAlertStore{alerts: []messages.Alert{
		{AlertID: "a1", CameraID: "cam-01", Type: messages.TypePersonLoitering},
	}}
	rec := serveAlerts(store, http.MethodGet, "/a1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AlertDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a1", resp.Alert.AlertID)
}

func TestResolveAlertConflictOnRepeat(t *testing.T) {
	store := &stubAlertStore{alerts: []messages.Alert{{AlertID: "a1"}}}

	rec := serveAlerts(store, http.MethodPost, "/a1/resolve")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveAlerts(store, http.MethodPost, "/a1/resolve")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAlertStoreErrorsReturn500(t *testing.T) {
	store := &stubAlertStore{err: errors.New("db down")}

	assert.Equal(t, http.StatusInternalServerError, serveAlerts(store, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusInternalServerError, serveAlerts(store, http.MethodGet, "/a1").Code)
	assert.Equal(t, http.StatusInternalServerError, serveAlerts(store, http.MethodGet, "/stats").Code)
	assert.Equal(t, http.StatusInternalServerError, serveAlerts(store, http.MethodPost, "/a1/resolve").Code)
}

func TestGetStats(t *testing.T) {
	store := &stubAlertStore{alerts: []messages.Alert{{AlertID: "a1"}, {AlertID: "a2"}}}
	rec := serveAlerts(store, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Stats.Total)
}
