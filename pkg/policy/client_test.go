package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

func policyServer(t *testing.T, result map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/data/framewatch/escalation":
			assert.Equal(t, http.MethodPost, r.Method)
			var in QueryInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			require.NotNil(t, in.Input)
			json.NewEncoder(w).Encode(QueryResult{Result: result})
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testAlert(severity messages.Severity) *messages.Alert {
	return &messages.Alert{
		AlertID:  "a1",
		CameraID: "cam-01",
		Type:     messages.TypeWeaponDetected,
		Severity: severity,
		Metadata: map[string]any{"weapon_type": "knife"},
	}
}

func TestShouldEscalatePolicyYes(t *testing.T) {
	srv := policyServer(t, map[string]interface{}{
		"escalate": true,
		"reasons":  []interface{}{"weapon on restricted camera"},
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	escalate, err := c.ShouldEscalate(context.Background(), testAlert(messages.SeverityLow))
	require.NoError(t, err)
	assert.True(t, escalate)
}

func TestShouldEscalatePolicyNo(t *testing.T) {
	srv := policyServer(t, map[string]interface{}{"escalate": false})
	defer srv.Close()

	c := NewClient(srv.URL)
	escalate, err := c.ShouldEscalate(context.Background(), testAlert(messages.SeverityCritical))
	require.NoError(t, err)
	assert.False(t, escalate)
}

func TestShouldEscalateAcceptsAllowKey(t *testing.T) {
	srv := policyServer(t, map[string]interface{}{"allow": true})
	defer srv.Close()

	c := NewClient(srv.URL)
	escalate, err := c.ShouldEscalate(context.Background(), testAlert(messages.SeverityLow))
	require.NoError(t, err)
	assert.True(t, escalate)
}

func TestShouldEscalateFallsBackOnSeverity(t *testing.T) {
	// Nothing listening: the client must fall back and surface the error
	c := NewClient("http://127.0.0.1:1")

	escalate, err := c.ShouldEscalate(context.Background(), testAlert(messages.SeverityHigh))
	require.Error(t, err)
	assert.True(t, escalate)

	escalate, err = c.ShouldEscalate(context.Background(), testAlert(messages.SeverityMedium))
	require.Error(t, err)
	assert.False(t, escalate)
}

func TestQueryRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "policy compile error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Query(context.Background(), "framewatch/escalation", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestDecideCollectsReasons(t *testing.T) {
	srv := policyServer(t, map[string]interface{}{
		"escalate": true,
		"reasons":  []interface{}{"after hours", "restricted camera"},
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	decision, err := c.Decide(context.Background(), "framewatch/escalation",
		map[string]any{"severity": "high"})
	require.NoError(t, err)
	assert.True(t, decision.Escalate)
	assert.Equal(t, []string{"after hours", "restricted camera"}, decision.Reasons)
	assert.Contains(t, decision.Metadata, "raw_result")
}

func TestHealth(t *testing.T) {
	srv := policyServer(t, nil)
	defer srv.Close()

	c := NewClient(srv.URL)
	assert.NoError(t, c.Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.Error(t, NewClient(down.URL).Health(context.Background()))
}
