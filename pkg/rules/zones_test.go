package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/geometry"
	"github.com/halcyon-security/framewatch/pkg/messages"
)

func TestRedZoneEntryAlertsOncePerEntity(t *testing.T) {
	rule := &ZoneIntrusionRule{}
	cfg := &camera.Config{
		CameraID: "cam-01",
		RedZones: []geometry.Zone{{
			Name: "server-room-door", Type: geometry.ZoneRectangle,
			TopLeft: geometry.Point{X: 0, Y: 0}, BottomRight: geometry.Point{X: 400, Y: 400},
		}},
	}
	st := newCameraState()

	fr := testFrame("cam-01", testBase, personCentered("p1", 200, 200))
	alerts := rule.Evaluate(fr, cfg, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.TypeRedZoneEntry, alerts[0].Type)
	assert.Equal(t, messages.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "server-room-door", alerts[0].Metadata["zone_name"])

	// Still inside: no repeat
	fr = testFrame("cam-01", testBase.Add(time.Second), personCentered("p1", 210, 200))
	assert.Empty(t, rule.Evaluate(fr, cfg, st))

	// A second entity entering alerts independently
	fr = testFrame("cam-01", testBase.Add(2*time.Second),
		personCentered("p1", 210, 200), personCentered("p2", 100, 100))
	alerts = rule.Evaluate(fr, cfg, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, "p2", alerts[0].Metadata["person_id"])
}

func TestRestrictedCameraTreatsAllAsRedZone(t *testing.T) {
	rule := &ZoneIntrusionRule{}
	cfg := &camera.Config{CameraID: "cam-01", IsRestrictedZone: true}
	st := newCameraState()

	fr := testFrame("cam-01", testBase, personCentered("p1", 500, 500))
	alerts := candidatesOfType(rule.Evaluate(fr, cfg, st), messages.TypeRedZoneEntry)
	require.Len(t, alerts, 1)
	assert.Equal(t, "red", alerts[0].Metadata["zone_type"])
}

func TestYellowZoneProlongedPresence(t *testing.T) {
	rule := &ZoneIntrusionRule{}
	cfg := &camera.Config{
		CameraID: "cam-01",
		YellowZones: []geometry.Zone{{
			Name: "loading-dock", Type: geometry.ZoneCircle,
			Center: geometry.Point{X: 300, Y: 300}, Radius: 200,
		}},
	}
	st := newCameraState()

	// Entry at t, still there at t+60: no alert yet
	fr := testFrame("cam-01", testBase, personCentered("p1", 300, 300))
	require.Empty(t, rule.Evaluate(fr, cfg, st))
	fr = testFrame("cam-01", testBase.Add(60*time.Second), personCentered("p1", 310, 300))
	require.Empty(t, rule.Evaluate(fr, cfg, st))

	// At t+120 the stay is prolonged
	fr = testFrame("cam-01", testBase.Add(120*time.Second), personCentered("p1", 300, 310))
	alerts := rule.Evaluate(fr, cfg, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.TypeYellowZoneProlonged, alerts[0].Type)
	assert.Equal(t, "loading-dock", alerts[0].Metadata["zone_name"])

	// Only once per stay
	fr = testFrame("cam-01", testBase.Add(180*time.Second), personCentered("p1", 300, 300))
	assert.Empty(t, rule.Evaluate(fr, cfg, st))
}

func TestMultipleZoneViolationsAggregate(t *testing.T) {
	rule := &ZoneIntrusionRule{}
	cfg := &camera.Config{CameraID: "cam-01", IsRestrictedZone: true}
	st := newCameraState()

	evalAt := func(offset time.Duration, persons ...messages.Detection) []messages.AlertCandidate {
		fr := testFrame("cam-01", testBase.Add(offset), persons...)
		return candidatesOfType(rule.Evaluate(fr, cfg, st), messages.TypeMultipleZoneViolations)
	}

	// Three violation frames inside the window trigger the aggregate
	assert.Empty(t, evalAt(0, personCentered("p1", 100, 100)))
	assert.Empty(t, evalAt(60*time.Second, personCentered("p1", 100, 100)))
	alerts := evalAt(120*time.Second, personCentered("p1", 100, 100))
	require.Len(t, alerts, 1)
	assert.Equal(t, 3, alerts[0].Metadata["violation_count"])

	// Cooldown suppresses an immediate repeat
	assert.Empty(t, evalAt(150*time.Second, personCentered("p1", 100, 100)))

	// Much later the oldest entries have aged out of the trailing window
	assert.Empty(t, evalAt(420*time.Second, personCentered("p1", 100, 100)))

	// Enough fresh violations past the cooldown fire again
	alerts = evalAt(430*time.Second, personCentered("p1", 100, 100))
	require.Len(t, alerts, 1)
}

func TestEmptyFramesDoNotLogViolations(t *testing.T) {
	rule := &ZoneIntrusionRule{}
	cfg := &camera.Config{CameraID: "cam-01", IsRestrictedZone: true}
	st := newCameraState()

	fr := testFrame("cam-01", testBase)
	assert.Empty(t, rule.Evaluate(fr, cfg, st))
	assert.Empty(t, st.Violations)
}
