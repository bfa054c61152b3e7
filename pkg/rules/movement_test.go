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

func TestMovementDetectsUTurn(t *testing.T) {
	rule := &MovementRule{}
	cfg := &camera.Config{CameraID: "cam-01"}
	st := newCameraState()

	// Walking right, then reversing: headings 0 and 180 degrees
	positions := []float64{100, 200, 100}
	var alerts []messages.AlertCandidate
	for i, x := range positions {
		fr := testFrame("cam-01", testBase.Add(time.Duration(i)*time.Second),
			personCentered("p1", x, 100))
		alerts = append(alerts, candidatesOfType(
			rule.Evaluate(fr, cfg, st), messages.TypeSuddenDirectionChange)...)
	}

	require.Len(t, alerts, 1)
	assert.Equal(t, "p1", alerts[0].Metadata["person_id"])
	assert.InDelta(t, 180.0, alerts[0].Metadata["angle_change"].(float64), 1e-9)
}

func TestMovementIgnoresGentleCurve(t *testing.T) {
	rule := &MovementRule{}
	cfg := &camera.Config{CameraID: "cam-01"}
	st := newCameraState()

	// Right, then up-right at 45 degrees: turn well under the threshold
	points := []geometry.Point{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 300, Y: 200}}
	for i, p := range points {
		fr := testFrame("cam-01", testBase.Add(time.Duration(i)*time.Second),
			personCentered("p1", p.X, p.Y))
		assert.Empty(t, candidatesOfType(
			rule.Evaluate(fr, cfg, st), messages.TypeSuddenDirectionChange))
	}
}

func TestMovementSkipsZeroDisplacementSteps(t *testing.T) {
	rule := &MovementRule{}
	cfg := &camera.Config{CameraID: "cam-01"}
	st := newCameraState()

	// A pause between the two legs must not hide the reversal
	positions := []float64{100, 200, 200, 100}
	var alerts []messages.AlertCandidate
	for i, x := range positions {
		fr := testFrame("cam-01", testBase.Add(time.Duration(i)*time.Second),
			personCentered("p1", x, 100))
		alerts = append(alerts, candidatesOfType(
			rule.Evaluate(fr, cfg, st), messages.TypeSuddenDirectionChange)...)
	}
	assert.Len(t, alerts, 1)
}

func TestMovementDetectsLowPosture(t *testing.T) {
	rule := &MovementRule{}
	cfg := &camera.Config{CameraID: "cam-01"}
	st := newCameraState()

	crawler := messages.Detection{
		EntityID: "p1",
		Kind:     messages.KindPerson,
		Class:    "person",
		BBox:     geometry.NewBox(geometry.BoxXYWH, 100, 100, 150, 50),
	}
	fr := testFrame("cam-01", testBase, crawler)

	alerts := candidatesOfType(rule.Evaluate(fr, cfg, st), messages.TypeCrawlingDucking)
	require.Len(t, alerts, 1)
	assert.InDelta(t, 50.0/150.0, alerts[0].Metadata["aspect_ratio"].(float64), 1e-9)

	// A standing box is taller than wide and stays quiet
	fr = testFrame("cam-01", testBase.Add(time.Second), personCentered("p2", 300, 300))
	assert.Empty(t, candidatesOfType(rule.Evaluate(fr, cfg, st), messages.TypeCrawlingDucking))
}

func TestApproachDetectsRapidClosure(t *testing.T) {
	movement := &MovementRule{}
	approach := &ApproachRule{}
	cfg := &camera.Config{
		CameraID: "cam-01",
		SensitiveAreas: []camera.SensitiveArea{
			{Name: "vault", Center: geometry.Point{X: 100, Y: 100}},
		},
	}
	st := newCameraState()

	// First frame seeds the history, second frame closes 50px on the vault
	fr := testFrame("cam-01", testBase, personCentered("p1", 500, 100))
	movement.Evaluate(fr, cfg, st)
	require.Empty(t, approach.Evaluate(fr, cfg, st))

	fr = testFrame("cam-01", testBase.Add(time.Second), personCentered("p1", 450, 100))
	movement.Evaluate(fr, cfg, st)
	alerts := approach.Evaluate(fr, cfg, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.TypeRapidApproachSensitiveArea, alerts[0].Type)
	assert.Equal(t, "vault", alerts[0].Metadata["area_name"])
	assert.InDelta(t, 350.0, alerts[0].Metadata["distance"].(float64), 1e-9)
}

func TestApproachIgnoresSlowClosure(t *testing.T) {
	movement := &MovementRule{}
	approach := &ApproachRule{}
	cfg := &camera.Config{
		CameraID: "cam-01",
		SensitiveAreas: []camera.SensitiveArea{
			{Name: "vault", Center: geometry.Point{X: 100, Y: 100}},
		},
	}
	st := newCameraState()

	fr := testFrame("cam-01", testBase, personCentered("p1", 500, 100))
	movement.Evaluate(fr, cfg, st)

	// 10px per frame is under the closure threshold
	fr = testFrame("cam-01", testBase.Add(time.Second), personCentered("p1", 490, 100))
	movement.Evaluate(fr, cfg, st)
	assert.Empty(t, approach.Evaluate(fr, cfg, st))
}

func TestApproachNoSensitiveAreas(t *testing.T) {
	approach := &ApproachRule{}
	st := newCameraState()

	fr := testFrame("cam-01", testBase, personCentered("p1", 500, 100))
	assert.Nil(t, approach.Evaluate(fr, &camera.Config{CameraID: "cam-01"}, st))
}
