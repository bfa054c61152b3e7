package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
)

func TestFightingDetectsBrawl(t *testing.T) {
	rule := &FightingRule{}
	cfg := &camera.Config{CameraID: "cam-01"}

	// Two tight clusters, each pair overlapping well past the threshold
	fr := testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 110, 100),
		personCentered("p3", 600, 100),
		personCentered("p4", 610, 100),
	)

	alerts := rule.Evaluate(fr, cfg, newCameraState())
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.TypeGroupFighting, alerts[0].Type)
	assert.Equal(t, 2, alerts[0].Metadata["overlapping_pairs"])
	assert.Equal(t, 4, alerts[0].Metadata["total_persons"])
}

func TestFightingIgnoresSinglePair(t *testing.T) {
	rule := &FightingRule{}
	cfg := &camera.Config{CameraID: "cam-01"}

	// One overlapping pair is people passing each other, not a fight
	fr := testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 110, 100),
		personCentered("p3", 600, 100),
	)

	assert.Empty(t, rule.Evaluate(fr, cfg, newCameraState()))
}

func TestFightingIgnoresDistantCrowd(t *testing.T) {
	rule := &FightingRule{}
	cfg := &camera.Config{CameraID: "cam-01"}

	fr := testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 300, 100),
		personCentered("p3", 500, 100),
		personCentered("p4", 700, 100),
	)

	assert.Empty(t, rule.Evaluate(fr, cfg, newCameraState()))
}

func TestHeadcountRestrictedAreaLimit(t *testing.T) {
	rule := &HeadcountRule{}
	cfg := &camera.Config{CameraID: "cam-01", IsRestrictedZone: true}

	// Exactly at the limit: no alert
	fr := testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 300, 100),
		personCentered("p3", 500, 100),
	)
	assert.Empty(t, rule.Evaluate(fr, cfg, newCameraState()))

	// One over the limit
	fr = testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 300, 100),
		personCentered("p3", 500, 100),
		personCentered("p4", 700, 100),
	)
	alerts := rule.Evaluate(fr, cfg, newCameraState())
	require.Len(t, alerts, 1)
	assert.Equal(t, messages.TypeMultiplePersonsRestrictedArea, alerts[0].Type)
	assert.Equal(t, messages.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, 4, alerts[0].Metadata["person_count"])
}

func TestHeadcountUnrestrictedCameraIgnored(t *testing.T) {
	rule := &HeadcountRule{}
	cfg := &camera.Config{CameraID: "cam-01"}

	fr := testFrame("cam-01", testBase,
		personCentered("p1", 100, 100),
		personCentered("p2", 300, 100),
		personCentered("p3", 500, 100),
		personCentered("p4", 700, 100),
		personCentered("p5", 900, 100),
	)
	assert.Nil(t, rule.Evaluate(fr, cfg, newCameraState()))
}
