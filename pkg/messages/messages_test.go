package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-security/framewatch/pkg/geometry"
)

func TestEnvelopeSignAndVerify(t *testing.T) {
	secret := []byte("shared-secret")
	payload := []byte(`{"camera_id":"cam-01"}`)

	env := NewEnvelope("detector-1", "detector")
	assert.NotEmpty(t, env.MessageID)

	env.Sign(payload, secret)
	require.NotEmpty(t, env.Signature)
	assert.True(t, env.VerifySignature(payload, secret))

	// Tampered payload or wrong secret must fail verification
	assert.False(t, env.VerifySignature([]byte(`{"camera_id":"cam-02"}`), secret))
	assert.False(t, env.VerifySignature(payload, []byte("other-secret")))
}

func TestMarshalWithSignatureRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")

	fr := NewDetectionFrame("detector-1", "cam-01")
	fr.FrameNumber = 42
	fr.FPS = 2.0

	data, err := MarshalWithSignature(fr, secret)
	require.NoError(t, err)

	var decoded DetectionFrame
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "cam-01", decoded.CameraID)
	assert.NotEmpty(t, decoded.Envelope.Signature)

	// The signature covers the payload as marshaled before signing
	unsigned := decoded
	unsigned.Envelope.Signature = ""
	payload, err := json.Marshal(&unsigned)
	require.NoError(t, err)
	assert.True(t, decoded.Envelope.VerifySignature(payload, secret))
}

func TestWithCorrelation(t *testing.T) {
	env := NewEnvelope("analyzer-1", "analyzer")
	linked := env.WithCorrelation("corr-1", "cause-1")

	assert.Equal(t, "corr-1", linked.CorrelationID)
	assert.Equal(t, "cause-1", linked.CausationID)
	// The receiver is a value; the original is untouched
	assert.Empty(t, env.CorrelationID)
}

func TestSubjects(t *testing.T) {
	fr := &DetectionFrame{CameraID: "cam-01"}
	assert.Equal(t, "frame.cam-01", fr.Subject())

	alert := &Alert{Severity: SeverityHigh, Type: TypeWeaponDetected}
	assert.Equal(t, "alert.high.weapon_detected", alert.Subject())
}

func TestFrameFiltersByKindAndBox(t *testing.T) {
	fr := &DetectionFrame{
		CameraID: "cam-01",
		Detections: []Detection{
			{EntityID: "p1", Kind: KindPerson, BBox: geometry.NewBox(geometry.BoxXYWH, 10, 10, 50, 150)},
			{EntityID: "o1", Kind: KindObject, Class: "bag", BBox: geometry.NewBox(geometry.BoxXYWH, 200, 10, 40, 40)},
			{EntityID: "broken", Kind: KindPerson, BBox: geometry.BoundingBox{Coords: []float64{1, 2}}},
		},
	}

	persons := fr.Persons()
	require.Len(t, persons, 1)
	assert.Equal(t, "p1", persons[0].EntityID)

	objects := fr.Objects()
	require.Len(t, objects, 1)
	assert.Equal(t, "o1", objects[0].EntityID)
}

func TestFrameIntervalFallback(t *testing.T) {
	fr := &DetectionFrame{FPS: 2.0}
	assert.Equal(t, 0.5, fr.FrameInterval())

	fr = &DetectionFrame{}
	assert.Equal(t, 1.0, fr.FrameInterval())
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Equal(t, -1, Severity("bogus").Rank())
}

func TestNewAlertDefaults(t *testing.T) {
	cand := AlertCandidate{
		CameraID: "cam-01",
		Type:     TypePersonLoitering,
		Severity: SeverityMedium,
		Message:  "Person loitering",
		Metadata: map[string]any{"person_id": "p1"},
	}

	alert := NewAlert(cand, "analyzer-1")
	assert.Equal(t, "pending", alert.Status)
	assert.Equal(t, "analyzer-1", alert.Envelope.Source)
	assert.Equal(t, "analyzer", alert.Envelope.SourceType)
	assert.Equal(t, cand.Metadata, alert.Metadata)
	assert.False(t, alert.CreatedAt.IsZero())
	assert.Nil(t, alert.ResolvedAt)
}
