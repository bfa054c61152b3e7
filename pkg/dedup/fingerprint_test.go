package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

func weaponCandidate(cameraID, msg string, bbox []float64) messages.AlertCandidate {
	return messages.AlertCandidate{
		CameraID: cameraID,
		Type:     messages.TypeWeaponDetected,
		Severity: messages.SeverityHigh,
		Message:  msg,
		Metadata: map[string]any{
			"weapon_type": "knife",
			"bbox":        bbox,
		},
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "frame number stripped",
			in:   "Weapon detected at frame 1042",
			want: "weapon detected at",
		},
		{
			name: "confidence percentage stripped",
			in:   "Weapon detected: knife (87% confidence)",
			want: "weapon detected: knife",
		},
		{
			name: "method annotation stripped",
			in:   "Suspicious activity (via motion_diff)",
			want: "suspicious activity",
		},
		{
			name: "remaining digits stripped",
			in:   "3 persons detected in restricted area",
			want: "persons detected in restricted area",
		},
		{
			name: "whitespace collapsed",
			in:   "Person   entered    zone",
			want: "person entered zone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMessage(tt.in))
		})
	}
}

func TestFingerprintIgnoresVolatileMessageParts(t *testing.T) {
	box := []float64{400, 380, 50, 40}
	a := weaponCandidate("cam-01", "Weapon detected: knife (87% confidence)", box)
	b := weaponCandidate("cam-01", "Weapon detected: knife (91% confidence)", box)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSeparatesCamerasAndTypes(t *testing.T) {
	box := []float64{400, 380, 50, 40}
	a := weaponCandidate("cam-01", "Weapon detected: knife", box)
	b := weaponCandidate("cam-02", "Weapon detected: knife", box)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	c := a
	c.Type = messages.TypeSuspiciousActivity
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFingerprintQuantizesBoxJitter(t *testing.T) {
	// A couple of pixels of jitter lands in the same 20px weapon grid cell
	a := weaponCandidate("cam-01", "Weapon detected: knife", []float64{400, 380, 50, 40})
	b := weaponCandidate("cam-01", "Weapon detected: knife", []float64{403, 382, 51, 41})
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	// A real move to another part of the frame does not
	c := weaponCandidate("cam-01", "Weapon detected: knife", []float64{900, 380, 50, 40})
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestFingerprintPersonIdentityTypes(t *testing.T) {
	mk := func(personID string) messages.AlertCandidate {
		return messages.AlertCandidate{
			CameraID: "cam-01",
			Type:     messages.TypePersonLoitering,
			Message:  "Person loitering for 32 seconds",
			Metadata: map[string]any{"person_id": personID, "loitering_time": 32.5},
		}
	}

	assert.Equal(t, Fingerprint(mk("p1")), Fingerprint(mk("p1")))
	assert.NotEqual(t, Fingerprint(mk("p1")), Fingerprint(mk("p2")))
}

func TestFingerprintAggregateIgnoresCount(t *testing.T) {
	mk := func(count int) messages.AlertCandidate {
		return messages.AlertCandidate{
			CameraID: "cam-01",
			Type:     messages.TypeMultipleZoneViolations,
			Message:  "Multiple zone violations detected",
			Metadata: map[string]any{"violation_count": count},
		}
	}

	// The aggregate is identified by camera and type alone
	assert.Equal(t, Fingerprint(mk(3)), Fingerprint(mk(7)))
}

func TestBoxCoordsAcceptsDecodedJSON(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 3, 4}, boxCoords([]any{1.0, 2.0, 3.0, 4.0}))
	assert.Equal(t, []float64{1, 2, 3, 4}, boxCoords([]float64{1, 2, 3, 4}))
	assert.Nil(t, boxCoords([]any{1.0, "x"}))
	assert.Nil(t, boxCoords("not a box"))
}
