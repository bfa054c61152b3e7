package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// RunningRule estimates per-person speed from consecutive position samples
// and the camera's pixels-per-meter calibration. It re-emits on every frame
// above the threshold; suppression is delegated to the dedup engine.
type RunningRule struct{}

func (r *RunningRule) Name() string { return "running" }

func (r *RunningRule) Evaluate(fr *messages.DetectionFrame, cfg *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	var out []messages.AlertCandidate
	scale := cfg.Scale()

	for _, person := range fr.Persons() {
		center, ok := person.BBox.Center()
		if !ok {
			continue
		}

		if prev, seen := st.Speed[person.EntityID]; seen {
			elapsed := fr.Timestamp.Sub(prev.Timestamp).Seconds()
			speed, ok := camera.Speed(center.DistanceTo(prev.Center), elapsed, scale)
			if ok && speed > RunningSpeedMPS {
				out = append(out, messages.AlertCandidate{
					CameraID: fr.CameraID,
					Type:     messages.TypePersonRunning,
					Severity: messages.SeverityMedium,
					Message:  fmt.Sprintf("Person running at %.1f m/s", speed),
					Metadata: map[string]any{
						"person_id": person.EntityID,
						"speed":     speed,
						"location":  center,
					},
				})
			}
		}

		st.Speed[person.EntityID] = track.Sample{Center: center, Timestamp: fr.Timestamp}
	}

	return out
}
