package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// LoiteringRule accumulates stationary time per person and alerts once per
// continuous stay. Movement beyond the loitering radius resets the
// accumulator and re-arms the alert.
type LoiteringRule struct{}

func (r *LoiteringRule) Name() string { return "loitering" }

func (r *LoiteringRule) Evaluate(fr *messages.DetectionFrame, _ *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	var out []messages.AlertCandidate
	interval := fr.FrameInterval()

	for _, person := range fr.Persons() {
		center, ok := person.BBox.Center()
		if !ok {
			continue
		}

		prev, seen := st.Loiter[person.EntityID]
		if !seen {
			st.Loiter[person.EntityID] = &track.LoiterState{Center: center}
			continue
		}

		if center.DistanceTo(prev.Center) >= LoiteringRadiusPx {
			// Moved away: new stay starts here.
			st.Loiter[person.EntityID] = &track.LoiterState{Center: center}
			continue
		}

		prev.Accumulated += interval
		prev.Center = center

		if prev.Accumulated >= LoiteringSeconds && !prev.Alerted {
			prev.Alerted = true
			out = append(out, messages.AlertCandidate{
				CameraID: fr.CameraID,
				Type:     messages.TypePersonLoitering,
				Severity: messages.SeverityMedium,
				Message:  fmt.Sprintf("Person loitering for %.1f seconds", prev.Accumulated),
				Metadata: map[string]any{
					"person_id":      person.EntityID,
					"loitering_time": prev.Accumulated,
					"location":       center,
				},
			})
		}
	}

	return out
}
