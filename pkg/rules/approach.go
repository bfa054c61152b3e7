package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// ApproachRule flags entities closing rapidly on a sensitive area, using
// the two most recent movement history samples (pushed by MovementRule
// earlier in the same frame).
type ApproachRule struct{}

func (r *ApproachRule) Name() string { return "rapid_approach" }

func (r *ApproachRule) Evaluate(fr *messages.DetectionFrame, cfg *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	if cfg == nil || len(cfg.SensitiveAreas) == 0 {
		return nil
	}

	var out []messages.AlertCandidate
	for _, person := range fr.Persons() {
		history, ok := st.Movement[person.EntityID]
		if !ok {
			continue
		}
		curr, okCurr := history.Last()
		prev, okPrev := history.Prev()
		if !okCurr || !okPrev {
			continue
		}

		for _, area := range cfg.SensitiveAreas {
			currDist := curr.Center.DistanceTo(area.Center)
			prevDist := prev.Center.DistanceTo(area.Center)
			if prevDist-currDist <= RapidApproachPx {
				continue
			}
			out = append(out, messages.AlertCandidate{
				CameraID: fr.CameraID,
				Type:     messages.TypeRapidApproachSensitiveArea,
				Severity: messages.SeverityMedium,
				Message:  fmt.Sprintf("Rapid approach to sensitive area: %s", area.Name),
				Metadata: map[string]any{
					"person_id": person.EntityID,
					"area_name": area.Name,
					"distance":  currDist,
					"location":  curr.Center,
				},
			})
		}
	}

	return out
}
