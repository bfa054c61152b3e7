package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// HeadcountRule alerts when more persons than allowed are visible on a
// globally restricted camera. It is stateless and re-fires every frame the
// condition holds; duplicate suppression is the dedup engine's job.
type HeadcountRule struct{}

func (r *HeadcountRule) Name() string { return "restricted_area_headcount" }

func (r *HeadcountRule) Evaluate(fr *messages.DetectionFrame, cfg *camera.Config, _ *track.CameraState) []messages.AlertCandidate {
	if cfg == nil || !cfg.IsRestrictedZone {
		return nil
	}

	persons := fr.Persons()
	if len(persons) <= RestrictedAreaPersonLimit {
		return nil
	}

	boxes := make([]map[string]any, 0, len(persons))
	for _, p := range persons {
		boxes = append(boxes, map[string]any{
			"entity_id":  p.EntityID,
			"bbox":       p.BBox.Coords,
			"confidence": p.Confidence,
		})
	}

	return []messages.AlertCandidate{{
		CameraID: fr.CameraID,
		Type:     messages.TypeMultiplePersonsRestrictedArea,
		Severity: messages.SeverityHigh,
		Message: fmt.Sprintf("%d persons detected in restricted area (limit: %d)",
			len(persons), RestrictedAreaPersonLimit),
		Metadata: map[string]any{
			"person_count": len(persons),
			"limit":        RestrictedAreaPersonLimit,
			"detections":   boxes,
		},
	}}
}
