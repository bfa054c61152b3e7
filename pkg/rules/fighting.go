package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/geometry"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// FightingRule looks for clusters of heavily overlapping person boxes.
// A single overlapping pair is usually just people passing each other;
// two or more pairs in the same frame suggests a brawl.
type FightingRule struct{}

func (r *FightingRule) Name() string { return "group_fighting" }

func (r *FightingRule) Evaluate(fr *messages.DetectionFrame, _ *camera.Config, _ *track.CameraState) []messages.AlertCandidate {
	persons := fr.Persons()
	if len(persons) < 2 {
		return nil
	}

	pairs := 0
	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			if geometry.IoU(persons[i].BBox, persons[j].BBox) > FightIoUThreshold {
				pairs++
			}
		}
	}

	if pairs < FightMinPairs {
		return nil
	}

	return []messages.AlertCandidate{{
		CameraID: fr.CameraID,
		Type:     messages.TypeGroupFighting,
		Severity: messages.SeverityMedium,
		Message:  fmt.Sprintf("Group fighting detected: %d overlapping person pairs", pairs),
		Metadata: map[string]any{
			"overlapping_pairs": pairs,
			"total_persons":     len(persons),
		},
	}}
}
