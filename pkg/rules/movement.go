package rules

import (
	"math"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// MovementRule maintains the bounded movement history per person and flags
// abnormal patterns: sudden direction changes (U-turns) and low-posture
// boxes (crawling or ducking).
//
// This rule must run before ApproachRule: it pushes the current sample into
// the history the approach rule reads.
type MovementRule struct{}

func (r *MovementRule) Name() string { return "abnormal_movement" }

func (r *MovementRule) Evaluate(fr *messages.DetectionFrame, _ *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	var out []messages.AlertCandidate

	for _, person := range fr.Persons() {
		center, ok := person.BBox.Center()
		if !ok {
			continue
		}

		history := st.HistoryFor(person.EntityID)
		history.Push(track.Sample{Center: center, Timestamp: fr.Timestamp})

		if turn, ok := lastHeadingTurn(history); ok && turn > DirectionChangeDeg {
			out = append(out, messages.AlertCandidate{
				CameraID: fr.CameraID,
				Type:     messages.TypeSuddenDirectionChange,
				Severity: messages.SeverityMedium,
				Message:  "Sudden direction change detected (U-turn)",
				Metadata: map[string]any{
					"person_id":    person.EntityID,
					"angle_change": turn,
					"location":     center,
				},
			})
		}

		if w, h, ok := person.BBox.Size(); ok && w > 0 {
			if ratio := h / w; ratio < CrawlAspectRatio {
				out = append(out, messages.AlertCandidate{
					CameraID: fr.CameraID,
					Type:     messages.TypeCrawlingDucking,
					Severity: messages.SeverityMedium,
					Message:  "Person detected in low posture (crawling/ducking)",
					Metadata: map[string]any{
						"person_id":    person.EntityID,
						"aspect_ratio": ratio,
						"location":     center,
					},
				})
			}
		}
	}

	return out
}

// lastHeadingTurn computes the angle between the two most recent headings
// in the history, normalized into [0, 180] degrees. Zero-displacement steps
// produce no heading and are skipped.
func lastHeadingTurn(h *track.History) (float64, bool) {
	var headings []float64
	for i := 1; i < h.Len(); i++ {
		prev, curr := h.At(i-1).Center, h.At(i).Center
		dx, dy := curr.X-prev.X, curr.Y-prev.Y
		if dx == 0 && dy == 0 {
			continue
		}
		headings = append(headings, math.Atan2(dy, dx)*180/math.Pi)
	}
	if len(headings) < 2 {
		return 0, false
	}

	diff := math.Abs(headings[len(headings)-1] - headings[len(headings)-2])
	if diff > 180 {
		diff = 360 - diff
	}
	return diff, true
}
