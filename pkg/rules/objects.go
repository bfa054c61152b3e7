package rules

import (
	"fmt"
	"time"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

var weaponClasses = map[string]bool{
	"gun":   true,
	"knife": true,
	"bat":   true,
}

// Object classes that warrant an abandoned-object alert when left
// stationary. Anything else (carts, bins) is ignored.
var abandonableClasses = map[string]bool{
	"bag":      true,
	"backpack": true,
	"suitcase": true,
	"unknown":  true,
}

// WeaponRule flags weapon-class object detections above the confidence
// floor. Stateless; suppression is the dedup engine's job.
type WeaponRule struct{}

func (r *WeaponRule) Name() string { return "weapon" }

func (r *WeaponRule) Evaluate(fr *messages.DetectionFrame, _ *camera.Config, _ *track.CameraState) []messages.AlertCandidate {
	var out []messages.AlertCandidate
	for _, obj := range fr.Objects() {
		if !weaponClasses[obj.Class] || obj.Confidence < WeaponConfidence {
			continue
		}
		center, _ := obj.BBox.Center()
		out = append(out, messages.AlertCandidate{
			CameraID: fr.CameraID,
			Type:     messages.TypeWeaponDetected,
			Severity: messages.SeverityHigh,
			Message:  fmt.Sprintf("Weapon detected: %s (%.0f%% confidence)", obj.Class, obj.Confidence*100),
			Metadata: map[string]any{
				"weapon_type": obj.Class,
				"confidence":  obj.Confidence,
				"bbox":        obj.BBox.Coords,
				"location":    center,
			},
		})
	}
	return out
}

// AbandonedObjectRule tracks object positions across frames and raises a
// single aggregated alert for objects that have sat still long enough.
type AbandonedObjectRule struct{}

func (r *AbandonedObjectRule) Name() string { return "abandoned_object" }

func (r *AbandonedObjectRule) Evaluate(fr *messages.DetectionFrame, _ *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	var stationary []map[string]any

	for _, obj := range fr.Objects() {
		center, ok := obj.BBox.Center()
		if !ok {
			continue
		}

		state, seen := st.Objects[obj.EntityID]
		if !seen {
			st.Objects[obj.EntityID] = &track.ObjectState{
				Center:   center,
				Class:    obj.Class,
				LastSeen: fr.Timestamp,
			}
			continue
		}

		if center.DistanceTo(state.Center) >= AbandonedMovePx {
			// The object moved; restart the stationary clock.
			state.Center = center
			state.StationarySince = time.Time{}
			state.LastSeen = fr.Timestamp
			continue
		}

		if state.StationarySince.IsZero() {
			state.StationarySince = state.LastSeen
		}
		state.LastSeen = fr.Timestamp

		idle := fr.Timestamp.Sub(state.StationarySince).Seconds()
		if idle >= AbandonedSeconds && abandonableClasses[obj.Class] {
			stationary = append(stationary, map[string]any{
				"object_id": obj.EntityID,
				"class":     obj.Class,
				"idle_secs": idle,
				"location":  state.Center,
			})
		}
	}

	if len(stationary) == 0 {
		return nil
	}

	return []messages.AlertCandidate{{
		CameraID: fr.CameraID,
		Type:     messages.TypeUnknownObjectLeftBehind,
		Severity: messages.SeverityHigh,
		Message:  fmt.Sprintf("Unattended object detected (%d stationary)", len(stationary)),
		Metadata: map[string]any{
			"count":   len(stationary),
			"objects": stationary,
		},
	}}
}
