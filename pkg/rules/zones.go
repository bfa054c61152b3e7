package rules

import (
	"fmt"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// ZoneIntrusionRule covers red zone entries, prolonged yellow zone presence
// and the rolling multi-violation aggregate.
//
// Presence entries are keyed by entity id for a globally restricted camera
// and by "entity|zone" for explicit zones, so each (entity, zone) pair
// alerts at most once per session.
type ZoneIntrusionRule struct{}

func (r *ZoneIntrusionRule) Name() string { return "zone_intrusion" }

func (r *ZoneIntrusionRule) Evaluate(fr *messages.DetectionFrame, cfg *camera.Config, st *track.CameraState) []messages.AlertCandidate {
	if cfg == nil {
		return nil
	}

	var out []messages.AlertCandidate
	persons := fr.Persons()

	// A globally restricted camera treats every person as a red zone entry
	// on first sighting.
	if cfg.IsRestrictedZone {
		for _, person := range persons {
			center, ok := person.BBox.Center()
			if !ok {
				continue
			}
			if _, seen := st.Zones[person.EntityID]; seen {
				continue
			}
			st.Zones[person.EntityID] = &track.ZonePresence{
				Kind:      track.ZoneRed,
				EntryTime: fr.Timestamp,
				Location:  center,
				Alerted:   true,
			}
			out = append(out, messages.AlertCandidate{
				CameraID: fr.CameraID,
				Type:     messages.TypeRedZoneEntry,
				Severity: messages.SeverityCritical,
				Message:  "Person entered restricted area (no-access zone)",
				Metadata: map[string]any{
					"person_id":  person.EntityID,
					"zone_type":  "red",
					"location":   center,
					"bbox":       person.BBox.Coords,
					"entry_time": fr.Timestamp,
				},
			})
		}
	}

	for _, person := range persons {
		center, ok := person.BBox.Center()
		if !ok {
			continue
		}

		for _, zone := range cfg.RedZones {
			if !zone.Contains(center) {
				continue
			}
			key := person.EntityID + "|" + zone.Name
			if _, seen := st.Zones[key]; seen {
				continue
			}
			st.Zones[key] = &track.ZonePresence{
				Kind:      track.ZoneRed,
				EntryTime: fr.Timestamp,
				Location:  center,
				Alerted:   true,
			}
			out = append(out, messages.AlertCandidate{
				CameraID: fr.CameraID,
				Type:     messages.TypeRedZoneEntry,
				Severity: messages.SeverityCritical,
				Message:  fmt.Sprintf("Person entered no-access area: %s", zone.Name),
				Metadata: map[string]any{
					"person_id": person.EntityID,
					"zone_name": zone.Name,
					"location":  center,
					"bbox":      person.BBox.Coords,
				},
			})
		}

		for _, zone := range cfg.YellowZones {
			if !zone.Contains(center) {
				continue
			}
			key := person.EntityID + "|" + zone.Name
			presence, seen := st.Zones[key]
			if !seen {
				st.Zones[key] = &track.ZonePresence{
					Kind:      track.ZoneYellow,
					EntryTime: fr.Timestamp,
					Location:  center,
				}
				continue
			}

			duration := fr.Timestamp.Sub(presence.EntryTime).Seconds()
			if duration >= YellowZoneSeconds && !presence.Alerted {
				presence.Alerted = true
				out = append(out, messages.AlertCandidate{
					CameraID: fr.CameraID,
					Type:     messages.TypeYellowZoneProlonged,
					Severity: messages.SeverityMedium,
					Message: fmt.Sprintf("Prolonged presence in warning zone: %s (%.0fs)",
						zone.Name, duration),
					Metadata: map[string]any{
						"person_id":         person.EntityID,
						"zone_name":         zone.Name,
						"presence_duration": duration,
						"location":          center,
					},
				})
			}
		}
	}

	// Rolling aggregate: repeated violation frames within five minutes.
	if cfg.IsRestrictedZone && len(persons) > 0 {
		st.RecordViolation(fr.Timestamp, len(persons))

		if len(st.Violations) >= ViolationLogMin {
			cooledDown := st.ViolationAlertedAt.IsZero() ||
				fr.Timestamp.Sub(st.ViolationAlertedAt) >= ViolationCooldown
			if cooledDown {
				st.ViolationAlertedAt = fr.Timestamp
				out = append(out, messages.AlertCandidate{
					CameraID: fr.CameraID,
					Type:     messages.TypeMultipleZoneViolations,
					Severity: messages.SeverityMedium,
					Message:  "Multiple zone violations detected",
					Metadata: map[string]any{
						"violation_count": len(st.Violations),
						"time_window":     "5 minutes",
					},
				})
			}
		}
	}

	return out
}
