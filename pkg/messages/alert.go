package messages

import "time"

// Severity grades how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparisons (escalation thresholds).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Alert types emitted by the rule evaluators.
const (
	TypeMultiplePersonsRestrictedArea = "multiple_persons_restricted_area"
	TypePersonLoitering               = "person_loitering"
	TypePersonRunning                 = "person_running"
	TypeGroupFighting                 = "group_fighting"
	TypeRedZoneEntry                  = "red_zone_entry"
	TypeYellowZoneProlonged           = "yellow_zone_prolonged"
	TypeMultipleZoneViolations        = "multiple_zone_violations"
	TypeSuddenDirectionChange         = "sudden_direction_change"
	TypeCrawlingDucking               = "crawling_ducking"
	TypeRapidApproachSensitiveArea    = "rapid_approach_sensitive_area"
	TypeWeaponDetected                = "weapon_detected"
	TypeUnknownObjectLeftBehind       = "unknown_object_left_behind"

	// Produced by external detectors, deduplicated by this system.
	TypeSuspiciousActivity = "suspicious_activity"
	TypeMaskViolation      = "mask_violation"
)

// AlertCandidate is a rule evaluator's proposed alert before deduplication.
// Candidates are immutable once produced.
type AlertCandidate struct {
	CameraID string         `json:"camera_id"`
	Type     string         `json:"alert_type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Alert is a persisted, deduplicated alert.
type Alert struct {
	Envelope Envelope `json:"envelope"`

	AlertID  string         `json:"alert_id"`
	CameraID string         `json:"camera_id"`
	Type     string         `json:"alert_type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Fingerprint is the dedup key the alert was admitted under.
	Fingerprint string `json:"fingerprint,omitempty"`

	Status     string     `json:"status"` // pending, resolved
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (a *Alert) GetEnvelope() Envelope {
	return a.Envelope
}

func (a *Alert) SetEnvelope(e Envelope) {
	a.Envelope = e
}

func (a *Alert) Subject() string {
	return "alert." + string(a.Severity) + "." + a.Type
}

// NewAlert creates a pending alert from a candidate.
func NewAlert(cand AlertCandidate, analyzerID string) *Alert {
	return &Alert{
		Envelope:  NewEnvelope(analyzerID, "analyzer"),
		CameraID:  cand.CameraID,
		Type:      cand.Type,
		Severity:  cand.Severity,
		Message:   cand.Message,
		Metadata:  cand.Metadata,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
}
