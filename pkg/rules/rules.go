// Package rules implements the per-frame security rule evaluators and the
// frame analysis orchestrator that runs them.
package rules

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/messages"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// Detection thresholds. These mirror the deployed tuning and are not
// per-camera configurable.
const (
	// RestrictedAreaPersonLimit is the headcount above which a restricted
	// camera raises an alert.
	RestrictedAreaPersonLimit = 3

	// LoiteringRadiusPx is the movement radius under which an entity is
	// considered stationary.
	LoiteringRadiusPx = 50.0

	// LoiteringSeconds is the accumulated stationary time that triggers a
	// loitering alert.
	LoiteringSeconds = 30.0

	// RunningSpeedMPS is the speed threshold for the running rule.
	RunningSpeedMPS = 5.0

	// FightIoUThreshold is the bounding box overlap above which two persons
	// count as an overlapping pair.
	FightIoUThreshold = 0.3

	// FightMinPairs is the number of overlapping pairs in one frame that
	// suggests a group fight.
	FightMinPairs = 2

	// YellowZoneSeconds is the continuous presence that makes a yellow zone
	// stay "prolonged".
	YellowZoneSeconds = 120.0

	// DirectionChangeDeg is the heading turn that counts as a sudden
	// direction change.
	DirectionChangeDeg = 120.0

	// CrawlAspectRatio is the height/width ratio under which a person is in
	// a low posture.
	CrawlAspectRatio = 0.5

	// RapidApproachPx is the per-step distance decrease toward a sensitive
	// area that counts as a rapid approach.
	RapidApproachPx = 20.0

	// WeaponConfidence is the minimum detector confidence for a weapon
	// alert.
	WeaponConfidence = 0.70

	// AbandonedMovePx is the displacement under which an object counts as
	// stationary.
	AbandonedMovePx = 10.0

	// AbandonedSeconds is how long a bag-like object must sit still before
	// it is considered left behind.
	AbandonedSeconds = 60.0

	// ViolationLogMin is the number of logged violation frames within the
	// rolling window that triggers the aggregate alert.
	ViolationLogMin = 3

	// ViolationCooldown is the minimum interval between aggregate
	// multiple_zone_violations alerts.
	ViolationCooldown = 5 * time.Minute
)

// Evaluator is one security rule. Evaluators read the frame and the
// camera's track state (already locked by the orchestrator) and return zero
// or more alert candidates.
type Evaluator interface {
	Name() string
	Evaluate(fr *messages.DetectionFrame, cfg *camera.Config, st *track.CameraState) []messages.AlertCandidate
}

// Summary is the per-frame analysis digest returned next to the candidates.
type Summary struct {
	PersonsDetected int `json:"persons_detected"`
	AlertsCount     int `json:"alerts_count"`
}

// Result is the outcome of analyzing one frame.
type Result struct {
	Candidates []messages.AlertCandidate `json:"alerts"`
	Summary    Summary                   `json:"frame_analysis"`
}

// Analyzer runs all rule evaluators for one frame of one camera, in a fixed
// order, and aggregates their candidates.
type Analyzer struct {
	store      *track.Store
	evaluators []Evaluator
	logger     zerolog.Logger
}

// NewAnalyzer creates an analyzer with the default evaluator set.
func NewAnalyzer(store *track.Store, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		store:  store,
		logger: logger.With().Str("component", "rules").Logger(),
		evaluators: []Evaluator{
			&HeadcountRule{},
			&LoiteringRule{},
			&RunningRule{},
			&FightingRule{},
			&ZoneIntrusionRule{},
			&MovementRule{},
			&ApproachRule{},
			&WeaponRule{},
			&AbandonedObjectRule{},
		},
	}
}

// Evaluators returns the registered evaluator names in execution order.
func (a *Analyzer) Evaluators() []string {
	names := make([]string, len(a.evaluators))
	for i, ev := range a.evaluators {
		names[i] = ev.Name()
	}
	return names
}

// AnalyzeFrame evaluates every rule against one frame. A failure inside one
// evaluator is contained at the rule boundary: it is logged and the
// remaining evaluators still run.
func (a *Analyzer) AnalyzeFrame(fr *messages.DetectionFrame, cfg *camera.Config) Result {
	st := a.store.Camera(fr.CameraID)
	st.Lock()
	defer st.Unlock()

	var candidates []messages.AlertCandidate
	for _, ev := range a.evaluators {
		candidates = append(candidates, a.runEvaluator(ev, fr, cfg, st)...)
	}

	return Result{
		Candidates: candidates,
		Summary: Summary{
			PersonsDetected: len(fr.Persons()),
			AlertsCount:     len(candidates),
		},
	}
}

// runEvaluator contains a single rule's failure so one bad rule cannot
// abort the rest of the frame.
func (a *Analyzer) runEvaluator(ev Evaluator, fr *messages.DetectionFrame, cfg *camera.Config, st *track.CameraState) (out []messages.AlertCandidate) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("rule", ev.Name()).
				Str("camera_id", fr.CameraID).
				Int64("frame", fr.FrameNumber).
				Interface("panic", r).
				Msg("Rule evaluator failed")
			out = nil
		}
	}()
	return ev.Evaluate(fr, cfg, st)
}

// Reset clears all tracking state for a camera. It must be called at
// session boundaries (a new uploaded video, a stream restart) so stale
// alerted flags and accumulators do not produce missing or duplicate
// alerts.
func (a *Analyzer) Reset(cameraID string) {
	a.store.Reset(cameraID)
	a.logger.Info().Str("camera_id", cameraID).Msg("Camera state reset")
}
