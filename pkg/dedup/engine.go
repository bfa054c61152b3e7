package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

// Dedup windows. An alert type's window is how long a fingerprint stays hot
// after an alert is admitted.
const (
	// DefaultWindow applies to every alert type without an override.
	DefaultWindow = 60 * time.Second

	// ShortWindow applies to high-churn external detector alerts.
	ShortWindow = 30 * time.Second

	// AggregateWindow applies to rolling aggregate alerts, which already
	// carry their own cooldown upstream.
	AggregateWindow = 300 * time.Second
)

// Window returns the dedup window for an alert type.
func Window(alertType string) time.Duration {
	switch alertType {
	case messages.TypeSuspiciousActivity, messages.TypeMaskViolation:
		return ShortWindow
	case messages.TypeMultipleZoneViolations:
		return AggregateWindow
	}
	return DefaultWindow
}

// AlertStore is the persistence the dedup engine runs against.
type AlertStore interface {
	// CreateAlert persists a new alert.
	CreateAlert(ctx context.Context, alert *messages.Alert) error

	// HasRecent reports whether an alert with this fingerprint was created
	// for this camera at or after since.
	HasRecent(ctx context.Context, cameraID, fingerprint string, since time.Time) (bool, error)
}

// Engine admits or suppresses alert candidates against the store.
type Engine struct {
	store  AlertStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a dedup engine backed by the given store.
func NewEngine(store AlertStore, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "dedup").Logger(),
		now:    time.Now,
	}
}

// EmitOrSuppress fingerprints a candidate and checks the store for a live
// duplicate. If none exists the candidate is persisted as a new alert and
// returned with created=true; a duplicate returns (nil, false, nil).
//
// A store lookup failure fails open: the alert is admitted. Missing a
// duplicate is recoverable downstream; dropping a weapon alert is not.
func (e *Engine) EmitOrSuppress(ctx context.Context, cand messages.AlertCandidate, analyzerID string) (*messages.Alert, bool, error) {
	fp := Fingerprint(cand)
	since := e.now().Add(-Window(cand.Type))

	dup, err := e.store.HasRecent(ctx, cand.CameraID, fp, since)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("camera_id", cand.CameraID).
			Str("alert_type", cand.Type).
			Msg("Dedup lookup failed, admitting alert")
	} else if dup {
		e.logger.Debug().
			Str("camera_id", cand.CameraID).
			Str("alert_type", cand.Type).
			Str("fingerprint", fp).
			Msg("Duplicate alert suppressed")
		return nil, false, nil
	}

	alert := messages.NewAlert(cand, analyzerID)
	alert.AlertID = uuid.NewString()
	alert.Fingerprint = fp
	alert.CreatedAt = e.now().UTC()

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("persisting alert: %w", err)
	}

	return alert, true, nil
}
