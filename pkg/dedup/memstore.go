package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

// MemStore is an in-memory AlertStore for tests and single-node runs
// without Postgres.
type MemStore struct {
	mu     sync.Mutex
	alerts []*messages.Alert
}

// NewMemStore creates an empty in-memory alert store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) CreateAlert(_ context.Context, alert *messages.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *alert
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *MemStore) HasRecent(_ context.Context, cameraID, fingerprint string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.CameraID == cameraID && a.Fingerprint == fingerprint && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Alerts returns a snapshot of everything stored, newest last.
func (m *MemStore) Alerts() []*messages.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*messages.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
