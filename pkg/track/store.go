// Package track owns the per-camera mutable state the rule evaluators
// accumulate across frames: position samples, loitering timers, zone
// presence, movement history, object tracking and the zone violation log.
//
// State is partitioned strictly by camera id. A camera's state is borrowed
// by the analyzer for the duration of one frame evaluation (Lock/Unlock);
// Reset goes through the same lock so it can never interleave with an
// in-flight frame for that camera.
package track

import (
	"sync"
	"time"

	"github.com/halcyon-security/framewatch/pkg/geometry"
)

// HistoryCapacity bounds the per-entity movement history.
const HistoryCapacity = 10

// Sample is one observed position of an entity.
type Sample struct {
	Center    geometry.Point
	Timestamp time.Time
}

// History is a fixed-capacity ring buffer of the most recent samples.
type History struct {
	buf  [HistoryCapacity]Sample
	head int // index of the oldest sample
	n    int
}

// Push appends a sample, evicting the oldest once at capacity.
func (h *History) Push(s Sample) {
	if h.n < HistoryCapacity {
		h.buf[(h.head+h.n)%HistoryCapacity] = s
		h.n++
		return
	}
	h.buf[h.head] = s
	h.head = (h.head + 1) % HistoryCapacity
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	return h.n
}

// At returns the i-th sample, oldest first.
func (h *History) At(i int) Sample {
	return h.buf[(h.head+i)%HistoryCapacity]
}

// Last returns the most recent sample.
func (h *History) Last() (Sample, bool) {
	if h.n == 0 {
		return Sample{}, false
	}
	return h.At(h.n - 1), true
}

// Prev returns the second most recent sample.
func (h *History) Prev() (Sample, bool) {
	if h.n < 2 {
		return Sample{}, false
	}
	return h.At(h.n - 2), true
}

// LoiterState accumulates how long an entity has stayed within the
// loitering radius, and whether it has already been alerted for this stay.
type LoiterState struct {
	Center      geometry.Point
	Accumulated float64 // seconds
	Alerted     bool
}

// ZoneKind marks the class of zone a presence entry belongs to.
type ZoneKind string

const (
	ZoneRed    ZoneKind = "red"
	ZoneYellow ZoneKind = "yellow"
)

// ZonePresence records an entity's presence in one zone.
type ZonePresence struct {
	Kind      ZoneKind
	EntryTime time.Time
	Location  geometry.Point
	Alerted   bool
}

// ObjectState tracks a non-person object for abandonment detection.
// StationarySince is zero while the object is still moving.
type ObjectState struct {
	Center          geometry.Point
	Class           string
	LastSeen        time.Time
	StationarySince time.Time
}

// ViolationRecord is one frame's zone violation count.
type ViolationRecord struct {
	Timestamp time.Time
	Count     int
}

// violationWindow is the trailing window the violation log is pruned to.
const violationWindow = 5 * time.Minute

// CameraState holds all rule state for one camera. Callers must hold the
// state lock while reading or writing any field.
type CameraState struct {
	mu sync.Mutex

	// Speed holds the previous position sample per entity (running rule).
	Speed map[string]Sample

	// Loiter holds loitering accumulators per entity.
	Loiter map[string]*LoiterState

	// Zones holds presence entries keyed by entity id (restricted camera)
	// or "entity|zone" (explicit zones).
	Zones map[string]*ZonePresence

	// Movement holds the bounded position history per entity.
	Movement map[string]*History

	// Objects holds object tracking entries per entity.
	Objects map[string]*ObjectState

	// Violations is the rolling zone violation log.
	Violations []ViolationRecord

	// ViolationAlertedAt is when multiple_zone_violations last fired;
	// zero if never.
	ViolationAlertedAt time.Time
}

func newCameraState() *CameraState {
	return &CameraState{
		Speed:    make(map[string]Sample),
		Loiter:   make(map[string]*LoiterState),
		Zones:    make(map[string]*ZonePresence),
		Movement: make(map[string]*History),
		Objects:  make(map[string]*ObjectState),
	}
}

// Lock takes the camera's state lock for the duration of one frame
// evaluation or a reset.
func (s *CameraState) Lock() { s.mu.Lock() }

// Unlock releases the camera's state lock.
func (s *CameraState) Unlock() { s.mu.Unlock() }

// HistoryFor returns the movement history for an entity, creating it on
// first sighting.
func (s *CameraState) HistoryFor(entityID string) *History {
	h, ok := s.Movement[entityID]
	if !ok {
		h = &History{}
		s.Movement[entityID] = h
	}
	return h
}

// RecordViolation appends one frame's violation count and prunes the log to
// the trailing five minutes of its most recent entry.
func (s *CameraState) RecordViolation(ts time.Time, count int) {
	s.Violations = append(s.Violations, ViolationRecord{Timestamp: ts, Count: count})
	cutoff := ts.Add(-violationWindow)
	kept := s.Violations[:0]
	for _, v := range s.Violations {
		if v.Timestamp.After(cutoff) {
			kept = append(kept, v)
		}
	}
	s.Violations = kept
}

// clear drops all namespaces, returning the state to first-sighting
// conditions.
func (s *CameraState) clear() {
	s.Speed = make(map[string]Sample)
	s.Loiter = make(map[string]*LoiterState)
	s.Zones = make(map[string]*ZonePresence)
	s.Movement = make(map[string]*History)
	s.Objects = make(map[string]*ObjectState)
	s.Violations = nil
	s.ViolationAlertedAt = time.Time{}
}

// Store owns one CameraState per camera id, created lazily.
type Store struct {
	mu      sync.RWMutex
	cameras map[string]*CameraState
}

// NewStore creates an empty track state store.
func NewStore() *Store {
	return &Store{cameras: make(map[string]*CameraState)}
}

// Camera returns the state for a camera id, creating it on first use.
func (st *Store) Camera(cameraID string) *CameraState {
	st.mu.RLock()
	s, ok := st.cameras[cameraID]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok = st.cameras[cameraID]; ok {
		return s
	}
	s = newCameraState()
	st.cameras[cameraID] = s
	return s
}

// Reset clears all tracking state for one camera. Must be called when a new
// independent processing session starts (e.g. a new uploaded video) so that
// stale already-alerted flags and accumulators do not leak across sessions.
// Other cameras are unaffected.
func (st *Store) Reset(cameraID string) {
	st.mu.RLock()
	s, ok := st.cameras[cameraID]
	st.mu.RUnlock()
	if !ok {
		return
	}
	s.Lock()
	s.clear()
	s.Unlock()
}

// Forget evicts a camera's state entirely (camera decommissioned).
func (st *Store) Forget(cameraID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.cameras, cameraID)
}

// Cameras returns the ids with live state, for introspection.
func (st *Store) Cameras() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.cameras))
	for id := range st.cameras {
		ids = append(ids, id)
	}
	return ids
}
