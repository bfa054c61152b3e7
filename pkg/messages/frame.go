package messages

import (
	"time"

	"github.com/halcyon-security/framewatch/pkg/geometry"
)

// DetectionKind distinguishes person detections from generic objects.
type DetectionKind string

const (
	KindPerson DetectionKind = "person"
	KindObject DetectionKind = "object"
)

// Detection is one detected entity in a frame. EntityID is a short-horizon
// track id assigned by the detector; it is expected to stay stable for the
// same physical entity across consecutive frames of one camera session.
type Detection struct {
	EntityID   string               `json:"entity_id"`
	Kind       DetectionKind        `json:"kind"`
	Class      string               `json:"class,omitempty"` // e.g. knife, backpack
	Confidence float64              `json:"confidence"`      // 0.0-1.0
	BBox       geometry.BoundingBox `json:"bbox"`
}

// DetectionFrame carries all detections for one frame of one camera.
type DetectionFrame struct {
	Envelope Envelope `json:"envelope"`

	CameraID    string      `json:"camera_id"`
	FrameNumber int64       `json:"frame_number"`
	Timestamp   time.Time   `json:"timestamp"`
	FPS         float64     `json:"fps"`
	Detections  []Detection `json:"detections"`
}

func (f *DetectionFrame) GetEnvelope() Envelope {
	return f.Envelope
}

func (f *DetectionFrame) SetEnvelope(e Envelope) {
	f.Envelope = e
}

func (f *DetectionFrame) Subject() string {
	return "frame." + f.CameraID
}

// NewDetectionFrame creates a frame message for a camera.
func NewDetectionFrame(detectorID, cameraID string) *DetectionFrame {
	return &DetectionFrame{
		Envelope:  NewEnvelope(detectorID, "detector"),
		CameraID:  cameraID,
		Timestamp: time.Now().UTC(),
	}
}

// Persons returns the person detections that carry a usable bounding box.
func (f *DetectionFrame) Persons() []Detection {
	return f.filter(KindPerson)
}

// Objects returns the non-person detections that carry a usable bounding box.
func (f *DetectionFrame) Objects() []Detection {
	return f.filter(KindObject)
}

func (f *DetectionFrame) filter(kind DetectionKind) []Detection {
	var out []Detection
	for _, d := range f.Detections {
		if d.Kind != kind {
			continue
		}
		if _, ok := d.BBox.Center(); !ok {
			continue // malformed bbox, skip the entity rather than fail
		}
		out = append(out, d)
	}
	return out
}

// FrameInterval returns the nominal seconds per frame, falling back to one
// second when the detector did not report a frame rate.
func (f *DetectionFrame) FrameInterval() float64 {
	if f.FPS > 0 {
		return 1.0 / f.FPS
	}
	return 1.0
}
