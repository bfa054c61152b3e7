// Package geometry provides the stateless spatial primitives used by the
// alert rules: bounding boxes, named zones, and overlap/containment tests.
package geometry

import "math"

// Point is a pixel coordinate in frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// BoxFormat identifies how the four bounding box coordinates are interpreted.
// Detectors must tag the format explicitly; there is no magnitude guessing.
type BoxFormat string

const (
	// BoxXYWH is top-left corner plus width and height.
	BoxXYWH BoxFormat = "xywh"
	// BoxCorners is top-left and bottom-right corners (x1, y1, x2, y2).
	BoxCorners BoxFormat = "xyxy"
)

// BoundingBox is an axis-aligned rectangle around a detected entity.
// An empty Format is treated as BoxXYWH.
type BoundingBox struct {
	Format BoxFormat `json:"format,omitempty"`
	Coords []float64 `json:"coords"`
}

// NewBox builds a bounding box in the given format.
func NewBox(format BoxFormat, coords ...float64) BoundingBox {
	return BoundingBox{Format: format, Coords: coords}
}

// Corners normalizes the box to (x1, y1, x2, y2) form. It returns ok=false
// for boxes with fewer than four coordinates.
func (b BoundingBox) Corners() (x1, y1, x2, y2 float64, ok bool) {
	if len(b.Coords) < 4 {
		return 0, 0, 0, 0, false
	}
	if b.Format == BoxCorners {
		x1, y1, x2, y2 = b.Coords[0], b.Coords[1], b.Coords[2], b.Coords[3]
		if x2 < x1 {
			x1, x2 = x2, x1
		}
		if y2 < y1 {
			y1, y2 = y2, y1
		}
		return x1, y1, x2, y2, true
	}
	return b.Coords[0], b.Coords[1], b.Coords[0] + b.Coords[2], b.Coords[1] + b.Coords[3], true
}

// Center returns the midpoint of the box, or ok=false for malformed input.
func (b BoundingBox) Center() (Point, bool) {
	x1, y1, x2, y2, ok := b.Corners()
	if !ok {
		return Point{}, false
	}
	return Point{X: (x1 + x2) / 2, Y: (y1 + y2) / 2}, true
}

// Size returns the width and height of the box, or ok=false for malformed
// input.
func (b BoundingBox) Size() (w, h float64, ok bool) {
	x1, y1, x2, y2, ok := b.Corners()
	if !ok {
		return 0, 0, false
	}
	return x2 - x1, y2 - y1, true
}

// Valid reports whether the box is well formed with positive area.
func (b BoundingBox) Valid() bool {
	w, h, ok := b.Size()
	return ok && w > 0 && h > 0
}

// IoU computes intersection over union of two boxes in [0, 1]. Degenerate
// boxes (missing coordinates or non-positive area) and disjoint boxes
// yield 0. IoU is symmetric.
func IoU(a, b BoundingBox) float64 {
	ax1, ay1, ax2, ay2, ok := a.Corners()
	if !ok {
		return 0
	}
	bx1, by1, bx2, by2, ok := b.Corners()
	if !ok {
		return 0
	}

	ix1 := math.Max(ax1, bx1)
	iy1 := math.Max(ay1, by1)
	ix2 := math.Min(ax2, bx2)
	iy2 := math.Min(ay2, by2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	intersection := (ix2 - ix1) * (iy2 - iy1)

	areaA := (ax2 - ax1) * (ay2 - ay1)
	areaB := (bx2 - bx1) * (by2 - by1)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// ZoneType identifies the geometric shape of a zone.
type ZoneType string

const (
	ZoneRectangle ZoneType = "rectangle"
	ZoneCircle    ZoneType = "circle"
	ZonePolygon   ZoneType = "polygon"
)

// Zone is a named region of the camera frame used by the intrusion and
// presence rules. Which geometry fields are meaningful depends on Type.
type Zone struct {
	Name string   `json:"name"`
	Type ZoneType `json:"type"`

	// Rectangle
	TopLeft     Point `json:"top_left,omitempty"`
	BottomRight Point `json:"bottom_right,omitempty"`

	// Circle
	Center Point   `json:"center,omitempty"`
	Radius float64 `json:"radius,omitempty"`

	// Polygon, ordered vertices
	Vertices []Point `json:"vertices,omitempty"`
}

// Contains reports whether the point lies inside the zone. Rectangle bounds
// are inclusive; circles use distance to center; polygons use the even-odd
// ray casting test and require at least three vertices.
func (z Zone) Contains(p Point) bool {
	switch z.Type {
	case ZoneRectangle:
		return p.X >= z.TopLeft.X && p.X <= z.BottomRight.X &&
			p.Y >= z.TopLeft.Y && p.Y <= z.BottomRight.Y
	case ZoneCircle:
		return p.DistanceTo(z.Center) <= z.Radius
	case ZonePolygon:
		return pointInPolygon(p, z.Vertices)
	}
	return false
}

func pointInPolygon(p Point, vertices []Point) bool {
	if len(vertices) < 3 {
		return false
	}
	inside := false
	j := len(vertices) - 1
	for i := 0; i < len(vertices); i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
