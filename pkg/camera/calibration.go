package camera

import "math"

// DefaultPixelsPerMeter is the placeholder scale used for cameras without
// calibration. Speed estimates derived from it are rough.
const DefaultPixelsPerMeter = 50.0

// PixelsPerMeter derives the scale factor from a reference object of known
// real-world height measured in the frame. The camera angle (degrees from
// horizontal) compensates for perspective foreshortening. Returns ok=false
// when the reference measurements are unusable.
func PixelsPerMeter(cameraAngleDeg, refHeightMeters, refHeightPixels float64) (float64, bool) {
	if refHeightPixels <= 0 || refHeightMeters <= 0 {
		return 0, false
	}
	ppm := refHeightPixels / refHeightMeters
	angleRad := cameraAngleDeg * math.Pi / 180
	if angleRad > 0 && math.Cos(angleRad) > 0 {
		ppm = ppm / math.Cos(angleRad)
	}
	return ppm, true
}

// Distance converts a pixel distance to meters. Returns ok=false when the
// scale is unusable.
func Distance(pixelDistance, pixelsPerMeter float64) (float64, bool) {
	if pixelsPerMeter <= 0 {
		return 0, false
	}
	return pixelDistance / pixelsPerMeter, true
}

// Speed converts a pixel displacement over elapsed seconds to meters per
// second. Returns ok=false for non-positive elapsed time or unusable scale.
func Speed(pixelDistance, seconds, pixelsPerMeter float64) (float64, bool) {
	if seconds <= 0 {
		return 0, false
	}
	meters, ok := Distance(pixelDistance, pixelsPerMeter)
	if !ok {
		return 0, false
	}
	return meters / seconds, true
}
