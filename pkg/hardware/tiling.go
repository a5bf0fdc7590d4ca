package hardware

import (
	"fmt"
	"math"

	"github.com/chazu/alucad/pkg/kernel"
)

// Slat cross-section constants.
const (
	slatDepth  = 7.0  // straight runs of the profile
	slatBulge  = 0.15 // bulge of both curved sides
	slatOffset = 3.0  // clearance between the slats and the frame plane
)

// SlatCount is the number of whole slats of the given pitch that fit in
// height. Any remainder is left unfilled.
func SlatCount(height, pitch float64) int {
	if pitch <= 0 || height <= 0 {
		return 0
	}
	return int(math.Floor(height / pitch))
}

// SlatProfile returns the closed cross-section of one aluminium slat of the
// given pitch, drawn in the YZ sketch plane.
func SlatProfile(pitch float64) (*kernel.Profile, error) {
	return kernel.DrawPath().
		HLine(-slatDepth).
		BulgeArc(0, pitch, -slatBulge).
		HLine(slatDepth).
		BulgeArc(0, -pitch, slatBulge).
		Close()
}

// Tile stacks identical slats of length width, pitch apart, until height
// is filled. The slats are returned as one compound; when not even one slat
// fits the compound is empty.
func Tile(k kernel.Kernel, width, height, pitch float64) (kernel.Solid, error) {
	if pitch <= 0 {
		return nil, &ParamError{Model: "slats", Field: "pitch", Reason: fmt.Sprintf("%g must be positive", pitch)}
	}
	if width <= 0 {
		return nil, &ParamError{Model: "slats", Field: "width", Reason: fmt.Sprintf("%g must be positive", width)}
	}
	count := SlatCount(height, pitch)
	if count == 0 {
		return k.Compound(), nil
	}

	profile, err := SlatProfile(pitch)
	if err != nil {
		return nil, err
	}
	slat, err := k.Extrude(profile, kernel.PlaneYZ, width)
	if err != nil {
		return nil, err
	}

	slats := make([]kernel.Solid, count)
	for i := range slats {
		slats[i] = k.Translate(slat, kernel.V3(0, slatOffset, pitch*float64(i)))
	}
	return k.Compound(slats...), nil
}
