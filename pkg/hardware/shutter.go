package hardware

import (
	"fmt"

	"github.com/chazu/alucad/pkg/kernel"
)

// Roller shutter fragment names, in generation order.
const (
	FragmentRails   = "rails"
	FragmentRollbox = "rollbox"
	FragmentCurtain = "curtain"
)

const (
	shutterModel = "rollingDoor"

	curtainInset  = 40.0 // curtain clearance from each side of the rails
	curtainOffset = 15.0 // curtain depth offset from the front face
)

// ShutterParams are the dimensions of a roller shutter.
type ShutterParams struct {
	Width         float64
	Height        float64
	Profile       float64
	RailWidth     float64
	RailDepth     float64
	RollboxHeight float64
}

// DefaultShutterParams returns the catalogue dimensions of the roller
// shutter.
func DefaultShutterParams() ShutterParams {
	return ShutterParams{Width: 3000, Height: 2600, Profile: 77, RailWidth: 83, RailDepth: 34, RollboxHeight: 300}
}

// ParseShutterParams decodes and validates a roller shutter parameter set.
func ParseShutterParams(p Params) (ShutterParams, error) {
	var s ShutterParams
	err := decode(shutterModel, p, []field{
		{"width", &s.Width},
		{"height", &s.Height},
		{"profile", &s.Profile},
		{"railWidth", &s.RailWidth},
		{"railDepth", &s.RailDepth},
		{"rollboxHeight", &s.RollboxHeight},
	})
	if err != nil {
		return ShutterParams{}, err
	}
	if err := s.Validate(); err != nil {
		return ShutterParams{}, err
	}
	return s, nil
}

// CurtainWidth is the length of each curtain slat.
func (s ShutterParams) CurtainWidth() float64 { return s.Width - 2*curtainInset }

// Validate checks the relations between fields and the derived dimensions.
func (s ShutterParams) Validate() error {
	if s.RollboxHeight >= s.Height {
		return &ParamError{Model: shutterModel, Field: "rollboxHeight",
			Reason: fmt.Sprintf("%g must be less than height %g", s.RollboxHeight, s.Height)}
	}
	if err := derived(shutterModel, "railCavity", "width - 2*railWidth", s.Width-2*s.RailWidth); err != nil {
		return err
	}
	return derived(shutterModel, "curtainWidth", "width - 80", s.CurtainWidth())
}

// Params returns s as a parameter set.
func (s ShutterParams) Params() Params {
	return Params{
		"width":         s.Width,
		"height":        s.Height,
		"profile":       s.Profile,
		"railWidth":     s.RailWidth,
		"railDepth":     s.RailDepth,
		"rollboxHeight": s.RollboxHeight,
	}
}

// RollerShutter builds a roll-up door: side rails, a roll box on top and a
// curtain of slats whose pitch is the profile size.
func RollerShutter(k kernel.Kernel, p Params) ([]Fragment, error) {
	s, err := ParseShutterParams(p)
	if err != nil {
		return nil, err
	}
	W, H, R := s.Width, s.Height, s.RollboxHeight
	wrap := func(name string, err error) error {
		return fmt.Errorf("%s: %s: %w", shutterModel, name, err)
	}

	rails, err := boxMinus(k, span(0, 0, 0, W, s.RailDepth, H-R),
		span(s.RailWidth, 0, 0, W-s.RailWidth, s.RailDepth, H-R),
	)
	if err != nil {
		return nil, wrap(FragmentRails, err)
	}

	rollbox, err := k.Box(kernel.V3(0, 0, 0), kernel.V3(W, R, R))
	if err != nil {
		return nil, wrap(FragmentRollbox, err)
	}
	rollbox = k.Translate(rollbox, kernel.V3(0, 0, H-R))

	curtain, err := Tile(k, s.CurtainWidth(), H, s.Profile)
	if err != nil {
		return nil, wrap(FragmentCurtain, err)
	}
	curtain = k.Translate(curtain, kernel.V3(curtainInset, curtainOffset, 0))

	return []Fragment{
		{Name: FragmentRails, Solid: rails},
		{Name: FragmentRollbox, Solid: rollbox},
		{Name: FragmentCurtain, Solid: curtain},
	}, nil
}
