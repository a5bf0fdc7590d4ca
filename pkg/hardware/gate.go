package hardware

import (
	"fmt"

	"github.com/chazu/alucad/pkg/kernel"
)

// Gate fragment names, in generation order.
const (
	FragmentFrame        = "frame"
	FragmentTransomStrip = "transom-strip"
	FragmentTransomPanel = "transom-panel"
	FragmentLeafFrame    = "leaf-frame"
	FragmentLeafStrip    = "leaf-strip"
	FragmentLeafPanel    = "leaf-panel"
)

// GateSlatPitch is the pitch of the infill slats in both gate panels.
const GateSlatPitch = 55.0

const gateModel = "gate"

// GateParams are the dimensions of a wicket gate.
type GateParams struct {
	Width         float64
	Height        float64
	Profile       float64
	OpeningHeight float64
	Gap           float64
}

// DefaultGateParams returns the catalogue dimensions of the wicket gate.
func DefaultGateParams() GateParams {
	return GateParams{Width: 1000, Height: 2700, Profile: 40, OpeningHeight: 2100, Gap: 100}
}

// ParseGateParams decodes and validates a gate parameter set.
func ParseGateParams(p Params) (GateParams, error) {
	var g GateParams
	err := decode(gateModel, p, []field{
		{"width", &g.Width},
		{"height", &g.Height},
		{"profile", &g.Profile},
		{"openingHeight", &g.OpeningHeight},
		{"gap", &g.Gap},
	})
	if err != nil {
		return GateParams{}, err
	}
	if err := g.Validate(); err != nil {
		return GateParams{}, err
	}
	return g, nil
}

// DoorWidth is the width of the door leaf.
func (g GateParams) DoorWidth() float64 { return g.Width - 2*g.Profile - 20 }

// DoorHeight is the height of the door leaf.
func (g GateParams) DoorHeight() float64 { return g.OpeningHeight - g.Gap - 10 }

// Validate checks the relations between fields and every derived dimension
// the generator cuts or tiles.
func (g GateParams) Validate() error {
	W, H, P, O := g.Width, g.Height, g.Profile, g.OpeningHeight
	if O >= H {
		return &ParamError{Model: gateModel, Field: "openingHeight",
			Reason: fmt.Sprintf("%g must be less than height %g", O, H)}
	}
	dW, dH := g.DoorWidth(), g.DoorHeight()
	checks := []struct {
		name, expr string
		v          float64
	}{
		{"frameOpening", "width - 2*profile", W - 2*P},
		{"headRail", "height - openingHeight - 2*profile", H - O - 2*P},
		{"transomStrip", "width - 120", W - 120},
		{"transomStrip", "height - openingHeight - 140", H - O - 140},
		{"transomPanel", "width - 2*profile - 4", W - 2*P - 4},
		{"doorWidth", "width - 2*profile - 20", dW},
		{"doorHeight", "openingHeight - gap - 10", dH},
		{"leafFrame", "doorWidth - 2*profile", dW - 2*P},
		{"leafFrame", "doorHeight - 2*profile", dH - 2*P},
		{"leafStrip", "doorWidth - 120", dW - 120},
		{"leafStrip", "doorHeight - 100", dH - 100},
	}
	for _, c := range checks {
		if err := derived(gateModel, c.name, c.expr, c.v); err != nil {
			return err
		}
	}
	return nil
}

// Params returns g as a parameter set.
func (g GateParams) Params() Params {
	return Params{
		"width":         g.Width,
		"height":        g.Height,
		"profile":       g.Profile,
		"openingHeight": g.OpeningHeight,
		"gap":           g.Gap,
	}
}

// Gate builds a wicket gate: an outer frame with a transom above the
// opening and a door leaf inside it, each panel filled with slats.
// The six fragments are returned un-merged in a fixed order.
func Gate(k kernel.Kernel, p Params) ([]Fragment, error) {
	g, err := ParseGateParams(p)
	if err != nil {
		return nil, err
	}
	W, H, P, O, G := g.Width, g.Height, g.Profile, g.OpeningHeight, g.Gap
	dW, dH := g.DoorWidth(), g.DoorHeight()

	frags := make([]Fragment, 0, 6)
	add := func(name string, s kernel.Solid, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %s: %w", gateModel, name, err)
		}
		frags = append(frags, Fragment{Name: name, Solid: s})
		return nil
	}

	frame, err := boxMinus(k, span(0, 0, 0, W, P, H),
		span(P, 0, 0, W-P, P, O),
		span(P, 0, O+P, W-P, P, H-P),
	)
	if err := add(FragmentFrame, frame, err); err != nil {
		return nil, err
	}

	strip, err := boxMinus(k, span(0, 0, 0, W, 4, H-O-20),
		span(60, 0, 60, W-60, 4, H-O-80),
	)
	if err == nil {
		strip = k.Translate(strip, kernel.V3(0, -4, O+20))
	}
	if err := add(FragmentTransomStrip, strip, err); err != nil {
		return nil, err
	}

	transom, err := Tile(k, W-2*P-4, H-O, GateSlatPitch)
	if err == nil {
		transom = k.Translate(transom, kernel.V3(P+2, 9, O+P))
	}
	if err := add(FragmentTransomPanel, transom, err); err != nil {
		return nil, err
	}

	leaf, err := boxMinus(k, span(0, 0, 0, dW, P, dH),
		span(P, 0, P, dW-P, P, dH-P),
	)
	if err == nil {
		leaf = k.Translate(leaf, kernel.V3(P+10, 0, G))
	}
	if err := add(FragmentLeafFrame, leaf, err); err != nil {
		return nil, err
	}

	leafStrip, err := boxMinus(k, span(0, 0, 0, dW+40, 4, dH+20),
		span(80, 0, 60, dW-40, 4, dH-40),
	)
	if err == nil {
		leafStrip = k.Translate(leafStrip, kernel.V3(P-10, -4, G))
	}
	if err := add(FragmentLeafStrip, leafStrip, err); err != nil {
		return nil, err
	}

	panel, err := Tile(k, dW-2*P, dH-P, GateSlatPitch)
	if err == nil {
		panel = k.Translate(panel, kernel.V3(2*P+10, 9, G+P))
	}
	if err := add(FragmentLeafPanel, panel, err); err != nil {
		return nil, err
	}

	return frags, nil
}
