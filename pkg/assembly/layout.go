// Package assembly places generated models in world space.
//
// Every layout is a LayoutStrategy: it only decides which models to build
// and where. The Composer runs one shared pipeline for all of them,
// instantiating each placement through the registry and translating its
// fragments by the placement offset.
package assembly

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/registry"
)

// ErrInvalidLayout is returned for malformed layout configurations.
var ErrInvalidLayout = errors.New("invalid layout")

// Layout defaults.
const (
	DefaultSpacing  = 100.0
	DefaultGridCols = 2

	// AutoGap separates neighbours in an auto layout.
	AutoGap = 100.0

	// FallbackWidth and FallbackHeight stand in for entries whose params do
	// not set a width or height.
	FallbackWidth  = 1000.0
	FallbackHeight = 2000.0
)

var defaultPositions = map[string]kernel.Vec3{
	registry.Gate:        kernel.V3(0, 0, 0),
	registry.RollingDoor: kernel.V3(1200, 0, 0),
}

// DefaultPosition is the manual offset used for id when an entry gives none.
// Models without a stock position report false and sit at the origin.
func DefaultPosition(id string) (kernel.Vec3, bool) {
	v, ok := defaultPositions[id]
	return v, ok
}

// Placement is one model instance and its world offset.
type Placement struct {
	Model  string
	Params hardware.Params
	Offset kernel.Vec3
}

// LayoutStrategy computes the placements of a composition.
type LayoutStrategy interface {
	// Name identifies the strategy in logs and manifests.
	Name() string
	Placements(reg *registry.Registry) ([]Placement, error)
}

// Item is one entry of a list or grid layout.
type Item struct {
	Model  string          `yaml:"model" json:"model"`
	Params hardware.Params `yaml:"params,omitempty" json:"params,omitempty"`
}

func layoutErr(strategy, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidLayout, strategy, fmt.Sprintf(format, args...))
}

func checkItems(strategy string, items []Item) error {
	for i, it := range items {
		if it.Model == "" {
			return layoutErr(strategy, "entry %d has no model", i)
		}
	}
	return nil
}

func checkSpacing(strategy string, values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return layoutErr(strategy, "spacing %v is not a finite number", v)
		}
	}
	return nil
}

// ManualEntry places one model at a fixed position.
type ManualEntry struct {
	Model    string
	Enabled  bool
	Params   hardware.Params
	Position *kernel.Vec3 // nil means DefaultPosition(Model)
}

// Manual places each enabled entry at its own position.
type Manual struct {
	Entries []ManualEntry
}

// DefaultManual is the stock two-model layout: the gate at the origin and
// the roller shutter 1200 mm to its right.
func DefaultManual() Manual {
	gate, _ := DefaultPosition(registry.Gate)
	door, _ := DefaultPosition(registry.RollingDoor)
	return Manual{Entries: []ManualEntry{
		{Model: registry.Gate, Enabled: true, Position: &gate},
		{Model: registry.RollingDoor, Enabled: true, Position: &door},
	}}
}

func (Manual) Name() string { return "manual" }

func (m Manual) Placements(_ *registry.Registry) ([]Placement, error) {
	var out []Placement
	for i, e := range m.Entries {
		if e.Model == "" {
			return nil, layoutErr(m.Name(), "entry %d has no model", i)
		}
		if !e.Enabled {
			continue
		}
		pos, _ := DefaultPosition(e.Model)
		if e.Position != nil {
			pos = *e.Position
		}
		out = append(out, Placement{Model: e.Model, Params: e.Params.Clone(), Offset: pos})
	}
	return out, nil
}

// AutoOverride adjusts one catalogue model in an auto layout.
type AutoOverride struct {
	Enabled *bool // only an explicit false disables the model
	Params  hardware.Params
}

// Auto lines up every catalogue model along X, in catalogue order.
type Auto struct {
	Overrides map[string]AutoOverride
}

func (Auto) Name() string { return "auto" }

func (a Auto) Placements(reg *registry.Registry) ([]Placement, error) {
	for id := range a.Overrides {
		if _, err := reg.Lookup(id); err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
	}
	var out []Placement
	x := 0.0
	for _, id := range reg.IDs() {
		o := a.Overrides[id]
		if o.Enabled != nil && !*o.Enabled {
			continue
		}
		out = append(out, Placement{Model: id, Params: o.Params.Clone(), Offset: kernel.V3(x, 0, 0)})
		width, ok := o.Params.Get("width")
		if !ok {
			width = reg.DefaultParams(id).Or("width", FallbackWidth)
		}
		x += width + AutoGap
	}
	return out, nil
}

// Horizontal lines items up along X.
type Horizontal struct {
	Items   []Item
	Spacing float64
}

// NewHorizontal returns a horizontal layout with the default spacing.
func NewHorizontal(items ...Item) Horizontal {
	return Horizontal{Items: items, Spacing: DefaultSpacing}
}

func (Horizontal) Name() string { return "horizontal" }

func (h Horizontal) Placements(_ *registry.Registry) ([]Placement, error) {
	if err := checkItems(h.Name(), h.Items); err != nil {
		return nil, err
	}
	if err := checkSpacing(h.Name(), h.Spacing); err != nil {
		return nil, err
	}
	out := make([]Placement, 0, len(h.Items))
	x := 0.0
	for _, it := range h.Items {
		out = append(out, Placement{Model: it.Model, Params: it.Params.Clone(), Offset: kernel.V3(x, 0, 0)})
		x += it.Params.Or("width", FallbackWidth) + h.Spacing
	}
	return out, nil
}

// Vertical lines items up along Y.
type Vertical struct {
	Items   []Item
	Spacing float64
}

// NewVertical returns a vertical layout with the default spacing.
func NewVertical(items ...Item) Vertical {
	return Vertical{Items: items, Spacing: DefaultSpacing}
}

func (Vertical) Name() string { return "vertical" }

func (v Vertical) Placements(_ *registry.Registry) ([]Placement, error) {
	if err := checkItems(v.Name(), v.Items); err != nil {
		return nil, err
	}
	if err := checkSpacing(v.Name(), v.Spacing); err != nil {
		return nil, err
	}
	out := make([]Placement, 0, len(v.Items))
	y := 0.0
	for _, it := range v.Items {
		out = append(out, Placement{Model: it.Model, Params: it.Params.Clone(), Offset: kernel.V3(0, y, 0)})
		y += it.Params.Or("height", FallbackHeight) + v.Spacing
	}
	return out, nil
}

// Grid fills rows of Cols items. Each cell is sized by its own item.
type Grid struct {
	Items    []Item
	Cols     int
	XSpacing float64
	YSpacing float64
}

// NewGrid returns a grid layout with the default columns and spacing.
func NewGrid(items ...Item) Grid {
	return Grid{Items: items, Cols: DefaultGridCols, XSpacing: DefaultSpacing, YSpacing: DefaultSpacing}
}

func (Grid) Name() string { return "grid" }

func (g Grid) Placements(_ *registry.Registry) ([]Placement, error) {
	if g.Cols <= 0 {
		return nil, layoutErr(g.Name(), "cols must be positive, got %d", g.Cols)
	}
	if err := checkItems(g.Name(), g.Items); err != nil {
		return nil, err
	}
	if err := checkSpacing(g.Name(), g.XSpacing, g.YSpacing); err != nil {
		return nil, err
	}
	out := make([]Placement, 0, len(g.Items))
	for i, it := range g.Items {
		row, col := i/g.Cols, i%g.Cols
		x := float64(col) * (it.Params.Or("width", FallbackWidth) + g.XSpacing)
		y := float64(row) * (it.Params.Or("height", FallbackHeight) + g.YSpacing)
		out = append(out, Placement{Model: it.Model, Params: it.Params.Clone(), Offset: kernel.V3(x, y, 0)})
	}
	return out, nil
}
