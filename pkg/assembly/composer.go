package assembly

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/registry"
)

// Part is one placed fragment.
type Part struct {
	Instance int    // index of the placement that produced the part
	Model    string // model identifier
	Fragment string // fragment name within the model
	Offset   kernel.Vec3
	Solid    kernel.Solid
}

// Assembly is the ordered result of a composition.
type Assembly struct {
	Layout string
	Parts  []Part
}

// Solids returns the placed solids in order.
func (a *Assembly) Solids() []kernel.Solid {
	out := make([]kernel.Solid, len(a.Parts))
	for i, p := range a.Parts {
		out[i] = p.Solid
	}
	return out
}

// Instances returns the number of placed model instances.
func (a *Assembly) Instances() int {
	n := 0
	for _, p := range a.Parts {
		if p.Instance+1 > n {
			n = p.Instance + 1
		}
	}
	return n
}

// Composer builds assemblies. It holds no per-request state; one Composer
// may serve concurrent compositions when its kernel allows it.
type Composer struct {
	reg    *registry.Registry
	kernel kernel.Kernel
	logger *log.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewComposer returns a Composer over reg and k.
func NewComposer(reg *registry.Registry, k kernel.Kernel, opts ...Option) *Composer {
	c := &Composer{
		reg:    reg,
		kernel: k,
		logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry returns the catalogue the composer resolves models against.
func (c *Composer) Registry() *registry.Registry {
	return c.reg
}

// Compose runs the strategy and builds every placement. Any failure aborts
// the whole composition; no partial assembly is returned.
func (c *Composer) Compose(s LayoutStrategy) (*Assembly, error) {
	placements, err := s.Placements(c.reg)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	asm := &Assembly{Layout: s.Name()}
	for i, pl := range placements {
		frags, err := c.reg.Instantiate(c.kernel, pl.Model, pl.Params)
		if err != nil {
			return nil, fmt.Errorf("compose: entry %d (%s): %w", i, pl.Model, err)
		}
		c.logger.Debug("placed model", "layout", s.Name(), "entry", i, "model", pl.Model,
			"offset", pl.Offset, "fragments", len(frags))
		asm.Parts = append(asm.Parts, c.place(i, pl, frags)...)
	}
	c.logger.Debug("composed assembly", "layout", s.Name(), "instances", len(placements), "parts", len(asm.Parts))
	return asm, nil
}

func (c *Composer) place(instance int, pl Placement, frags []hardware.Fragment) []Part {
	parts := make([]Part, len(frags))
	for j, f := range frags {
		parts[j] = Part{
			Instance: instance,
			Model:    pl.Model,
			Fragment: f.Name,
			Offset:   pl.Offset,
			Solid:    c.kernel.Translate(f.Solid, pl.Offset),
		}
	}
	return parts
}

// ComposeManual composes a manual layout.
func (c *Composer) ComposeManual(m Manual) (*Assembly, error) {
	return c.Compose(m)
}

// ComposeAuto lines up the whole catalogue, applying overrides per model.
func (c *Composer) ComposeAuto(overrides map[string]AutoOverride) (*Assembly, error) {
	return c.Compose(Auto{Overrides: overrides})
}

// ComposeHorizontal lines items up along X.
func (c *Composer) ComposeHorizontal(items []Item, spacing float64) (*Assembly, error) {
	return c.Compose(Horizontal{Items: items, Spacing: spacing})
}

// ComposeVertical lines items up along Y.
func (c *Composer) ComposeVertical(items []Item, spacing float64) (*Assembly, error) {
	return c.Compose(Vertical{Items: items, Spacing: spacing})
}

// ComposeGrid fills a grid of cols columns.
func (c *Composer) ComposeGrid(items []Item, cols int, xSpacing, ySpacing float64) (*Assembly, error) {
	return c.Compose(Grid{Items: items, Cols: cols, XSpacing: xSpacing, YSpacing: ySpacing})
}
