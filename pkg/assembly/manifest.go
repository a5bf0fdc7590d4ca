package assembly

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
)

// Defaults fill in layout settings a manifest or script leaves out.
type Defaults struct {
	Spacing      float64
	GridCols     int
	GridXSpacing float64
	GridYSpacing float64
}

// StockDefaults returns the built-in layout defaults.
func StockDefaults() Defaults {
	return Defaults{
		Spacing:      DefaultSpacing,
		GridCols:     DefaultGridCols,
		GridXSpacing: DefaultSpacing,
		GridYSpacing: DefaultSpacing,
	}
}

// Spacing is a scalar or a pair in YAML: `spacing: 100` or
// `spacing: [100, 150]`.
type Spacing []float64

// UnmarshalYAML accepts a scalar or a sequence of numbers.
func (s *Spacing) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := n.Decode(&v); err != nil {
			return err
		}
		*s = Spacing{v}
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := n.Decode(&vs); err != nil {
			return err
		}
		*s = vs
		return nil
	}
	return fmt.Errorf("line %d: spacing must be a number or a list of numbers", n.Line)
}

// ManifestModel is one model entry of a manifest.
type ManifestModel struct {
	Model    string          `yaml:"model"`
	Enabled  *bool           `yaml:"enabled,omitempty"`
	Position *[3]float64     `yaml:"position,omitempty"`
	Params   hardware.Params `yaml:"params,omitempty"`
}

func (m ManifestModel) enabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Manifest describes one composition in YAML.
//
//	layout: grid
//	cols: 2
//	spacing: [100, 100]
//	models:
//	  - model: gate
//	    params: {width: 1200}
//	  - model: rollingDoor
type Manifest struct {
	Layout  string          `yaml:"layout"`
	Cols    *int            `yaml:"cols,omitempty"`
	Spacing Spacing         `yaml:"spacing,omitempty"`
	Models  []ManifestModel `yaml:"models"`
}

// LoadManifest decodes a manifest. Unknown keys are rejected.
func LoadManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %w: empty document", ErrInvalidLayout)
		}
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &m, nil
}

// ReadManifest loads a manifest from path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return LoadManifest(data)
}

// Strategy converts the manifest with the stock defaults.
func (m *Manifest) Strategy() (LayoutStrategy, error) {
	return m.StrategyWith(StockDefaults())
}

// StrategyWith converts the manifest, filling omitted settings from d.
// Entries with enabled: false are left out of list and grid layouts.
func (m *Manifest) StrategyWith(d Defaults) (LayoutStrategy, error) {
	if m.Cols != nil && m.Layout != "grid" {
		return nil, layoutErr(m.Layout, "cols only applies to grid layouts")
	}
	for i, mm := range m.Models {
		if mm.Model == "" {
			return nil, layoutErr(m.Layout, "model %d has no name", i)
		}
		if mm.Position != nil && m.Layout != "manual" {
			return nil, layoutErr(m.Layout, "model %d: position only applies to manual layouts", i)
		}
	}

	switch m.Layout {
	case "manual":
		if len(m.Spacing) > 0 {
			return nil, layoutErr(m.Layout, "spacing does not apply")
		}
		entries := make([]ManualEntry, len(m.Models))
		for i, mm := range m.Models {
			entries[i] = ManualEntry{Model: mm.Model, Enabled: mm.enabled(), Params: mm.Params}
			if mm.Position != nil {
				p := kernel.V3(mm.Position[0], mm.Position[1], mm.Position[2])
				entries[i].Position = &p
			}
		}
		return Manual{Entries: entries}, nil

	case "auto":
		if len(m.Spacing) > 0 {
			return nil, layoutErr(m.Layout, "spacing does not apply")
		}
		overrides := make(map[string]AutoOverride, len(m.Models))
		for _, mm := range m.Models {
			if _, dup := overrides[mm.Model]; dup {
				return nil, layoutErr(m.Layout, "model %q listed twice", mm.Model)
			}
			overrides[mm.Model] = AutoOverride{Enabled: mm.Enabled, Params: mm.Params}
		}
		return Auto{Overrides: overrides}, nil

	case "horizontal", "vertical":
		spacing := d.Spacing
		switch len(m.Spacing) {
		case 0:
		case 1:
			spacing = m.Spacing[0]
		default:
			return nil, layoutErr(m.Layout, "spacing takes one value, got %d", len(m.Spacing))
		}
		items := m.items()
		if m.Layout == "horizontal" {
			return Horizontal{Items: items, Spacing: spacing}, nil
		}
		return Vertical{Items: items, Spacing: spacing}, nil

	case "grid":
		g := Grid{Items: m.items(), Cols: d.GridCols, XSpacing: d.GridXSpacing, YSpacing: d.GridYSpacing}
		if m.Cols != nil {
			g.Cols = *m.Cols
		}
		switch len(m.Spacing) {
		case 0:
		case 1:
			g.XSpacing, g.YSpacing = m.Spacing[0], m.Spacing[0]
		case 2:
			g.XSpacing, g.YSpacing = m.Spacing[0], m.Spacing[1]
		default:
			return nil, layoutErr(m.Layout, "spacing takes at most two values, got %d", len(m.Spacing))
		}
		return g, nil

	case "":
		return nil, fmt.Errorf("%w: manifest has no layout", ErrInvalidLayout)
	}
	return nil, fmt.Errorf("%w: unknown layout %q, expected manual, auto, horizontal, vertical or grid",
		ErrInvalidLayout, m.Layout)
}

func (m *Manifest) items() []Item {
	items := make([]Item, 0, len(m.Models))
	for _, mm := range m.Models {
		if !mm.enabled() {
			continue
		}
		items = append(items, Item{Model: mm.Model, Params: mm.Params})
	}
	return items
}
