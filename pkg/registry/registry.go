// Package registry is the immutable catalogue of parametric models.
package registry

import (
	"errors"
	"fmt"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
)

// ErrUnknownModel is returned when an identifier is not in the catalogue.
var ErrUnknownModel = errors.New("unknown model")

// Model identifiers of the default catalogue.
const (
	Gate        = "gate"
	RollingDoor = "rollingDoor"
)

// Entry describes one model in the catalogue.
type Entry struct {
	ID          string
	Name        string
	Description string
	Generate    hardware.Generator
	Defaults    hardware.Params
}

// Registry maps model identifiers to entries. It is never mutated after
// New returns and is safe for concurrent use.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// New builds a registry from entries in the given order. Defaults are
// copied so later changes by the caller do not leak in. Duplicate or empty
// identifiers panic, as the catalogue is fixed at build time.
func New(entries ...Entry) *Registry {
	r := &Registry{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			panic("registry: entry with empty id")
		}
		if _, dup := r.index[e.ID]; dup {
			panic(fmt.Sprintf("registry: duplicate id %q", e.ID))
		}
		e.Defaults = e.Defaults.Clone()
		r.entries[i] = e
		r.index[e.ID] = i
	}
	return r
}

// Default returns the built-in catalogue: the wicket gate followed by the
// roller shutter.
func Default() *Registry {
	return New(
		Entry{
			ID:          Gate,
			Name:        "Wicket gate",
			Description: "Aluminium wicket gate with profile infill",
			Generate:    hardware.Gate,
			Defaults:    hardware.DefaultGateParams().Params(),
		},
		Entry{
			ID:          RollingDoor,
			Name:        "Roller shutter",
			Description: "Roll-up door with aluminium slats",
			Generate:    hardware.RollerShutter,
			Defaults:    hardware.DefaultShutterParams().Params(),
		},
	)
}

// Lookup returns the entry for id. The returned Defaults are a copy.
func (r *Registry) Lookup(id string) (Entry, error) {
	i, ok := r.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	e := r.entries[i]
	e.Defaults = e.Defaults.Clone()
	return e, nil
}

// List returns every entry in catalogue order.
func (r *Registry) List() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		e.Defaults = e.Defaults.Clone()
		out[i] = e
	}
	return out
}

// IDs returns the model identifiers in catalogue order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.ID
	}
	return ids
}

// DefaultParams returns a copy of the defaults for id, or an empty set when
// id is unknown.
func (r *Registry) DefaultParams(id string) hardware.Params {
	i, ok := r.index[id]
	if !ok {
		return hardware.Params{}
	}
	return r.entries[i].Defaults.Clone()
}

// Instantiate merges params over the model defaults and runs the generator.
func (r *Registry) Instantiate(k kernel.Kernel, id string, params hardware.Params) ([]hardware.Fragment, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	e := r.entries[i]
	return e.Generate(k, e.Defaults.Merge(params))
}
