// Package hardware holds the parametric generators for aluminium hardware:
// a wicket gate and a roller shutter. Each generator turns a small set of
// millimetre dimensions into an ordered list of solid fragments.
package hardware

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/alucad/pkg/kernel"
)

// Params maps parameter names to values in millimetres.
type Params map[string]float64

// Clone returns a copy of p. The copy of a nil set is an empty set.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new set holding p with every field of override applied
// on top, field by field.
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Get returns the named value and whether it is set.
func (p Params) Get(name string) (float64, bool) {
	v, ok := p[name]
	return v, ok
}

// Or returns the named value, or fallback when it is not set.
func (p Params) Or(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fragment is one named solid produced by a generator.
type Fragment struct {
	Name  string
	Solid kernel.Solid
}

// Generator builds the fragments of one model from its parameters.
type Generator func(k kernel.Kernel, p Params) ([]Fragment, error)

// ErrInvalidParameters is the sentinel every parameter validation failure
// unwraps to.
var ErrInvalidParameters = errors.New("invalid parameters")

// ParamError describes a parameter set a generator refuses to build.
type ParamError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: invalid parameters: %s: %s", e.Model, e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameters
}

// field binds a parameter name to its destination in a typed struct.
type field struct {
	name string
	dst  *float64
}

// decode copies p into the bound fields. Every field must be present,
// finite and strictly positive; names that no field claims are rejected.
func decode(model string, p Params, fields []field) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.name] = true
	}
	for _, k := range p.Keys() {
		if !known[k] {
			return &ParamError{Model: model, Field: k, Reason: "unknown parameter"}
		}
	}
	for _, f := range fields {
		v, ok := p[f.name]
		if !ok {
			return &ParamError{Model: model, Field: f.name, Reason: "missing"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ParamError{Model: model, Field: f.name, Reason: fmt.Sprintf("%v is not a finite number", v)}
		}
		if v <= 0 {
			return &ParamError{Model: model, Field: f.name, Reason: fmt.Sprintf("%g must be positive", v)}
		}
		*f.dst = v
	}
	return nil
}

// derived checks that a computed dimension is positive.
func derived(model, name, expr string, v float64) error {
	if v > 0 {
		return nil
	}
	return &ParamError{Model: model, Field: name, Reason: fmt.Sprintf("%s = %g, must be positive", expr, v)}
}

// boxMinus builds the box spanning outer and subtracts each cut box.
func boxMinus(k kernel.Kernel, outer [2]kernel.Vec3, cuts ...[2]kernel.Vec3) (kernel.Solid, error) {
	s, err := k.Box(outer[0], outer[1])
	if err != nil {
		return nil, err
	}
	for _, c := range cuts {
		tool, err := k.Box(c[0], c[1])
		if err != nil {
			return nil, err
		}
		s = k.Cut(s, tool)
	}
	return s, nil
}

// span is shorthand for a min/max corner pair.
func span(x0, y0, z0, x1, y1, z1 float64) [2]kernel.Vec3 {
	return [2]kernel.Vec3{kernel.V3(x0, y0, z0), kernel.V3(x1, y1, z1)}
}
