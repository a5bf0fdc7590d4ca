// Package kerneltest provides an in-memory kernel.Kernel that tracks exact
// bounding boxes instead of geometry. It records every call so tests can
// assert which kernel operations ran.
package kerneltest

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/chazu/alucad/pkg/kernel"
)

var (
	_ kernel.Kernel   = (*Kernel)(nil)
	_ kernel.Exporter = (*Kernel)(nil)
)

// Solid is an axis-aligned bounding box standing in for real geometry.
type Solid struct {
	Min, Max kernel.Vec3
	N        int
}

func (s *Solid) BoundingBox() (min, max kernel.Vec3) { return s.Min, s.Max }
func (s *Solid) Parts() int                          { return s.N }

// Kernel is a fake kernel. The zero value is not usable; call New.
type Kernel struct {
	mu    sync.Mutex
	calls map[string]int

	// FailOp makes the named operation ("box", "extrude" or "mesh") fail.
	FailOp string
}

// New returns an empty fake kernel.
func New() *Kernel {
	return &Kernel{calls: make(map[string]int)}
}

func (k *Kernel) record(op string) {
	k.mu.Lock()
	k.calls[op]++
	k.mu.Unlock()
}

// Calls returns how often op was invoked.
func (k *Kernel) Calls(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[op]
}

// Total returns the number of kernel calls of any kind.
func (k *Kernel) Total() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		n += c
	}
	return n
}

func (k *Kernel) Box(min, max kernel.Vec3) (kernel.Solid, error) {
	k.record("box")
	if k.FailOp == "box" {
		return nil, kernel.Errorf("box", "injected failure")
	}
	size := max.Sub(min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, kernel.Errorf("box", "non-positive extent %v", size)
	}
	return &Solid{Min: min, Max: max, N: 1}, nil
}

func (k *Kernel) Extrude(p *kernel.Profile, plane kernel.Plane, length float64) (kernel.Solid, error) {
	k.record("extrude")
	if k.FailOp == "extrude" {
		return nil, kernel.Errorf("extrude", "injected failure")
	}
	if length <= 0 {
		return nil, kernel.Errorf("extrude", "non-positive length %g", length)
	}
	lo, hi := p.Bounds()
	a := plane.Map(lo.X, lo.Y, 0)
	b := plane.Map(hi.X, hi.Y, length)
	return &Solid{Min: lower(a, b), Max: upper(a, b), N: 1}, nil
}

func (k *Kernel) Compound(solids ...kernel.Solid) kernel.Solid {
	k.record("compound")
	out := &Solid{}
	for _, s := range solids {
		if s.Parts() == 0 {
			continue
		}
		min, max := s.BoundingBox()
		if out.N == 0 {
			out.Min, out.Max = min, max
		} else {
			out.Min, out.Max = lower(out.Min, min), upper(out.Max, max)
		}
		out.N += s.Parts()
	}
	return out
}

// Cut keeps the bounds of s; a box-only fake cannot carve holes.
func (k *Kernel) Cut(s, _ kernel.Solid) kernel.Solid {
	k.record("cut")
	min, max := s.BoundingBox()
	return &Solid{Min: min, Max: max, N: s.Parts()}
}

func (k *Kernel) Translate(s kernel.Solid, v kernel.Vec3) kernel.Solid {
	k.record("translate")
	if s.Parts() == 0 {
		return &Solid{}
	}
	min, max := s.BoundingBox()
	return &Solid{Min: min.Add(v), Max: max.Add(v), N: s.Parts()}
}

// ToMesh returns two triangles spanning the diagonal of the bounding box,
// enough to carry the bounds through tessellation.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	k.record("mesh")
	if k.FailOp == "mesh" {
		return nil, kernel.Errorf("mesh", "injected failure")
	}
	if s.Parts() == 0 {
		return &kernel.Mesh{}, nil
	}
	a, b := s.BoundingBox()
	v := []float32{
		f(a.X), f(a.Y), f(a.Z),
		f(b.X), f(a.Y), f(a.Z),
		f(b.X), f(b.Y), f(b.Z),
		f(a.X), f(b.Y), f(b.Z),
	}
	return &kernel.Mesh{
		Vertices: v,
		Normals:  make([]float32, len(v)),
		Indices:  []uint32{0, 1, 2, 2, 3, 0},
	}, nil
}

// WriteSTL writes a header-only ASCII STL naming the bounds.
func (k *Kernel) WriteSTL(s kernel.Solid, path string) error {
	k.record("stl")
	if s.Parts() == 0 {
		return kernel.Errorf("stl", "nothing to export: solid is empty")
	}
	min, max := s.BoundingBox()
	body := fmt.Sprintf("solid fake %v %v\nendsolid fake\n", min, max)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return &kernel.Error{Op: "stl", Err: err}
	}
	return nil
}

func f(v float64) float32 { return float32(v) }

func lower(a, b kernel.Vec3) kernel.Vec3 {
	return kernel.V3(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z))
}

func upper(a, b kernel.Vec3) kernel.Vec3 {
	return kernel.V3(math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z))
}
