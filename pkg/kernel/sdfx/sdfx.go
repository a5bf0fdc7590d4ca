// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"errors"
	"math"

	"github.com/chazu/alucad/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel   = (*SdfxKernel)(nil)
	_ kernel.Exporter = (*SdfxKernel)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid. An empty compound
// has a nil s and zero parts.
type sdfxSolid struct {
	s     sdf.SDF3
	parts int
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max kernel.Vec3) {
	if s.s == nil {
		return kernel.Vec3{}, kernel.Vec3{}
	}
	bb := s.s.BoundingBox()
	min = kernel.Vec3{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z}
	max = kernel.Vec3{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z}
	return min, max
}

// Parts returns the number of primitive bodies in the solid.
func (s *sdfxSolid) Parts() int {
	return s.parts
}

// SdfxKernel implements kernel.Kernel using sdfx. It holds no mutable
// state and is safe for concurrent use.
type SdfxKernel struct {
	meshCells int
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
// Non-positive values keep the default.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{meshCells: DefaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// MeshCells reports the configured tessellation resolution.
func (k *SdfxKernel) MeshCells() int {
	return k.meshCells
}

// unwrap extracts the solid wrapper from a kernel.Solid.
func unwrap(s kernel.Solid) *sdfxSolid {
	return s.(*sdfxSolid)
}

// wrap creates a single-part kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s, parts: 1}
}

func vec(v kernel.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Box creates the axis-aligned box spanning min..max. sdf.Box3D centers
// the box at the origin, so it is shifted onto its minimum corner.
func (k *SdfxKernel) Box(min, max kernel.Vec3) (kernel.Solid, error) {
	size := max.Sub(min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, kernel.Errorf("box", "non-positive extent %v (from %v to %v)", size, min, max)
	}
	s, err := sdf.Box3D(vec(size), 0)
	if err != nil {
		return nil, &kernel.Error{Op: "box", Err: err}
	}
	center := min.Add(kernel.Vec3{X: size.X / 2, Y: size.Y / 2, Z: size.Z / 2})
	return wrap(sdf.Transform3D(s, sdf.Translate3d(vec(center)))), nil
}

// planeMatrix rotates an extrusion built along +Z onto the plane normal.
func planeMatrix(p kernel.Plane) sdf.M44 {
	switch p {
	case kernel.PlaneYZ:
		// (u, v, w) -> (w, u, v)
		return sdf.RotateZ(math.Pi / 2).Mul(sdf.RotateX(math.Pi / 2))
	case kernel.PlaneXZ:
		// (u, v, w) -> (u, -w, v)
		return sdf.RotateX(math.Pi / 2)
	default:
		return sdf.Identity3d()
	}
}

// Extrude sketches the profile on the plane and extrudes it along the plane
// normal from 0 to length.
func (k *SdfxKernel) Extrude(p *kernel.Profile, plane kernel.Plane, length float64) (kernel.Solid, error) {
	if length <= 0 {
		return nil, kernel.Errorf("extrude", "non-positive length %g", length)
	}
	pts := p.Vertices()
	verts := make([]v2.Vec, len(pts))
	for i, pt := range pts {
		verts[i] = v2.Vec{X: pt.X, Y: pt.Y}
	}
	s2, err := sdf.Polygon2D(verts)
	if err != nil {
		return nil, &kernel.Error{Op: "extrude", Err: err}
	}
	// Extrude3D is symmetric about z=0; lift it so the sketch sits at w=0.
	s3 := sdf.Extrude3D(s2, length)
	m := planeMatrix(plane).Mul(sdf.Translate3d(v3.Vec{Z: length / 2}))
	return wrap(sdf.Transform3D(s3, m)), nil
}

// Compound groups solids into one handle. Empty compounds are allowed and
// carry no geometry.
func (k *SdfxKernel) Compound(solids ...kernel.Solid) kernel.Solid {
	members := make([]sdf.SDF3, 0, len(solids))
	parts := 0
	for _, s := range solids {
		w := unwrap(s)
		if w.s == nil {
			continue
		}
		members = append(members, w.s)
		parts += w.parts
	}
	switch len(members) {
	case 0:
		return &sdfxSolid{}
	case 1:
		return &sdfxSolid{s: members[0], parts: parts}
	}
	return &sdfxSolid{s: sdf.Union3D(members...), parts: parts}
}

// Cut returns s with tool subtracted.
func (k *SdfxKernel) Cut(s, tool kernel.Solid) kernel.Solid {
	a, b := unwrap(s), unwrap(tool)
	if a.s == nil || b.s == nil {
		return a
	}
	return &sdfxSolid{s: sdf.Difference3D(a.s, b.s), parts: a.parts}
}

// Translate moves a solid by v.
func (k *SdfxKernel) Translate(s kernel.Solid, v kernel.Vec3) kernel.Solid {
	w := unwrap(s)
	if w.s == nil {
		return w
	}
	m := sdf.Translate3d(vec(v))
	return &sdfxSolid{s: sdf.Transform3D(w.s, m), parts: w.parts}
}

// ToMesh converts a solid to a triangle mesh using marching cubes. An empty
// compound yields an empty mesh.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	w := unwrap(s)
	if w.s == nil {
		return &kernel.Mesh{}, nil
	}

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(w.s, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// WriteSTL renders the solid to an STL file at path.
func (k *SdfxKernel) WriteSTL(s kernel.Solid, path string) error {
	w := unwrap(s)
	if w.s == nil {
		return &kernel.Error{Op: "stl", Err: errors.New("nothing to export: solid is empty")}
	}
	triangles := render.ToTriangles(w.s, render.NewMarchingCubesUniform(k.meshCells))
	if err := render.SaveSTL(path, triangles); err != nil {
		return &kernel.Error{Op: "stl", Err: err}
	}
	return nil
}
