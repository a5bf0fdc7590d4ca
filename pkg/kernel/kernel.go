// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx) provide solid modeling and boolean operations
// behind this interface. The kernel abstraction allows swapping backends
// without changing the generators or the composer.
package kernel

// Solid is an opaque, immutable handle to a geometry kernel solid.
// Every kernel operation returns a new handle; no operation mutates its
// inputs, so a handle may be shared freely once built.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max Vec3)
	// Parts returns the number of primitive bodies held by the solid.
	// A plain solid reports 1, a compound the sum of its members, and an
	// empty compound 0.
	Parts() int
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(min, max Vec3) (Solid, error)
	Extrude(p *Profile, plane Plane, length float64) (Solid, error)

	// Composition and boolean operations
	Compound(solids ...Solid) Solid
	Cut(s, tool Solid) Solid

	// Transforms
	Translate(s Solid, v Vec3) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}

// Exporter is implemented by kernels that can write a solid to disk.
type Exporter interface {
	WriteSTL(s Solid, path string) error
}
