package kernel

import (
	"errors"
	"fmt"
	"math"
)

// Plane names a sketch plane. A sketch on a plane maps local (u, v)
// coordinates onto two world axes; extrusion runs along the plane normal.
type Plane int

const (
	PlaneXY Plane = iota // u→X, v→Y, normal +Z
	PlaneYZ              // u→Y, v→Z, normal +X
	PlaneXZ              // u→X, v→Z, normal -Y
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "XY"
	case PlaneYZ:
		return "YZ"
	case PlaneXZ:
		return "XZ"
	default:
		return fmt.Sprintf("Plane(%d)", int(p))
	}
}

// ParsePlane converts a plane name ("XY", "YZ", "XZ") to a Plane.
func ParsePlane(name string) (Plane, error) {
	switch name {
	case "XY":
		return PlaneXY, nil
	case "YZ":
		return PlaneYZ, nil
	case "XZ":
		return PlaneXZ, nil
	}
	return 0, fmt.Errorf("invalid plane %q, expected XY, YZ or XZ", name)
}

// Map converts sketch coordinates (u, v) and a depth w along the plane
// normal into world coordinates.
func (p Plane) Map(u, v, w float64) Vec3 {
	switch p {
	case PlaneYZ:
		return Vec3{X: w, Y: u, Z: v}
	case PlaneXZ:
		return Vec3{X: u, Y: -w, Z: v}
	default:
		return Vec3{X: u, Y: v, Z: w}
	}
}

// Point2 is a point in sketch coordinates.
type Point2 struct {
	X, Y float64
}

// arcSegments is the number of straight segments a bulge arc is
// flattened into. Fixed so that identical paths give identical polygons.
const arcSegments = 16

type segment struct {
	to    Point2
	bulge float64 // 0 for a straight segment
}

// Path builds a closed 2D profile from straight and bulge-arc segments,
// starting at the sketch origin. Methods are chainable; call Close to
// obtain an immutable Profile.
type Path struct {
	start Point2
	cur   Point2
	segs  []segment
}

// DrawPath starts a new path at the origin.
func DrawPath() *Path {
	return &Path{}
}

// DrawPathAt starts a new path at (x, y).
func DrawPathAt(x, y float64) *Path {
	p := Point2{X: x, Y: y}
	return &Path{start: p, cur: p}
}

// LineTo draws a straight segment to the absolute point (x, y).
func (p *Path) LineTo(x, y float64) *Path {
	p.cur = Point2{X: x, Y: y}
	p.segs = append(p.segs, segment{to: p.cur})
	return p
}

// Line draws a straight segment by the relative offset (dx, dy).
func (p *Path) Line(dx, dy float64) *Path {
	return p.LineTo(p.cur.X+dx, p.cur.Y+dy)
}

// HLine draws a horizontal segment of length dx.
func (p *Path) HLine(dx float64) *Path {
	return p.Line(dx, 0)
}

// VLine draws a vertical segment of length dy.
func (p *Path) VLine(dy float64) *Path {
	return p.Line(0, dy)
}

// BulgeArc draws a circular arc to the relative offset (dx, dy). The bulge
// is tan(θ/4) for the included angle θ; positive bulges turn
// counter-clockwise, negative ones clockwise, and zero is a straight line.
func (p *Path) BulgeArc(dx, dy, bulge float64) *Path {
	p.cur = Point2{X: p.cur.X + dx, Y: p.cur.Y + dy}
	p.segs = append(p.segs, segment{to: p.cur, bulge: bulge})
	return p
}

// Close joins the current point back to the start with a straight segment
// (when they differ) and returns the finished profile.
func (p *Path) Close() (*Profile, error) {
	segs := make([]segment, len(p.segs), len(p.segs)+1)
	copy(segs, p.segs)
	if p.cur != p.start {
		segs = append(segs, segment{to: p.start})
	}
	if len(segs) < 2 {
		return nil, &Error{Op: "close", Err: errors.New("profile needs at least two segments")}
	}
	prev := p.start
	for i, s := range segs {
		if s.to == prev {
			return nil, &Error{Op: "close", Err: fmt.Errorf("segment %d has zero length", i)}
		}
		prev = s.to
	}
	return &Profile{start: p.start, segs: segs}, nil
}

// Profile is a closed 2D cross-section. It is immutable.
type Profile struct {
	start Point2
	segs  []segment
}

// Vertices flattens the profile into polygon vertices. Arcs are replaced by
// arcSegments chords. The closing vertex is not repeated.
func (pr *Profile) Vertices() []Point2 {
	verts := []Point2{pr.start}
	prev := pr.start
	for _, s := range pr.segs {
		if s.bulge == 0 {
			verts = append(verts, s.to)
		} else {
			verts = append(verts, flattenArc(prev, s.to, s.bulge)...)
		}
		prev = s.to
	}
	if n := len(verts); n > 1 && verts[n-1] == verts[0] {
		verts = verts[:n-1]
	}
	return verts
}

// Bounds returns the bounding rectangle of the flattened profile.
func (pr *Profile) Bounds() (min, max Point2) {
	verts := pr.Vertices()
	min, max = verts[0], verts[0]
	for _, v := range verts[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
	}
	return min, max
}

// flattenArc returns the points after a on the arc from a to b, ending
// with b itself.
func flattenArc(a, b Point2, bulge float64) []Point2 {
	dx, dy := b.X-a.X, b.Y-a.Y
	chord := math.Hypot(dx, dy)
	theta := 4 * math.Atan(math.Abs(bulge))
	radius := chord / (2 * math.Sin(theta/2))

	// The arc midpoint lies to the right of the chord direction for a
	// counter-clockwise arc and to the left for a clockwise one.
	nx, ny := dy/chord, -dx/chord
	if bulge < 0 {
		nx, ny = -nx, -ny
	}
	sagitta := math.Abs(bulge) * chord / 2
	mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
	cx := mx - nx*(radius-sagitta)
	cy := my - ny*(radius-sagitta)

	sweep := theta
	if bulge < 0 {
		sweep = -theta
	}
	a0 := math.Atan2(a.Y-cy, a.X-cx)
	pts := make([]Point2, 0, arcSegments)
	for i := 1; i < arcSegments; i++ {
		ang := a0 + sweep*float64(i)/arcSegments
		pts = append(pts, Point2{X: cx + radius*math.Cos(ang), Y: cy + radius*math.Sin(ang)})
	}
	return append(pts, b)
}
