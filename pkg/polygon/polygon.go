// Package polygon holds planar polygons in scaled integer coordinates.
// The scaling factor is an explicit Scale value passed along with the
// geometry; nothing in this package keeps process wide state.
package polygon

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// DefaultScale is the size of one coordinate unit in millimetres.
const DefaultScale Scale = 1e-6

// Scale converts between millimetres and integer coordinate units.
type Scale float64

// Scaled converts millimetres to units, rounding to the nearest unit.
func (s Scale) Scaled(mm float64) int64 {
	return int64(math.Round(mm / float64(s)))
}

// Unscaled converts units to millimetres.
func (s Scale) Unscaled(v int64) float64 {
	return float64(v) * float64(s)
}

// Point is a scaled integer point.
type Point struct {
	X, Y int64
}

// Pt builds a Point from millimetre coordinates.
func (s Scale) Pt(x, y float64) Point {
	return Point{X: s.Scaled(x), Y: s.Scaled(y)}
}

// ToVec2 converts p to millimetres.
func (s Scale) ToVec2(p Point) v2.Vec {
	return v2.Vec{X: s.Unscaled(p.X), Y: s.Unscaled(p.Y)}
}

// Polygon is a closed ring of points; the last point connects back to
// the first.
type Polygon []Point

// ExPolygon is a filled contour with holes. Contours are counter-clockwise
// and holes clockwise.
type ExPolygon struct {
	Contour Polygon
	Holes   []Polygon
}

// ExPolygons is a set of disjoint filled regions.
type ExPolygons []ExPolygon

// BBox is an integer bounding box.
type BBox struct {
	Min, Max Point
	Defined  bool
}

// Extend grows b to include p.
func (b *BBox) Extend(p Point) {
	if !b.Defined {
		b.Min, b.Max, b.Defined = p, p, true
		return
	}
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
}

// Overlaps reports whether the boxes share any point.
func (b BBox) Overlaps(o BBox) bool {
	return b.Defined && o.Defined &&
		b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Area returns the signed area in square units. Counter-clockwise rings
// are positive.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	var a float64
	j := len(p) - 1
	for i := range p {
		a += float64(p[j].X)*float64(p[i].Y) - float64(p[i].X)*float64(p[j].Y)
		j = i
	}
	return a / 2
}

// IsCCW reports whether the ring is counter-clockwise.
func (p Polygon) IsCCW() bool {
	return p.Area() > 0
}

// Reverse reverses the ring in place.
func (p Polygon) Reverse() {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}

// Translate returns a copy moved by d.
func (p Polygon) Translate(d Point) Polygon {
	out := make(Polygon, len(p))
	for i, q := range p {
		out[i] = Point{q.X + d.X, q.Y + d.Y}
	}
	return out
}

// BBox returns the bounding box of the ring.
func (p Polygon) BBox() BBox {
	var b BBox
	for _, q := range p {
		b.Extend(q)
	}
	return b
}

// Centroid returns the area centroid, or the first point of a degenerate
// ring.
func (p Polygon) Centroid() Point {
	a := p.Area()
	if a == 0 {
		if len(p) == 0 {
			return Point{}
		}
		return p[0]
	}
	var cx, cy float64
	j := len(p) - 1
	for i := range p {
		x0, y0 := float64(p[j].X), float64(p[j].Y)
		x1, y1 := float64(p[i].X), float64(p[i].Y)
		cross := x0*y1 - x1*y0
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
		j = i
	}
	return Point{X: int64(math.Round(cx / (6 * a))), Y: int64(math.Round(cy / (6 * a)))}
}

// ContainsPoint is the crossing number test. Points on the boundary may
// fall either way.
func (p Polygon) ContainsPoint(q Point) bool {
	in := false
	j := len(p) - 1
	for i := range p {
		a, b := p[i], p[j]
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := float64(b.X-a.X)*float64(q.Y-a.Y)/float64(b.Y-a.Y) + float64(a.X)
			if float64(q.X) < x {
				in = !in
			}
		}
		j = i
	}
	return in
}

// Area returns the contour area minus the hole areas.
func (e ExPolygon) Area() float64 {
	a := math.Abs(e.Contour.Area())
	for _, h := range e.Holes {
		a -= math.Abs(h.Area())
	}
	return a
}

// ContainsPoint reports whether q is inside the contour and outside all
// holes.
func (e ExPolygon) ContainsPoint(q Point) bool {
	if !e.Contour.ContainsPoint(q) {
		return false
	}
	for _, h := range e.Holes {
		if h.ContainsPoint(q) {
			return false
		}
	}
	return true
}

// BBox returns the bounding box of the contour.
func (e ExPolygon) BBox() BBox {
	return e.Contour.BBox()
}

// Translate returns a copy moved by d.
func (e ExPolygon) Translate(d Point) ExPolygon {
	out := ExPolygon{Contour: e.Contour.Translate(d)}
	for _, h := range e.Holes {
		out.Holes = append(out.Holes, h.Translate(d))
	}
	return out
}

// Rings returns the contour followed by the holes.
func (e ExPolygon) Rings() []Polygon {
	return append([]Polygon{e.Contour}, e.Holes...)
}

// Area returns the total area.
func (es ExPolygons) Area() float64 {
	var a float64
	for _, e := range es {
		a += e.Area()
	}
	return a
}

// BBox returns the bounding box of all contours.
func (es ExPolygons) BBox() BBox {
	var b BBox
	for _, e := range es {
		for _, p := range e.Contour {
			b.Extend(p)
		}
	}
	return b
}

// ContainsPoint reports whether any member contains q.
func (es ExPolygons) ContainsPoint(q Point) bool {
	for _, e := range es {
		if e.ContainsPoint(q) {
			return true
		}
	}
	return false
}

func orient(a, b, c Point) int {
	v := float64(b.X-a.X)*float64(c.Y-a.Y) - float64(b.Y-a.Y)*float64(c.X-a.X)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segmentsCross reports a proper crossing of ab and cd. Touching at an
// endpoint or overlapping collinearly does not count.
func segmentsCross(a, b, c, d Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

func ringsCross(p, q Polygon) bool {
	if !p.BBox().Overlaps(q.BBox()) {
		return false
	}
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		for j := range q {
			if segmentsCross(a, b, q[j], q[(j+1)%len(q)]) {
				return true
			}
		}
	}
	return false
}

// Intersects reports whether the filled regions of a and b share an
// interior area: either their boundaries cross properly or a point of one
// lies inside the other.
func Intersects(a, b ExPolygon) bool {
	if len(a.Contour) < 3 || len(b.Contour) < 3 || !a.BBox().Overlaps(b.BBox()) {
		return false
	}
	for _, ra := range a.Rings() {
		for _, rb := range b.Rings() {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}
	for _, p := range b.Contour {
		if a.ContainsPoint(p) {
			return true
		}
	}
	for _, p := range a.Contour {
		if b.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// IntersectsAny reports whether any member of as intersects any member of
// bs.
func IntersectsAny(as, bs ExPolygons) bool {
	for _, a := range as {
		for _, b := range bs {
			if Intersects(a, b) {
				return true
			}
		}
	}
	return false
}

// Rect returns a counter-clockwise rectangle in millimetres.
func (s Scale) Rect(x0, y0, x1, y1 float64) ExPolygon {
	return ExPolygon{Contour: Polygon{
		s.Pt(x0, y0), s.Pt(x1, y0), s.Pt(x1, y1), s.Pt(x0, y1),
	}}
}

// ToVec2s converts a ring to millimetre vectors.
func (s Scale) ToVec2s(p Polygon) []v2.Vec {
	out := make([]v2.Vec, len(p))
	for i, q := range p {
		out[i] = s.ToVec2(q)
	}
	return out
}
