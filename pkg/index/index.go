// Package index provides a read-only spatial index over a triangle mesh.
// The index is an axis aligned bounding box tree answering ray casts and
// nearest point queries. It is never mutated after New and is safe to
// share between goroutines.
package index

import (
	"math"
	"sort"

	"github.com/chazu/resin/pkg/mesh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/ungerik/go3d/float64/vec3"
)

// leafSize is the largest number of triangles kept in one leaf.
const leafSize = 4

// hitEps is the smallest ray parameter counted as a hit.
const hitEps = 1e-7

type triangle struct {
	a, b, c vec3.T
	n       vec3.T
}

type node struct {
	min, max    vec3.T
	left, right int // children, -1 for leaves
	start, end  int // range into Index.order for leaves
}

func (n *node) leaf() bool { return n.left < 0 }

// Index is an AABB tree over the faces of a mesh.
type Index struct {
	mesh  *mesh.TriangleMesh
	tris  []triangle
	order []int
	nodes []node
}

// Hit describes a ray intersection.
type Hit struct {
	Distance float64
	Face     int
	Point    v3.Vec
	Normal   v3.Vec
	OK       bool
}

func toT(v v3.Vec) vec3.T   { return vec3.T{v.X, v.Y, v.Z} }
func toVec(t vec3.T) v3.Vec { return v3.Vec{X: t[0], Y: t[1], Z: t[2]} }

// New builds the tree with a median split on the longest axis of each
// node's bounds. A nil or empty mesh yields an index that never hits.
func New(m *mesh.TriangleMesh) *Index {
	idx := &Index{mesh: m}
	if m.IsEmpty() {
		return idx
	}
	idx.tris = make([]triangle, len(m.Faces))
	idx.order = make([]int, len(m.Faces))
	centroids := make([]vec3.T, len(m.Faces))
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		t := triangle{a: toT(a), b: toT(b), c: toT(c)}
		e1 := vec3.Sub(&t.b, &t.a)
		e2 := vec3.Sub(&t.c, &t.a)
		n := vec3.Cross(&e1, &e2)
		if l := n.Length(); l > 0 {
			n = n.Scaled(1 / l)
		}
		t.n = n
		idx.tris[i] = t
		idx.order[i] = i
		centroids[i] = vec3.T{
			(t.a[0] + t.b[0] + t.c[0]) / 3,
			(t.a[1] + t.b[1] + t.c[1]) / 3,
			(t.a[2] + t.b[2] + t.c[2]) / 3,
		}
	}
	idx.nodes = make([]node, 0, 2*len(m.Faces)/leafSize+1)
	idx.build(0, len(idx.order), centroids)
	return idx
}

func (idx *Index) build(start, end int, centroids []vec3.T) int {
	n := node{left: -1, right: -1, start: start, end: end}
	n.min = vec3.T{math.Inf(1), math.Inf(1), math.Inf(1)}
	n.max = vec3.T{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, fi := range idx.order[start:end] {
		t := &idx.tris[fi]
		for _, p := range [3]vec3.T{t.a, t.b, t.c} {
			for k := 0; k < 3; k++ {
				n.min[k] = math.Min(n.min[k], p[k])
				n.max[k] = math.Max(n.max[k], p[k])
			}
		}
	}
	id := len(idx.nodes)
	idx.nodes = append(idx.nodes, n)
	if end-start <= leafSize {
		return id
	}

	axis := 0
	ext := vec3.Sub(&n.max, &n.min)
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	part := idx.order[start:end]
	sort.Slice(part, func(i, j int) bool {
		return centroids[part[i]][axis] < centroids[part[j]][axis]
	})
	mid := start + (end-start)/2
	left := idx.build(start, mid, centroids)
	right := idx.build(mid, end, centroids)
	idx.nodes[id].left = left
	idx.nodes[id].right = right
	return id
}

// Mesh returns the indexed mesh.
func (idx *Index) Mesh() *mesh.TriangleMesh {
	return idx.mesh
}

// Empty reports whether the index holds no triangles.
func (idx *Index) Empty() bool {
	return len(idx.tris) == 0
}

// BoundingBox returns the bounds of the indexed mesh.
func (idx *Index) BoundingBox() sdf.Box3 {
	if idx.Empty() {
		return sdf.Box3{}
	}
	r := idx.nodes[0]
	return sdf.Box3{Min: toVec(r.min), Max: toVec(r.max)}
}

// Normal returns the unit normal of a face.
func (idx *Index) Normal(face int) v3.Vec {
	return toVec(idx.tris[face].n)
}

// rayBox returns the entry parameter of the ray into the box, or false.
func rayBox(o, inv *vec3.T, n *node, tmax float64) (float64, bool) {
	t0, t1 := 0.0, tmax
	for k := 0; k < 3; k++ {
		ta := (n.min[k] - o[k]) * inv[k]
		tb := (n.max[k] - o[k]) * inv[k]
		if ta > tb {
			ta, tb = tb, ta
		}
		if math.IsNaN(ta) || math.IsNaN(tb) {
			// Ray parallel to the slab and lying on its plane.
			continue
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
		if t0 > t1 {
			return 0, false
		}
	}
	return t0, true
}

// intersect is the Möller–Trumbore test. It returns the ray parameter.
func (t *triangle) intersect(o, d *vec3.T) (float64, bool) {
	e1 := vec3.Sub(&t.b, &t.a)
	e2 := vec3.Sub(&t.c, &t.a)
	p := vec3.Cross(d, &e2)
	det := vec3.Dot(&e1, &p)
	if math.Abs(det) < 1e-14 {
		return 0, false
	}
	inv := 1 / det
	s := vec3.Sub(o, &t.a)
	u := vec3.Dot(&s, &p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := vec3.Cross(&s, &e1)
	v := vec3.Dot(d, &q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	return vec3.Dot(&e2, &q) * inv, true
}

// RayCast returns the nearest intersection of the ray with the mesh. The
// direction need not be normalized; Distance is measured in model units.
func (idx *Index) RayCast(origin, dir v3.Vec) Hit {
	if idx.Empty() {
		return Hit{}
	}
	l := dir.Length()
	if l == 0 {
		return Hit{}
	}
	o := toT(origin)
	d := toT(dir.MulScalar(1 / l))
	inv := vec3.T{1 / d[0], 1 / d[1], 1 / d[2]}

	best := Hit{Distance: math.Inf(1), Face: -1}
	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &idx.nodes[ni]
		if _, ok := rayBox(&o, &inv, n, best.Distance); !ok {
			continue
		}
		if !n.leaf() {
			stack = append(stack, n.left, n.right)
			continue
		}
		for _, fi := range idx.order[n.start:n.end] {
			t, ok := idx.tris[fi].intersect(&o, &d)
			if ok && t > hitEps && t < best.Distance {
				best.Distance = t
				best.Face = fi
			}
		}
	}
	if best.Face < 0 {
		return Hit{}
	}
	best.OK = true
	best.Point = origin.Add(toVec(d).MulScalar(best.Distance))
	best.Normal = idx.Normal(best.Face)
	return best
}

// crossings counts every intersection of the ray with the mesh.
func (idx *Index) crossings(o, d vec3.T) int {
	inv := vec3.T{1 / d[0], 1 / d[1], 1 / d[2]}
	count := 0
	stack := []int{0}
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &idx.nodes[ni]
		if _, ok := rayBox(&o, &inv, n, math.Inf(1)); !ok {
			continue
		}
		if !n.leaf() {
			stack = append(stack, n.left, n.right)
			continue
		}
		for _, fi := range idx.order[n.start:n.end] {
			if t, ok := idx.tris[fi].intersect(&o, &d); ok && t > hitEps {
				count++
			}
		}
	}
	return count
}

// Inside reports whether p lies inside the closed mesh by the parity of
// ray crossings. The ray is tilted off the Z axis so it avoids running
// along axis aligned edges.
func (idx *Index) Inside(p v3.Vec) bool {
	if idx.Empty() {
		return false
	}
	d := vec3.T{1.3e-3, 0.7e-3, 1}
	d = d.Scaled(1 / d.Length())
	return idx.crossings(toT(p), d)%2 == 1
}

// closestOnTriangle returns the point of t nearest to p.
func closestOnTriangle(p *vec3.T, t *triangle) vec3.T {
	ab := vec3.Sub(&t.b, &t.a)
	ac := vec3.Sub(&t.c, &t.a)
	ap := vec3.Sub(p, &t.a)
	d1 := vec3.Dot(&ab, &ap)
	d2 := vec3.Dot(&ac, &ap)
	if d1 <= 0 && d2 <= 0 {
		return t.a
	}
	bp := vec3.Sub(p, &t.b)
	d3 := vec3.Dot(&ab, &bp)
	d4 := vec3.Dot(&ac, &bp)
	if d3 >= 0 && d4 <= d3 {
		return t.b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		s := ab.Scaled(d1 / (d1 - d3))
		return vec3.Add(&t.a, &s)
	}
	cp := vec3.Sub(p, &t.c)
	d5 := vec3.Dot(&ab, &cp)
	d6 := vec3.Dot(&ac, &cp)
	if d6 >= 0 && d5 <= d6 {
		return t.c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		s := ac.Scaled(d2 / (d2 - d6))
		return vec3.Add(&t.a, &s)
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		bc := vec3.Sub(&t.c, &t.b)
		s := bc.Scaled((d4 - d3) / ((d4 - d3) + (d5 - d6)))
		return vec3.Add(&t.b, &s)
	}
	denom := 1 / (va + vb + vc)
	sb := ab.Scaled(vb * denom)
	sc := ac.Scaled(vc * denom)
	r := vec3.Add(&t.a, &sb)
	return vec3.Add(&r, &sc)
}

// boxDist2 is the squared distance from p to the node bounds.
func boxDist2(p *vec3.T, n *node) float64 {
	var d2 float64
	for k := 0; k < 3; k++ {
		switch {
		case p[k] < n.min[k]:
			d := n.min[k] - p[k]
			d2 += d * d
		case p[k] > n.max[k]:
			d := p[k] - n.max[k]
			d2 += d * d
		}
	}
	return d2
}

// nearest runs a branch and bound search. It stops early as soon as a
// triangle closer than sqrt(stop) is found.
func (idx *Index) nearest(p vec3.T, stop float64) (vec3.T, int, float64) {
	best := math.Inf(1)
	bestFace := -1
	var bestPt vec3.T
	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &idx.nodes[ni]
		if boxDist2(&p, n) >= best {
			continue
		}
		if !n.leaf() {
			l, r := n.left, n.right
			// Visit the nearer child first.
			if boxDist2(&p, &idx.nodes[l]) < boxDist2(&p, &idx.nodes[r]) {
				l, r = r, l
			}
			stack = append(stack, l, r)
			continue
		}
		for _, fi := range idx.order[n.start:n.end] {
			q := closestOnTriangle(&p, &idx.tris[fi])
			diff := vec3.Sub(&q, &p)
			if d2 := diff.LengthSqr(); d2 < best {
				best, bestFace, bestPt = d2, fi, q
				if best < stop {
					return bestPt, bestFace, best
				}
			}
		}
	}
	return bestPt, bestFace, best
}

// NearestPoint returns the point on the mesh closest to p, its face and
// the squared distance. An empty index returns face -1 and +Inf.
func (idx *Index) NearestPoint(p v3.Vec) (v3.Vec, int, float64) {
	if idx.Empty() {
		return v3.Vec{}, -1, math.Inf(1)
	}
	q, f, d2 := idx.nearest(toT(p), 0)
	return toVec(q), f, d2
}

// SquaredDistance returns the squared distance from p to the mesh.
func (idx *Index) SquaredDistance(p v3.Vec) float64 {
	_, _, d2 := idx.NearestPoint(p)
	return d2
}

// closerThan reports whether some triangle lies within r of p.
func (idx *Index) closerThan(p v3.Vec, r float64) bool {
	if idx.Empty() {
		return false
	}
	r2 := r * r
	_, _, d2 := idx.nearest(toT(p), r2)
	return d2 < r2
}

// SegmentClear reports whether a sphere of radius r swept from a to b
// stays clear of the surface. The segment is sampled at a step s of at
// most r/2 and every sample must be at least r + s/2 away; the distance
// function is 1-Lipschitz so this covers the points between samples.
// A radius of zero degenerates to a plain segment intersection test.
func (idx *Index) SegmentClear(a, b v3.Vec, r float64) bool {
	if idx.Empty() {
		return true
	}
	ab := b.Sub(a)
	l := ab.Length()
	if r <= 0 {
		if l == 0 {
			return true
		}
		h := idx.RayCast(a, ab)
		return !h.OK || h.Distance > l
	}
	if l == 0 {
		return !idx.closerThan(a, r)
	}
	n := int(math.Ceil(l / (r / 2)))
	step := l / float64(n)
	need := r + step/2
	for i := 0; i <= n; i++ {
		p := a.Add(ab.MulScalar(float64(i) / float64(n)))
		if idx.closerThan(p, need) {
			return false
		}
	}
	return true
}

// BeamClear fires samples rays parallel to dir from a circle of radius r
// around origin, plus one along the axis. It reports whether none of them
// hits the mesh within length.
func (idx *Index) BeamClear(origin, dir v3.Vec, r, length float64, samples int) bool {
	if idx.Empty() {
		return true
	}
	l := dir.Length()
	if l == 0 {
		return true
	}
	d := dir.MulScalar(1 / l)
	u, v := Perpendicular(d)
	if h := idx.RayCast(origin, d); h.OK && h.Distance <= length {
		return false
	}
	for i := 0; i < samples; i++ {
		phi := 2 * math.Pi * float64(i) / float64(samples)
		o := origin.Add(u.MulScalar(r * math.Cos(phi))).Add(v.MulScalar(r * math.Sin(phi)))
		if h := idx.RayCast(o, d); h.OK && h.Distance <= length {
			return false
		}
	}
	return true
}

// Perpendicular returns two unit vectors orthogonal to the unit vector d
// and to each other.
func Perpendicular(d v3.Vec) (v3.Vec, v3.Vec) {
	helper := v3.Vec{Z: 1}
	if math.Abs(d.Z) > 0.9 {
		helper = v3.Vec{X: 1}
	}
	u := d.Cross(helper).Normalize()
	return u, d.Cross(u)
}
