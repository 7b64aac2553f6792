// Package poly implements kernel.Kernel with exact polyhedral shells.
// Primitives are tessellated on construction and unions concatenate the
// shells, so every vertex of a sphere lies on the sphere and every vertex
// of a frustum lies on one of its end circles.
package poly

import (
	"math"

	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*PolyKernel)(nil)

// DefaultSegments is the number of segments around a circle.
const DefaultSegments = 24

// axisEps decides when a frustum axis counts as vertical.
const axisEps = 1e-12

// polySolid is a list of closed shells.
type polySolid struct {
	shells []*mesh.TriangleMesh
}

// BoundingBox returns the axis-aligned bounding box.
func (s *polySolid) BoundingBox() (min, max [3]float64) {
	first := true
	for _, sh := range s.shells {
		if sh.IsEmpty() {
			continue
		}
		bb := sh.BoundingBox()
		lo := [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
		hi := [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
		if first {
			min, max = lo, hi
			first = false
			continue
		}
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], lo[i])
			max[i] = math.Max(max[i], hi[i])
		}
	}
	return min, max
}

// PolyKernel implements kernel.Kernel with polyhedral shells.
type PolyKernel struct {
	// Segments is the number of steps around circles. Values below 3 use
	// DefaultSegments.
	Segments int
}

// New returns a new PolyKernel with the given circle resolution.
func New(segments int) *PolyKernel {
	return &PolyKernel{Segments: segments}
}

func (k *PolyKernel) segments() int {
	if k.Segments < 3 {
		return DefaultSegments
	}
	return k.Segments
}

func unwrap(s kernel.Solid) []*mesh.TriangleMesh {
	if kernel.IsEmpty(s) {
		return nil
	}
	return s.(*polySolid).shells
}

func wrap(shells ...*mesh.TriangleMesh) kernel.Solid {
	return &polySolid{shells: shells}
}

// Sphere creates a UV sphere. Poles lie on the vertical axis through the
// centre.
func (k *PolyKernel) Sphere(center v3.Vec, radius float64) kernel.Solid {
	if radius <= 0 {
		return kernel.Empty{}
	}
	steps := k.segments()
	rings := steps / 2
	if rings < 2 {
		rings = 2
	}
	m := mesh.New("sphere")
	north := m.AddVertex(center.Add(v3.Vec{Z: radius}))
	ringStart := make([]int, rings-1)
	for r := 1; r < rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		z := radius * math.Cos(theta)
		rr := radius * math.Sin(theta)
		ringStart[r-1] = len(m.Vertices)
		for i := 0; i < steps; i++ {
			phi := 2 * math.Pi * float64(i) / float64(steps)
			m.AddVertex(center.Add(v3.Vec{X: rr * math.Cos(phi), Y: rr * math.Sin(phi), Z: z}))
		}
	}
	south := m.AddVertex(center.Sub(v3.Vec{Z: radius}))

	at := func(ring, i int) int { return ringStart[ring] + i%steps }
	for i := 0; i < steps; i++ {
		m.AddFace(north, at(0, i), at(0, i+1))
	}
	for r := 0; r+1 < len(ringStart); r++ {
		for i := 0; i < steps; i++ {
			m.AddFace(at(r, i), at(r+1, i), at(r+1, i+1))
			m.AddFace(at(r, i), at(r+1, i+1), at(r, i+1))
		}
	}
	last := len(ringStart) - 1
	for i := 0; i < steps; i++ {
		m.AddFace(south, at(last, i+1), at(last, i))
	}
	return wrap(m)
}

// Frustum creates a capped truncated cone with its axis from a to b.
func (k *PolyKernel) Frustum(a, b v3.Vec, ra, rb float64) kernel.Solid {
	axis := b.Sub(a)
	l := axis.Length()
	if l == 0 || (ra <= 0 && rb <= 0) {
		return kernel.Empty{}
	}
	u, v := basis(axis.MulScalar(1 / l))
	steps := k.segments()
	m := mesh.New("frustum")

	ring := func(c v3.Vec, r float64) []int {
		if r <= 0 {
			apex := m.AddVertex(c)
			idx := make([]int, steps)
			for i := range idx {
				idx[i] = apex
			}
			return idx
		}
		idx := make([]int, steps)
		for i := 0; i < steps; i++ {
			t := 2 * math.Pi * float64(i) / float64(steps)
			off := u.MulScalar(r * math.Cos(t)).Add(v.MulScalar(r * math.Sin(t)))
			idx[i] = m.AddVertex(c.Add(off))
		}
		return idx
	}
	lo := ring(a, ra)
	hi := ring(b, rb)

	for i := 0; i < steps; i++ {
		j := (i + 1) % steps
		switch {
		case ra <= 0:
			m.AddFace(lo[i], hi[j], hi[i])
		case rb <= 0:
			m.AddFace(lo[i], lo[j], hi[i])
		default:
			m.AddFace(lo[i], lo[j], hi[j])
			m.AddFace(lo[i], hi[j], hi[i])
		}
	}
	if ra > 0 {
		c := m.AddVertex(a)
		for i := 0; i < steps; i++ {
			m.AddFace(c, lo[(i+1)%steps], lo[i])
		}
	}
	if rb > 0 {
		c := m.AddVertex(b)
		for i := 0; i < steps; i++ {
			m.AddFace(c, hi[i], hi[(i+1)%steps])
		}
	}
	return wrap(m)
}

// basis returns unit vectors u, v perpendicular to d with u x v = d.
// Vertical axes get the exact coordinate axes so that end circles stay
// exactly on their horizontal plane.
func basis(d v3.Vec) (u, v v3.Vec) {
	if math.Abs(d.X) < axisEps && math.Abs(d.Y) < axisEps {
		if d.Z > 0 {
			return v3.Vec{X: 1}, v3.Vec{Y: 1}
		}
		return v3.Vec{X: 1}, v3.Vec{Y: -1}
	}
	helper := v3.Vec{Z: 1}
	if math.Abs(d.Z) > 0.9 {
		helper = v3.Vec{X: 1}
	}
	u = d.Cross(helper).Normalize()
	v = d.Cross(u)
	return u, v
}

// Box creates an axis aligned box spanning lo..hi.
func (k *PolyKernel) Box(lo, hi v3.Vec) kernel.Solid {
	if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
		return kernel.Empty{}
	}
	return wrap(mesh.Box(lo, hi))
}

// Union concatenates the shells of all solids.
func (k *PolyKernel) Union(solids ...kernel.Solid) kernel.Solid {
	var shells []*mesh.TriangleMesh
	for _, s := range solids {
		shells = append(shells, unwrap(s)...)
	}
	if len(shells) == 0 {
		return kernel.Empty{}
	}
	return wrap(shells...)
}

// Translate moves a solid by d.
func (k *PolyKernel) Translate(s kernel.Solid, d v3.Vec) kernel.Solid {
	shells := unwrap(s)
	if len(shells) == 0 {
		return kernel.Empty{}
	}
	out := make([]*mesh.TriangleMesh, len(shells))
	for i, sh := range shells {
		out[i] = sh.Clone().Translate(d)
	}
	return wrap(out...)
}

// ToMesh merges the shells into one mesh.
func (k *PolyKernel) ToMesh(s kernel.Solid) (*mesh.TriangleMesh, error) {
	m := mesh.New("")
	m.Merge(unwrap(s)...)
	return m, nil
}
