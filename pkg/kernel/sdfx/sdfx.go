// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Unions are true boolean
// unions; meshes come from marching cubes and are approximate.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	// Cells is the marching cubes resolution along the longest axis.
	Cells int
}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{Cells: defaultMeshCells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Sphere creates a sphere.
func (k *SdfxKernel) Sphere(center v3.Vec, radius float64) kernel.Solid {
	if radius <= 0 {
		return kernel.Empty{}
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(center)))
}

// Frustum creates a truncated cone from a to b. sdf.Cone3D is built along
// Z and centred on the origin, so it is rotated onto the axis and moved to
// the midpoint.
func (k *SdfxKernel) Frustum(a, b v3.Vec, ra, rb float64) kernel.Solid {
	axis := b.Sub(a)
	h := axis.Length()
	if h == 0 || (ra <= 0 && rb <= 0) {
		return kernel.Empty{}
	}
	var (
		s   sdf.SDF3
		err error
	)
	if ra == rb {
		s, err = sdf.Cylinder3D(h, ra, 0)
	} else {
		s, err = sdf.Cone3D(h, math.Max(ra, 0), math.Max(rb, 0), 0)
	}
	if err != nil {
		panic(fmt.Sprintf("sdfx frustum: %v", err))
	}
	d := axis.MulScalar(1 / h)
	theta := math.Acos(math.Max(-1, math.Min(1, d.Z)))
	phi := math.Atan2(d.Y, d.X)
	mid := a.Add(b).MulScalar(0.5)
	m := sdf.Translate3d(mid).Mul(sdf.RotateZ(phi)).Mul(sdf.RotateY(theta))
	return wrap(sdf.Transform3D(s, m))
}

// Box creates a box spanning lo..hi. sdf.Box3D centers the box at the
// origin, so it is translated to the centre of the span.
func (k *SdfxKernel) Box(lo, hi v3.Vec) kernel.Solid {
	size := hi.Sub(lo)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return kernel.Empty{}
	}
	s, err := sdf.Box3D(size, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(lo.Add(hi).MulScalar(0.5))))
}

// Union returns the union of the solids.
func (k *SdfxKernel) Union(solids ...kernel.Solid) kernel.Solid {
	solids = kernel.NonEmpty(solids)
	switch len(solids) {
	case 0:
		return kernel.Empty{}
	case 1:
		return solids[0]
	}
	parts := make([]sdf.SDF3, len(solids))
	for i, s := range solids {
		parts[i] = unwrap(s)
	}
	return wrap(sdf.Union3D(parts...))
}

// Translate moves a solid by d.
func (k *SdfxKernel) Translate(s kernel.Solid, d v3.Vec) kernel.Solid {
	if kernel.IsEmpty(s) {
		return kernel.Empty{}
	}
	return wrap(sdf.Transform3D(unwrap(s), sdf.Translate3d(d)))
}

// ToMesh converts a solid to a triangle mesh using marching cubes. The
// per-triangle vertices are welded into an indexed mesh.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*mesh.TriangleMesh, error) {
	out := mesh.New("")
	if kernel.IsEmpty(s) {
		return out, nil
	}
	cells := k.Cells
	if cells <= 0 {
		cells = defaultMeshCells
	}

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(unwrap(s), renderer)

	out.Vertices = make([]v3.Vec, 0, len(triangles)*3)
	out.Faces = make([][3]int, 0, len(triangles))
	for _, tri := range triangles {
		var f [3]int
		for j := 0; j < 3; j++ {
			f[j] = out.AddVertex(tri[j])
		}
		out.Faces = append(out.Faces, f)
	}
	out.Repair()
	return out, nil
}
