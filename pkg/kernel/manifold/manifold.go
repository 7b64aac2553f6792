//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations, so support trees meshed with
// it come out as a single watertight solid.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

// defaultSegments is the circular resolution of spheres and frusta.
const defaultSegments = 24

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct {
	Segments int
}

// New creates a new ManifoldKernel. Returns an error if the Manifold
// C library cannot be initialized.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{Segments: defaultSegments}, nil
}

func (k *ManifoldKernel) segments() C.int {
	if k.Segments < 3 {
		return C.int(defaultSegments)
	}
	return C.int(k.Segments)
}

func translate(s *manifoldSolid, d v3.Vec) *manifoldSolid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_translate(alloc, s.ptr,
		C.double(d.X), C.double(d.Y), C.double(d.Z),
	)
	return newSolid(ptr)
}

// Sphere creates a sphere around center.
func (k *ManifoldKernel) Sphere(center v3.Vec, radius float64) kernel.Solid {
	if radius <= 0 {
		return kernel.Empty{}
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_sphere(alloc, C.double(radius), k.segments())
	return translate(newSolid(ptr), center)
}

// Frustum creates a tapered cylinder from a to b. Manifold builds it along
// +Z from the origin; it is tilted by the polar angle about Y, turned by the
// azimuth about Z and moved to a.
func (k *ManifoldKernel) Frustum(a, b v3.Vec, ra, rb float64) kernel.Solid {
	axis := b.Sub(a)
	h := axis.Length()
	if h == 0 || (ra <= 0 && rb <= 0) {
		return kernel.Empty{}
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cylinder(alloc,
		C.double(h),
		C.double(math.Max(ra, 0)), // radius_low
		C.double(math.Max(rb, 0)), // radius_high
		k.segments(),
		C.int(0), // center=false
	)
	d := axis.MulScalar(1 / h)
	theta := math.Acos(math.Max(-1, math.Min(1, d.Z))) * 180 / math.Pi
	phi := math.Atan2(d.Y, d.X) * 180 / math.Pi
	ralloc := C.manifold_alloc_manifold()
	rotated := newSolid(C.manifold_rotate(ralloc, newSolid(ptr).ptr,
		C.double(0), C.double(theta), C.double(phi),
	))
	return translate(rotated, a)
}

// Box creates an axis-aligned box spanning lo..hi.
func (k *ManifoldKernel) Box(lo, hi v3.Vec) kernel.Solid {
	size := hi.Sub(lo)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return kernel.Empty{}
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cube(alloc,
		C.double(size.X), C.double(size.Y), C.double(size.Z),
		C.int(0), // center=false
	)
	return translate(newSolid(ptr), lo)
}

// Union returns the boolean union of the solids.
func (k *ManifoldKernel) Union(solids ...kernel.Solid) kernel.Solid {
	solids = kernel.NonEmpty(solids)
	if len(solids) == 0 {
		return kernel.Empty{}
	}
	acc := solids[0].(*manifoldSolid)
	for _, s := range solids[1:] {
		alloc := C.manifold_alloc_manifold()
		acc = newSolid(C.manifold_union(alloc, acc.ptr, s.(*manifoldSolid).ptr))
	}
	return acc
}

// Translate moves the solid by d.
func (k *ManifoldKernel) Translate(s kernel.Solid, d v3.Vec) kernel.Solid {
	if kernel.IsEmpty(s) {
		return kernel.Empty{}
	}
	return translate(s.(*manifoldSolid), d)
}

// ToMesh extracts a triangle mesh from the solid using Manifold's MeshGL
// format. Only the leading position properties of each vertex are kept.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*mesh.TriangleMesh, error) {
	out := mesh.New("")
	if kernel.IsEmpty(s) {
		return out, nil
	}
	ms := s.(*manifoldSolid)

	meshAlloc := C.manifold_alloc_meshgl()
	meshGL := C.manifold_get_meshgl(meshAlloc, ms.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return out, nil
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: mesh has %d vertex properties, want at least 3", numProp)
	}

	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties(
		(*C.float)(unsafe.Pointer(&propData[0])),
		meshGL,
	)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts(
		(*C.uint32_t)(unsafe.Pointer(&indices[0])),
		meshGL,
	)

	out.Vertices = make([]v3.Vec, numVert)
	for i := range out.Vertices {
		base := i * numProp
		out.Vertices[i] = v3.Vec{
			X: float64(propData[base+0]),
			Y: float64(propData[base+1]),
			Z: float64(propData[base+2]),
		}
	}
	out.Faces = make([][3]int, numTri)
	for i := range out.Faces {
		out.Faces[i] = [3]int{int(indices[i*3]), int(indices[i*3+1]), int(indices[i*3+2])}
	}
	return out, nil
}
