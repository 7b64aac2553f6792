// Package kernel defines the abstract solid modelling interface used to
// turn support trees into meshes. Implementations (poly, sdfx, manifold)
// provide the primitives behind this interface so the tree code can swap
// backends without changing.
package kernel

import (
	"github.com/chazu/resin/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Solid is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract solid modelling interface.
type Kernel interface {
	// Primitives
	Sphere(center v3.Vec, radius float64) Solid
	// Frustum is a capped truncated cone from a (radius ra) to b (radius rb).
	// A zero radius collapses that end into an apex.
	Frustum(a, b v3.Vec, ra, rb float64) Solid
	Box(lo, hi v3.Vec) Solid

	// Combination
	Union(solids ...Solid) Solid

	// Transforms
	Translate(s Solid, d v3.Vec) Solid

	// Mesh output
	ToMesh(s Solid) (*mesh.TriangleMesh, error)
}

// Empty is the solid with no volume. Kernels treat it as the identity of
// Union and mesh it to an empty mesh.
type Empty struct{}

// BoundingBox returns the zero box.
func (Empty) BoundingBox() (min, max [3]float64) {
	return min, max
}

// IsEmpty reports whether s is nil or Empty.
func IsEmpty(s Solid) bool {
	if s == nil {
		return true
	}
	_, ok := s.(Empty)
	return ok
}

// NonEmpty filters out empty solids.
func NonEmpty(solids []Solid) []Solid {
	out := solids[:0:0]
	for _, s := range solids {
		if !IsEmpty(s) {
			out = append(out, s)
		}
	}
	return out
}
