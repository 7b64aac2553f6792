// Package mesh provides the indexed triangle mesh shared by the support
// generator, the pad generator and the slicer.
package mesh

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// TriangleMesh is an indexed triangle mesh. Faces reference Vertices by
// index and are wound counter-clockwise when seen from outside.
type TriangleMesh struct {
	Vertices []v3.Vec `json:"vertices"`
	Faces    [][3]int `json:"faces"`
	Name     string   `json:"name,omitempty"`
}

// New returns an empty mesh with the given name.
func New(name string) *TriangleMesh {
	return &TriangleMesh{Name: name}
}

// VertexCount returns the number of vertices.
func (m *TriangleMesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *TriangleMesh) FaceCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no triangles.
func (m *TriangleMesh) IsEmpty() bool {
	return m == nil || len(m.Faces) == 0
}

// AddVertex appends a vertex and returns its index.
func (m *TriangleMesh) AddVertex(v v3.Vec) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddFace appends a triangle.
func (m *TriangleMesh) AddFace(a, b, c int) {
	m.Faces = append(m.Faces, [3]int{a, b, c})
}

// Triangle returns the corner positions of face i.
func (m *TriangleMesh) Triangle(i int) (a, b, c v3.Vec) {
	f := m.Faces[i]
	return m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
}

// FaceNormal returns the unit normal of face i. Degenerate faces yield the
// zero vector.
func (m *TriangleMesh) FaceNormal(i int) v3.Vec {
	a, b, c := m.Triangle(i)
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return n.MulScalar(1 / l)
}

// BoundingBox returns the axis-aligned bounding box of the referenced
// vertices. An empty mesh returns the zero box.
func (m *TriangleMesh) BoundingBox() sdf.Box3 {
	if m.IsEmpty() {
		return sdf.Box3{}
	}
	lo := v3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := v3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, f := range m.Faces {
		for _, vi := range f {
			v := m.Vertices[vi]
			lo.X, lo.Y, lo.Z = math.Min(lo.X, v.X), math.Min(lo.Y, v.Y), math.Min(lo.Z, v.Z)
			hi.X, hi.Y, hi.Z = math.Max(hi.X, v.X), math.Max(hi.Y, v.Y), math.Max(hi.Z, v.Z)
		}
	}
	return sdf.Box3{Min: lo, Max: hi}
}

// Translate moves every vertex by d in place and returns m.
func (m *TriangleMesh) Translate(d v3.Vec) *TriangleMesh {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Add(d)
	}
	return m
}

// Scale stretches m about c by the factors in f, in place, and returns
// m. Factors must be positive; a mirror would turn the faces inside out.
func (m *TriangleMesh) Scale(c, f v3.Vec) *TriangleMesh {
	for i, v := range m.Vertices {
		d := v.Sub(c)
		m.Vertices[i] = v3.Vec{X: c.X + d.X*f.X, Y: c.Y + d.Y*f.Y, Z: c.Z + d.Z*f.Z}
	}
	return m
}

// Clone returns a deep copy.
func (m *TriangleMesh) Clone() *TriangleMesh {
	c := &TriangleMesh{Name: m.Name}
	c.Vertices = append([]v3.Vec(nil), m.Vertices...)
	c.Faces = append([][3]int(nil), m.Faces...)
	return c
}

// Merge appends the geometry of others to m. Shells are concatenated as
// they are; no boolean evaluation takes place.
func (m *TriangleMesh) Merge(others ...*TriangleMesh) *TriangleMesh {
	for _, o := range others {
		if o == nil {
			continue
		}
		off := len(m.Vertices)
		m.Vertices = append(m.Vertices, o.Vertices...)
		for _, f := range o.Faces {
			m.Faces = append(m.Faces, [3]int{f[0] + off, f[1] + off, f[2] + off})
		}
	}
	return m
}

// Volume returns the signed enclosed volume. Closed outward oriented
// meshes have a positive volume.
func (m *TriangleMesh) Volume() float64 {
	var vol float64
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}
