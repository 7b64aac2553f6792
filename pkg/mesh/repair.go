package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// RepairStats reports what Repair changed.
type RepairStats struct {
	MergedVertices  int
	DegenerateFaces int
	DuplicateFaces  int
	UnusedVertices  int
}

// NeededRepair reports whether any fix was applied.
func (s RepairStats) NeededRepair() bool {
	return s.MergedVertices+s.DegenerateFaces+s.DuplicateFaces+s.UnusedVertices > 0
}

type edgeKey struct{ a, b int }

// IsManifold reports whether every undirected edge is shared by exactly
// two faces which traverse it in opposite directions.
func (m *TriangleMesh) IsManifold() bool {
	if m.IsEmpty() {
		return false
	}
	directed := make(map[edgeKey]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a == b {
				return false
			}
			directed[edgeKey{a, b}]++
		}
	}
	for e, n := range directed {
		if n != 1 {
			return false
		}
		if directed[edgeKey{e.b, e.a}] != 1 {
			return false
		}
	}
	return true
}

// OpenEdges returns the number of directed edges without a matching
// opposite edge.
func (m *TriangleMesh) OpenEdges() int {
	directed := make(map[edgeKey]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			directed[edgeKey{f[k], f[(k+1)%3]}]++
		}
	}
	open := 0
	for e := range directed {
		if directed[edgeKey{e.b, e.a}] == 0 {
			open++
		}
	}
	return open
}

// Weld merges vertices closer than tol into one, rewriting face indices.
// It returns the number of removed vertices.
func (m *TriangleMesh) Weld(tol float64) int {
	if len(m.Vertices) == 0 {
		return 0
	}
	if tol <= 0 {
		tol = 1e-9
	}
	type cell struct{ x, y, z int64 }
	key := func(v v3.Vec) cell {
		return cell{
			int64(math.Floor(v.X / tol)),
			int64(math.Floor(v.Y / tol)),
			int64(math.Floor(v.Z / tol)),
		}
	}
	buckets := make(map[cell][]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	var out []v3.Vec
	tol2 := tol * tol
	for i, v := range m.Vertices {
		c := key(v)
		found := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range buckets[cell{c.x + dx, c.y + dy, c.z + dz}] {
						if out[j].Sub(v).Length2() <= tol2 {
							found = j
							break search
						}
					}
				}
			}
		}
		if found < 0 {
			found = len(out)
			out = append(out, v)
			buckets[c] = append(buckets[c], found)
		}
		remap[i] = found
	}
	removed := len(m.Vertices) - len(out)
	for i, f := range m.Faces {
		m.Faces[i] = [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
	}
	m.Vertices = out
	return removed
}

// Repair welds coincident vertices, drops degenerate and duplicate faces
// and compacts unused vertices.
func (m *TriangleMesh) Repair() RepairStats {
	var st RepairStats
	st.MergedVertices = m.Weld(1e-9)

	seen := make(map[[3]int]struct{}, len(m.Faces))
	faces := m.Faces[:0]
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			st.DegenerateFaces++
			continue
		}
		k := canonicalFace(f)
		if _, dup := seen[k]; dup {
			st.DuplicateFaces++
			continue
		}
		seen[k] = struct{}{}
		faces = append(faces, f)
	}
	m.Faces = faces
	st.UnusedVertices = m.compact()
	return st
}

// canonicalFace rotates f so that its smallest index comes first while
// keeping the winding.
func canonicalFace(f [3]int) [3]int {
	switch {
	case f[1] < f[0] && f[1] < f[2]:
		return [3]int{f[1], f[2], f[0]}
	case f[2] < f[0] && f[2] < f[1]:
		return [3]int{f[2], f[0], f[1]}
	}
	return f
}

func (m *TriangleMesh) compact() int {
	used := make([]int, len(m.Vertices))
	for i := range used {
		used[i] = -1
	}
	var out []v3.Vec
	for i, f := range m.Faces {
		for k, vi := range f {
			if used[vi] < 0 {
				used[vi] = len(out)
				out = append(out, m.Vertices[vi])
			}
			m.Faces[i][k] = used[vi]
		}
	}
	removed := len(m.Vertices) - len(out)
	m.Vertices = out
	return removed
}
