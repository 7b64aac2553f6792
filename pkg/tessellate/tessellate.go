// Package tessellate walks a support tree and produces triangle meshes
// using a geometry kernel. Every element of the tree becomes one part.
package tessellate

import (
	"fmt"

	"github.com/chazu/resin/pkg/graph"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tessellator turns trees into meshes with Kernel.
type Tessellator struct {
	Kernel kernel.Kernel
}

// New returns a tessellator using k.
func New(k kernel.Kernel) *Tessellator {
	return &Tessellator{Kernel: k}
}

// element is one node of the walk: a graph.Head, graph.Pillar,
// graph.Bridge, graph.Junction or graph.Anchor.
type element any

// elements lists the tree in build order: heads, pillars, bridges,
// junctions, anchors.
func elements(t *graph.Tree) []element {
	var out []element
	for _, h := range t.Heads() {
		out = append(out, h)
	}
	for _, p := range t.Pillars() {
		out = append(out, p)
	}
	for _, b := range t.AllBridges() {
		out = append(out, b)
	}
	for _, j := range t.Junctions() {
		out = append(out, j)
	}
	for _, a := range t.Anchors() {
		out = append(out, a)
	}
	return out
}

// Solids returns one kernel solid per element of t, skipping elements
// without volume. The tree is read only.
func (ts *Tessellator) Solids(t *graph.Tree) ([]kernel.Solid, []string, error) {
	if t == nil {
		return nil, nil, nil
	}
	var solids []kernel.Solid
	var names []string
	for _, e := range elements(t) {
		s, name, err := walkElement(ts.Kernel, e)
		if err != nil {
			return nil, nil, fmt.Errorf("tessellate: %w", err)
		}
		if kernel.IsEmpty(s) {
			continue
		}
		solids = append(solids, s)
		names = append(names, name)
	}
	return solids, names, nil
}

// Tessellate returns the union of every element of t as one mesh. An
// empty or nil tree gives an empty mesh.
func (ts *Tessellator) Tessellate(t *graph.Tree) (*mesh.TriangleMesh, error) {
	solids, _, err := ts.Solids(t)
	if err != nil {
		return nil, err
	}
	if len(solids) == 0 {
		return mesh.New("supports"), nil
	}
	m, err := ts.Kernel.ToMesh(ts.Kernel.Union(solids...))
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed: %w", err)
	}
	m.Name = "supports"
	return m, nil
}

// Parts returns one mesh per element, named after the element.
func (ts *Tessellator) Parts(t *graph.Tree) ([]*mesh.TriangleMesh, error) {
	solids, names, err := ts.Solids(t)
	if err != nil {
		return nil, err
	}
	parts := make([]*mesh.TriangleMesh, 0, len(solids))
	for i, s := range solids {
		m, err := ts.Kernel.ToMesh(s)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", names[i], err)
		}
		m.Name = names[i]
		parts = append(parts, m)
	}
	return parts, nil
}

// walkElement creates the solid of one element.
func walkElement(k kernel.Kernel, e element) (kernel.Solid, string, error) {
	switch v := e.(type) {
	case graph.Head:
		return handleHead(k, v), fmt.Sprintf("head %d", v.ID), nil
	case graph.Pillar:
		return handlePillar(k, v), fmt.Sprintf("pillar %d", v.ID), nil
	case graph.Bridge:
		return k.Frustum(v.Start, v.End, v.R, v.R), fmt.Sprintf("%s bridge %d", v.Kind, v.ID), nil
	case graph.Junction:
		return k.Sphere(v.Pos, v.R), fmt.Sprintf("junction %d", v.ID), nil
	case graph.Anchor:
		return handleHead(k, v.Head), fmt.Sprintf("anchor %d", v.ID), nil
	default:
		return nil, "", fmt.Errorf("unsupported element type %T", e)
	}
}

// handleHead builds the pinhead: a front sphere whose surface passes
// through the tip, a cone widening toward the back and the back sphere
// around the junction point.
func handleHead(k kernel.Kernel, h graph.Head) kernel.Solid {
	front := h.FrontCenter()
	back := h.JunctionPoint()
	return k.Union(
		k.Sphere(front, h.RPin),
		k.Frustum(front, back, h.RPin, h.RBack),
		k.Sphere(back, h.RBack),
	)
}

// handlePillar builds the shaft and, when the pillar has one, the base
// cone whose bottom disc lies on the pillar end.
func handlePillar(k kernel.Kernel, p graph.Pillar) kernel.Solid {
	bottom := p.End
	var base kernel.Solid = kernel.Empty{}
	if p.HasBase && p.Height() > p.BaseH {
		bottom = p.End.Add(v3.Vec{Z: p.BaseH})
		base = k.Frustum(p.End, bottom, p.BaseR, p.R)
	}
	if p.Top.Z <= bottom.Z {
		return base
	}
	return k.Union(base, k.Frustum(bottom, p.Top, p.R, p.R))
}
