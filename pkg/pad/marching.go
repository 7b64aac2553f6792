package pad

import (
	"math"

	"github.com/chazu/resin/pkg/mesh"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// grid holds the sampled outline values v (inside when <= 0) and the top
// heights h, row major in x.
type grid struct {
	origin v2.Vec
	step   float64
	nx, ny int
	v, h   []float64
}

func (g *grid) idx(i, j int) int { return i*g.ny + j }

func (g *grid) point(i, j int) v2.Vec {
	return v2.Vec{X: g.origin.X + float64(i)*g.step, Y: g.origin.Y + float64(j)*g.step}
}

func (g *grid) inside(i, j int) bool { return g.v[g.idx(i, j)] <= 0 }

// column is a top vertex and the floor vertex below it.
type column struct {
	top, bottom int
}

// node is one corner of a cell polygon.
type node struct {
	col   column
	cross bool
}

// extruder turns a grid into a closed mesh. Vertices on grid points and
// on cell edges are created once and shared by the adjacent cells.
type extruder struct {
	g      *grid
	m      *mesh.TriangleMesh
	corner []column
	hedge  []column
	vedge  []column
}

// extrude meshes the region where v <= 0 as a solid from z = 0 up to the
// sampled heights. Cells are cut by marching squares; saddles are split
// by the value at the cell centre.
func (g *grid) extrude() *mesh.TriangleMesh {
	e := &extruder{
		g:      g,
		m:      mesh.New(""),
		corner: unset(g.nx * g.ny),
		hedge:  unset(g.nx * g.ny),
		vedge:  unset(g.nx * g.ny),
	}
	for i := 0; i+1 < g.nx; i++ {
		for j := 0; j+1 < g.ny; j++ {
			e.cell(i, j)
		}
	}
	return e.m
}

func unset(n int) []column {
	cs := make([]column, n)
	for i := range cs {
		cs[i] = column{-1, -1}
	}
	return cs
}

func (e *extruder) add(p v2.Vec, h float64) column {
	return column{
		top:    e.m.AddVertex(v3.Vec{X: p.X, Y: p.Y, Z: h}),
		bottom: e.m.AddVertex(v3.Vec{X: p.X, Y: p.Y}),
	}
}

func (e *extruder) cornerAt(i, j int) node {
	k := e.g.idx(i, j)
	if e.corner[k].top < 0 {
		e.corner[k] = e.add(e.g.point(i, j), e.g.h[k])
	}
	return node{col: e.corner[k]}
}

// crossAt returns the boundary crossing on the edge from grid point
// (i, j) to its neighbour one step along x (horizontal) or y.
func (e *extruder) crossAt(i, j int, horizontal bool) node {
	g := e.g
	table, i2, j2 := e.vedge, i, j+1
	if horizontal {
		table, i2 = e.hedge, i+1
		j2 = j
	}
	k := g.idx(i, j)
	if table[k].top < 0 {
		a, b := g.idx(i, j), g.idx(i2, j2)
		t := g.v[a] / (g.v[a] - g.v[b])
		t = math.Max(0.01, math.Min(0.99, t))
		pa, pb := g.point(i, j), g.point(i2, j2)
		p := pa.Add(pb.Sub(pa).MulScalar(t))
		table[k] = e.add(p, g.h[a]+t*(g.h[b]-g.h[a]))
	}
	return node{col: table[k], cross: true}
}

// cell emits the pieces of cell (i, j). The ring walks the cell corners
// counter-clockwise, taking inside corners and edge crossings.
func (e *extruder) cell(i, j int) {
	g := e.g
	ci := [4][2]int{{i, j}, {i + 1, j}, {i + 1, j + 1}, {i, j + 1}}
	var in [4]bool
	n := 0
	for k, c := range ci {
		in[k] = g.inside(c[0], c[1])
		if in[k] {
			n++
		}
	}
	if n == 0 {
		return
	}

	var ring []node
	for k := 0; k < 4; k++ {
		if in[k] {
			ring = append(ring, e.cornerAt(ci[k][0], ci[k][1]))
		}
		if in[k] != in[(k+1)%4] {
			ring = append(ring, e.edgeCross(i, j, k))
		}
	}

	if n == 2 && in[0] == in[2] {
		centre := (g.v[g.idx(i, j)] + g.v[g.idx(i+1, j)] + g.v[g.idx(i+1, j+1)] + g.v[g.idx(i, j+1)]) / 4
		if centre > 0 {
			if in[0] {
				e.piece([]node{ring[5], ring[0], ring[1]})
				e.piece(ring[2:5])
			} else {
				e.piece(ring[0:3])
				e.piece(ring[3:6])
			}
			return
		}
	}
	e.piece(ring)
}

// edgeCross returns the crossing on edge k of cell (i, j); edge k joins
// corner k to corner k+1.
func (e *extruder) edgeCross(i, j, k int) node {
	switch k {
	case 0:
		return e.crossAt(i, j, true)
	case 1:
		return e.crossAt(i+1, j, false)
	case 2:
		return e.crossAt(i, j+1, true)
	}
	return e.crossAt(i, j, false)
}

// piece adds the top and floor fans of a convex counter-clockwise ring
// and a wall quad under every edge that runs between two crossings.
func (e *extruder) piece(ring []node) {
	for k := 1; k+1 < len(ring); k++ {
		e.m.AddFace(ring[0].col.top, ring[k].col.top, ring[k+1].col.top)
		e.m.AddFace(ring[0].col.bottom, ring[k+1].col.bottom, ring[k].col.bottom)
	}
	for k := range ring {
		p, q := ring[k], ring[(k+1)%len(ring)]
		if !p.cross || !q.cross {
			continue
		}
		e.m.AddFace(p.col.bottom, q.col.bottom, q.col.top)
		e.m.AddFace(p.col.bottom, q.col.top, p.col.top)
	}
}
