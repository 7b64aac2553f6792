// Package slice cuts triangle meshes with horizontal planes into filled
// polygon regions.
package slice

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/polygon"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"golang.org/x/sync/errgroup"
)

// Grid returns the levels from, from+step, ... up to and including to.
func Grid(from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Floor((to-from)/step + 1e-9))
	zs := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		zs = append(zs, from+float64(i)*step)
	}
	return zs
}

// Slicer cuts a closed, outward oriented mesh.
type Slicer struct {
	Mesh  *mesh.TriangleMesh
	Scale polygon.Scale
	// Workers bounds the number of levels cut at once. Zero means
	// GOMAXPROCS.
	Workers int
}

// New returns a slicer for m.
func New(m *mesh.TriangleMesh, scale polygon.Scale) *Slicer {
	return &Slicer{Mesh: m, Scale: scale}
}

type edge struct{ a, b int }

func mkEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

type segment struct {
	from, to edge
	p        v2.Vec // position of from
}

// Slice returns one ExPolygons per level in zs. Levels that miss the mesh
// get an empty set. Points of a contour closer than closingRadius (mm) to
// their predecessor are merged.
func (s *Slicer) Slice(ctx context.Context, zs []float64, closingRadius float64) ([]polygon.ExPolygons, error) {
	out := make([]polygon.ExPolygons, len(zs))
	if s.Mesh.IsEmpty() || len(zs) == 0 {
		return out, nil
	}
	scale := s.Scale
	if scale <= 0 {
		scale = polygon.DefaultScale
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range zs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.level(zs[i], closingRadius, scale)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// cut returns the crossing point of edge e with the plane z = h. The
// endpoints are taken in index order so both faces sharing e agree.
func (s *Slicer) cut(e edge, h float64) v2.Vec {
	a, b := s.Mesh.Vertices[e.a], s.Mesh.Vertices[e.b]
	if a.Z == b.Z {
		return v2.Vec{X: a.X, Y: a.Y}
	}
	t := (h - a.Z) / (b.Z - a.Z)
	return v2.Vec{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
}

func (s *Slicer) level(h, closingRadius float64, scale polygon.Scale) polygon.ExPolygons {
	m := s.Mesh
	var segs []segment
	for _, f := range m.Faces {
		var above [3]bool
		n := 0
		for k := 0; k < 3; k++ {
			if m.Vertices[f[k]].Z >= h {
				above[k] = true
				n++
			}
		}
		if n == 0 || n == 3 {
			continue
		}
		// p is the vertex alone on its side, q and r follow it in winding
		// order.
		pi := 0
		for k := 0; k < 3; k++ {
			if (n == 1) == above[k] {
				pi = k
				break
			}
		}
		p, q, r := f[pi], f[(pi+1)%3], f[(pi+2)%3]
		e1, e2 := mkEdge(p, q), mkEdge(r, p)
		if !above[pi] {
			e1, e2 = e2, e1
		}
		segs = append(segs, segment{from: e1, to: e2, p: s.cut(e1, h)})
	}
	if len(segs) == 0 {
		return nil
	}

	byStart := make(map[edge]int, len(segs))
	for i, sg := range segs {
		byStart[sg.from] = i
	}
	used := make([]bool, len(segs))
	var rings []polygon.Polygon
	for i := range segs {
		if used[i] {
			continue
		}
		var pts []v2.Vec
		closed := false
		for j := i; ; {
			used[j] = true
			pts = append(pts, segs[j].p)
			next, ok := byStart[segs[j].to]
			if !ok {
				break
			}
			if next == i {
				closed = true
				break
			}
			if used[next] {
				break
			}
			j = next
		}
		if !closed {
			continue
		}
		if ring := cleanRing(pts, closingRadius, scale); ring != nil {
			rings = append(rings, ring)
		}
	}
	return nest(rings)
}

// cleanRing merges points closer than r and drops rings that collapse.
func cleanRing(pts []v2.Vec, r float64, scale polygon.Scale) polygon.Polygon {
	r2 := r * r
	kept := make([]v2.Vec, 0, len(pts))
	for _, p := range pts {
		if len(kept) > 0 {
			d := p.Sub(kept[len(kept)-1])
			if d.X*d.X+d.Y*d.Y <= r2 {
				continue
			}
		}
		kept = append(kept, p)
	}
	for len(kept) > 1 {
		d := kept[0].Sub(kept[len(kept)-1])
		if d.X*d.X+d.Y*d.Y > r2 {
			break
		}
		kept = kept[:len(kept)-1]
	}
	ring := make(polygon.Polygon, 0, len(kept))
	for _, p := range kept {
		q := scale.Pt(p.X, p.Y)
		if len(ring) > 0 && ring[len(ring)-1] == q {
			continue
		}
		ring = append(ring, q)
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 || ring.Area() == 0 {
		return nil
	}
	return ring
}

// nest pairs clockwise holes with the smallest counter-clockwise contour
// containing them.
func nest(rings []polygon.Polygon) polygon.ExPolygons {
	var out polygon.ExPolygons
	var holes []polygon.Polygon
	for _, r := range rings {
		if r.IsCCW() {
			out = append(out, polygon.ExPolygon{Contour: r})
		} else {
			holes = append(holes, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Contour.Area() < out[j].Contour.Area()
	})
	for _, h := range holes {
		for i := range out {
			if out[i].Contour.ContainsPoint(h[0]) {
				out[i].Holes = append(out[i].Holes, h)
				break
			}
		}
	}
	return out
}
