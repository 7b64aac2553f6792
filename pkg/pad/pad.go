// Package pad builds the base plate an SLA print stands on. The plate is
// a heightfield over a distance field of the merged contour islands,
// meshed with marching squares into one closed solid.
package pad

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/polygon"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyBlueprint reports a pad request without any contour to build
// on.
var ErrEmptyBlueprint = errors.New("pad: empty blueprint")

// cellSize is the sampling grid spacing in millimetres.
const cellSize = 0.25

// Create builds the pad for the support footprint and the model base
// contours. The pad spans z in [0, cfg.FullHeight()]; use Place to move
// it under a model.
//
// Without embedding the pad lies under both contour sets. An embedded
// pad is built from the supports only, or from both when
// EmbedObject.Everywhere is set, and keeps ObjectGap away from the model
// outline except for the connector sticks.
func Create(ctx context.Context, support, model polygon.ExPolygons, cfg Config, scale polygon.Scale) (*mesh.TriangleMesh, error) {
	if err := config.Validation("pad config", cfg.Validate()); err != nil {
		return nil, err
	}
	src := append(polygon.ExPolygons{}, support...)
	embed := cfg.EmbedObject
	if !embed.Enabled || embed.Everywhere {
		src = append(src, model...)
	}
	hulls := mergeIslands(src, cfg.MaxMergeDist, scale)
	if len(hulls) == 0 {
		return nil, ErrEmptyBlueprint
	}

	f, err := newField(hulls, model, cfg, scale)
	if err != nil {
		return nil, fmt.Errorf("pad field: %w", err)
	}
	g, err := f.sample(ctx, cellSize)
	if err != nil {
		return nil, err
	}
	m := g.extrude()
	if m.IsEmpty() {
		return nil, ErrEmptyBlueprint
	}
	m.Name = "pad"
	return m, nil
}

// Place moves a pad made by Create so that its floor top lies at ground.
func Place(m *mesh.TriangleMesh, ground float64, cfg Config) *mesh.TriangleMesh {
	return m.Translate(v3.Vec{Z: ground - cfg.WallThickness})
}

// mergeIslands groups the contours lying within dist of each other and
// returns the convex hull of every group.
func mergeIslands(es polygon.ExPolygons, dist float64, scale polygon.Scale) []polygon.Polygon {
	var rings []polygon.Polygon
	for _, e := range es {
		if len(e.Contour) >= 3 {
			rings = append(rings, e.Contour)
		}
	}
	parent := make([]int, len(rings))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	gap := scale.Scaled(dist)
	for i := range rings {
		bi := grow(rings[i].BBox(), gap)
		for j := i + 1; j < len(rings); j++ {
			if find(i) == find(j) || !bi.Overlaps(rings[j].BBox()) {
				continue
			}
			if ringDistance(rings[i], rings[j], scale) <= dist {
				parent[find(j)] = find(i)
			}
		}
	}

	groups := make(map[int][]polygon.Point)
	var order []int
	for i, r := range rings {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], r...)
	}
	var hulls []polygon.Polygon
	for _, root := range order {
		if h := polygon.ConvexHull(groups[root]); len(h) >= 3 {
			hulls = append(hulls, h)
		}
	}
	return hulls
}

func grow(b polygon.BBox, d int64) polygon.BBox {
	b.Min.X -= d
	b.Min.Y -= d
	b.Max.X += d
	b.Max.Y += d
	return b
}

// ringDistance is the smallest distance in millimetres between the
// filled rings a and b; zero when they overlap.
func ringDistance(a, b polygon.Polygon, scale polygon.Scale) float64 {
	if a.ContainsPoint(b[0]) || b.ContainsPoint(a[0]) {
		return 0
	}
	d := math.Inf(1)
	va, vb := scale.ToVec2s(a), scale.ToVec2s(b)
	for _, p := range va {
		d = math.Min(d, pointRingDistance(p, vb))
	}
	for _, p := range vb {
		d = math.Min(d, pointRingDistance(p, va))
	}
	return d
}

func pointRingDistance(p v2.Vec, ring []v2.Vec) float64 {
	d := math.Inf(1)
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		ab := b.Sub(a)
		t := 0.0
		if l2 := ab.Dot(ab); l2 > 0 {
			t = math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
		}
		d = math.Min(d, p.Sub(a.Add(ab.MulScalar(t))).Length())
	}
	return d
}

// field evaluates the pad outline and the top height at any point.
type field struct {
	cfg    Config
	pad    sdf.SDF2
	model  sdf.SDF2
	sticks sdf.SDF2
	// outer is the offset of the pad outline beyond the cavity.
	outer float64
	bb    sdf.Box2
}

func newField(hulls []polygon.Polygon, model polygon.ExPolygons, cfg Config, scale polygon.Scale) (*field, error) {
	es := make(polygon.ExPolygons, len(hulls))
	var bb polygon.BBox
	for i, h := range hulls {
		es[i] = polygon.ExPolygon{Contour: h}
		for _, p := range h {
			bb.Extend(p)
		}
	}
	pad, err := scale.Field(es)
	if err != nil {
		return nil, err
	}
	f := &field{cfg: cfg, pad: pad}
	if cfg.WallHeight > 0 {
		f.outer = cfg.WingDistance() + cfg.WallThickness
	}
	reach := cfg.BrimSize + f.outer
	lo, hi := scale.ToVec2(bb.Min), scale.ToVec2(bb.Max)
	f.bb = sdf.Box2{
		Min: v2.Vec{X: lo.X - reach, Y: lo.Y - reach},
		Max: v2.Vec{X: hi.X + reach, Y: hi.Y + reach},
	}

	if cfg.EmbedObject.Enabled && len(model) > 0 {
		if f.model, err = scale.Field(model); err != nil {
			return nil, fmt.Errorf("model footprint: %w", err)
		}
		if err := f.addSticks(model, scale); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// addSticks places connector rectangles across the object gap along the
// outer model contours.
func (f *field) addSticks(model polygon.ExPolygons, scale polygon.Scale) error {
	e := f.cfg.EmbedObject
	if !(e.StickStride > 0) {
		return nil
	}
	var sticks []sdf.SDF2
	reach := e.ObjectGap + f.cfg.WallThickness/2
	for _, ex := range model {
		ring := scale.ToVec2s(ex.Contour)
		// Distance along the outline still to go before the next stick.
		next := e.StickStride / 2
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			ab := b.Sub(a)
			l := ab.Length()
			if l == 0 {
				continue
			}
			u := ab.MulScalar(1 / l)
			n := v2.Vec{X: u.Y, Y: -u.X}
			for ; next <= l; next += e.StickStride {
				p := a.Add(u.MulScalar(next))
				end := p.Add(n.MulScalar(reach))
				if f.outline(end) > 0 {
					continue
				}
				s, err := sdf.Polygon2D(stick(p, u, n, e.StickPenetration, reach, e.StickWidth/2))
				if err != nil {
					return fmt.Errorf("connector stick: %w", err)
				}
				sticks = append(sticks, s)
				f.include(p.Sub(n.MulScalar(e.StickPenetration)))
			}
			next -= l
		}
	}
	switch len(sticks) {
	case 0:
	case 1:
		f.sticks = sticks[0]
	default:
		f.sticks = sdf.Union2D(sticks...)
	}
	return nil
}

// stick returns the counter-clockwise rectangle from depth behind p to
// reach beyond it along n, hw to each side along u.
func stick(p, u, n v2.Vec, depth, reach, hw float64) []v2.Vec {
	back := p.Sub(n.MulScalar(depth))
	front := p.Add(n.MulScalar(reach))
	side := u.MulScalar(hw)
	return []v2.Vec{back.Sub(side), front.Sub(side), front.Add(side), back.Add(side)}
}

func (f *field) include(p v2.Vec) {
	f.bb.Min.X, f.bb.Min.Y = math.Min(f.bb.Min.X, p.X), math.Min(f.bb.Min.Y, p.Y)
	f.bb.Max.X, f.bb.Max.Y = math.Max(f.bb.Max.X, p.X), math.Max(f.bb.Max.Y, p.Y)
}

// cavity is the signed distance from the floor area, the merged hulls
// grown by the brim.
func (f *field) cavity(p v2.Vec) float64 {
	return f.pad.Evaluate(p) - f.cfg.BrimSize
}

// outline is the signed distance from the pad outline before the model
// cut.
func (f *field) outline(p v2.Vec) float64 {
	return f.cavity(p) - f.outer
}

// at returns the outline value, negative inside the pad, and the top
// height at p.
func (f *field) at(p v2.Vec) (float64, float64) {
	c := f.cavity(p)
	v := c - f.outer
	if f.model != nil {
		v = math.Max(v, f.cfg.EmbedObject.ObjectGap-f.model.Evaluate(p))
		if f.sticks != nil {
			v = math.Min(v, f.sticks.Evaluate(p))
		}
	}
	return v, f.height(c)
}

// height is the top of the pad at cavity distance c: the floor inside
// the cavity, rising along the inner wall slope to the full height.
func (f *field) height(c float64) float64 {
	cfg := f.cfg
	if cfg.WallHeight <= 0 || c <= 0 {
		return cfg.WallThickness
	}
	wing := cfg.WingDistance()
	if c >= wing {
		return cfg.FullHeight()
	}
	return cfg.WallThickness + cfg.WallHeight*c/wing
}

// sample evaluates f on a grid covering the pad with a margin of two
// cells, one row per task.
func (f *field) sample(ctx context.Context, step float64) (*grid, error) {
	margin := 2 * step
	origin := v2.Vec{X: f.bb.Min.X - margin, Y: f.bb.Min.Y - margin}
	g := &grid{
		origin: origin,
		step:   step,
		nx:     int(math.Ceil((f.bb.Max.X+margin-origin.X)/step)) + 1,
		ny:     int(math.Ceil((f.bb.Max.Y+margin-origin.Y)/step)) + 1,
	}
	g.v = make([]float64, g.nx*g.ny)
	g.h = make([]float64, g.nx*g.ny)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < g.nx; i++ {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			for j := 0; j < g.ny; j++ {
				k := g.idx(i, j)
				g.v[k], g.h[k] = f.at(g.point(i, j))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("sampling pad field: %w", err)
	}
	return g, nil
}
