// Package points proposes support points for a sliced model. It looks for
// islands that start in mid air, overhanging areas that reach too far
// beyond the layer below and sharp corners of new islands, then projects
// every candidate onto the underside of the mesh.
package points

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/index"
	"github.com/chazu/resin/pkg/polygon"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SupportPoint is a location on the model surface that needs a support
// head. Normal is the outward surface normal at Pos.
type SupportPoint struct {
	Pos         v3.Vec
	Normal      v3.Vec
	HeadRadius  float64
	IsNewIsland bool
}

// Config controls point density.
type Config struct {
	HeadDiameter     float64 // mm
	DensityRelative  float64 // 1 is the nominal density
	MinimalDistance  float64 // mm between points
	SelfSupportAngle float64 // radians from horizontal
}

// DefaultConfig returns the nominal settings.
func DefaultConfig() Config {
	return Config{
		HeadDiameter:     0.4,
		DensityRelative:  1.0,
		MinimalDistance:  1.0,
		SelfSupportAngle: math.Pi / 4,
	}
}

// ConfigFromStore reads the point settings from an option store.
func ConfigFromStore(s *config.Store) Config {
	return Config{
		HeadDiameter:     s.Float(config.KeyHeadFrontDiameter),
		DensityRelative:  float64(s.Int(config.KeyPointsDensityRelative)) / 100,
		MinimalDistance:  s.Float(config.KeyPointsMinimalDistance),
		SelfSupportAngle: s.Float(config.KeySelfSupportAngle) * math.Pi / 180,
	}
}

// Validate lists every violated constraint.
func (c Config) Validate() []string {
	var v []string
	if c.HeadDiameter <= 0 {
		v = append(v, fmt.Sprintf("head diameter must be positive, got %g", c.HeadDiameter))
	}
	if c.DensityRelative <= 0 {
		v = append(v, fmt.Sprintf("relative density must be positive, got %g", c.DensityRelative))
	}
	if c.MinimalDistance < 0 {
		v = append(v, fmt.Sprintf("minimal distance must not be negative, got %g", c.MinimalDistance))
	}
	if c.SelfSupportAngle <= 0 || c.SelfSupportAngle > math.Pi/2 {
		v = append(v, fmt.Sprintf("self support angle must be in (0, pi/2], got %g", c.SelfSupportAngle))
	}
	return v
}

// spacing is the pitch of the overhang sample grid.
func (c Config) spacing() float64 {
	return math.Max(c.MinimalDistance, 5*c.HeadDiameter) / math.Sqrt(c.DensityRelative)
}

// minDistance is the closest two accepted points may be.
func (c Config) minDistance() float64 {
	return math.Max(c.HeadDiameter, c.MinimalDistance)
}

// Generator proposes support points layer by layer. Slices[i] is the cut
// of the model at Heights[i]; heights ascend.
type Generator struct {
	Index   *index.Index
	Slices  []polygon.ExPolygons
	Heights []float64
	Scale   polygon.Scale
	Config  Config

	// Progress, when set, is called after every layer with the percentage
	// of layers processed.
	Progress func(pct int)
	Logger   *log.Logger
}

// Result is the outcome of Generate. When Cancelled is set Points holds
// the points committed before cancellation.
type Result struct {
	Points     []SupportPoint
	Cancelled  bool
	LayersDone int
}

func (g *Generator) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard)
	}
	return g.Logger
}

// Generate runs the layer loop. Cancellation is polled before each layer
// and ends the run with the points found so far and a nil error.
func (g *Generator) Generate(ctx context.Context) (Result, error) {
	if err := config.Validation("support point config", g.Config.Validate()); err != nil {
		return Result{}, err
	}
	if len(g.Slices) != len(g.Heights) {
		return Result{}, fmt.Errorf("got %d slices for %d heights", len(g.Slices), len(g.Heights))
	}
	if g.Scale <= 0 {
		return Result{}, fmt.Errorf("scale must be positive, got %g", float64(g.Scale))
	}
	logger := g.logger()
	var res Result
	if g.Index == nil || g.Index.Empty() || len(g.Slices) == 0 {
		return res, nil
	}

	acc := newAccumulator(g.Config.minDistance())
	bottom := g.Index.BoundingBox().Min.Z - 1
	for i := range g.Slices {
		if err := ctx.Err(); err != nil {
			logger.Warn("support point generation cancelled", "layers", i, "points", len(acc.points))
			res.Points = acc.points
			res.Cancelled = true
			res.LayersDone = i
			return res, nil
		}
		var below polygon.ExPolygons
		from := bottom
		if i > 0 {
			below = g.Slices[i-1]
			from = g.Heights[i-1]
		}
		n, err := g.layer(acc, g.Slices[i], below, g.Heights[i], from)
		if err != nil {
			return res, fmt.Errorf("layer %d at z=%g: %w", i, g.Heights[i], err)
		}
		if n > 0 {
			logger.Debug("layer points", "layer", i, "z", g.Heights[i], "added", n)
		}
		res.LayersDone = i + 1
		if g.Progress != nil {
			g.Progress(res.LayersDone * 100 / len(g.Slices))
		}
	}
	res.Points = acc.points
	logger.Info("support points generated", "points", len(res.Points), "layers", res.LayersDone)
	return res, nil
}

// layer adds the points needed by one layer. from is the height the
// projection rays start at.
func (g *Generator) layer(acc *accumulator, islands, below polygon.ExPolygons, z, from float64) (int, error) {
	if len(islands) == 0 {
		return 0, nil
	}
	belowField, err := g.Scale.Field(below)
	if err != nil {
		return 0, err
	}
	dz := z - from
	tol := dz / math.Tan(g.Config.SelfSupportAngle)
	added := 0
	for _, island := range islands {
		isNew := !polygon.IntersectsAny(polygon.ExPolygons{island}, below)
		var candidates []v2.Vec
		if isNew {
			field, err := g.Scale.Field(polygon.ExPolygons{island})
			if err != nil {
				return added, err
			}
			candidates = append(candidates, mostInterior(field, island, g.Scale))
			candidates = append(candidates, g.corners(island)...)
		}
		candidates = append(candidates, g.overhangSamples(island, belowField, tol)...)
		for _, c := range candidates {
			if acc.tooClose(v3.Vec{X: c.X, Y: c.Y, Z: z}) {
				continue
			}
			p, ok := g.project(c, from, z)
			if !ok {
				continue
			}
			p.IsNewIsland = isNew
			if acc.add(p) {
				added++
			}
		}
	}
	return added, nil
}

// overhangSamples returns the grid samples inside island that are farther
// than tol from the layer below. The grid is aligned to the origin so
// samples line up between layers.
func (g *Generator) overhangSamples(island polygon.ExPolygon, below sdf.SDF2, tol float64) []v2.Vec {
	step := g.Config.spacing()
	bb := island.BBox()
	lo := g.Scale.ToVec2(bb.Min)
	hi := g.Scale.ToVec2(bb.Max)
	var out []v2.Vec
	for x := math.Ceil(lo.X/step) * step; x <= hi.X; x += step {
		for y := math.Ceil(lo.Y/step) * step; y <= hi.Y; y += step {
			if !island.ContainsPoint(g.Scale.Pt(x, y)) {
				continue
			}
			if below != nil && below.Evaluate(v2.Vec{X: x, Y: y}) <= tol {
				continue
			}
			out = append(out, v2.Vec{X: x, Y: y})
		}
	}
	return out
}

// mostInterior returns the sample of island farthest from its boundary.
func mostInterior(field sdf.SDF2, island polygon.ExPolygon, s polygon.Scale) v2.Vec {
	const n = 24
	bb := island.BBox()
	lo := s.ToVec2(bb.Min)
	hi := s.ToVec2(bb.Max)
	best := s.ToVec2(island.Contour.Centroid())
	bestD := math.Inf(1)
	if island.ContainsPoint(island.Contour.Centroid()) {
		bestD = field.Evaluate(best)
	}
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			p := v2.Vec{
				X: lo.X + (hi.X-lo.X)*float64(i)/n,
				Y: lo.Y + (hi.Y-lo.Y)*float64(j)/n,
			}
			if d := field.Evaluate(p); d < bestD {
				best, bestD = p, d
			}
		}
	}
	return best
}

// sharpCorner is the largest interior angle still treated as a corner.
const sharpCorner = math.Pi/2 + 1e-6

// corners returns points just inside the sharp convex corners of the
// island contour.
func (g *Generator) corners(island polygon.ExPolygon) []v2.Vec {
	ring := g.Scale.ToVec2s(island.Contour)
	n := len(ring)
	if n < 3 {
		return nil
	}
	ccw := island.Contour.IsCCW()
	inset := g.Config.HeadDiameter
	var out []v2.Vec
	for i := range ring {
		prev, cur, next := ring[(i+n-1)%n], ring[i], ring[(i+1)%n]
		a := prev.Sub(cur)
		b := next.Sub(cur)
		la, lb := a.Length(), b.Length()
		if la == 0 || lb == 0 {
			continue
		}
		cross := (cur.X-prev.X)*(next.Y-cur.Y) - (cur.Y-prev.Y)*(next.X-cur.X)
		if (cross > 0) != ccw {
			continue
		}
		angle := math.Acos(math.Max(-1, math.Min(1, a.Dot(b)/(la*lb))))
		if angle > sharpCorner {
			continue
		}
		bisector := a.MulScalar(1 / la).Add(b.MulScalar(1 / lb))
		if bl := bisector.Length(); bl > 0 {
			out = append(out, cur.Add(bisector.MulScalar(inset/bl)))
		}
	}
	return out
}

// project casts a ray up from below the layer and returns the first hit
// on the model underside.
func (g *Generator) project(c v2.Vec, from, z float64) (SupportPoint, bool) {
	h := g.Index.RayCast(v3.Vec{X: c.X, Y: c.Y, Z: from}, v3.Vec{Z: 1})
	if !h.OK || h.Point.Z > z+1e-6 {
		return SupportPoint{}, false
	}
	return SupportPoint{
		Pos:        h.Point,
		Normal:     h.Normal,
		HeadRadius: g.Config.HeadDiameter / 2,
	}, true
}

// RemoveBottomPoints drops the points lying less than tolerance above
// zmin. Callers apply it when the model rests on the plate, where the
// bottom layers print directly on the platform.
func RemoveBottomPoints(pts []SupportPoint, zmin, tolerance float64) []SupportPoint {
	out := pts[:0:0]
	for _, p := range pts {
		if p.Pos.Z >= zmin+tolerance {
			out = append(out, p)
		}
	}
	return out
}
