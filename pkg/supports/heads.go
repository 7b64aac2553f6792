package supports

import (
	"context"
	"math"
	"sort"

	"github.com/chazu/resin/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// minPolar is the flattest a head may lean: 45 degrees below horizontal.
const minPolar = 3 * math.Pi / 4

// beamSamples is the number of rays around the head axis.
const beamSamples = 8

// placeHeads finds a clear head for every point in parallel. The result
// is indexed like the points; nil marks a point without a head.
func (st *build) placeHeads(ctx context.Context, workers int) ([]*graph.Head, error) {
	out := make([]*graph.Head, len(st.pts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range st.pts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if h, ok := st.placeHead(i); ok {
				out[i] = &h
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// sphericalDir returns the unit vector with the given polar angle from +Z
// and azimuth around it.
func sphericalDir(polar, azimuth float64) v3.Vec {
	s := math.Sin(polar)
	return v3.Vec{X: s * math.Cos(azimuth), Y: s * math.Sin(azimuth), Z: math.Cos(polar)}
}

// directions lists the preferred direction first, then the alternatives
// from the steep cone ordered by how far they turn away from it.
func directions(polar, azimuth float64) []v3.Vec {
	first := sphericalDir(polar, azimuth)
	var alts []v3.Vec
	for j := 0; j < 4; j++ {
		p := minPolar + float64(j)*math.Pi/16
		for k := 0; k < 16; k++ {
			alts = append(alts, sphericalDir(p, azimuth+float64(k)*math.Pi/8))
		}
	}
	alts = append(alts, v3.Vec{Z: -1})
	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].Dot(first) > alts[j].Dot(first)
	})
	return append([]v3.Vec{first}, alts...)
}

// placeHead tries the directions for point i until one gives a clear
// head.
func (st *build) placeHead(i int) (graph.Head, bool) {
	sp := st.pts[i]
	if sp.Normal.Length() == 0 {
		return graph.Head{}, false
	}
	n := sp.Normal.Normalize()
	polar := math.Acos(math.Max(-1, math.Min(1, n.Z)))
	if polar < math.Pi-st.cfg.NormalCutoffAngle {
		return graph.Head{}, false
	}
	azimuth := math.Atan2(n.Y, n.X)
	polar = math.Max(polar, minPolar)

	rpin := st.cfg.HeadFrontRadius
	if sp.HeadRadius > 0 {
		rpin = sp.HeadRadius
	}
	for _, d := range directions(polar, azimuth) {
		h := graph.NewHead(sp.Pos, n, d, rpin, st.cfg.HeadBackRadius, st.cfg.HeadWidth, st.cfg.HeadPenetration, i)
		if st.headClear(h, sp.Pos) {
			return h, true
		}
	}
	return graph.Head{}, false
}

// backClearance scales the back radius into the free space required
// around the junction point, so that struts leaving it pass the sampled
// clearance test at their first sample.
const backClearance = 1.25

// headClear reports whether h, touching the surface at s, stays out of
// the model. A head with negative penetration must clear the surface
// with its whole body; otherwise the part beyond the tip is tested with
// a beam of rays. The junction point is tested with a distance query.
func (st *build) headClear(h graph.Head, s v3.Vec) bool {
	jp := h.JunctionPoint()
	if h.Penetration < 0 {
		if !st.sweepClear(h.FrontCenter(), jp, h.RPin, h.RBack) {
			return false
		}
	} else {
		origin := s.Add(h.Dir.MulScalar(2 * h.RPin))
		if !st.idx.BeamClear(origin, h.Dir, h.RPin, h.Width+h.RBack, beamSamples) {
			return false
		}
	}
	return st.idx.SegmentClear(jp, jp, backClearance*h.RBack)
}

// sweepClear reports whether a sphere moving from a to b while its radius
// grows linearly from ra to rb stays clear of the surface. Samples are
// spaced at most half the smaller radius and padded by half a step.
func (st *build) sweepClear(a, b v3.Vec, ra, rb float64) bool {
	ab := b.Sub(a)
	l := ab.Length()
	n := int(math.Ceil(l / (math.Min(ra, rb) / 2)))
	if n < 1 {
		n = 1
	}
	step := l / float64(n)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		p := a.Add(ab.MulScalar(t))
		if !st.idx.SegmentClear(p, p, ra+(rb-ra)*t+step/2) {
			return false
		}
	}
	return true
}
