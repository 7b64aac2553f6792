package supports

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/resin/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// auxSteps is the number of angles tried around a pillar when placing an
// auxiliary pillar.
const auxSteps = 20

// span is one planned crossbridge. fromA tells whether it starts on the
// first pillar of the pair.
type span struct {
	start, end v3.Vec
	fromA      bool
}

// cascade braces the ground pillars. Every pillar is paired with its
// nearest neighbours within the link distance until it reaches the link
// cap; each pair is tried once. Tall pillars left short of links get
// auxiliary pillars.
func (st *build) cascade(ctx context.Context) error {
	st.sets = make(groups)
	seen := make(map[uint64]bool)
	linkCap := st.cfg.PillarCascadeNeighbors
	for _, a := range st.pillars {
		if err := ctx.Err(); err != nil {
			return err
		}
		pa, _ := st.tree.Pillar(a)
		if pa.Links >= linkCap {
			continue
		}
		type cand struct {
			pid graph.PillarID
			d   float64
		}
		var cands []cand
		for _, b := range st.pillars {
			if b == a {
				continue
			}
			pb, _ := st.tree.Pillar(b)
			if d := horizontal(pa.End, pb.End); d <= st.cfg.MaxPillarLinkDistance {
				cands = append(cands, cand{b, d})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })

		for _, c := range cands {
			pa, _ = st.tree.Pillar(a)
			if pa.Links >= linkCap {
				break
			}
			pb, _ := st.tree.Pillar(c.pid)
			if pb.Links >= linkCap {
				continue
			}
			key := PairHash[uint64](a, c.pid)
			if seen[key] {
				continue
			}
			seen[key] = true
			if spans := st.zigzag(pa, pb); len(spans) > 0 {
				st.link(a, c.pid, spans)
			}
		}
	}

	for _, a := range append([]graph.PillarID(nil), st.pillars...) {
		p, _ := st.tree.Pillar(a)
		if missing := st.cfg.linksNeeded(p.Height()) - p.Links; missing > 0 {
			if err := st.auxiliary(p, missing); err != nil {
				return err
			}
		}
	}
	return nil
}

// zigzag plans the crossbridges between two pillars. They start at the
// lower of the two tops and alternate sides on the way down at the
// minimum slope, stopping above the bases. Blocked segments are left out.
func (st *build) zigzag(a, b graph.Pillar) []span {
	d := horizontal(a.End, b.End)
	if d <= a.R+b.R || d > st.cfg.MaxPillarLinkDistance {
		return nil
	}
	drop := d * math.Tan(st.cfg.BridgeSlope)
	bottom := math.Max(a.End.Z, b.End.Z) + st.cfg.BaseHeight
	from, to, fromA := a, b, true
	if b.Top.Z < a.Top.Z {
		from, to, fromA = b, a, false
	}

	var spans []span
	for z := from.Top.Z; z-drop >= bottom; z -= drop {
		s := v3.Vec{X: from.End.X, Y: from.End.Y, Z: z}
		e := v3.Vec{X: to.End.X, Y: to.End.Y, Z: z - drop}
		if st.idx.SegmentClear(s, e, st.cfg.BridgeRadius) {
			spans = append(spans, span{start: s, end: e, fromA: fromA})
		}
		from, to, fromA = to, from, !fromA
	}
	return spans
}

// link stores the planned crossbridges between a and b and counts one
// link on each.
func (st *build) link(a, b graph.PillarID, spans []span) {
	for _, s := range spans {
		from, to := a, b
		if !s.fromA {
			from, to = b, a
		}
		st.tree.AddCrossbridge(from, to, s.start, s.end, st.cfg.BridgeRadius)
		st.tree.AddJunction(s.end, st.cfg.PillarRadius)
	}
	st.tree.IncrementLinks(a)
	st.tree.IncrementLinks(b)
	st.sets.union(a, b)
}

// groups is a disjoint set over pillars joined by crossbridges. Roots
// have no entry; the smaller id becomes the root of a union.
type groups map[graph.PillarID]graph.PillarID

func (g groups) find(p graph.PillarID) graph.PillarID {
	for {
		q, ok := g[p]
		if !ok {
			return p
		}
		if r, ok := g[q]; ok {
			g[p] = r
			q = r
		}
		p = q
	}
}

func (g groups) union(a, b graph.PillarID) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	g[rb] = ra
}

// assignGroups numbers the cascade groups from 1 in pillar order. A
// pillar without links forms a group of its own.
func (st *build) assignGroups() {
	ids := make(map[graph.PillarID]int)
	for _, p := range st.tree.Pillars() {
		root := st.sets.find(p.ID)
		g, ok := ids[root]
		if !ok {
			g = len(ids) + 1
			ids[root] = g
		}
		st.tree.SetGroup(p.ID, g)
	}
}

// auxiliary stands short pillars next to p and braces them to it, one per
// missing link. The short pillars stay under the solo height so they need
// no links of their own. Angles advance in steps of 0.1 pi; the second
// pillar starts a third of pi past the first.
func (st *build) auxiliary(p graph.Pillar, missing int) error {
	tan := math.Tan(st.cfg.BridgeSlope)
	top := st.ground + 0.95*st.cfg.MaxSoloPillarHeight
	dist := math.Min(2*st.cfg.BaseRadius, st.cfg.MaxPillarLinkDistance)
	if room := (top - st.ground - st.cfg.BaseHeight) / tan; room < dist {
		dist = room
	}
	if dist <= 2*st.cfg.PillarRadius {
		return fmt.Errorf("%w: no room for auxiliary pillars next to pillar %d", ErrGenerationFault, p.ID)
	}

	start := 0.0
	for k := 0; k < missing; k++ {
		placed := false
		for i := 0; i < auxSteps && !placed; i++ {
			ang := start + float64(i)*0.1*math.Pi
			c := v3.Vec{X: p.End.X + dist*math.Cos(ang), Y: p.End.Y + dist*math.Sin(ang), Z: top}
			if !st.groundClear(c) {
				continue
			}
			aux := graph.Pillar{
				ID:  graph.NoPillar,
				Top: c,
				End: st.groundPoint(c),
				R:   st.cfg.PillarRadius,
			}
			spans := st.zigzag(p, aux)
			if len(spans) == 0 {
				continue
			}
			pid := st.groundPillar(c, graph.NoHead)
			st.tree.AddJunction(c, st.cfg.PillarRadius)
			st.link(p.ID, pid, spans)
			st.log.Debug("auxiliary pillar", "pillar", p.ID, "aux", pid, "angle", ang)
			start = ang + math.Pi/3
			placed = true
		}
		if !placed {
			return fmt.Errorf("%w: pillar %d of height %.2f is missing %d links", ErrGenerationFault, p.ID, p.Height(), missing-k)
		}
	}
	return nil
}
