package supports

import (
	"math"
	"sort"

	"github.com/chazu/resin/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// escapeDirections is the number of azimuths tried for escape bridges.
const escapeDirections = 8

// classify stores every placed head that has a way down. Heads that can
// drop straight to the ground are returned for routing; the others get
// an escape bridge or a pillar anchored on the model, or are dropped.
func (st *build) classify(placed []*graph.Head) []graph.HeadID {
	var toGround []graph.HeadID
	for i, h := range placed {
		if h == nil {
			st.dropped++
			st.log.Debug("no clear head orientation", "point", i, "pos", st.pts[i].Pos)
			continue
		}
		jp := h.JunctionPoint()
		switch {
		case st.groundClear(jp):
			toGround = append(toGround, st.tree.AddHead(*h))
		case st.escape(*h), st.anchor(*h):
			// stored with its route
		default:
			st.dropped++
			st.log.Debug("no route to ground or model", "point", i, "pos", st.pts[i].Pos)
		}
	}
	return toGround
}

// escape looks for a bridge at the minimum slope that leads from the
// head out to a spot where a pillar can reach the ground.
func (st *build) escape(h graph.Head) bool {
	jp := h.JunctionPoint()
	s := st.cfg.BridgeSlope
	azimuth := math.Atan2(h.Dir.Y, h.Dir.X)
	step := st.cfg.PillarRadius
	for k := 0; k < escapeDirections; k++ {
		phi := azimuth + float64(k)*2*math.Pi/escapeDirections
		d := v3.Vec{X: math.Cos(phi) * math.Cos(s), Y: math.Sin(phi) * math.Cos(s), Z: -math.Sin(s)}
		for l := 2 * step; l <= st.cfg.MaxBridgeLength; l += step {
			e := jp.Add(d.MulScalar(l))
			if e.Z-st.ground < st.minPillarHeight() {
				break
			}
			if !st.idx.SegmentClear(jp, e, st.cfg.BridgeRadius) {
				break
			}
			if !st.groundClear(e) {
				continue
			}
			hid := st.tree.AddHead(h)
			pid := st.groundPillar(e, graph.NoHead)
			st.tree.AddBridge(hid, jp, e, st.cfg.BridgeRadius, graph.EscapeBridge, pid)
			st.tree.IncrementBridges(pid)
			st.tree.AddJunction(e, st.cfg.PillarRadius)
			return true
		}
	}
	return false
}

// anchor stands the pillar of h on the model surface below it, ending in
// a reversed head.
func (st *build) anchor(h graph.Head) bool {
	jp := h.JunctionPoint()
	hit := st.idx.RayCast(jp, v3.Vec{Z: -1})
	if !hit.OK || hit.Normal.Z <= 0 {
		return false
	}
	a := graph.NewHead(hit.Point, hit.Normal, v3.Vec{Z: 1}, h.RPin, h.RBack, h.Width, h.Penetration, -1)
	end := a.JunctionPoint()
	if jp.Z-end.Z < st.cfg.PillarRadius {
		return false
	}
	if !st.headClear(a, hit.Point) || !st.idx.SegmentClear(jp, end, st.cfg.PillarRadius) {
		return false
	}
	hid := st.tree.AddHead(h)
	pid := st.tree.AddPillar(graph.Pillar{
		Top:            jp,
		End:            end,
		R:              st.cfg.PillarRadius,
		StartsFromHead: true,
		HeadID:         hid,
	})
	st.tree.AddAnchor(a, pid)
	return true
}

// reach is the horizontal span of a bridge of maximum length at the
// minimum slope.
func (st *build) reach() float64 {
	return st.cfg.MaxBridgeLength * math.Cos(st.cfg.BridgeSlope)
}

// route groups the ground heads into clusters. The head nearest the
// centre of a cluster gets a pillar and the others are bridged to the
// nearest pillar with capacity, falling back to a pillar of their own.
func (st *build) route(heads []graph.HeadID) {
	jps := make(map[graph.HeadID]v3.Vec, len(heads))
	for _, id := range heads {
		h, _ := st.tree.Head(id)
		jps[id] = h.JunctionPoint()
	}
	remaining := append([]graph.HeadID(nil), heads...)
	sort.SliceStable(remaining, func(i, j int) bool {
		return jps[remaining[i]].Z < jps[remaining[j]].Z
	})

	radius := st.reach() / 2
	for len(remaining) > 0 {
		seed := jps[remaining[0]]
		type near struct {
			pos int
			d   float64
		}
		var cands []near
		for i, id := range remaining {
			if d := horizontal(seed, jps[id]); d <= radius {
				cands = append(cands, near{i, d})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })
		if len(cands) > st.cfg.MaxBridgesOnPillar+1 {
			cands = cands[:st.cfg.MaxBridgesOnPillar+1]
		}

		members := make([]graph.HeadID, len(cands))
		taken := make(map[int]bool, len(cands))
		var cx, cy float64
		for i, c := range cands {
			members[i] = remaining[c.pos]
			taken[c.pos] = true
			cx += jps[members[i]].X
			cy += jps[members[i]].Y
		}
		centre := v3.Vec{X: cx / float64(len(members)), Y: cy / float64(len(members))}
		best := 0
		for i, id := range members {
			if horizontal(jps[id], centre) < horizontal(jps[members[best]], centre) {
				best = i
			}
		}

		st.groundPillar(jps[members[best]], members[best])
		for i, id := range members {
			if i != best && !st.attach(id, jps[id]) {
				st.groundPillar(jps[id], id)
			}
		}

		rest := remaining[:0]
		for i, id := range remaining {
			if !taken[i] {
				rest = append(rest, id)
			}
		}
		remaining = rest
	}
}

// attach bridges head id to the nearest ground pillar that still accepts
// bridges and can be reached at the minimum slope.
func (st *build) attach(id graph.HeadID, jp v3.Vec) bool {
	type cand struct {
		pid graph.PillarID
		d   float64
	}
	var cands []cand
	reach := st.reach()
	for _, pid := range st.pillars {
		p, _ := st.tree.Pillar(pid)
		if d := horizontal(jp, p.End); d <= reach && d > st.cfg.PillarRadius {
			cands = append(cands, cand{pid, d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })

	tan := math.Tan(st.cfg.BridgeSlope)
	for _, c := range cands {
		p, _ := st.tree.Pillar(c.pid)
		if p.Bridges >= st.cfg.MaxBridgesOnPillar {
			continue
		}
		conn := v3.Vec{X: p.End.X, Y: p.End.Y, Z: jp.Z - c.d*tan}
		if conn.Z > p.Top.Z || conn.Z < p.End.Z+st.minPillarHeight() {
			continue
		}
		if jp.Sub(conn).Length() > st.cfg.MaxBridgeLength {
			continue
		}
		if !st.idx.SegmentClear(jp, conn, st.cfg.BridgeRadius) {
			st.log.Debug("bridge blocked", "head", id, "pillar", c.pid)
			continue
		}
		st.tree.AddBridge(id, jp, conn, st.cfg.BridgeRadius, graph.HeadBridge, c.pid)
		st.tree.IncrementBridges(c.pid)
		st.tree.AddJunction(conn, st.cfg.PillarRadius)
		return true
	}
	return false
}
