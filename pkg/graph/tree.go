package graph

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tree is the arena of one support tree. It is filled by a single build
// and read afterwards; accessors return copies so callers cannot modify
// the arena through them.
type Tree struct {
	GroundLevel float64
	ModelMaxZ   float64

	heads     []Head
	pillars   []Pillar
	bridges   []Bridge
	junctions []Junction
	anchors   []Anchor
}

// NewTree returns an empty tree standing on ground.
func NewTree(ground, modelMaxZ float64) *Tree {
	return &Tree{GroundLevel: ground, ModelMaxZ: modelMaxZ}
}

// Empty reports whether the tree holds no geometry.
func (t *Tree) Empty() bool {
	return len(t.heads) == 0 && len(t.pillars) == 0 && len(t.bridges) == 0 &&
		len(t.junctions) == 0 && len(t.anchors) == 0
}

func (t *Tree) mustPillar(id PillarID) *Pillar {
	if id < 0 || int(id) >= len(t.pillars) {
		panic(fmt.Sprintf("graph: no pillar %d", id))
	}
	return &t.pillars[id]
}

func (t *Tree) mustHead(id HeadID) *Head {
	if id < 0 || int(id) >= len(t.heads) {
		panic(fmt.Sprintf("graph: no head %d", id))
	}
	return &t.heads[id]
}

// AddHead stores h and returns its handle.
func (t *Tree) AddHead(h Head) HeadID {
	h.ID = HeadID(len(t.heads))
	t.heads = append(t.heads, h)
	return h.ID
}

// AddPillar stores p and returns its handle. A pillar starting from a head
// is recorded on that head. Anchors are attached with AddAnchor.
func (t *Tree) AddPillar(p Pillar) PillarID {
	p.ID = PillarID(len(t.pillars))
	p.BridgeIDs = nil
	if p.StartsFromHead {
		t.mustHead(p.HeadID).PillarID = p.ID
	} else {
		p.HeadID = NoHead
	}
	p.Anchor = NoAnchor
	t.pillars = append(t.pillars, p)
	return p.ID
}

// AddBridge stores a bridge leaving head h. For a head bridge to is the
// pillar it lands on; for an escape bridge to is the pillar standing at
// its far end. Counters are left to IncrementBridges.
func (t *Tree) AddBridge(h HeadID, start, end v3.Vec, r float64, kind BridgeKind, to PillarID) BridgeID {
	return t.addBridge(Bridge{
		Start:  start,
		End:    end,
		R:      r,
		Kind:   kind,
		From:   NoPillar,
		To:     to,
		HeadID: h,
	})
}

// AddCrossbridge stores a brace between two pillars.
func (t *Tree) AddCrossbridge(from, to PillarID, start, end v3.Vec, r float64) BridgeID {
	return t.addBridge(Bridge{
		Start:  start,
		End:    end,
		R:      r,
		Kind:   Crossbridge,
		From:   from,
		To:     to,
		HeadID: NoHead,
	})
}

func (t *Tree) addBridge(b Bridge) BridgeID {
	b.ID = BridgeID(len(t.bridges))
	if b.HeadID != NoHead {
		h := t.mustHead(b.HeadID)
		h.BridgeID = b.ID
		h.PillarID = b.To
	}
	for _, pid := range []PillarID{b.From, b.To} {
		if pid != NoPillar {
			p := t.mustPillar(pid)
			p.BridgeIDs = append(p.BridgeIDs, b.ID)
		}
	}
	t.bridges = append(t.bridges, b)
	return b.ID
}

// AddJunction stores a seam sphere.
func (t *Tree) AddJunction(pos v3.Vec, r float64) JunctionID {
	id := JunctionID(len(t.junctions))
	t.junctions = append(t.junctions, Junction{ID: id, Pos: pos, R: r})
	return id
}

// AddAnchor stores a reversed head under pillar p and marks the pillar as
// standing on the model.
func (t *Tree) AddAnchor(h Head, p PillarID) AnchorID {
	id := AnchorID(len(t.anchors))
	h.ID = NoHead
	h.PillarID = p
	t.anchors = append(t.anchors, Anchor{ID: id, Head: h, PillarID: p})
	t.mustPillar(p).Anchor = id
	return id
}

// IncrementLinks records one more cascade partner on p.
func (t *Tree) IncrementLinks(p PillarID) {
	t.mustPillar(p).Links++
}

// IncrementBridges records one more head bridge landing on p.
func (t *Tree) IncrementBridges(p PillarID) {
	t.mustPillar(p).Bridges++
}

// SetGroup assigns the cascade group of p.
func (t *Tree) SetGroup(p PillarID, group int) {
	t.mustPillar(p).Group = group
}

// Head returns a copy of head id.
func (t *Tree) Head(id HeadID) (Head, bool) {
	if id < 0 || int(id) >= len(t.heads) {
		return Head{}, false
	}
	return t.heads[id], true
}

// Pillar returns a copy of pillar id.
func (t *Tree) Pillar(id PillarID) (Pillar, bool) {
	if id < 0 || int(id) >= len(t.pillars) {
		return Pillar{}, false
	}
	p := t.pillars[id]
	p.BridgeIDs = append([]BridgeID(nil), p.BridgeIDs...)
	return p, true
}

// Bridge returns a copy of bridge id.
func (t *Tree) Bridge(id BridgeID) (Bridge, bool) {
	if id < 0 || int(id) >= len(t.bridges) {
		return Bridge{}, false
	}
	return t.bridges[id], true
}

// Neighbors returns the pillars braced to id by crossbridges, each once.
func (t *Tree) Neighbors(id PillarID) []PillarID {
	if id < 0 || int(id) >= len(t.pillars) {
		return nil
	}
	var out []PillarID
	seen := make(map[PillarID]bool)
	for _, bid := range t.pillars[id].BridgeIDs {
		b := t.bridges[bid]
		if b.Kind != Crossbridge {
			continue
		}
		other := b.To
		if other == id {
			other = b.From
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out
}

// Heads returns copies of all heads.
func (t *Tree) Heads() []Head {
	return append([]Head(nil), t.heads...)
}

// Pillars returns copies of all pillars.
func (t *Tree) Pillars() []Pillar {
	out := make([]Pillar, len(t.pillars))
	for i := range t.pillars {
		out[i], _ = t.Pillar(PillarID(i))
	}
	return out
}

// Bridges returns the head and escape bridges.
func (t *Tree) Bridges() []Bridge {
	var out []Bridge
	for _, b := range t.bridges {
		if b.Kind != Crossbridge {
			out = append(out, b)
		}
	}
	return out
}

// Crossbridges returns the pillar to pillar braces.
func (t *Tree) Crossbridges() []Bridge {
	var out []Bridge
	for _, b := range t.bridges {
		if b.Kind == Crossbridge {
			out = append(out, b)
		}
	}
	return out
}

// AllBridges returns copies of every bridge in handle order.
func (t *Tree) AllBridges() []Bridge {
	return append([]Bridge(nil), t.bridges...)
}

// Junctions returns copies of all junctions.
func (t *Tree) Junctions() []Junction {
	return append([]Junction(nil), t.junctions...)
}

// Anchors returns copies of all anchors.
func (t *Tree) Anchors() []Anchor {
	return append([]Anchor(nil), t.anchors...)
}

// Counts returns the number of heads, pillars, bridges (all kinds),
// junctions and anchors.
func (t *Tree) Counts() (heads, pillars, bridges, junctions, anchors int) {
	return len(t.heads), len(t.pillars), len(t.bridges), len(t.junctions), len(t.anchors)
}
