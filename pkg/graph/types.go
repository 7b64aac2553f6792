package graph

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Handles into the arena slices. Negative values mean "none".
type (
	HeadID     int
	PillarID   int
	BridgeID   int
	JunctionID int
	AnchorID   int
)

const (
	NoHead     HeadID     = -1
	NoPillar   PillarID   = -1
	NoBridge   BridgeID   = -1
	NoJunction JunctionID = -1
	NoAnchor   AnchorID   = -1
)

// Head is the pin that touches the model. It is a small front sphere at
// the tip, a cone of length Width and a back sphere whose centre is the
// junction where the rest of the tree attaches.
type Head struct {
	ID          HeadID
	Dir         v3.Vec // unit vector from the tip toward the back
	Tr          v3.Vec // tip, pushed into the model by Penetration
	RPin        float64
	RBack       float64
	Width       float64
	Penetration float64
	PillarID    PillarID
	BridgeID    BridgeID
	PointIndex  int // index of the support point, -1 for anchor heads
}

// NewHead places a head for the surface point s with outward normal n.
// The tip sits Penetration inside the surface.
func NewHead(s, n, dir v3.Vec, rPin, rBack, width, penetration float64, point int) Head {
	return Head{
		ID:          NoHead,
		Dir:         dir.Normalize(),
		Tr:          s.Sub(n.Normalize().MulScalar(penetration)),
		RPin:        rPin,
		RBack:       rBack,
		Width:       width,
		Penetration: penetration,
		PillarID:    NoPillar,
		BridgeID:    NoBridge,
		PointIndex:  point,
	}
}

// FrontCenter is the centre of the front sphere.
func (h Head) FrontCenter() v3.Vec {
	return h.Tr.Add(h.Dir.MulScalar(h.RPin))
}

// JunctionPoint is the centre of the back sphere.
func (h Head) JunctionPoint() v3.Vec {
	return h.Tr.Add(h.Dir.MulScalar(h.RPin + h.Width))
}

// FullWidth is the length from the tip to the far side of the back sphere.
func (h Head) FullWidth() float64 {
	return h.RPin + h.Width + h.RBack
}

// Pillar is a vertical column from Top down to End. End is on the ground
// unless the pillar is anchored on the model.
type Pillar struct {
	ID             PillarID
	Top            v3.Vec
	End            v3.Vec
	R              float64
	BaseR          float64
	BaseH          float64
	HasBase        bool
	Links          int // cascade partners
	Bridges        int // head bridges attached
	Group          int // cascade group, shared by braced pillars
	StartsFromHead bool
	HeadID         HeadID
	Anchor         AnchorID
	BridgeIDs      []BridgeID
}

// Height is the vertical extent of the pillar.
func (p Pillar) Height() float64 {
	return p.Top.Z - p.End.Z
}

// OnModel reports whether the pillar ends on the model instead of the
// ground.
func (p Pillar) OnModel() bool {
	return p.Anchor != NoAnchor
}

// BridgeKind tells bridges apart by role.
type BridgeKind int

const (
	HeadBridge   BridgeKind = iota // head junction to a pillar
	Crossbridge                    // pillar to pillar brace
	EscapeBridge                   // head junction out to free space
)

func (k BridgeKind) String() string {
	switch k {
	case HeadBridge:
		return "head"
	case Crossbridge:
		return "cross"
	case EscapeBridge:
		return "escape"
	default:
		return fmt.Sprintf("BridgeKind(%d)", int(k))
	}
}

// Bridge is a straight strut between two points.
type Bridge struct {
	ID     BridgeID
	Start  v3.Vec
	End    v3.Vec
	R      float64
	Kind   BridgeKind
	From   PillarID
	To     PillarID
	HeadID HeadID
}

// Length returns the distance between the end points.
func (b Bridge) Length() float64 {
	return b.End.Sub(b.Start).Length()
}

// Slope returns the signed angle between the bridge and the horizontal
// plane, positive when End is above Start.
func (b Bridge) Slope() float64 {
	d := b.End.Sub(b.Start)
	l := d.Length()
	if l == 0 {
		return 0
	}
	return math.Asin(math.Max(-1, math.Min(1, d.Z/l)))
}

// Junction is a sphere that fills the seam where struts meet.
type Junction struct {
	ID  JunctionID
	Pos v3.Vec
	R   float64
}

// Anchor is a reversed head that lets a pillar stand on the model.
type Anchor struct {
	ID       AnchorID
	Head     Head
	PillarID PillarID
}
