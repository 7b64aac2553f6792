// Package supports grows support trees under SLA models. A tree starts
// with a pinhead at every support point, drops pillars to the ground
// where the way down is clear, bridges neighbouring heads onto shared
// pillars and braces tall pillars with crossbridges.
package supports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/graph"
	"github.com/chazu/resin/pkg/index"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/supports/points"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrGenerationFault reports that the points could not be supported
// within the configured bounds.
var ErrGenerationFault = errors.New("support generation fault")

// SupportableMesh is the input of a build.
type SupportableMesh struct {
	Index  *index.Index
	Points []points.SupportPoint
	Config Config
}

// Builder builds support trees. The zero value is ready to use.
type Builder struct {
	Logger *log.Logger

	// Kernel meshes finished trees in RetrieveMesh. Nil selects the
	// polyhedral kernel.
	Kernel kernel.Kernel

	// Workers bounds the goroutines used for head placement. Zero uses
	// GOMAXPROCS.
	Workers int
}

func (b *Builder) logger() *log.Logger {
	if b == nil || b.Logger == nil {
		return log.New(io.Discard)
	}
	return b.Logger
}

func (b *Builder) workers() int {
	if b == nil || b.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return b.Workers
}

// build is the state of one Build call.
type build struct {
	cfg    Config
	idx    *index.Index
	pts    []points.SupportPoint
	tree   *graph.Tree
	log    *log.Logger
	ground float64

	// pillars lists the pillars standing on the ground in creation order.
	pillars []graph.PillarID
	sets    groups
	dropped int
}

// Build grows a tree for sm. An empty point set or mesh yields an empty
// tree. An invalid configuration is returned as a *config.ValidationError
// before any geometry is touched. Points that cannot be supported are
// dropped; when none is left, or when a tall pillar cannot be braced, the
// error wraps ErrGenerationFault. The tree is returned alongside a fault
// so callers can inspect what was built.
func (b *Builder) Build(ctx context.Context, sm SupportableMesh) (*graph.Tree, error) {
	logger := b.logger()
	if sm.Index == nil || sm.Index.Empty() || len(sm.Points) == 0 {
		ground, top := 0.0, 0.0
		if sm.Index != nil && !sm.Index.Empty() {
			bb := sm.Index.BoundingBox()
			ground, top = bb.Min.Z-sm.Config.ObjectElevation, bb.Max.Z
		}
		return graph.NewTree(ground, top), nil
	}
	if err := config.Validation("support config", sm.Config.Validate()); err != nil {
		return nil, err
	}

	bb := sm.Index.BoundingBox()
	st := &build{
		cfg:    sm.Config,
		idx:    sm.Index,
		pts:    sm.Points,
		tree:   graph.NewTree(bb.Min.Z-sm.Config.ObjectElevation, bb.Max.Z),
		log:    logger,
		ground: bb.Min.Z - sm.Config.ObjectElevation,
	}

	placed, err := st.placeHeads(ctx, b.workers())
	if err != nil {
		return nil, fmt.Errorf("placing heads: %w", err)
	}
	toGround := st.classify(placed)
	st.route(toGround)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = st.cascade(ctx)
	st.assignGroups()
	if err != nil {
		return st.tree, err
	}

	heads, pillars, bridges, junctions, anchors := st.tree.Counts()
	logger.Info("support tree built",
		"points", len(sm.Points),
		"dropped", st.dropped,
		"heads", heads,
		"pillars", pillars,
		"bridges", bridges,
		"junctions", junctions,
		"anchors", anchors,
	)
	if heads == 0 {
		return st.tree, fmt.Errorf("%w: none of %d points could be supported", ErrGenerationFault, len(sm.Points))
	}
	return st.tree, nil
}

// groundPoint drops p onto the ground plane.
func (st *build) groundPoint(p v3.Vec) v3.Vec {
	return v3.Vec{X: p.X, Y: p.Y, Z: st.ground}
}

// minPillarHeight is the lowest top a ground pillar may have.
func (st *build) minPillarHeight() float64 {
	return st.cfg.BaseHeight + st.cfg.PillarRadius
}

// groundClear reports whether a pillar can drop from p to the ground.
func (st *build) groundClear(p v3.Vec) bool {
	if p.Z-st.ground < st.minPillarHeight() {
		return false
	}
	return st.idx.SegmentClear(p, st.groundPoint(p), st.cfg.PillarRadius)
}

// baseClear reports whether a base cone fits under the pillar at p.
func (st *build) baseClear(p v3.Vec) bool {
	g := st.groundPoint(p)
	top := g.Add(v3.Vec{Z: st.cfg.BaseHeight})
	return st.idx.SegmentClear(g, top, st.cfg.BaseRadius+st.cfg.SafetyDistance)
}

// horizontal returns the distance between a and b projected on the XY
// plane.
func horizontal(a, b v3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// groundPillar adds a pillar from top down to the ground.
func (st *build) groundPillar(top v3.Vec, head graph.HeadID) graph.PillarID {
	end := st.groundPoint(top)
	pid := st.tree.AddPillar(graph.Pillar{
		Top:            top,
		End:            end,
		R:              st.cfg.PillarRadius,
		BaseR:          st.cfg.BaseRadius,
		BaseH:          st.cfg.BaseHeight,
		HasBase:        st.baseClear(end),
		StartsFromHead: head != graph.NoHead,
		HeadID:         head,
	})
	st.pillars = append(st.pillars, pid)
	return pid
}
