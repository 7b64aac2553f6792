package tessellate_test

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/resin/pkg/graph"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/kernel/poly"
	"github.com/chazu/resin/pkg/kernel/sdfx"
	"github.com/chazu/resin/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// newKernel returns the exact polyhedral kernel for testing.
func newKernel() kernel.Kernel {
	return poly.New(16)
}

// makeTree builds one head on a pillar with a base plus a second head
// bridged onto it.
func makeTree() *graph.Tree {
	t := graph.NewTree(-5, 10)
	down := v3.Vec{Z: -1}
	h0 := t.AddHead(graph.NewHead(v3.Vec{Z: 5}, down, down, 0.2, 0.5, 1, 0.5, 0))
	h1 := t.AddHead(graph.NewHead(v3.Vec{X: 2, Z: 5}, down, down, 0.2, 0.5, 1, 0.5, 1))
	head0, _ := t.Head(h0)
	top := head0.JunctionPoint()
	p := t.AddPillar(graph.Pillar{
		Top:            top,
		End:            v3.Vec{X: top.X, Y: top.Y, Z: -5},
		R:              0.5,
		BaseR:          2,
		BaseH:          1,
		HasBase:        true,
		StartsFromHead: true,
		HeadID:         h0,
	})
	head1, _ := t.Head(h1)
	jp := head1.JunctionPoint()
	conn := v3.Vec{X: top.X, Y: top.Y, Z: jp.Z - 2}
	t.AddBridge(h1, jp, conn, 0.3, graph.HeadBridge, p)
	t.IncrementBridges(p)
	t.AddJunction(conn, 0.5)
	return t
}

func TestTessellateTree(t *testing.T) {
	m, err := tessellate.New(newKernel()).Tessellate(makeTree())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("mesh should not be empty")
	}
	if m.Name != "supports" {
		t.Errorf("mesh name = %q, want supports", m.Name)
	}
	bb := m.BoundingBox()
	if bb.Min.Z != -5 {
		t.Errorf("min z = %g, want the ground level -5 exactly", bb.Min.Z)
	}
	// The front spheres end at the tips, 0.5 inside the model.
	if math.Abs(bb.Max.Z-5.5) > 1e-9 {
		t.Errorf("max z = %g, want 5.5", bb.Max.Z)
	}
	if bb.Min.X > -1.99 || bb.Max.X < 2.2 {
		t.Errorf("x extent %g..%g does not cover the base and the second head", bb.Min.X, bb.Max.X)
	}
}

func TestPartsNamed(t *testing.T) {
	parts, err := tessellate.New(newKernel()).Parts(makeTree())
	if err != nil {
		t.Fatalf("Parts failed: %v", err)
	}
	// two heads, one pillar, one bridge, one junction
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	names := map[string]bool{}
	for _, m := range parts {
		if m.IsEmpty() {
			t.Errorf("part %q should not be empty", m.Name)
		}
		if !m.IsManifold() {
			t.Errorf("part %q is not manifold", m.Name)
		}
		names[m.Name] = true
	}
	for _, want := range []string{"head 0", "head 1", "pillar 0", "head bridge 0", "junction 0"} {
		if !names[want] {
			t.Errorf("missing part %q", want)
		}
	}
}

func TestPillarWithoutBase(t *testing.T) {
	tr := graph.NewTree(0, 10)
	tr.AddPillar(graph.Pillar{Top: v3.Vec{Z: 8}, End: v3.Vec{}, R: 0.5, BaseR: 2, BaseH: 1})
	m, err := tessellate.New(newKernel()).Tessellate(tr)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	bb := m.BoundingBox()
	if math.Abs(bb.Max.X-0.5) > 1e-9 {
		t.Errorf("max x = %g, want the pillar radius without a base", bb.Max.X)
	}
	if bb.Min.Z != 0 || bb.Max.Z != 8 {
		t.Errorf("z extent = %g..%g, want 0..8", bb.Min.Z, bb.Max.Z)
	}
}

func TestAnchorReversedHead(t *testing.T) {
	tr := graph.NewTree(0, 20)
	up := v3.Vec{Z: 1}
	anchor := graph.NewHead(v3.Vec{Z: 2}, up, up, 0.2, 0.5, 1, 0.5, -1)
	end := anchor.JunctionPoint()
	p := tr.AddPillar(graph.Pillar{Top: v3.Vec{Z: 10}, End: end, R: 0.5})
	tr.AddAnchor(anchor, p)

	parts, err := tessellate.New(newKernel()).Parts(tr)
	if err != nil {
		t.Fatalf("Parts failed: %v", err)
	}
	var found bool
	for _, m := range parts {
		if !strings.HasPrefix(m.Name, "anchor") {
			continue
		}
		found = true
		bb := m.BoundingBox()
		if math.Abs(bb.Min.Z-1.5) > 1e-9 {
			t.Errorf("anchor tip z = %g, want 1.5", bb.Min.Z)
		}
	}
	if !found {
		t.Error("no anchor part")
	}
}

func TestEmptyTree(t *testing.T) {
	ts := tessellate.New(newKernel())
	for _, tr := range []*graph.Tree{nil, graph.NewTree(0, 0)} {
		m, err := ts.Tessellate(tr)
		if err != nil {
			t.Fatalf("Tessellate failed: %v", err)
		}
		if !m.IsEmpty() {
			t.Errorf("expected an empty mesh, got %d faces", m.FaceCount())
		}
	}
}

func TestSdfxPreview(t *testing.T) {
	if testing.Short() {
		t.Skip("marching cubes preview is slow")
	}
	k := sdfx.New()
	k.Cells = 64
	m, err := tessellate.New(k).Tessellate(makeTree())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("preview mesh should not be empty")
	}
	bb := m.BoundingBox()
	const tol = 0.5
	if math.Abs(bb.Min.Z+5) > tol || math.Abs(bb.Max.Z-5.5) > tol {
		t.Errorf("preview z extent = %g..%g, want about -5..5.5", bb.Min.Z, bb.Max.Z)
	}
}
