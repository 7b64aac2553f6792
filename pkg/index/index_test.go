package index

import (
	"math"
	"sync"
	"testing"

	"github.com/chazu/resin/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func cubeIndex() *Index {
	return New(mesh.Cube(20))
}

func TestRayCast(t *testing.T) {
	idx := cubeIndex()
	tests := []struct {
		name   string
		origin v3.Vec
		dir    v3.Vec
		ok     bool
		dist   float64
		normal v3.Vec
	}{
		{"from below", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{Z: 1}, true, 5, v3.Vec{Z: -1}},
		{"from above", v3.Vec{X: 5, Y: 7, Z: 30}, v3.Vec{Z: -2}, true, 10, v3.Vec{Z: 1}},
		{"from inside", v3.Vec{X: 10, Y: 10, Z: 10}, v3.Vec{X: 1}, true, 10, v3.Vec{X: 1}},
		{"miss", v3.Vec{X: 30, Y: 10, Z: -5}, v3.Vec{Z: 1}, false, 0, v3.Vec{}},
		{"away", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{Z: -1}, false, 0, v3.Vec{}},
		{"zero dir", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{}, false, 0, v3.Vec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := idx.RayCast(tt.origin, tt.dir)
			if h.OK != tt.ok {
				t.Fatalf("OK = %v, want %v", h.OK, tt.ok)
			}
			if !tt.ok {
				return
			}
			if math.Abs(h.Distance-tt.dist) > 1e-9 {
				t.Errorf("Distance = %g, want %g", h.Distance, tt.dist)
			}
			if h.Normal.Sub(tt.normal).Length() > 1e-9 {
				t.Errorf("Normal = %v, want %v", h.Normal, tt.normal)
			}
		})
	}
}

func TestNearestPoint(t *testing.T) {
	idx := cubeIndex()
	tests := []struct {
		name string
		p    v3.Vec
		want float64
	}{
		{"above face", v3.Vec{X: 10, Y: 10, Z: 23}, 9},
		{"off corner", v3.Vec{X: -3, Y: -4, Z: 10}, 25},
		{"inside", v3.Vec{X: 10, Y: 10, Z: 2}, 4},
		{"on surface", v3.Vec{X: 0, Y: 10, Z: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, face, d2 := idx.NearestPoint(tt.p)
			if face < 0 {
				t.Fatal("no face returned")
			}
			if math.Abs(d2-tt.want) > 1e-9 {
				t.Errorf("squared distance = %g, want %g", d2, tt.want)
			}
		})
	}
}

func TestInside(t *testing.T) {
	idx := cubeIndex()
	if !idx.Inside(v3.Vec{X: 10, Y: 10, Z: 10}) {
		t.Error("centre should be inside")
	}
	if idx.Inside(v3.Vec{X: 30, Y: 10, Z: 10}) {
		t.Error("point beside the cube should be outside")
	}
	if idx.Inside(v3.Vec{X: 10, Y: 10, Z: -1}) {
		t.Error("point below the cube should be outside")
	}
}

func TestSegmentClear(t *testing.T) {
	idx := cubeIndex()
	tests := []struct {
		name string
		a, b v3.Vec
		r    float64
		want bool
	}{
		{"far beside", v3.Vec{X: 25, Y: 10, Z: -5}, v3.Vec{X: 25, Y: 10, Z: 25}, 1, true},
		{"grazing", v3.Vec{X: 20.5, Y: 10, Z: -5}, v3.Vec{X: 20.5, Y: 10, Z: 25}, 1, false},
		{"through", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{X: 10, Y: 10, Z: 25}, 0.5, false},
		{"below", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{X: 10, Y: 10, Z: -2}, 1, true},
		{"zero radius through", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{X: 10, Y: 10, Z: 5}, 0, false},
		{"zero radius short", v3.Vec{X: 10, Y: 10, Z: -5}, v3.Vec{X: 10, Y: 10, Z: -1}, 0, true},
		{"point", v3.Vec{X: 10, Y: 10, Z: -0.5}, v3.Vec{X: 10, Y: 10, Z: -0.5}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.SegmentClear(tt.a, tt.b, tt.r); got != tt.want {
				t.Errorf("SegmentClear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBeamClear(t *testing.T) {
	idx := cubeIndex()
	down := v3.Vec{Z: -1}
	if !idx.BeamClear(v3.Vec{X: 10, Y: 10, Z: -1}, down, 1, 100, 8) {
		t.Error("beam pointing away from the cube should be clear")
	}
	if idx.BeamClear(v3.Vec{X: 10, Y: 10, Z: 30}, down, 1, 100, 8) {
		t.Error("beam onto the top face should hit")
	}
	if !idx.BeamClear(v3.Vec{X: 10, Y: 10, Z: 30}, down, 1, 5, 8) {
		t.Error("short beam should stop before the top face")
	}
	// The axis misses but the rim catches the edge.
	if idx.BeamClear(v3.Vec{X: 20.5, Y: 10, Z: 30}, down, 1, 100, 16) {
		t.Error("beam rim overlapping the cube should hit")
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := New(nil)
	if !idx.Empty() {
		t.Fatal("index over nil mesh should be empty")
	}
	if idx.RayCast(v3.Vec{}, v3.Vec{Z: 1}).OK {
		t.Error("empty index should never hit")
	}
	if d2 := idx.SquaredDistance(v3.Vec{}); !math.IsInf(d2, 1) {
		t.Errorf("SquaredDistance = %g, want +Inf", d2)
	}
	if !idx.SegmentClear(v3.Vec{}, v3.Vec{Z: 1}, 1) {
		t.Error("empty index should always be clear")
	}
}

func TestBoundingBox(t *testing.T) {
	idx := New(mesh.Table(30, 20, 10, 2, 3))
	bb := idx.BoundingBox()
	if bb.Min != (v3.Vec{}) || bb.Max != (v3.Vec{X: 30, Y: 20, Z: 12}) {
		t.Fatalf("BoundingBox = %v, want [0 0 0]..[30 20 12]", bb)
	}
}

func TestConcurrentQueries(t *testing.T) {
	idx := New(mesh.Tower(4, 40, 24, 2))
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				x := float64(g*3 + 1)
				h := idx.RayCast(v3.Vec{X: x, Y: 1, Z: -1}, v3.Vec{Z: 1})
				if !h.OK || math.Abs(h.Point.Z-40) > 1e-9 {
					errs <- "ray under the cap did not hit its underside"
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}
