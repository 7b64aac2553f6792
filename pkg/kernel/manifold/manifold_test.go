//go:build manifold

package manifold

import (
	"math"
	"testing"

	"github.com/chazu/resin/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func mustNew(t *testing.T) kernel.Kernel {
	t.Helper()
	k, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func TestBox(t *testing.T) {
	k := mustNew(t)
	s := k.Box(v3.Vec{X: -5, Y: -10, Z: -15}, v3.Vec{X: 5, Y: 10, Z: 15})
	min, max := s.BoundingBox()

	wantMin := [3]float64{-5, -10, -15}
	wantMax := [3]float64{5, 10, 15}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > 1e-6 {
			t.Errorf("Box min[%d] = %f, want %f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > 1e-6 {
			t.Errorf("Box max[%d] = %f, want %f", i, max[i], wantMax[i])
		}
	}
}

func TestFrustum(t *testing.T) {
	k := mustNew(t)
	s := k.Frustum(v3.Vec{}, v3.Vec{Z: 20}, 5, 2)
	min, max := s.BoundingBox()
	if math.Abs(min[2]) > 1e-6 {
		t.Errorf("Frustum min Z = %f, want 0", min[2])
	}
	if math.Abs(max[2]-20) > 1e-6 {
		t.Errorf("Frustum max Z = %f, want 20", max[2])
	}
	for i := 0; i < 2; i++ {
		if min[i] > -4.5 || max[i] < 4.5 {
			t.Errorf("Frustum axis %d range [%f, %f], want about [-5, 5]", i, min[i], max[i])
		}
	}
}

func TestFrustumTilted(t *testing.T) {
	k := mustNew(t)
	s := k.Frustum(v3.Vec{}, v3.Vec{X: 20}, 1, 1)
	min, max := s.BoundingBox()
	if math.Abs(max[0]-min[0]-20) > 1e-3 {
		t.Errorf("Frustum X extent = %f, want 20", max[0]-min[0])
	}
	if max[2]-min[2] > 2.01 {
		t.Errorf("Frustum Z extent = %f, want at most 2", max[2]-min[2])
	}
}

func TestUnionAndMesh(t *testing.T) {
	k := mustNew(t)
	a := k.Sphere(v3.Vec{}, 5)
	b := k.Translate(k.Sphere(v3.Vec{}, 5), v3.Vec{X: 4})
	m, err := k.ToMesh(k.Union(a, b))
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("ToMesh() returned empty mesh")
	}
	if !m.IsManifold() {
		t.Error("union mesh is not manifold")
	}
}

func TestToMeshEmpty(t *testing.T) {
	k := mustNew(t)
	m, err := k.ToMesh(kernel.Empty{})
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if !m.IsEmpty() {
		t.Error("expected empty mesh")
	}
}
