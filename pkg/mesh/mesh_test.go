package mesh

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestShapes(t *testing.T) {
	tests := []struct {
		name   string
		m      *TriangleMesh
		volume float64
		tol    float64
	}{
		{"cube", Cube(2), 8, 1e-9},
		{"box", Box(v3.Vec{X: -1, Y: 0, Z: 2}, v3.Vec{X: 1, Y: 3, Z: 4}), 12, 1e-9},
		{"cylinder", Cylinder(1, 2, 64), 2 * math.Pi, 0.02},
		{"tower", Tower(2, 10, 6, 1), 2*2*10 + 6*6*1, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "tower" && !tt.m.IsManifold() {
				t.Errorf("%s is not manifold", tt.name)
			}
			if v := tt.m.Volume(); math.Abs(v-tt.volume) > tt.tol*tt.volume {
				t.Errorf("volume %g, want %g", v, tt.volume)
			}
		})
	}
}

func TestCylinderBounds(t *testing.T) {
	m := Cylinder(2, 5, 3)
	bb := m.BoundingBox()
	if bb.Min.Z != 0 || bb.Max.Z != 5 {
		t.Errorf("z extent %g..%g", bb.Min.Z, bb.Max.Z)
	}
	if bb.Max.X != 2 {
		t.Errorf("max x %g, want 2", bb.Max.X)
	}
	if got := Cylinder(1, 1, 1).FaceCount(); got != 12 {
		t.Errorf("degenerate side count gave %d faces, want 12", got)
	}
}

func TestTranslateScale(t *testing.T) {
	m := Cube(2).Translate(v3.Vec{X: 1, Y: 1, Z: 1})
	m.Scale(v3.Vec{X: 2, Y: 2, Z: 2}, v3.Vec{X: 2, Y: 0.5, Z: 1})
	bb := m.BoundingBox()
	want := [2]v3.Vec{{X: 0, Y: 1.5, Z: 1}, {X: 4, Y: 2.5, Z: 3}}
	if bb.Min != want[0] || bb.Max != want[1] {
		t.Errorf("bbox %v..%v, want %v..%v", bb.Min, bb.Max, want[0], want[1])
	}
	if v := m.Volume(); math.Abs(v-8) > 1e-9 {
		t.Errorf("volume %g, want 8", v)
	}
}

func TestMergeKeepsShells(t *testing.T) {
	a := Cube(1)
	b := Cube(1).Translate(v3.Vec{X: 3})
	n := a.FaceCount()
	a.Merge(b, nil)
	if a.FaceCount() != 2*n || a.VertexCount() != 16 {
		t.Fatalf("merged %d faces, %d vertices", a.FaceCount(), a.VertexCount())
	}
	if !a.IsManifold() {
		t.Error("two disjoint cubes are not manifold")
	}
	if bb := a.BoundingBox(); bb.Max.X != 4 {
		t.Errorf("max x %g, want 4", bb.Max.X)
	}
}

func TestEmptyMesh(t *testing.T) {
	var m *TriangleMesh
	if !m.IsEmpty() {
		t.Error("nil mesh is not empty")
	}
	e := New("e")
	if !e.IsEmpty() || e.IsManifold() {
		t.Error("empty mesh reported as solid")
	}
	if bb := e.BoundingBox(); bb.Min != (v3.Vec{}) || bb.Max != (v3.Vec{}) {
		t.Errorf("empty bbox %v", bb)
	}
}

func TestRepair(t *testing.T) {
	m := Cube(1)
	// Unweld: every face gets its own corners.
	var loose TriangleMesh
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		loose.AddFace(loose.AddVertex(a), loose.AddVertex(b), loose.AddVertex(c))
	}
	loose.AddFace(0, 1, 2)
	loose.AddFace(0, 0, 1)
	loose.AddVertex(v3.Vec{X: 9})

	st := loose.Repair()
	if !st.NeededRepair() {
		t.Fatal("no repair reported")
	}
	if st.DuplicateFaces != 1 || st.DegenerateFaces != 1 {
		t.Errorf("stats %+v", st)
	}
	if loose.VertexCount() != 8 || !loose.IsManifold() {
		t.Errorf("repaired mesh has %d vertices, manifold %v", loose.VertexCount(), loose.IsManifold())
	}
}

func TestSTLRoundTrip(t *testing.T) {
	m := Cylinder(3, 4, 12)
	m.Name = "rod"
	var buf bytes.Buffer
	if err := WriteSTL(&buf, m); err != nil {
		t.Fatalf("WriteSTL: %v", err)
	}
	if want := 84 + 50*m.FaceCount(); buf.Len() != want {
		t.Errorf("wrote %d bytes, want %d", buf.Len(), want)
	}
	got, err := ReadSTL(&buf)
	if err != nil {
		t.Fatalf("ReadSTL: %v", err)
	}
	if got.FaceCount() != m.FaceCount() {
		t.Fatalf("read %d faces, want %d", got.FaceCount(), m.FaceCount())
	}
	got.Repair()
	if !got.IsManifold() {
		t.Error("welded STL is not manifold")
	}
	if d := math.Abs(got.Volume() - m.Volume()); d > 1e-3 {
		t.Errorf("volume changed by %g", d)
	}
}

func TestLoadASCIISTL(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("solid tet\n")
	tet := [][3]string{
		{"0 0 0", "0 1 0", "1 0 0"},
		{"0 0 0", "1 0 0", "0 0 1"},
		{"0 0 0", "0 0 1", "0 1 0"},
		{"1 0 0", "0 1 0", "0 0 1"},
	}
	for _, f := range tet {
		b.WriteString("facet normal 0 0 0\nouter loop\n")
		for _, v := range f {
			b.WriteString("vertex " + v + "\n")
		}
		b.WriteString("endloop\nendfacet\n")
	}
	b.WriteString("endsolid tet\n")
	path := filepath.Join(dir, "tet.stl")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.FaceCount() != 4 || m.VertexCount() != 4 {
		t.Errorf("tetrahedron loaded with %d faces and %d vertices", m.FaceCount(), m.VertexCount())
	}

	bad := filepath.Join(dir, "bad.stl")
	src := b.String() + "vertex 2 2 2\n"
	if err := os.WriteFile(bad, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("dangling vertex accepted")
	}
}

func TestTriangles(t *testing.T) {
	m := Cube(3)
	back := FromTriangles(m.Triangles())
	if back.FaceCount() != m.FaceCount() || back.VertexCount() != 3*m.FaceCount() {
		t.Fatalf("soup has %d faces and %d vertices", back.FaceCount(), back.VertexCount())
	}
	back.Repair()
	if back.VertexCount() != 8 || !back.IsManifold() {
		t.Errorf("welded soup has %d vertices, manifold %v", back.VertexCount(), back.IsManifold())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "part.stl")
	if err := SaveSTL(stl, Cube(2)); err != nil {
		t.Fatalf("SaveSTL: %v", err)
	}
	m, err := Load(stl)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "part" || m.VertexCount() != 8 {
		t.Errorf("loaded %q with %d vertices", m.Name, m.VertexCount())
	}

	obj := filepath.Join(dir, "quad.obj")
	src := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"
	if err := os.WriteFile(obj, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	q, err := Load(obj)
	if err != nil {
		t.Fatalf("Load obj: %v", err)
	}
	if q.FaceCount() != 2 {
		t.Errorf("quad fan gave %d faces", q.FaceCount())
	}

	if _, err := Load(filepath.Join(dir, "part.ply")); err == nil {
		t.Error("unsupported extension accepted")
	}
}
