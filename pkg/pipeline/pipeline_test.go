package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/raster"
	"github.com/google/uuid"
)

// store returns the defaults on a 120 x 68 px display of 1 mm pixels with
// the given overrides applied.
func store(t *testing.T, overrides map[string]string) *config.Store {
	t.Helper()
	s := config.Defaults(config.SLADefs())
	base := map[string]string{
		config.KeyDisplayPixelsX: "120",
		config.KeyDisplayPixelsY: "68",
		config.KeyRasterFormat:   "raw",
		config.KeyLayerHeight:    "1",
	}
	for _, m := range []map[string]string{base, overrides} {
		for k, v := range m {
			if err := s.SetDeserialize(k, v); err != nil {
				t.Fatalf("SetDeserialize(%s, %s): %v", k, v, err)
			}
		}
	}
	return s
}

// lit counts the fully white pixels of a RAW layer.
func lit(t *testing.T, layer []byte) int {
	t.Helper()
	header := fmt.Sprintf("P5 %d %d 255 ", 120, 68)
	if !bytes.HasPrefix(layer, []byte(header)) {
		t.Fatalf("layer header %q", layer[:min(len(layer), 16)])
	}
	n := 0
	for _, b := range layer[len(header):] {
		if b == 255 {
			n++
		}
	}
	return n
}

func TestRun_ModelOnly(t *testing.T) {
	s := store(t, map[string]string{
		config.KeySupportsEnable: "0",
		config.KeyPadEnable:      "0",
	})
	var stages []string
	r := &Runner{Progress: func(stage string, pct int) {
		if pct == 100 && (len(stages) == 0 || stages[len(stages)-1] != stage) {
			stages = append(stages, stage)
		}
	}, Workers: 1}
	res, err := r.Run(context.Background(), Job{Model: mesh.Cube(10), Config: s})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ID == uuid.Nil {
		t.Error("no job id assigned")
	}
	bb := res.Model.BoundingBox()
	if bb.Min.Z != 0 || math.Abs(bb.Min.X-55) > 1e-9 || math.Abs(bb.Min.Y-29) > 1e-9 {
		t.Errorf("model placed at %v", bb.Min)
	}
	if res.Supports != nil || res.Pad != nil || res.Tree != nil {
		t.Error("disabled parts were built")
	}
	if res.LayerCount() != 10 || len(res.Heights) != 10 {
		t.Fatalf("%d layers over %d heights, want 10", res.LayerCount(), len(res.Heights))
	}
	for i, l := range res.Layers {
		if n := lit(t, l); n != 100 {
			t.Errorf("layer %d has %d lit pixels, want 100", i, n)
		}
	}
	want := []string{"place", "slice model", "support points", "support tree", "pad", "slice supports", "rasterize"}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages %v, want %v", stages, want)
	}
	if len(res.Timings) != len(want) {
		t.Errorf("%d timings", len(res.Timings))
	}
}

func TestRun_PadUnderModel(t *testing.T) {
	s := store(t, map[string]string{config.KeySupportsEnable: "0"})
	res, err := (&Runner{}).Run(context.Background(), Job{Model: mesh.Cube(10), Config: s})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pad == nil {
		t.Fatal("no pad")
	}
	pb := res.Pad.BoundingBox()
	if math.Abs(pb.Min.Z) > 1e-9 || math.Abs(pb.Max.Z-2) > 1e-9 {
		t.Errorf("pad spans z %g..%g, want 0..2", pb.Min.Z, pb.Max.Z)
	}
	if mb := res.Model.BoundingBox(); mb.Min.Z != 2 {
		t.Errorf("model bottom at %g, want on the pad at 2", mb.Min.Z)
	}
	if res.LayerCount() != 12 {
		t.Fatalf("%d layers, want 12", res.LayerCount())
	}
	padPx, modelPx := lit(t, res.Layers[0]), lit(t, res.Layers[5])
	if padPx <= 100 {
		t.Errorf("pad layer has %d lit pixels, want the brim beyond the 100 of the model", padPx)
	}
	if modelPx != 100 {
		t.Errorf("model layer has %d lit pixels, want 100", modelPx)
	}
}

func TestRun_MeshOnly(t *testing.T) {
	s := store(t, map[string]string{config.KeySupportsEnable: "0"})
	res, err := (&Runner{}).Run(context.Background(), Job{Model: mesh.Cube(10), Config: s, MeshOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.LayerCount() != 0 {
		t.Errorf("%d layers rendered", res.LayerCount())
	}
	if res.Pad == nil || len(res.Heights) != 12 {
		t.Errorf("pad %v, %d heights", res.Pad != nil, len(res.Heights))
	}
	for _, tm := range res.Timings {
		if tm.Stage == "rasterize" || tm.Stage == "slice supports" {
			t.Errorf("stage %q ran", tm.Stage)
		}
	}
}

func TestRun_SupportedModel(t *testing.T) {
	if testing.Short() {
		t.Skip("full support generation")
	}
	s := store(t, map[string]string{
		config.KeyLayerHeight:     "0.5",
		config.KeyObjectElevation: "5",
	})
	dir := t.TempDir()
	job := Job{
		Name:      "cube",
		Model:     mesh.Cube(10),
		Config:    s,
		OutputDir: dir,
		Formats:   []string{FormatArchive, FormatSTL, FormatLayers},
	}
	res, err := (&Runner{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Logf("%d points, %d pillars, %d bridges, %d layers", res.Points, res.Pillars, res.Bridges, res.LayerCount())
	if res.Points == 0 || res.Pillars == 0 || res.Supports.IsEmpty() {
		t.Fatal("no supports generated")
	}
	if mb := res.Model.BoundingBox(); math.Abs(mb.Min.Z-7) > 1e-9 {
		t.Errorf("model bottom at %g, want pad 2 + elevation 5", mb.Min.Z)
	}
	if sb := res.Supports.BoundingBox(); math.Abs(sb.Min.Z-2) > 1e-6 {
		t.Errorf("supports start at %g, want the pad floor top at 2", sb.Min.Z)
	}
	if res.Pad == nil {
		t.Fatal("no pad under the supports")
	}
	if res.LayerCount() != len(res.Heights) {
		t.Errorf("%d layers for %d heights", res.LayerCount(), len(res.Heights))
	}

	if len(res.Files) != 3 {
		t.Fatalf("wrote %v", res.Files)
	}
	zr, err := zip.OpenReader(filepath.Join(dir, "cube.zip"))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer zr.Close()
	if got, want := len(zr.File), res.LayerCount()+3; got != want {
		t.Errorf("archive has %d entries, want %d", got, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "cube", "cube00000.pgm")); err != nil {
		t.Errorf("first layer image: %v", err)
	}
	m, err := mesh.Load(filepath.Join(dir, "cube.stl"))
	if err != nil {
		t.Fatalf("loading combined mesh: %v", err)
	}
	if bb := m.BoundingBox(); math.Abs(bb.Min.Z) > 1e-4 || math.Abs(bb.Max.Z-17) > 1e-4 {
		t.Errorf("combined mesh spans z %g..%g, want 0..17", bb.Min.Z, bb.Max.Z)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name      string
		model     *mesh.TriangleMesh
		overrides map[string]string
		check     func(error) bool
	}{
		{
			name:  "empty model",
			model: mesh.New("empty"),
			check: func(err error) bool { return err != nil },
		},
		{
			name:      "bad pad",
			model:     mesh.Cube(5),
			overrides: map[string]string{config.KeyPadWallThickness: "0"},
			check: func(err error) bool {
				var ve *config.ValidationError
				return errors.As(err, &ve) && ve.Subject == "pad config"
			},
		},
		{
			name:      "bad supports",
			model:     mesh.Cube(5),
			overrides: map[string]string{config.KeyPillarDiameter: "0"},
			check: func(err error) bool {
				var ve *config.ValidationError
				return errors.As(err, &ve) && ve.Subject == "support config"
			},
		},
		{
			name:  "unknown output",
			model: mesh.Cube(5),
			overrides: map[string]string{
				config.KeySupportsEnable: "0",
				config.KeyPadEnable:      "0",
			},
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "gif") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := Job{Model: tt.model, Config: store(t, tt.overrides)}
			if tt.name == "unknown output" {
				job.OutputDir, job.Formats = t.TempDir(), []string{"gif"}
			}
			_, err := (&Runner{}).Run(context.Background(), job)
			if !tt.check(err) {
				t.Errorf("Run error = %v", err)
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{}).Run(ctx, Job{Model: mesh.Cube(10), Config: store(t, nil)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestWriteArchive(t *testing.T) {
	s := config.Defaults(config.SLADefs())
	res := &Result{
		ID:          uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Model:       mesh.Cube(1),
		Layers:      [][]byte{[]byte("a"), []byte("b")},
		LayerFormat: raster.PNG,
	}
	var buf bytes.Buffer
	if err := WriteArchive(&buf, "part", res, s); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	var names []string
	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		entries[f.Name] = f
	}
	want := []string{"job.ini", "config.ini", "part00000.png", "part00001.png", "part.stl"}
	if strings.Join(names, " ") != strings.Join(want, " ") {
		t.Fatalf("entries %v, want %v", names, want)
	}

	rc, err := entries["job.ini"].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	var job bytes.Buffer
	if _, err := job.ReadFrom(rc); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"jobDir = part", "numLayers = 2", "expTimeFirst = 15", "jobId = 6ba7b810"} {
		if !strings.Contains(job.String(), line) {
			t.Errorf("job.ini lacks %q:\n%s", line, job.String())
		}
	}

	rc2, err := entries["config.ini"].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc2.Close()
	back := config.NewStore(config.SLADefs())
	if err := config.ReadINI(rc2, back); err != nil {
		t.Fatalf("ReadINI: %v", err)
	}
	if d := s.Diff(back); len(d) != 0 {
		t.Errorf("config.ini round trip differs in %v", d)
	}
}

func TestPrintTime(t *testing.T) {
	s := config.Defaults(config.SLADefs())
	if got := ExposureTime(s, 0); got != 15 {
		t.Errorf("first layer exposure %g", got)
	}
	if got := ExposureTime(s, 3); got != 10 {
		t.Errorf("layer exposure %g", got)
	}
	if got, want := EstimatedPrintTime(s, 3), (15+10+10+3*5)*time.Second; got != want {
		t.Errorf("print time %v, want %v", got, want)
	}
	if !KnownFormat(FormatLayers) || KnownFormat("gif") {
		t.Error("KnownFormat")
	}
}
