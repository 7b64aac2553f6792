package engine

import (
	"strings"
	"testing"

	"github.com/chazu/resin/pkg/config"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(pad :wall-height 3)`,
			expect: `(pad "__kw_wall-height" 3)`,
		},
		{
			name:   "multiple keywords",
			input:  `(output :dir "out" :name "part")`,
			expect: `(output "__kw_dir" "out" "__kw_name" "part")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def pad-height 3)`,
			expect: `(def pad_height 3)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 0 -5 0)`,
			expect: `(vec3 0 -5 0)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Settings builtins
// ---------------------------------------------------------------------------

func TestSettings(t *testing.T) {
	source := `
(config :layer-height 0.1 "exposure_time" 8)
(support :enable false :object-elevation 5)
(pad :wall-height 3 :around-object true)
(display :pixels-x 1440 :orientation :portrait :format :png :gamma 0.5)
`
	job, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	want := []string{
		"layer_height=0.1",
		"exposure_time=8",
		"supports_enable=0",
		"support_object_elevation=5",
		"pad_wall_height=3",
		"pad_around_object=1",
		"display_pixels_x=1440",
		"display_orientation=portrait",
		"raster_format=png",
		"gamma_correction=0.5",
	}
	if strings.Join(job.Settings, " ") != strings.Join(want, " ") {
		t.Fatalf("settings\n got %v\nwant %v", job.Settings, want)
	}

	s, err := job.Store(nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if s.Float(config.KeyLayerHeight) != 0.1 || s.Float(config.KeyObjectElevation) != 5 {
		t.Errorf("layer height %g, elevation %g", s.Float(config.KeyLayerHeight), s.Float(config.KeyObjectElevation))
	}
	if s.Bool(config.KeySupportsEnable) || !s.Bool(config.KeyPadAroundObject) {
		t.Error("bool settings not applied")
	}
	if got := s.EnumLabel(config.KeyDisplayOrientation); got != "portrait" {
		t.Errorf("orientation %q", got)
	}
}

func TestVariableReference(t *testing.T) {
	source := `
(def h 2.5)
(pad :wall-height h)
`
	job, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluation failed: %v %v", err, evalErrs)
	}
	if len(job.Settings) != 1 || job.Settings[0] != "pad_wall_height=2.5" {
		t.Errorf("settings %v", job.Settings)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"out of range", `(config :layer-height 5)`, "layer_height"},
		{"unknown key", `(config :no-such-thing 1)`, "unknown config key"},
		{"odd arguments", `(pad :wall-height)`, "key value pairs"},
		{"bad enum", `(display :orientation :sideways)`, "display_orientation"},
		{"box arity", `(box 1 2)`, "box requires"},
		{"box size", `(box 1 -2 3)`, "positive"},
		{"translate offset", `(translate (box 1 1 1) 5)`, "expected vec3"},
		{"union part", `(union (box 1 1 1) 3)`, "expected mesh"},
		{"model value", `(model 42)`, "expected file name or mesh"},
		{"unknown format", `(output :formats (list :gif))`, "unknown format"},
		{"unknown output keyword", `(output :colour "red")`, "unknown keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if job != nil || len(evalErrs) == 0 {
				t.Fatalf("expected eval errors, got job %+v", job)
			}
			var msgs []string
			for _, e := range evalErrs {
				msgs = append(msgs, e.Message)
			}
			if all := strings.Join(msgs, "\n"); !strings.Contains(all, tt.want) {
				t.Errorf("errors %q, want containing %q", all, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Geometry and output builtins
// ---------------------------------------------------------------------------

func TestModelBuiltins(t *testing.T) {
	source := `
(def plate (box 20 10 2))
(def peg (translate (cylinder 2 8 :sides 16) (vec3 10 5 2)))
(model (union plate peg))
(model "bracket.stl")
(output :dir "out" :name "bracket" :formats (list :zip "stl"))
`
	job, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(job.Parts) != 1 {
		t.Fatalf("%d parts, want 1", len(job.Parts))
	}
	part := job.Parts[0]
	if got := part.FaceCount(); got != 12+4*16 {
		t.Errorf("union has %d faces, want %d", got, 12+4*16)
	}
	bb := part.BoundingBox()
	if bb.Min != (v3.Vec{}) || bb.Max.Z != 10 || bb.Max.X != 20 {
		t.Errorf("union bbox %v..%v", bb.Min, bb.Max)
	}
	if len(job.ModelFiles) != 1 || job.ModelFiles[0] != "bracket.stl" {
		t.Errorf("model files %v", job.ModelFiles)
	}
	if job.Name != "bracket" || job.OutputDir != "out" {
		t.Errorf("output name %q dir %q", job.Name, job.OutputDir)
	}
	if strings.Join(job.Formats, ",") != "zip,stl" {
		t.Errorf("formats %v", job.Formats)
	}
}

func TestTranslateLeavesSourceMesh(t *testing.T) {
	source := `
(def a (box 1 1 1))
(def b (translate a (vec3 5 0 0)))
(model a b)
`
	job, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluation failed: %v %v", err, evalErrs)
	}
	if len(job.Parts) != 2 {
		t.Fatalf("%d parts", len(job.Parts))
	}
	if x := job.Parts[0].BoundingBox().Min.X; x != 0 {
		t.Errorf("source mesh moved to x %g", x)
	}
	if x := job.Parts[1].BoundingBox().Min.X; x != 5 {
		t.Errorf("translated mesh at x %g, want 5", x)
	}
}
