package config

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

func TestValueSerialize(t *testing.T) {
	orientation := &Def{Kind: KindEnum, EnumLabels: OrientationLabels}
	tests := []struct {
		name string
		v    Value
		d    *Def
		want string
	}{
		{"float", Float(0.25), nil, "0.25"},
		{"floats", Floats(1, 0.5), nil, "1,0.5"},
		{"int", Int(-3), nil, "-3"},
		{"percent", Percent(50), nil, "50%"},
		{"float or percent abs", FloatOrPercent(0.8, false), nil, "0.8"},
		{"float or percent pct", FloatOrPercent(80, true), nil, "80%"},
		{"point", Point(1.5, 2), nil, "1.5x2"},
		{"points", Points(v2.Vec{X: 0, Y: 0}, v2.Vec{X: 10, Y: 5}), nil, "0x0,10x5"},
		{"bools", Bools(true, false), nil, "1,0"},
		{"enum label", Enum(1), orientation, "portrait"},
		{"enum index", Enum(1), nil, "1"},
		{"strings quoted", Strings("SL1", "a;b", ""), nil, `SL1;"a;b";""`},
		{"string escaped", String("a\nb"), nil, `a\nb`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.Serialize(tt.d)
			if got != tt.want {
				t.Fatalf("Serialize() = %q, want %q", got, tt.want)
			}
			back, err := Deserialize(tt.v.Kind, got, tt.d)
			if err != nil {
				t.Fatalf("Deserialize(%q) error = %v", got, err)
			}
			if !back.Equal(tt.v) {
				t.Errorf("round trip = %q, want %q", back.Serialize(tt.d), got)
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	orientation := &Def{Kind: KindEnum, EnumLabels: OrientationLabels}
	tests := []struct {
		name string
		kind Kind
		text string
		d    *Def
	}{
		{"float", KindFloat, "abc", nil},
		{"int fraction", KindInt, "2.5", nil},
		{"point", KindPoint, "12", nil},
		{"bool", KindBool, "maybe", nil},
		{"enum label", KindEnum, "diagonal", orientation},
		{"enum range", KindEnum, "7", orientation},
		{"unterminated", KindStrings, `"abc`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.kind, tt.text, tt.d)
			if !errors.Is(err, ErrBadValue) {
				t.Fatalf("Deserialize(%q) error = %v, want ErrBadValue", tt.text, err)
			}
		})
	}
}

func TestStoreSet(t *testing.T) {
	s := Defaults(SLADefs())

	if err := s.Set("no_such_option", Float(1)); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: error = %v, want ErrUnknownKey", err)
	}
	if err := s.Set(KeyPadWallHeight, Int(1)); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("kind mismatch: error = %v, want ErrKindMismatch", err)
	}
	if err := s.Set(KeyPadWallSlope, Float(30)); !errors.Is(err, ErrBadValue) {
		t.Errorf("out of range: error = %v, want ErrBadValue", err)
	}
	if err := s.SetDeserialize(KeyDisplayOrientation, "portrait"); err != nil {
		t.Fatalf("SetDeserialize(orientation) error = %v", err)
	}
	if got := s.Int(KeyDisplayOrientation); got != 1 {
		t.Errorf("orientation index = %d, want 1", got)
	}
	if got := s.EnumLabel(KeyDisplayOrientation); got != "portrait" {
		t.Errorf("orientation label = %q, want portrait", got)
	}
	if got := s.Float(KeyHeadFrontDiameter); got != 0.4 {
		t.Errorf("head front diameter = %g, want 0.4", got)
	}
	if got := s.String(KeyPrinterModel); got != "SL1" {
		t.Errorf("printer model = %q, want SL1", got)
	}
}

func TestStoreGetDefault(t *testing.T) {
	s := NewStore(SLADefs())
	if s.Has(KeyPadEnable) {
		t.Fatal("empty store should not hold pad_enable")
	}
	if !s.Bool(KeyPadEnable) {
		t.Error("unset pad_enable should read its default true")
	}
	if _, err := s.Get("bogus"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(bogus) error = %v, want ErrUnknownKey", err)
	}
}

func TestApply(t *testing.T) {
	defs := SLADefs()
	src := NewStore(defs)
	if err := src.Set(KeyPadWallHeight, Float(3)); err != nil {
		t.Fatal(err)
	}
	if err := src.Set(KeyMaxBridgesOnPillar, Int(5)); err != nil {
		t.Fatal(err)
	}

	t.Run("dynamic", func(t *testing.T) {
		dst := Defaults(defs)
		if err := dst.Apply(src, false); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got := dst.Float(KeyPadWallHeight); got != 3 {
			t.Errorf("pad_wall_height = %g, want 3", got)
		}
		if got := dst.Int(KeyMaxBridgesOnPillar); got != 5 {
			t.Errorf("max bridges = %d, want 5", got)
		}
	})

	t.Run("fixed missing", func(t *testing.T) {
		dst, err := NewFixedStore(defs, KeyPadWallHeight)
		if err != nil {
			t.Fatal(err)
		}
		if err := dst.Apply(src, false); !errors.Is(err, ErrNonexistentOption) {
			t.Fatalf("Apply() error = %v, want ErrNonexistentOption", err)
		}
	})

	t.Run("fixed ignore", func(t *testing.T) {
		dst, err := NewFixedStore(defs, KeyPadWallHeight)
		if err != nil {
			t.Fatal(err)
		}
		if err := dst.Apply(src, true); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if dst.Has(KeyMaxBridgesOnPillar) {
			t.Error("ignored option was copied into fixed store")
		}
		if got := dst.Float(KeyPadWallHeight); got != 3 {
			t.Errorf("pad_wall_height = %g, want 3", got)
		}
	})
}

func TestAbsValue(t *testing.T) {
	tests := []struct {
		name   string
		pillar string
		bridge string
		want   float64
	}{
		{"default percent", "1", "100%", 1},
		{"half of pillar", "2", "50%", 1},
		{"absolute", "2", "0.8", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults(SLADefs())
			if err := s.SetDeserialize(KeyPillarDiameter, tt.pillar); err != nil {
				t.Fatal(err)
			}
			if err := s.SetDeserialize(KeyBridgeDiameter, tt.bridge); err != nil {
				t.Fatal(err)
			}
			got, err := s.AbsValue(KeyBridgeDiameter)
			if err != nil {
				t.Fatalf("AbsValue() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("AbsValue() = %g, want %g", got, tt.want)
			}
		})
	}

	s := Defaults(SLADefs())
	if _, err := s.AbsValue(KeyPrinterModel); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("AbsValue(string) error = %v, want ErrKindMismatch", err)
	}
}

func TestDiffAndClone(t *testing.T) {
	a := Defaults(SLADefs())
	b := a.Clone()
	if d := a.Diff(b); len(d) != 0 {
		t.Fatalf("clone differs: %v", d)
	}
	if err := b.Set(KeyLayerHeight, Float(0.035)); err != nil {
		t.Fatal(err)
	}
	d := a.Diff(b)
	if len(d) != 1 || d[0] != KeyLayerHeight {
		t.Errorf("Diff() = %v, want [%s]", d, KeyLayerHeight)
	}
	if got := a.Float(KeyLayerHeight); got != 0.05 {
		t.Errorf("original layer height changed to %g", got)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "job.yaml", `
support_object_elevation: 5
support_bridge_diameter: "80%"
bed_shape: "0x0,100x0,100x50"
display_mirror_x: false
compatible_printers: [SL1, SL1S]
`)
	s, err := Load(SLADefs(), path, []string{"pad_wall_height=2"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Float(KeyObjectElevation); got != 5 {
		t.Errorf("elevation = %g, want 5", got)
	}
	if got, _ := s.AbsValue(KeyBridgeDiameter); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("bridge diameter = %g, want 0.8", got)
	}
	if s.Bool(KeyDisplayMirrorX) {
		t.Error("display_mirror_x should be false")
	}
	if got, _ := s.Serialize(KeyCompatiblePrinters); got != "SL1;SL1S" {
		t.Errorf("compatible printers = %q", got)
	}
	if got := s.Float(KeyPadWallHeight); got != 2 {
		t.Errorf("override pad_wall_height = %g, want 2", got)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "job.toml", `
support_head_front_diameter = 0.6
support_max_bridges_on_pillar = 4
display_orientation = "portrait"
relative_correction = [1.0, 0.98]
`)
	s, err := Load(SLADefs(), path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Float(KeyHeadFrontDiameter); got != 0.6 {
		t.Errorf("head front diameter = %g, want 0.6", got)
	}
	if got := s.Int(KeyMaxBridgesOnPillar); got != 4 {
		t.Errorf("max bridges = %d, want 4", got)
	}
	if got := s.EnumLabel(KeyDisplayOrientation); got != "portrait" {
		t.Errorf("orientation = %q, want portrait", got)
	}
	if got, _ := s.Serialize(KeyRelativeCorrection); got != "1,0.98" {
		t.Errorf("relative correction = %q, want 1,0.98", got)
	}
}

func TestLoadErrors(t *testing.T) {
	unknown := writeFile(t, "bad.yaml", "support_flux_capacitor: 1\n")
	if _, err := Load(SLADefs(), unknown, nil); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown yaml key: error = %v, want ErrUnknownKey", err)
	}
	ext := writeFile(t, "job.json", "{}")
	if _, err := Load(SLADefs(), ext, nil); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := Load(SLADefs(), "", []string{"pad_wall_height"}); !errors.Is(err, ErrBadValue) {
		t.Errorf("malformed override: error = %v, want ErrBadValue", err)
	}
}

func TestINIRoundTrip(t *testing.T) {
	a := Defaults(SLADefs())
	if err := ApplyOverrides(a, []string{
		"printer_model=SL1S Speed",
		"compatible_printers=SL1;SL1S",
		"support_bridge_diameter=70%",
	}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteINI(&buf, a); err != nil {
		t.Fatalf("WriteINI() error = %v", err)
	}
	if !strings.Contains(buf.String(), "printer_model = SL1S Speed\n") {
		t.Errorf("ini output missing printer_model line:\n%s", buf.String())
	}

	b := Defaults(SLADefs())
	if err := ReadINI(strings.NewReader("# comment\n\n"+buf.String()), b); err != nil {
		t.Fatalf("ReadINI() error = %v", err)
	}
	if d := a.Diff(b); len(d) != 0 {
		t.Errorf("round trip differs in %v", d)
	}
}

func TestSaveYAML(t *testing.T) {
	a := Defaults(SLADefs())
	if err := a.Set(KeySupportsEnable, Bool(false)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	if err := SaveYAML(a, path); err != nil {
		t.Fatalf("SaveYAML() error = %v", err)
	}
	b, err := Load(SLADefs(), path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d := a.Diff(b); len(d) != 0 {
		t.Errorf("saved file differs in %v", d)
	}
}

func TestValidation(t *testing.T) {
	if err := Validation("pad config", nil); err != nil {
		t.Errorf("Validation(nil) = %v, want nil", err)
	}
	err := Validation("pad config", []string{"a", "b"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error %v is not a *ValidationError", err)
	}
	if len(ve.Violations) != 2 {
		t.Errorf("got %d violations, want 2", len(ve.Violations))
	}
	if want := "invalid pad config: a; b"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
