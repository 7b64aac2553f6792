package raster

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/polygon"
)

const (
	fullWhite = 255
	fullBlack = 0
)

// mm is a micrometre grid, fine enough for the small test displays.
const mm polygon.Scale = 1e-3

// mmRaster is a w x h display of one millimetre pixels.
func mmRaster(w, h int, trafo Trafo, f Format) *Raster {
	return New(Resolution{WidthPx: w, HeightPx: h}, PixelDim{WMM: 1, HMM: 1}, trafo, f, mm)
}

func TestRaster_DefaultIsEmpty(t *testing.T) {
	var r Raster
	if !r.Empty() {
		t.Fatal("zero raster is not empty")
	}
	if r.Resolution() != (Resolution{}) || r.PixelDimensions() != (PixelDim{}) {
		t.Errorf("empty raster reports %v %v", r.Resolution(), r.PixelDimensions())
	}
}

func TestRaster_InitializedIsNotEmpty(t *testing.T) {
	res := Resolution{WidthPx: 2560, HeightPx: 1440}
	pd := PixelDim{WMM: 120.0 / 2560, HMM: 68.0 / 1440}

	var r Raster
	r.Reset(res, pd, Trafo{Gamma: 1}, PNG, polygon.DefaultScale)
	if r.Empty() {
		t.Fatal("raster empty after reset")
	}
	if r.Resolution() != res {
		t.Errorf("resolution %v, want %v", r.Resolution(), res)
	}
	if r.PixelDimensions() != pd {
		t.Errorf("pixel dimensions %v, want %v", r.PixelDimensions(), pd)
	}

	r.Release()
	if !r.Empty() {
		t.Error("raster not empty after release")
	}
}

// TestRaster_Mirroring draws a small square on each display corner and
// the centre, then reads all five places back. Only the place the
// mirroring sends the square to may be lit.
func TestRaster_Mirroring(t *testing.T) {
	const dispW, dispH = 120.0, 68.0
	scale := polygon.DefaultScale
	res := Resolution{WidthPx: 2560, HeightPx: 1440}
	pd := PixelDim{WMM: dispW / float64(res.WidthPx-1), HMM: dispH / float64(res.HeightPx-1)}

	top := scale.Pt(dispW, dispH)
	// Bottom left, bottom right, centre, top right, top left.
	corners := []polygon.Point{
		{X: 0, Y: 0},
		{X: top.X, Y: 0},
		{X: top.X / 2, Y: top.Y / 2},
		top,
		{X: 0, Y: top.Y},
	}
	white := [4][5]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{1, 0, 2, 4, 3},
		{3, 4, 2, 0, 1},
	}

	// Four pixels across, so antialiasing does not reach the probe.
	pw := 2 * int64(math.Ceil(pd.WMM/float64(scale)))
	ph := 2 * int64(math.Ceil(pd.HMM/float64(scale)))
	square := polygon.ExPolygon{Contour: polygon.Polygon{{X: -pw, Y: -ph}, {X: pw, Y: -ph}, {X: pw, Y: ph}, {X: -pw, Y: ph}}}

	tests := []struct {
		name             string
		mirrorX, mirrorY bool
	}{
		{"none", false, false},
		{"y", false, true},
		{"x", true, false},
		{"xy", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := 0
			if tt.mirrorX {
				tab += 2
			}
			if tt.mirrorY {
				tab++
			}
			var r Raster
			for i, c := range corners {
				r.Reset(res, pd, Trafo{MirrorX: tt.mirrorX, MirrorY: tt.mirrorY, Gamma: 1}, RAW, scale)
				r.Draw(square.Translate(c))
				k := white[tab][i]
				for j, q := range corners {
					x := int(math.Floor(scale.Unscaled(q.X) / pd.WMM))
					y := int(math.Floor(scale.Unscaled(q.Y) / pd.HMM))
					want := uint8(fullBlack)
					if j == k {
						want = fullWhite
					}
					if got := r.ReadPixel(x, y); got != want {
						t.Errorf("square at corner %d: pixel (%d, %d) of corner %d = %d, want %d", i, x, y, j, got, want)
					}
				}
			}
		})
	}
}

func TestRaster_PNGStoresTopRowFirst(t *testing.T) {
	sq := mm.Rect(0, 0, 4, 4)
	for _, tc := range []struct {
		format Format
		litRow int
	}{
		{RAW, 1},
		{PNG, 8},
	} {
		t.Run(tc.format.String(), func(t *testing.T) {
			r := mmRaster(10, 10, Trafo{Gamma: 1}, tc.format)
			r.Draw(sq)
			if got := r.ReadPixel(1, tc.litRow); got != fullWhite {
				t.Errorf("pixel (1, %d) = %d, want lit", tc.litRow, got)
			}
			if got := r.ReadPixel(1, 9-tc.litRow); got != fullBlack {
				t.Errorf("pixel (1, %d) = %d, want dark", 9-tc.litRow, got)
			}
		})
	}
}

func TestRaster_Coverage(t *testing.T) {
	// The square covers a quarter of column 0.
	sq := mm.Rect(0.75, 0, 5, 5)
	tests := []struct {
		name  string
		gamma float64
		draws int
		want  uint8
	}{
		{"linear", 1, 1, 64},
		{"linear twice", 1, 2, 112},
		{"threshold", 0, 1, fullBlack},
		{"squared", 2, 1, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mmRaster(8, 8, Trafo{Gamma: tt.gamma}, RAW)
			for range tt.draws {
				r.Draw(sq)
			}
			if got := r.ReadPixel(0, 2); got != tt.want {
				t.Errorf("partial pixel = %d, want %d", got, tt.want)
			}
			if got := r.ReadPixel(2, 2); got != fullWhite {
				t.Errorf("inner pixel = %d, want %d", got, fullWhite)
			}
		})
	}

	t.Run("threshold lights half", func(t *testing.T) {
		r := mmRaster(8, 8, Trafo{}, RAW)
		r.Draw(mm.Rect(0.5, 0, 5, 5))
		if got := r.ReadPixel(0, 2); got != fullWhite {
			t.Errorf("half covered pixel = %d, want %d", got, fullWhite)
		}
	})
}

func TestRaster_Holes(t *testing.T) {
	outer := mm.Rect(0, 0, 10, 10)
	hole := mm.Rect(3, 3, 7, 7).Contour
	reversed := append(polygon.Polygon{}, hole...)
	reversed.Reverse()

	for name, h := range map[string]polygon.Polygon{"ccw": hole, "cw": reversed} {
		t.Run(name, func(t *testing.T) {
			r := mmRaster(12, 12, Trafo{Gamma: 1}, RAW)
			r.Draw(polygon.ExPolygon{Contour: outer.Contour, Holes: []polygon.Polygon{h}})
			if got := r.ReadPixel(5, 5); got != fullBlack {
				t.Errorf("hole pixel = %d, want dark", got)
			}
			if got := r.ReadPixel(1, 5); got != fullWhite {
				t.Errorf("ring pixel = %d, want lit", got)
			}
			if got := r.ReadPixel(11, 11); got != fullBlack {
				t.Errorf("outside pixel = %d, want dark", got)
			}
		})
	}
}

func TestRaster_ClipsOutsideDisplay(t *testing.T) {
	r := mmRaster(6, 6, Trafo{Gamma: 1}, RAW)
	r.Draw(mm.Rect(-10, -10, 3, 20))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := uint8(fullBlack)
			if x < 3 {
				want = fullWhite
			}
			if got := r.ReadPixel(x, y); got != want {
				t.Fatalf("pixel (%d, %d) = %d, want %d", x, y, got, want)
			}
		}
	}
	r.Draw(mm.Rect(20, 20, 30, 30))
	r.Clear()
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if got := r.ReadPixel(x, y); got != fullBlack {
				t.Fatalf("pixel (%d, %d) = %d after clear", x, y, got)
			}
		}
	}
}

func TestRaster_SwapXY(t *testing.T) {
	r := mmRaster(20, 10, Trafo{SwapXY: true, Gamma: 1}, RAW)
	r.Draw(mm.Rect(0, 12, 4, 16))
	if got := r.ReadPixel(14, 2); got != fullWhite {
		t.Errorf("pixel (14, 2) = %d, want lit", got)
	}
	if got := r.ReadPixel(2, 2); got != fullBlack {
		t.Errorf("pixel (2, 2) = %d, want dark", got)
	}
}

func TestRaster_EncodeRAW(t *testing.T) {
	r := mmRaster(3, 2, Trafo{Gamma: 1}, RAW)
	r.Draw(mm.Rect(0, 0, 1, 1))
	b, err := r.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	const header = "P5 3 2 255 "
	if !strings.HasPrefix(string(b), header) {
		t.Fatalf("header %q, want prefix %q", b, header)
	}
	want := []byte{fullWhite, 0, 0, 0, 0, 0}
	if got := b[len(header):]; !bytes.Equal(got, want) {
		t.Errorf("pixels %v, want %v", got, want)
	}
	if Format(RAW).Ext() != "pgm" || Format(PNG).Ext() != "png" {
		t.Error("unexpected file extensions")
	}
}

func TestRaster_EncodePNG(t *testing.T) {
	r := mmRaster(16, 9, Trafo{MirrorX: true, Gamma: 1}, PNG)
	r.Draw(mm.Rect(2, 1, 7.5, 5))
	b, err := r.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 16 || got.Dy() != 9 {
		t.Fatalf("bounds %v", got)
	}
	lit := 0
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			g, _, _, _ := img.At(x, y).RGBA()
			if want := r.ReadPixel(x, y); uint8(g>>8) != want {
				t.Fatalf("decoded (%d, %d) = %d, raster has %d", x, y, g>>8, want)
			}
			if g>>8 == fullWhite {
				lit++
			}
		}
	}
	if lit != 5*4 {
		t.Errorf("%d fully lit pixels, want 20", lit)
	}
}

func TestRaster_Misuse(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		f()
	}
	var empty Raster
	mustPanic("draw on empty", func() { empty.Draw(mm.Rect(0, 0, 1, 1)) })
	mustPanic("clear empty", func() { empty.Clear() })

	r := mmRaster(4, 4, Trafo{Gamma: 1}, RAW)
	mustPanic("read past width", func() { r.ReadPixel(4, 0) })
	mustPanic("read negative row", func() { r.ReadPixel(0, -1) })
	mustPanic("zero resolution", func() { New(Resolution{}, PixelDim{WMM: 1, HMM: 1}, Trafo{}, RAW, mm) })
}

func TestSettingsFromStore(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		st, err := SettingsFromStore(config.Defaults(config.SLADefs()))
		if err != nil {
			t.Fatalf("SettingsFromStore: %v", err)
		}
		if st.Resolution != (Resolution{WidthPx: 2560, HeightPx: 1440}) {
			t.Errorf("resolution %v", st.Resolution)
		}
		if math.Abs(st.PixelDim.WMM-120.0/2560) > 1e-12 || math.Abs(st.PixelDim.HMM-68.0/1440) > 1e-12 {
			t.Errorf("pixel size %v", st.PixelDim)
		}
		want := Trafo{MirrorX: true, Gamma: 1}
		if st.Trafo != want {
			t.Errorf("trafo %+v, want %+v", st.Trafo, want)
		}
		if st.Format != PNG {
			t.Errorf("format %v", st.Format)
		}
		if x, y := st.Centre(); math.Abs(x-60) > 1e-9 || math.Abs(y-34) > 1e-9 {
			t.Errorf("centre (%g, %g)", x, y)
		}
	})

	t.Run("portrait raw", func(t *testing.T) {
		s := config.Defaults(config.SLADefs())
		for k, v := range map[string]string{
			config.KeyDisplayOrientation: "portrait",
			config.KeyRasterFormat:       "raw",
			config.KeyGammaCorrection:    "0",
		} {
			if err := s.SetDeserialize(k, v); err != nil {
				t.Fatalf("SetDeserialize(%s): %v", k, err)
			}
		}
		st, err := SettingsFromStore(s)
		if err != nil {
			t.Fatalf("SettingsFromStore: %v", err)
		}
		if st.Resolution != (Resolution{WidthPx: 1440, HeightPx: 2560}) {
			t.Errorf("resolution %v", st.Resolution)
		}
		want := Trafo{SwapXY: true}
		if st.Trafo != want {
			t.Errorf("trafo %+v, want %+v", st.Trafo, want)
		}
		if st.Format != RAW {
			t.Errorf("format %v", st.Format)
		}
		if x, y := st.Centre(); math.Abs(x-60) > 1e-9 || math.Abs(y-34) > 1e-9 {
			t.Errorf("centre (%g, %g)", x, y)
		}
		r := st.New(polygon.DefaultScale)
		if r.Resolution() != st.Resolution {
			t.Errorf("raster resolution %v", r.Resolution())
		}
	})
}

func TestParseFormat(t *testing.T) {
	for label, want := range map[string]Format{"png": PNG, "raw": RAW, "pgm": RAW} {
		if got, err := ParseFormat(label); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", label, got, err)
		}
	}
	if _, err := ParseFormat("bmp"); err == nil {
		t.Error("ParseFormat(bmp) succeeded")
	}
}
