package raster

import (
	"fmt"
	"math"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/polygon"
)

// Settings describe a printer display.
type Settings struct {
	Resolution Resolution
	PixelDim   PixelDim
	Trafo      Trafo
	Format     Format
}

// ParseFormat returns the format named by label.
func ParseFormat(label string) (Format, error) {
	switch label {
	case "png":
		return PNG, nil
	case "raw", "pgm":
		return RAW, nil
	}
	return PNG, fmt.Errorf("raster: unknown format %q", label)
}

// SettingsFromStore reads the display options. A portrait display swaps
// the pixel grid and the model axes; the swap alone would mirror the
// image, so the horizontal mirror flips as well.
func SettingsFromStore(s *config.Store) (Settings, error) {
	w, h := s.Float(config.KeyDisplayWidth), s.Float(config.KeyDisplayHeight)
	pw, ph := s.Int(config.KeyDisplayPixelsX), s.Int(config.KeyDisplayPixelsY)
	st := Settings{
		Trafo: Trafo{
			MirrorX: s.Bool(config.KeyDisplayMirrorX),
			MirrorY: s.Bool(config.KeyDisplayMirrorY),
			Gamma:   s.Float(config.KeyGammaCorrection),
		},
	}
	if s.EnumLabel(config.KeyDisplayOrientation) == "portrait" {
		w, h = h, w
		pw, ph = ph, pw
		st.Trafo.SwapXY = true
		st.Trafo.MirrorX = !st.Trafo.MirrorX
	}
	st.Resolution = Resolution{WidthPx: pw, HeightPx: ph}
	if pw > 0 && ph > 0 {
		st.PixelDim = PixelDim{WMM: w / float64(pw), HMM: h / float64(ph)}
	}
	f, err := ParseFormat(s.EnumLabel(config.KeyRasterFormat))
	if err != nil {
		return Settings{}, err
	}
	st.Format = f
	if err := config.Validation("raster settings", st.Validate()); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Validate lists the problems with st; empty when it can build a raster.
func (st Settings) Validate() []string {
	var v []string
	if st.Resolution.WidthPx <= 0 || st.Resolution.HeightPx <= 0 {
		v = append(v, fmt.Sprintf("display resolution %dx%d must be positive",
			st.Resolution.WidthPx, st.Resolution.HeightPx))
	}
	if !(st.PixelDim.WMM > 0) || !(st.PixelDim.HMM > 0) {
		v = append(v, "display size must be positive")
	}
	if math.IsNaN(st.Trafo.Gamma) || math.IsInf(st.Trafo.Gamma, 0) {
		v = append(v, "gamma correction must be finite")
	}
	return v
}

// New returns a cleared raster for st.
func (st Settings) New(scale polygon.Scale) *Raster {
	return New(st.Resolution, st.PixelDim, st.Trafo, st.Format, scale)
}

// Centre returns the model coordinates in millimetres that land in the
// middle of the display.
func (st Settings) Centre() (x, y float64) {
	w := float64(st.Resolution.WidthPx) * st.PixelDim.WMM
	h := float64(st.Resolution.HeightPx) * st.PixelDim.HMM
	if st.Trafo.SwapXY {
		w, h = h, w
	}
	return w / 2, h / 2
}
