// Package raster renders layer outlines into 8-bit greyscale masks for an
// SLA display. Polygons arrive in scaled integer coordinates and are scan
// converted with exact area coverage; pixels only ever get lighter, so a
// layer is the union of everything drawn since the last Clear.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/chazu/resin/pkg/polygon"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Resolution is the display size in pixels.
type Resolution struct {
	WidthPx, HeightPx int
}

// Pixels is the number of pixels on the display.
func (r Resolution) Pixels() int { return r.WidthPx * r.HeightPx }

// PixelDim is the size of one pixel in millimetres.
type PixelDim struct {
	WMM, HMM float64
}

// Trafo is the mapping from model space onto the display.
type Trafo struct {
	MirrorX, MirrorY bool
	// SwapXY exchanges the model axes before mirroring, for displays
	// mounted in portrait orientation.
	SwapXY bool
	// Gamma above zero shapes the coverage with a power curve; zero or
	// below thresholds it at one half.
	Gamma float64
}

// Format is an output encoding.
type Format int

const (
	PNG Format = iota
	RAW
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case RAW:
		return "raw"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext is the file name extension for f, without the dot.
func (f Format) Ext() string {
	if f == RAW {
		return "pgm"
	}
	return f.String()
}

// Raster is a greyscale pixel buffer. The zero value is empty; Reset
// allocates it. A Raster must not be used by more than one goroutine at a
// time.
type Raster struct {
	res    Resolution
	pd     PixelDim
	trafo  Trafo
	format Format
	buf    []uint8

	ctm   matrix.Matrix
	clip  rect.Rect
	curve func(float64) float64
	fill  filler
}

// New returns a cleared raster.
func New(res Resolution, pd PixelDim, trafo Trafo, format Format, scale polygon.Scale) *Raster {
	r := &Raster{}
	r.Reset(res, pd, trafo, format, scale)
	return r
}

// Reset reallocates the buffer for the given display and clears it.
// Image formats store the top row first, so PNG output flips the vertical
// mirror once; callers always work in model orientation.
func (r *Raster) Reset(res Resolution, pd PixelDim, trafo Trafo, format Format, scale polygon.Scale) {
	if res.WidthPx <= 0 || res.HeightPx <= 0 || !(pd.WMM > 0) || !(pd.HMM > 0) {
		panic(fmt.Sprintf("raster: invalid display %dx%d px of %gx%g mm", res.WidthPx, res.HeightPx, pd.WMM, pd.HMM))
	}
	if format == PNG {
		trafo.MirrorY = !trafo.MirrorY
	}
	r.res, r.pd, r.trafo, r.format = res, pd, trafo, format
	r.buf = make([]uint8, res.Pixels())
	r.clip = rect.Rect{LLx: 0, LLy: 0, URx: float64(res.WidthPx), URy: float64(res.HeightPx)}
	r.ctm = transform(res, pd, trafo, scale)
	r.curve = gammaCurve(trafo.Gamma)
}

// Release returns r to the empty state.
func (r *Raster) Release() {
	*r = Raster{}
}

// transform maps scaled model coordinates to pixel coordinates.
func transform(res Resolution, pd PixelDim, t Trafo, scale polygon.Scale) matrix.Matrix {
	sx := float64(scale) / pd.WMM
	sy := float64(scale) / pd.HMM
	// x' = m[0]x + m[2]y + m[4], y' = m[1]x + m[3]y + m[5]
	m := matrix.Matrix{sx, 0, 0, sy, 0, 0}
	if t.SwapXY {
		m = matrix.Matrix{0, sy, sx, 0, 0, 0}
	}
	if t.MirrorX {
		m[0], m[2], m[4] = -m[0], -m[2], float64(res.WidthPx)
	}
	if t.MirrorY {
		m[1], m[3], m[5] = -m[1], -m[3], float64(res.HeightPx)
	}
	return m
}

func gammaCurve(g float64) func(float64) float64 {
	if g > 0 {
		return func(x float64) float64 { return math.Pow(x, g) }
	}
	return func(x float64) float64 {
		if x < 0.5 {
			return 0
		}
		return 1
	}
}

// Empty reports whether r has no buffer.
func (r *Raster) Empty() bool { return r.buf == nil }

// Resolution returns the display size; zero when empty.
func (r *Raster) Resolution() Resolution { return r.res }

// PixelDimensions returns the pixel size; zero when empty.
func (r *Raster) PixelDimensions() PixelDim { return r.pd }

// Format returns the encoding chosen at Reset.
func (r *Raster) Format() Format { return r.format }

func (r *Raster) mustInit() {
	if r.buf == nil {
		panic("raster: use of an empty raster")
	}
}

// Clear blackens every pixel.
func (r *Raster) Clear() {
	r.mustInit()
	clear(r.buf)
}

// Draw lights the area of e. Contour and holes are filled with the
// even-odd rule, so hole orientation does not matter.
func (r *Raster) Draw(e polygon.ExPolygon) {
	r.mustInit()
	p := &path.Data{}
	for _, ring := range e.Rings() {
		if len(ring) < 3 {
			continue
		}
		p.MoveTo(vec.Vec2{X: float64(ring[0].X), Y: float64(ring[0].Y)})
		for _, q := range ring[1:] {
			p.LineTo(vec.Vec2{X: float64(q.X), Y: float64(q.Y)})
		}
		p.Close()
	}
	r.fill.evenOdd(p, r.ctm, r.clip, r.blend)
}

// DrawAll draws every region of es.
func (r *Raster) DrawAll(es polygon.ExPolygons) {
	for _, e := range es {
		r.Draw(e)
	}
}

// blend moves a row of pixels toward white by their shaped coverage.
func (r *Raster) blend(y, x0 int, coverage []float64) {
	row := r.buf[y*r.res.WidthPx:]
	for i, c := range coverage {
		a := r.curve(c)
		if a <= 0 {
			continue
		}
		px := &row[x0+i]
		v := float64(*px) + (255-float64(*px))*math.Min(a, 1)
		*px = uint8(math.Min(255, math.Round(v)))
	}
}

// ReadPixel returns the value at column x of row y.
func (r *Raster) ReadPixel(x, y int) uint8 {
	r.mustInit()
	if x < 0 || y < 0 || x >= r.res.WidthPx || y >= r.res.HeightPx {
		panic(fmt.Sprintf("raster: pixel (%d, %d) outside %dx%d", x, y, r.res.WidthPx, r.res.HeightPx))
	}
	return r.buf[y*r.res.WidthPx+x]
}

// Image returns a copy of the buffer as an image, first row on top.
func (r *Raster) Image() *image.Gray {
	r.mustInit()
	img := image.NewGray(image.Rect(0, 0, r.res.WidthPx, r.res.HeightPx))
	copy(img.Pix, r.buf)
	return img
}

// Save writes the buffer in the format chosen at Reset.
func (r *Raster) Save(w io.Writer) error {
	return r.Encode(w, r.format)
}

// Encode writes the buffer as f. RAW is a binary PGM: the header
// "P5 {width} {height} 255 " followed by the rows.
func (r *Raster) Encode(w io.Writer, f Format) error {
	r.mustInit()
	switch f {
	case PNG:
		if err := png.Encode(w, r.Image()); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
		return nil
	case RAW:
		if _, err := fmt.Fprintf(w, "P5 %d %d 255 ", r.res.WidthPx, r.res.HeightPx); err != nil {
			return err
		}
		_, err := w.Write(r.buf)
		return err
	}
	return fmt.Errorf("raster: unknown format %v", f)
}

// Bytes returns the encoded buffer.
func (r *Raster) Bytes() ([]byte, error) {
	var b bytes.Buffer
	if err := r.Save(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
