package raster

import (
	"cmp"
	"math"
	"slices"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// flatEdge is the smallest vertical extent, in pixels, an edge needs to
// contribute coverage.
const flatEdge = 1e-10

// edge is a path segment in pixel coordinates.
type edge struct {
	x0, y0 float64
	x1, y1 float64
	dxdy   float64
}

func (e *edge) top() float64    { return min(e.y0, e.y1) }
func (e *edge) bottom() float64 { return max(e.y0, e.y1) }

// filler scan converts polygonal paths one row at a time. Every pixel
// keeps a cover value, the signed height of the edges crossing its
// column, and an area value weighting that height by how far left in the
// pixel the crossing lies. Summing cover from the left and adding the
// pixel's own area gives the winding number integrated over the pixel.
// Buffers are reused across calls.
type filler struct {
	edges  []edge
	active []int
	cover  []float64
	area   []float64
}

// evenOdd fills p under ctm, clipped to clip, and hands every row with
// nonzero coverage to emit. The coverage slice is only valid during the
// call.
func (f *filler) evenOdd(p *path.Data, ctm matrix.Matrix, clip rect.Rect, emit func(y, x0 int, coverage []float64)) {
	xMin, xMax, yMin, yMax, ok := f.collect(p, ctm, clip)
	if !ok {
		return
	}
	width := xMax - xMin
	f.cover = slices.Grow(f.cover[:0], width)[:width]
	f.area = slices.Grow(f.area[:0], width)[:width]

	slices.SortFunc(f.edges, func(a, b edge) int {
		return cmp.Compare(a.top(), b.top())
	})
	f.active = f.active[:0]
	next := 0
	for y := yMin; y < yMax; y++ {
		lo, hi := float64(y), float64(y+1)
		for next < len(f.edges) && f.edges[next].top() < hi {
			f.active = append(f.active, next)
			next++
		}
		if len(f.active) == 0 {
			continue
		}
		clear(f.cover)
		clear(f.area)
		touched := false
		for i := 0; i < len(f.active); {
			e := &f.edges[f.active[i]]
			if e.bottom() <= lo {
				f.active[i] = f.active[len(f.active)-1]
				f.active = f.active[:len(f.active)-1]
				continue
			}
			if f.accumulate(e, y, xMin, xMax) {
				touched = true
			}
			i++
		}
		if !touched {
			continue
		}
		integrateEvenOdd(f.cover, f.area)
		if row, off := trim(f.cover); row != nil {
			emit(y, xMin+off, row)
		}
	}
}

// collect transforms the path into f.edges and returns the pixel bounds
// it touches within clip.
func (f *filler) collect(p *path.Data, ctm matrix.Matrix, clip rect.Rect) (xMin, xMax, yMin, yMax int, ok bool) {
	f.edges = f.edges[:0]
	bx0, by0 := math.Inf(1), math.Inf(1)
	bx1, by1 := math.Inf(-1), math.Inf(-1)
	add := func(a, b vec.Vec2) {
		x0 := ctm[0]*a.X + ctm[2]*a.Y + ctm[4]
		y0 := ctm[1]*a.X + ctm[3]*a.Y + ctm[5]
		x1 := ctm[0]*b.X + ctm[2]*b.Y + ctm[4]
		y1 := ctm[1]*b.X + ctm[3]*b.Y + ctm[5]
		dy := y1 - y0
		if math.Abs(dy) < flatEdge {
			return
		}
		f.edges = append(f.edges, edge{x0: x0, y0: y0, x1: x1, y1: y1, dxdy: (x1 - x0) / dy})
		bx0, bx1 = min(bx0, x0, x1), max(bx1, x0, x1)
		by0, by1 = min(by0, y0, y1), max(by1, y0, y1)
	}

	var cur, start vec.Vec2
	k := 0
	for _, cmd := range p.Cmds {
		switch cmd {
		case path.CmdMoveTo:
			cur = p.Coords[k]
			start = cur
			k++
		case path.CmdLineTo:
			add(cur, p.Coords[k])
			cur = p.Coords[k]
			k++
		case path.CmdQuadTo:
			add(cur, p.Coords[k+1])
			cur = p.Coords[k+1]
			k += 2
		case path.CmdCubeTo:
			add(cur, p.Coords[k+2])
			cur = p.Coords[k+2]
			k += 3
		case path.CmdClose:
			if cur != start {
				add(cur, start)
			}
			cur = start
		}
	}
	if len(f.edges) == 0 {
		return 0, 0, 0, 0, false
	}
	// Edges left of the clip still carry cover into the first column.
	xMin = int(clip.LLx)
	xMax = min(int(math.Floor(bx1))+1, int(clip.URx))
	yMin = max(int(math.Floor(by0)), int(clip.LLy))
	yMax = min(int(math.Floor(by1))+1, int(clip.URy))
	if x := int(math.Floor(bx0)); x > xMin {
		xMin = x
	}
	if xMin >= xMax || yMin >= yMax {
		return 0, 0, 0, 0, false
	}
	return xMin, xMax, yMin, yMax, true
}

// accumulate adds the part of e inside row y to the buffers, which cover
// columns [xMin, xMax). It reports whether anything was added.
func (f *filler) accumulate(e *edge, y, xMin, xMax int) bool {
	yTop := max(float64(y), e.top())
	yBot := min(float64(y+1), e.bottom())
	if yBot <= yTop {
		return false
	}
	sign := 1.0
	if e.y1 < e.y0 {
		sign = -1
	}
	xa := e.x0 + e.dxdy*(yTop-e.y0)
	xb := e.x0 + e.dxdy*(yBot-e.y0)
	left := int(math.Floor(min(xa, xb)))
	right := int(math.Floor(max(xa, xb)))
	if left >= xMax {
		return false
	}
	if right < xMin || left == right {
		f.add(e, yTop, yBot, sign, left, xMin, xMax)
		return true
	}
	dydx := 1 / e.dxdy
	for px := left; px <= right; px++ {
		ya := e.y0 + dydx*(float64(px)-e.x0)
		yb := e.y0 + dydx*(float64(px+1)-e.x0)
		lo := max(min(ya, yb), yTop)
		hi := min(max(ya, yb), yBot)
		if hi > lo {
			f.add(e, lo, hi, sign, px, xMin, xMax)
		}
	}
	return true
}

// add records the piece of e between yTop and yBot lying in column px.
func (f *filler) add(e *edge, yTop, yBot, sign float64, px, xMin, xMax int) {
	c := sign * (yBot - yTop)
	switch {
	case px < xMin:
		f.cover[0] += c
		f.area[0] += c
	case px < xMax:
		xm := e.x0 + e.dxdy*((yTop+yBot)/2-e.y0)
		f.cover[px-xMin] += c
		f.area[px-xMin] += c * (1 - (xm - float64(px)))
	}
}

// integrateEvenOdd turns the buffers into coverage in [0, 1], folding
// the winding number so that every second crossing leaves the shape.
// The result replaces cover.
func integrateEvenOdd(cover, area []float64) {
	acc := 0.0
	for i := range cover {
		raw := math.Abs(acc + area[i])
		acc += cover[i]
		cover[i] = 1 - math.Abs(1-math.Mod(raw, 2))
	}
}

// trim drops leading and trailing zeros.
func trim(c []float64) ([]float64, int) {
	lo := 0
	for lo < len(c) && c[lo] <= 0 {
		lo++
	}
	if lo == len(c) {
		return nil, 0
	}
	hi := len(c) - 1
	for hi > lo && c[hi] <= 0 {
		hi--
	}
	return c[lo : hi+1], lo
}
