package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// boxFaces indexes the corners of a box, corner i having the bit pattern
// (z<<2 | y<<1 | x).
var boxFaces = [12][3]int{
	{0, 2, 3}, {0, 3, 1}, // bottom
	{4, 5, 7}, {4, 7, 6}, // top
	{0, 1, 5}, {0, 5, 4}, // front (-y)
	{2, 6, 7}, {2, 7, 3}, // back (+y)
	{0, 4, 6}, {0, 6, 2}, // left (-x)
	{1, 3, 7}, {1, 7, 5}, // right (+x)
}

// Box returns a closed axis aligned box spanning lo..hi.
func Box(lo, hi v3.Vec) *TriangleMesh {
	m := New("box")
	for i := 0; i < 8; i++ {
		v := lo
		if i&1 != 0 {
			v.X = hi.X
		}
		if i&2 != 0 {
			v.Y = hi.Y
		}
		if i&4 != 0 {
			v.Z = hi.Z
		}
		m.AddVertex(v)
	}
	for _, f := range boxFaces {
		m.AddFace(f[0], f[1], f[2])
	}
	return m
}

// Cube returns a box of edge length a with its minimum corner at origin.
func Cube(a float64) *TriangleMesh {
	m := Box(v3.Vec{}, v3.Vec{X: a, Y: a, Z: a})
	m.Name = "cube"
	return m
}

// Table returns a slab of the given size resting on four square legs at
// its corners. The legs stand on z = 0.
func Table(width, depth, legHeight, slabThickness, legSize float64) *TriangleMesh {
	m := New("table")
	m.Merge(Box(
		v3.Vec{X: 0, Y: 0, Z: legHeight},
		v3.Vec{X: width, Y: depth, Z: legHeight + slabThickness},
	))
	for _, c := range [][2]float64{
		{0, 0}, {width - legSize, 0}, {0, depth - legSize}, {width - legSize, depth - legSize},
	} {
		m.Merge(Box(
			v3.Vec{X: c[0], Y: c[1], Z: 0},
			v3.Vec{X: c[0] + legSize, Y: c[1] + legSize, Z: legHeight},
		))
	}
	return m
}

// Tower returns a square column with a wide cap on top, centred on the
// column. The column stands on z = 0.
func Tower(columnSize, height, capSize, capThickness float64) *TriangleMesh {
	m := New("tower")
	off := (capSize - columnSize) / 2
	m.Merge(Box(
		v3.Vec{X: off, Y: off, Z: 0},
		v3.Vec{X: off + columnSize, Y: off + columnSize, Z: height},
	))
	m.Merge(Box(
		v3.Vec{X: 0, Y: 0, Z: height},
		v3.Vec{X: capSize, Y: capSize, Z: height + capThickness},
	))
	return m
}

// Cylinder returns a closed prism approximating a cylinder of radius r
// around the z axis, from z = 0 to z = h, with the given number of sides.
func Cylinder(r, h float64, sides int) *TriangleMesh {
	if sides < 3 {
		sides = 3
	}
	m := New("cylinder")
	bottom := m.AddVertex(v3.Vec{})
	top := m.AddVertex(v3.Vec{Z: h})
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		x, y := r*math.Cos(a), r*math.Sin(a)
		m.AddVertex(v3.Vec{X: x, Y: y})
		m.AddVertex(v3.Vec{X: x, Y: y, Z: h})
	}
	for i := 0; i < sides; i++ {
		b0, t0 := 2+2*i, 3+2*i
		b1, t1 := 2+2*((i+1)%sides), 3+2*((i+1)%sides)
		m.AddFace(bottom, b1, b0)
		m.AddFace(top, t0, t1)
		m.AddFace(b0, b1, t1)
		m.AddFace(b0, t1, t0)
	}
	return m
}
