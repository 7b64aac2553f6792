package points

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

type cell struct{ x, y, z int }

// accumulator keeps accepted points in a uniform hash grid whose cell size
// equals the minimal spacing, so a proximity query visits 27 cells.
type accumulator struct {
	min    float64
	points []SupportPoint
	grid   map[cell][]int
}

func newAccumulator(minDist float64) *accumulator {
	if minDist <= 0 {
		minDist = 1e-6
	}
	return &accumulator{min: minDist, grid: make(map[cell][]int)}
}

func (a *accumulator) cellOf(p v3.Vec) cell {
	return cell{
		int(math.Floor(p.X / a.min)),
		int(math.Floor(p.Y / a.min)),
		int(math.Floor(p.Z / a.min)),
	}
}

func (a *accumulator) tooClose(p v3.Vec) bool {
	c := a.cellOf(p)
	m2 := a.min * a.min
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, i := range a.grid[cell{c.x + dx, c.y + dy, c.z + dz}] {
					if a.points[i].Pos.Sub(p).Length2() < m2 {
						return true
					}
				}
			}
		}
	}
	return false
}

// add commits p unless an accepted point is closer than the spacing.
func (a *accumulator) add(p SupportPoint) bool {
	if a.tooClose(p.Pos) {
		return false
	}
	c := a.cellOf(p.Pos)
	a.grid[c] = append(a.grid[c], len(a.points))
	a.points = append(a.points, p)
	return true
}
