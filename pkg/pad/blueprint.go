package pad

import (
	"context"
	"fmt"

	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/polygon"
	"github.com/chazu/resin/pkg/slice"
)

// Blueprint collects the outlines of the bottom h millimetres of m,
// sliced every layerH millimetres. Holes are dropped; the pad is built
// from outer contours only.
func Blueprint(ctx context.Context, m *mesh.TriangleMesh, h, layerH float64, scale polygon.Scale) (polygon.ExPolygons, error) {
	if m == nil || m.IsEmpty() {
		return nil, nil
	}
	if !(layerH > 0) {
		return nil, fmt.Errorf("pad blueprint: layer height must be positive, got %g", layerH)
	}
	bb := m.BoundingBox()
	top := bb.Min.Z + h
	if top > bb.Max.Z {
		top = bb.Max.Z
	}
	zs := slice.Grid(bb.Min.Z+layerH/2, top, layerH)
	if len(zs) == 0 {
		zs = []float64{bb.Min.Z + (top-bb.Min.Z)/2}
	}
	layers, err := slice.New(m, scale).Slice(ctx, zs, 0)
	if err != nil {
		return nil, fmt.Errorf("pad blueprint: %w", err)
	}
	var out polygon.ExPolygons
	for _, layer := range layers {
		for _, e := range layer {
			out = append(out, polygon.ExPolygon{Contour: e.Contour})
		}
	}
	return out, nil
}
