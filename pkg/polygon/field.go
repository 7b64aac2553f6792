package polygon

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
)

// Field returns the signed distance field of es in millimetres, negative
// inside. An empty set yields a nil field.
func (s Scale) Field(es ExPolygons) (sdf.SDF2, error) {
	var parts []sdf.SDF2
	for i, e := range es {
		region, err := sdf.Polygon2D(s.ToVec2s(e.Contour))
		if err != nil {
			return nil, fmt.Errorf("region %d contour: %w", i, err)
		}
		for j, h := range e.Holes {
			hole, err := sdf.Polygon2D(s.ToVec2s(h))
			if err != nil {
				return nil, fmt.Errorf("region %d hole %d: %w", i, j, err)
			}
			region = sdf.Difference2D(region, hole)
		}
		parts = append(parts, region)
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	}
	return sdf.Union2D(parts...), nil
}
