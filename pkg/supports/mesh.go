package supports

import (
	"context"
	"fmt"

	"github.com/chazu/resin/pkg/graph"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/kernel/poly"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/polygon"
	"github.com/chazu/resin/pkg/slice"
	"github.com/chazu/resin/pkg/tessellate"
)

// RetrieveMesh returns the tree as one mesh. A nil kernel selects the
// polyhedral kernel, whose output keeps the base discs exactly on the
// ground level.
func RetrieveMesh(t *graph.Tree, k kernel.Kernel) (*mesh.TriangleMesh, error) {
	if k == nil {
		k = poly.New(poly.DefaultSegments)
	}
	m, err := tessellate.New(k).Tessellate(t)
	if err != nil {
		return nil, fmt.Errorf("retrieving support mesh: %w", err)
	}
	return m, nil
}

// RetrieveMesh meshes t with the builder's kernel.
func (b *Builder) RetrieveMesh(t *graph.Tree) (*mesh.TriangleMesh, error) {
	var k kernel.Kernel
	if b != nil {
		k = b.Kernel
	}
	return RetrieveMesh(t, k)
}

// SliceTree cuts the tree mesh at every level of zs, giving exactly one
// ExPolygons per level.
func SliceTree(ctx context.Context, t *graph.Tree, k kernel.Kernel, zs []float64, closingRadius float64, scale polygon.Scale) ([]polygon.ExPolygons, error) {
	m, err := RetrieveMesh(t, k)
	if err != nil {
		return nil, err
	}
	layers, err := slice.New(m, scale).Slice(ctx, zs, closingRadius)
	if err != nil {
		return nil, fmt.Errorf("slicing supports: %w", err)
	}
	return layers, nil
}
