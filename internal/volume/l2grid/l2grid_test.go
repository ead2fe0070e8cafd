package l2grid

import (
	"context"
	"testing"

	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// makeTestGrid returns a small enabled grid: bound 1, G=8, T=2.
func makeTestGrid(t *testing.T, mod func(*GridConfig)) *Grid {
	t.Helper()
	cfg := &GridConfig{
		Bound:                 1,
		GridSize:              8,
		TimeSize:              2,
		DensityScale:          1,
		DensityThresh:         0.01,
		Decay:                 0.95,
		WarmupUpdates:         16,
		StochasticUpdateLimit: 100,
		Enabled:               true,
		Workers:               2,
		Seed:                  7,
	}
	if mod != nil {
		mod(cfg)
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// centralBox occupies voxel coordinates 2..5 on every axis of an 8^3 grid.
var centralBox = field.StaticBox{Box: l1geom.CubeAABB(0.5), Sigma: 10}

func mustUpdate(t *testing.T, g *Grid, f field.DensityField) {
	t.Helper()
	if err := g.Update(context.Background(), f, g.cfg.Decay); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func occupiedInSlice(g *Grid, slice int) int {
	view, release := g.Acquire(slice)
	defer release()
	n := 0
	for level := 0; level < view.Cascades(); level++ {
		n += view.OccupiedCount(level)
	}
	return n
}
