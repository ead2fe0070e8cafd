package l2grid

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

type failingField struct{ err error }

func (f failingField) Density(context.Context, []l1geom.Vec3, float64) ([]float64, error) {
	return nil, f.err
}

type shortField struct{}

func (shortField) Density(context.Context, []l1geom.Vec3, float64) ([]float64, error) {
	return []float64{1}, nil
}

func TestUpdate_FullSweep(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, nil)
	mustUpdate(t, g, centralBox)

	assert.Equal(t, 1, g.Updates())
	assert.InDelta(t, 1.25, g.MeanDensity(), 1e-9)
	assert.Equal(t, 64, occupiedInSlice(g, 0))
	assert.Equal(t, 64, occupiedInSlice(g, 1))
}

func TestUpdate_EMA(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, nil)

	mustUpdate(t, g, field.Constant{Sigma: 2})
	assert.Equal(t, float32(2), g.Snapshot().Density[0])

	mustUpdate(t, g, field.Constant{Sigma: 0.5})
	assert.InDelta(t, 1.9, g.Snapshot().Density[0], 1e-6, "decayed old value dominates")

	mustUpdate(t, g, field.Constant{Sigma: 5})
	assert.InDelta(t, 5, g.Snapshot().Density[0], 1e-6, "new value dominates")
}

func TestUpdate_DensityScale(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) { c.DensityScale = 3 })
	mustUpdate(t, g, field.Constant{Sigma: 2})
	assert.Equal(t, float32(6), g.Snapshot().Density[100])
}

func TestUpdate_MonotoneBounded(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, nil)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 12; i++ {
		before := g.Snapshot().Density
		c := rng.Float64() * 4
		mustUpdate(t, g, field.Constant{Sigma: c})
		after := g.Snapshot().Density
		for k := range after {
			lo := float64(before[k]) * 0.95
			hi := math.Max(float64(before[k]), c)
			if float64(after[k]) < lo-1e-5 || float64(after[k]) > hi+1e-5 {
				t.Fatalf("update %d voxel %d: %f outside [%f, %f]", i, k, after[k], lo, hi)
			}
		}
	}
}

func TestUpdate_Stochastic(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) {
		c.WarmupUpdates = 1
		c.StochasticUpdateLimit = 0
	})
	mustUpdate(t, g, field.Constant{Sigma: 2})
	mustUpdate(t, g, field.Constant{Sigma: 3})

	var refreshed, untouched int
	for _, d := range g.Snapshot().Density {
		switch d {
		case 3:
			refreshed++
		case 2:
			untouched++
		default:
			t.Fatalf("unexpected density %f", d)
		}
	}
	assert.Positive(t, refreshed)
	assert.Positive(t, untouched, "stochastic refresh does not visit every voxel")
	assert.Equal(t, 2, g.Updates())
}

func TestUpdate_NoOccupiedVoxels(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) { c.WarmupUpdates = 1 })
	mustUpdate(t, g, field.Constant{Sigma: 0})
	before := g.Snapshot()

	err := g.Update(context.Background(), field.Constant{Sigma: 1}, 0.95)
	require.ErrorIs(t, err, ErrNoOccupiedVoxels)
	assert.Equal(t, 1, g.Updates())
	if diff := cmp.Diff(before, g.Snapshot()); diff != "" {
		t.Errorf("failed update modified the grid:\n%s", diff)
	}
}

func TestUpdate_FrozenAfterLimit(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) {
		c.WarmupUpdates = 1
		c.StochasticUpdateLimit = 1
	})
	mustUpdate(t, g, field.Constant{Sigma: 2})
	mustUpdate(t, g, field.Constant{Sigma: 5})

	for _, d := range g.Snapshot().Density {
		if d != 2 {
			t.Fatalf("frozen grid changed: got %f", d)
		}
	}
	assert.Equal(t, 2, g.Updates())
}

func TestUpdate_Disabled(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) { c.Enabled = false })
	require.NoError(t, g.Update(context.Background(), field.Constant{Sigma: 2}, 0.95))
	assert.Equal(t, 0, g.Updates())
	assert.Equal(t, 0, occupiedInSlice(g, 0))
}

func TestUpdate_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := makeTestGrid(t, nil)

	assert.Error(t, g.Update(ctx, field.Constant{}, 0))
	assert.Error(t, g.Update(ctx, field.Constant{}, 1.5))
	assert.Error(t, g.Update(ctx, nil, 0.95))

	boom := errors.New("boom")
	assert.ErrorIs(t, g.Update(ctx, failingField{err: boom}, 0.95), boom)
	assert.ErrorIs(t, g.Update(ctx, shortField{}, 0.95), field.ErrOutputLength)
	assert.Equal(t, 0, g.Updates())
}

func TestUpdate_DeterministicForSeed(t *testing.T) {
	t.Parallel()
	run := func() *Snapshot {
		g := makeTestGrid(t, func(c *GridConfig) { c.WarmupUpdates = 1 })
		mustUpdate(t, g, centralBox)
		mustUpdate(t, g, field.Sum{centralBox, field.Constant{Sigma: 0.5}})
		return g.Snapshot()
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("updates with the same seed diverged:\n%s", diff)
	}
}

func TestUpdate_MovingSphereOccupiesDifferentSlices(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, nil)
	s := field.MovingSphere{
		Center:   l1geom.Vec3{X: -0.5},
		Velocity: l1geom.Vec3{X: 1},
		Radius:   0.7,
		Sigma:    20,
	}
	mustUpdate(t, g, s)

	v0, r0 := g.Acquire(0)
	assert.True(t, v0.Occupied(0, 3, 3, 3), "slice 0 holds the sphere left of centre")
	assert.False(t, v0.Occupied(0, 7, 3, 3), "slice 0 is empty on the far right")
	r0()

	v1, r1 := g.Acquire(1)
	assert.True(t, v1.Occupied(0, 4, 3, 3), "slice 1 holds the sphere right of centre")
	assert.False(t, v1.Occupied(0, 0, 3, 3), "slice 1 is empty on the far left")
	r1()
}

func TestMerge_ReductionOrderIsFixed(t *testing.T) {
	t.Parallel()
	g := makeTestGrid(t, func(c *GridConfig) {
		c.GridSize = 64
		c.Workers = 8
	})
	rng := rand.New(rand.NewPCG(3, 4))
	base := make([]float32, len(g.density))
	tmp := make([]float32, len(g.density))
	for i := range base {
		base[i] = float32(rng.Float64() * 1e3)
		tmp[i] = float32(rng.Float64()*1e3 - 100)
		if i%97 == 0 {
			base[i] = Untrained
		}
	}
	require.Greater(t, len(base), 2*mergeGrain)

	var first float64
	for rep := 0; rep < 20; rep++ {
		copy(g.density, base)
		mean := g.merge(tmp, 0.95)
		if rep == 0 {
			first = mean
			continue
		}
		if mean != first {
			t.Fatalf("rep %d: mean %v differs from %v", rep, mean, first)
		}
	}
	assert.Greater(t, first, 0.0)
}
