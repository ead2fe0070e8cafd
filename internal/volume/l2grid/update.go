package l2grid

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// sweepChunk is the number of voxels evaluated per full-sweep task.
const sweepChunk = 1 << 15

// Update refreshes the density grid from f and repacks the bitfield.
//
// The first WarmupUpdates calls evaluate every voxel of every slice and
// cascade. Later calls evaluate G^3/4 random voxels plus G^3/4 voxels
// resampled from the currently occupied set per (slice, cascade). Once
// StochasticUpdateLimit updates have run nothing is evaluated, so the
// grid is frozen and only repacked. New values are merged with
// grid = max(grid*decay, new) wherever both are non-negative.
//
// Update does nothing when the grid is disabled. On error the grid is
// left unchanged.
func (g *Grid) Update(ctx context.Context, f field.DensityField, decay float64) error {
	if !g.cfg.Enabled {
		return nil
	}
	if decay <= 0 || decay > 1 {
		return fmt.Errorf("decay must be in (0, 1], got %f", decay)
	}
	if f == nil {
		return fmt.Errorf("density field is nil")
	}

	start := g.clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	tmp := make([]float32, len(g.density))
	for i := range tmp {
		tmp[i] = Untrained
	}

	var mode string
	var err error
	switch {
	case g.updates < g.cfg.WarmupUpdates:
		mode = "full"
		err = g.sweepFull(ctx, f, tmp)
	case g.cfg.StochasticUpdateLimit == 0 || g.updates < g.cfg.StochasticUpdateLimit:
		mode = "stochastic"
		err = g.sweepStochastic(ctx, f, tmp)
	default:
		mode = "frozen"
	}
	if err != nil {
		opsf("update %d (%s) failed: %v", g.updates, mode, err)
		return fmt.Errorf("grid update %d (%s): %w", g.updates, mode, err)
	}

	g.meanDensity = g.merge(tmp, float32(decay))
	g.updates++

	thresh := g.threshold()
	_ = g.pack(context.Background(), float32(thresh))

	if mc, ok := g.counter.reduce(); ok {
		g.meanCount = mc
	}

	diagf("update %d (%s): mean_density=%.4f thresh=%.4f mean_count=%d took=%v",
		g.updates, mode, g.meanDensity, thresh, g.meanCount, g.clock.Since(start))
	return nil
}

// taskRand returns the deterministic random stream for one update task.
func (g *Grid) taskRand(task int) *rand.Rand {
	return rand.New(rand.NewPCG(g.cfg.Seed, uint64(g.updates)<<32|uint64(task)))
}

func (g *Grid) sweepFull(ctx context.Context, f field.DensityField, tmp []float32) error {
	chunks := (g.cells + sweepChunk - 1) / sweepChunk
	var tasks []func(context.Context) error
	for t := 0; t < g.cfg.TimeSize; t++ {
		for level := 0; level < g.cascades; level++ {
			for c := 0; c < chunks; c++ {
				t, level, c := t, level, c
				id := len(tasks)
				lo := c * sweepChunk
				hi := min(lo+sweepChunk, g.cells)
				tasks = append(tasks, func(ctx context.Context) error {
					rng := g.taskRand(id)
					codes := make([]uint32, 0, hi-lo)
					for code := lo; code < hi; code++ {
						codes = append(codes, uint32(code))
					}
					return g.evaluate(ctx, f, rng, t, level, codes, tmp)
				})
			}
		}
	}
	tracef("full sweep: %d tasks", len(tasks))
	return parallel.Run(ctx, parallel.Config{Workers: g.cfg.Workers}, tasks)
}

func (g *Grid) sweepStochastic(ctx context.Context, f field.DensityField, tmp []float32) error {
	n := g.cells / 4
	var tasks []func(context.Context) error
	for t := 0; t < g.cfg.TimeSize; t++ {
		for level := 0; level < g.cascades; level++ {
			t, level := t, level
			id := len(tasks)
			tasks = append(tasks, func(ctx context.Context) error {
				off := g.offset(t, level)
				var occupied []uint32
				for code, d := range g.density[off : off+g.cells] {
					if d > 0 {
						occupied = append(occupied, uint32(code))
					}
				}
				if len(occupied) == 0 {
					return fmt.Errorf("%w: slice %d cascade %d", ErrNoOccupiedVoxels, t, level)
				}

				rng := g.taskRand(id)
				codes := make([]uint32, 2*n)
				for i := 0; i < n; i++ {
					codes[i] = uint32(rng.IntN(g.cells))
					codes[n+i] = occupied[rng.IntN(len(occupied))]
				}
				tracef("stochastic slice=%d cascade=%d occupied=%d", t, level, len(occupied))
				return g.evaluate(ctx, f, rng, t, level, codes, tmp)
			})
		}
	}
	return parallel.Run(ctx, parallel.Config{Workers: g.cfg.Workers}, tasks)
}

// evaluate queries f at jittered positions of the given voxels of one
// (slice, cascade) block and writes scaled densities into tmp. Time is
// jittered by up to half a slice.
func (g *Grid) evaluate(ctx context.Context, f field.DensityField, rng *rand.Rand, t, level int, codes []uint32, tmp []float32) error {
	hgs := g.CascadeBound(level) / float64(g.cfg.GridSize)
	pts := make([]l1geom.Vec3, len(codes))
	for i, code := range codes {
		x, y, z := l1geom.Morton3DInvert(code)
		p := g.voxelCenter(level, x, y, z)
		pts[i] = l1geom.Vec3{
			X: p.X + (2*rng.Float64()-1)*hgs,
			Y: p.Y + (2*rng.Float64()-1)*hgs,
			Z: p.Z + (2*rng.Float64()-1)*hgs,
		}
	}
	ts := float64(g.cfg.TimeSize)
	tm := (float64(t)+0.5)/ts + (2*rng.Float64()-1)*0.5/ts

	sigma, err := f.Density(ctx, pts, tm)
	if err != nil {
		return fmt.Errorf("density slice %d cascade %d: %w", t, level, err)
	}
	if len(sigma) != len(pts) {
		return fmt.Errorf("%w: density returned %d values for %d points", field.ErrOutputLength, len(sigma), len(pts))
	}
	off := g.offset(t, level)
	for i, code := range codes {
		tmp[off+int(code)] = float32(sigma[i] * g.cfg.DensityScale)
	}
	return nil
}

// mergeGrain is the minimum number of voxels per merge chunk.
const mergeGrain = 1 << 16

// merge applies grid = max(grid*decay, tmp) where both are non-negative
// and returns the mean over non-sentinel voxels. It is not cancellable:
// once evaluation has succeeded the merge always completes. Partial sums
// are reduced in chunk order so the mean does not depend on scheduling.
func (g *Grid) merge(tmp []float32, decay float32) float64 {
	nchunks := (len(g.density) + mergeGrain - 1) / mergeGrain
	sums := make([]float64, nchunks)
	counts := make([]float64, nchunks)
	pc := parallel.Config{Workers: g.cfg.Workers, Grain: mergeGrain}
	_ = parallel.For(context.Background(), pc, len(g.density), func(_ context.Context, lo, hi int) error {
		var sum float64
		var count int
		for i := lo; i < hi; i++ {
			old := g.density[i]
			if old >= 0 && tmp[i] >= 0 {
				g.density[i] = max(old*decay, tmp[i])
			}
			if g.density[i] >= 0 {
				sum += float64(g.density[i])
				count++
			}
		}
		// Chunks are at least mergeGrain long, so lo/mergeGrain is unique.
		sums[lo/mergeGrain] = sum
		counts[lo/mergeGrain] = float64(count)
		return nil
	})
	total := floats.Sum(counts)
	if total == 0 {
		return 0
	}
	return floats.Sum(sums) / total
}
