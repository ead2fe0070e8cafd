package l3march

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

// maxStepsPerIteration caps n_step for the iterative marcher.
const maxStepsPerIteration = 8

// Iterative marches an alive set of rays a few steps at a time. Callers
// alternate Step, field evaluation, compositing and Retire until Done.
type Iterative struct {
	cfg   *Config
	st    *stepper
	rays  []l1geom.Ray
	fars  []float64
	t     []float64
	alive []int
	steps int
}

// StepBatch holds the samples of one iteration. Rays[k] and Alive[k]
// describe the k-th alive ray.
type StepBatch struct {
	SampleBatch
	Alive []int
	NStep int
}

// Exhausted reports whether alive ray k ran past its far bound during
// this iteration.
func (b *StepBatch) Exhausted(k int) bool { return b.Rays[k].Count < b.NStep }

// NewIterative starts an iterative march. Rays whose near >= far never
// enter the alive set.
func (c *Config) NewIterative(rays []l1geom.Ray, nears, fars []float64, view l2grid.SliceView, perturb bool, seed uint64) *Iterative {
	if len(nears) != len(rays) || len(fars) != len(rays) {
		panic(fmt.Sprintf("l3march: %d rays with %d nears and %d fars", len(rays), len(nears), len(fars)))
	}
	it := &Iterative{
		cfg:  c,
		st:   newStepper(c, view),
		rays: rays,
		fars: fars,
		t:    make([]float64, len(rays)),
	}
	for i := range rays {
		it.t[i] = nears[i]
		if !(nears[i] < fars[i]) {
			continue
		}
		if perturb {
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			it.t[i] += it.st.dt(nears[i]) * rng.Float64()
		}
		it.alive = append(it.alive, i)
	}
	return it
}

// Alive returns a copy of the alive ray indices.
func (it *Iterative) Alive() []int {
	return append([]int(nil), it.alive...)
}

// Steps returns the number of micro-steps consumed so far.
func (it *Iterative) Steps() int { return it.steps }

// Done reports whether marching should stop: no alive rays remain or the
// step budget is spent.
func (it *Iterative) Done() bool {
	return len(it.alive) == 0 || it.steps >= it.cfg.MaxSteps
}

// NStep returns the micro-steps per alive ray for the next iteration:
// clamp(N/alive, 1, 8).
func (it *Iterative) NStep() int {
	if len(it.alive) == 0 {
		return 1
	}
	return max(1, min(len(it.rays)/len(it.alive), maxStepsPerIteration))
}

// Step advances every alive ray by up to NStep occupied samples.
func (it *Iterative) Step(ctx context.Context) (*StepBatch, error) {
	nStep := it.NStep()
	alive := it.Alive()
	per := make([][]Sample, len(alive))

	pc := parallel.Config{Workers: it.cfg.Workers, Grain: 64}
	err := parallel.For(ctx, pc, len(alive), func(_ context.Context, lo, hi int) error {
		for k := lo; k < hi; k++ {
			i := alive[k]
			samples := make([]Sample, 0, nStep)
			it.t[i], _ = it.st.march(it.rays[i], it.t[i], it.fars[i], nStep, func(s Sample) {
				samples = append(samples, s)
			})
			per[k] = samples
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("march step %d: %w", it.steps, err)
	}

	b := &StepBatch{
		SampleBatch: SampleBatch{
			Rays:     make([]Span, len(alive)),
			Capacity: len(alive) * nStep,
		},
		Alive: alive,
		NStep: nStep,
	}
	for k, s := range per {
		b.Rays[k] = Span{Offset: len(b.Samples), Count: len(s)}
		b.Samples = append(b.Samples, s...)
	}
	it.steps += nStep
	tracef("step=%d alive=%d n_step=%d samples=%d", it.steps, len(alive), nStep, len(b.Samples))
	return b, nil
}

// Retire removes alive rays flagged in dead, which is indexed like the
// Alive slice of the last StepBatch. Order of survivors is preserved.
func (it *Iterative) Retire(b *StepBatch, dead []bool) {
	if len(dead) != len(b.Alive) {
		panic(fmt.Sprintf("l3march: %d dead flags for %d alive rays", len(dead), len(b.Alive)))
	}
	gone := make(map[int]struct{})
	for k, d := range dead {
		if d || b.Exhausted(k) {
			gone[b.Alive[k]] = struct{}{}
		}
	}
	if len(gone) == 0 {
		return
	}
	kept := it.alive[:0]
	for _, i := range it.alive {
		if _, ok := gone[i]; !ok {
			kept = append(kept, i)
		}
	}
	it.alive = kept
}
