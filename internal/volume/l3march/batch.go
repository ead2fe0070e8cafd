package l3march

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

// Span locates one ray's samples inside a batch.
type Span struct {
	Offset int
	Count  int
}

// SampleBatch is the concatenated samples of a set of rays. Samples of
// ray i are Samples[Rays[i].Offset : Rays[i].Offset+Rays[i].Count], in
// increasing T.
type SampleBatch struct {
	Samples   []Sample
	Rays      []Span
	Capacity  int // sample budget the batch was built under
	Truncated int // rays cut short by Capacity
}

// Len returns the number of samples.
func (b *SampleBatch) Len() int { return len(b.Samples) }

// RaySamples returns the samples of ray i.
func (b *SampleBatch) RaySamples(i int) []Sample {
	sp := b.Rays[i]
	return b.Samples[sp.Offset : sp.Offset+sp.Count]
}

// Positions returns a new slice of every sample position.
func (b *SampleBatch) Positions() []l1geom.Vec3 {
	out := make([]l1geom.Vec3, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Pos
	}
	return out
}

// Dirs returns a new slice of every sample direction.
func (b *SampleBatch) Dirs() []l1geom.Vec3 {
	out := make([]l1geom.Vec3, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Dir
	}
	return out
}

// Moved returns a copy of the batch with sample positions replaced by pts.
// Deltas, distances, directions and spans are kept.
func (b *SampleBatch) Moved(pts []l1geom.Vec3) *SampleBatch {
	if len(pts) != len(b.Samples) {
		panic(fmt.Sprintf("l3march: Moved got %d points for %d samples", len(pts), len(b.Samples)))
	}
	out := &SampleBatch{
		Samples:   make([]Sample, len(b.Samples)),
		Rays:      b.Rays,
		Capacity:  b.Capacity,
		Truncated: b.Truncated,
	}
	for i, s := range b.Samples {
		s.Pos = pts[i]
		out.Samples[i] = s
	}
	return out
}

// TrainParams are the per-call inputs to MarchTrain.
type TrainParams struct {
	Perturb      bool
	ForceAllRays bool
	MeanCount    int                 // running samples-per-render estimate; <= 0 means unknown
	Lane         *l2grid.CounterLane // receives untruncated sample and ray totals; may be nil
	Seed         uint64
}

// Capacity returns the sample budget for n rays: n*MaxSteps when every
// ray must be kept or no estimate exists yet, otherwise meanCount rounded
// up to a multiple of StepAlign.
func (c *Config) Capacity(n, meanCount int, forceAllRays bool) int {
	if forceAllRays || meanCount <= 0 {
		return n * c.MaxSteps
	}
	return (meanCount + c.StepAlign - 1) / c.StepAlign * c.StepAlign
}

// MarchTrain produces a sample batch for rays against one bitfield slice.
// Directions must be unit length; nears and fars come from NearFar with
// the same rays. Rays are marched independently. Offsets are assigned in
// ray order, so the batch is deterministic for a given seed.
//
// With ForceAllRays a ray that crosses the box but hits no occupied
// voxel still gets one sample at its near bound.
func (c *Config) MarchTrain(ctx context.Context, rays []l1geom.Ray, nears, fars []float64, view l2grid.SliceView, p TrainParams) (*SampleBatch, error) {
	if len(nears) != len(rays) || len(fars) != len(rays) {
		panic(fmt.Sprintf("l3march: %d rays with %d nears and %d fars", len(rays), len(nears), len(fars)))
	}
	st := newStepper(c, view)
	per := make([][]Sample, len(rays))

	pc := parallel.Config{Workers: c.Workers, Grain: 64}
	err := parallel.For(ctx, pc, len(rays), func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			near, far := nears[i], fars[i]
			if !(near < far) {
				continue
			}
			t := near
			if p.Perturb {
				rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
				t += st.dt(t) * rng.Float64()
			}
			var samples []Sample
			st.march(rays[i], t, far, c.MaxSteps, func(s Sample) {
				samples = append(samples, s)
			})
			if len(samples) == 0 && p.ForceAllRays {
				samples = append(samples, Sample{
					Pos:   rays[i].At(near).Clamp(-st.bound, st.bound),
					Dir:   rays[i].Dir,
					Delta: min(st.dt(near), far-near),
					T:     near,
				})
			}
			per[i] = samples
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("march train: %w", err)
	}

	capacity := c.Capacity(len(rays), p.MeanCount, p.ForceAllRays)
	total := 0
	for _, s := range per {
		total += len(s)
	}
	p.Lane.Add(total, len(rays))

	b := &SampleBatch{
		Samples:  make([]Sample, 0, min(total, capacity)),
		Rays:     make([]Span, len(rays)),
		Capacity: capacity,
	}
	for i, s := range per {
		n := min(len(s), capacity-len(b.Samples))
		if n < len(s) {
			b.Truncated++
		}
		b.Rays[i] = Span{Offset: len(b.Samples), Count: n}
		b.Samples = append(b.Samples, s[:n]...)
	}
	if b.Truncated > 0 {
		diagf("truncated %d/%d rays: %d samples over capacity %d", b.Truncated, len(rays), total, capacity)
	}
	return b, nil
}
