package l4composite

import (
	"context"
	"fmt"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l3march"
)

// Accumulator composites iterative march steps into per-ray totals.
type Accumulator struct {
	c   *Compositor
	res *Result
}

// NewAccumulator returns an Accumulator for n rays. Per-sample weights
// are not kept.
func (c *Compositor) NewAccumulator(n int) *Accumulator {
	return &Accumulator{c: c, res: newResult(0, n)}
}

// Step folds one step's samples into the running totals and returns a
// dead flag per alive ray, set when its transmittance fell below
// MinTransmittance. The flags are meant for Iterative.Retire.
func (a *Accumulator) Step(ctx context.Context, b *l3march.StepBatch, sigma []float64, rgb []l1geom.Color) ([]bool, error) {
	checkLengths(b.Len(), sigma, rgb)
	dead := make([]bool, len(b.Alive))
	res := a.res

	pc := parallel.Config{Workers: a.c.Workers, Grain: 256}
	err := parallel.For(ctx, pc, len(b.Alive), func(_ context.Context, lo, hi int) error {
		for k := lo; k < hi; k++ {
			i := b.Alive[k]
			sp := b.Rays[k]
			trans := 1 - res.Opacity[i]
			for j := sp.Offset; j < sp.Offset+sp.Count; j++ {
				s := b.Samples[j]
				alpha := Alpha(sigma[j], s.Delta, a.c.DensityScale)
				w := alpha * trans
				res.Opacity[i] += w
				res.DepthSum[i] += w * s.T
				res.Image[i] = res.Image[i].Add(rgb[j].Scale(w))
				trans *= 1 - alpha
				if trans < MinTransmittance {
					dead[k] = true
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("composite step: %w", err)
	}
	return dead, nil
}

// Result returns the running totals. The Weights slice is empty.
func (a *Accumulator) Result() *Result { return a.res }

// Finish blends the totals with bg and normalises depth.
func (a *Accumulator) Finish(bg []l1geom.Color, nears, fars []float64) *Output {
	return Resolve(a.res, bg, nears, fars)
}
