package l4composite

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l3march"
)

// MinTransmittance is the transmittance below which a ray stops
// accumulating. Later samples on the ray get zero weight.
const MinTransmittance = 1e-4

// Compositor integrates sample batches.
type Compositor struct {
	DensityScale float64 // multiplies sigma*delta inside the exponent
	Workers      int     // 0 = GOMAXPROCS
}

// Result is the raw integral of one batch. Weights is per sample; the
// other slices are per ray.
type Result struct {
	Weights  []float64
	Opacity  []float64      // sum of weights
	DepthSum []float64      // sum of weight*t
	Image    []l1geom.Color // sum of weight*color, no background
}

func newResult(samples, rays int) *Result {
	return &Result{
		Weights:  make([]float64, samples),
		Opacity:  make([]float64, rays),
		DepthSum: make([]float64, rays),
		Image:    make([]l1geom.Color, rays),
	}
}

// Alpha returns 1 - exp(-sigma*delta*scale). Negative densities count
// as empty space.
func Alpha(sigma, delta, scale float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return 1 - math.Exp(-sigma*delta*scale)
}

func checkLengths(n int, sigma []float64, rgb []l1geom.Color) {
	if len(sigma) != n || len(rgb) != n {
		panic(fmt.Sprintf("l4composite: %d samples with %d sigma and %d colors", n, len(sigma), len(rgb)))
	}
}

// CompositeTrain integrates every ray of b front to back. sigma and rgb
// are indexed like b.Samples.
func (c *Compositor) CompositeTrain(ctx context.Context, b *l3march.SampleBatch, sigma []float64, rgb []l1geom.Color) (*Result, error) {
	checkLengths(b.Len(), sigma, rgb)
	res := newResult(b.Len(), len(b.Rays))

	pc := parallel.Config{Workers: c.Workers, Grain: 256}
	err := parallel.For(ctx, pc, len(b.Rays), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			sp := b.Rays[i]
			trans := 1.0
			for j := sp.Offset; j < sp.Offset+sp.Count; j++ {
				s := b.Samples[j]
				alpha := Alpha(sigma[j], s.Delta, c.DensityScale)
				w := alpha * trans
				res.Weights[j] = w
				res.Opacity[i] += w
				res.DepthSum[i] += w * s.T
				res.Image[i] = res.Image[i].Add(rgb[j].Scale(w))
				trans *= 1 - alpha
				if trans < MinTransmittance {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}
	return res, nil
}

// WeightedSum returns, per ray, the sum of weight_i*values_i over the
// ray's samples. values is indexed like b.Samples.
func (r *Result) WeightedSum(b *l3march.SampleBatch, values []float64) []float64 {
	if len(values) != b.Len() || len(r.Weights) != b.Len() {
		panic(fmt.Sprintf("l4composite: %d samples with %d values and %d weights", b.Len(), len(values), len(r.Weights)))
	}
	out := make([]float64, len(b.Rays))
	for i, sp := range b.Rays {
		for j := sp.Offset; j < sp.Offset+sp.Count; j++ {
			out[i] += r.Weights[j] * values[j]
		}
	}
	return out
}
