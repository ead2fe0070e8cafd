package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// InferResult is the final image of an inference render.
type InferResult struct {
	Slice   int
	Image   []l1geom.Color
	Depth   []float64
	Opacity []float64
	Steps   int // marching micro-steps consumed (last chunk when staged)
}

// RenderInfer renders rays with the dynamic field at normalised time t
// using the iterative marcher against the fixed inference box.
func (r *Renderer) RenderInfer(ctx context.Context, rays []l1geom.Ray, t float64) (*InferResult, error) {
	start := time.Now()
	if !r.grid.Enabled() {
		return nil, ErrAccelerationDisabled
	}
	rays, err := normalizeRays(rays)
	if err != nil {
		return nil, err
	}
	nears, fars := r.inferBox.NearFarBatch(rays, r.cfg.MinNear)
	bg, err := r.background(ctx, rays)
	if err != nil {
		return nil, err
	}

	slice := r.grid.SliceIndex(t)
	view, release := r.grid.Acquire(slice)
	defer release()

	it := r.march.NewIterative(rays, nears, fars, view, r.cfg.Perturb, r.nextSeed())
	acc := r.comp.NewAccumulator(len(rays))
	for !it.Done() {
		b, err := it.Step(ctx)
		if err != nil {
			return nil, err
		}
		var out field.Output
		if b.Len() > 0 {
			out, err = evaluate(ctx, r.dynamic, field.ModeDynamic, b.Positions(), b.Dirs(), t)
			if err != nil {
				opsf("infer render slice=%d step=%d failed: %v", slice, it.Steps(), err)
				return nil, err
			}
		}
		dead, err := acc.Step(ctx, b, out.Sigma, out.Color)
		if err != nil {
			return nil, err
		}
		it.Retire(b, dead)
		tracef("infer slice=%d steps=%d alive=%d", slice, it.Steps(), len(it.Alive()))
	}

	final := acc.Finish(bg, nears, fars)
	diagf("infer render slice=%d rays=%d steps=%d took=%v", slice, len(rays), it.Steps(), time.Since(start))
	return &InferResult{
		Slice:   slice,
		Image:   final.Image,
		Depth:   final.Depth,
		Opacity: final.Opacity,
		Steps:   it.Steps(),
	}, nil
}

// Render is the inference entry point. With staged set, rays are split
// into chunks of MaxRayBatch rendered in order and stitched together.
func (r *Renderer) Render(ctx context.Context, rays []l1geom.Ray, t float64, staged bool) (*InferResult, error) {
	chunk := r.cfg.MaxRayBatch
	if !staged || len(rays) <= chunk {
		return r.RenderInfer(ctx, rays, t)
	}
	out := &InferResult{
		Image:   make([]l1geom.Color, 0, len(rays)),
		Depth:   make([]float64, 0, len(rays)),
		Opacity: make([]float64, 0, len(rays)),
	}
	for lo := 0; lo < len(rays); lo += chunk {
		hi := min(lo+chunk, len(rays))
		part, err := r.RenderInfer(ctx, rays[lo:hi], t)
		if err != nil {
			return nil, fmt.Errorf("staged chunk [%d, %d): %w", lo, hi, err)
		}
		out.Slice = part.Slice
		out.Steps = part.Steps
		out.Image = append(out.Image, part.Image...)
		out.Depth = append(out.Depth, part.Depth...)
		out.Opacity = append(out.Opacity, part.Opacity...)
	}
	return out, nil
}
