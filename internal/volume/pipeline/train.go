package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l3march"
	"github.com/banshee-data/dnerf.render/internal/volume/l4composite"
)

// WarpPass is the dynamic field re-rendered at scene-flow warped sample
// positions, integrated with the unwarped ray/step table.
type WarpPass struct {
	Points       []l1geom.Vec3 // warped sample positions
	FlowBackward []l1geom.Vec3 // backward scene flow evaluated at Points
	FlowForward  []l1geom.Vec3 // forward scene flow evaluated at Points
	Image        []l1geom.Color
	Opacity      []float64
	AccDiff      []float64 // |Opacity - unwarped dynamic opacity| per ray
}

// TrainResult holds everything a training step consumes. Per-ray slices
// of the static half cover rays [0, N/2) and those of the dynamic half
// cover rays [N/2, N). Per-sample slices follow the matching batch.
type TrainResult struct {
	Slice int // occupancy slice used for marching

	StaticBatch  *l3march.SampleBatch
	DynamicBatch *l3march.SampleBatch

	StaticSigma  []float64
	StaticColor  []l1geom.Color
	DynamicSigma []float64
	DynamicColor []l1geom.Color

	Static  *l4composite.Output
	Dynamic *l4composite.Output

	// Full-batch image, depth and opacity: the static half followed by
	// the dynamic half.
	Image   []l1geom.Color
	Depth   []float64
	Opacity []float64

	RawPoints    []l1geom.Vec3 // unwarped dynamic sample positions
	FlowBackward []l1geom.Vec3
	FlowForward  []l1geom.Vec3
	Blend        []float64
	Deform       []l1geom.Vec3 // nil when the dynamic field reports none
	Dynamicness  []float64     // per dynamic ray: sum of weight*blend

	Backward         *WarpPass
	Forward          *WarpPass
	BackwardBackward *WarpPass
	ForwardForward   *WarpPass
}

// RenderTrain renders a training batch at normalised time t. The first
// len(rays)/2 rays are rendered with the static field and the rest with
// the dynamic field; the caller decides the split.
func (r *Renderer) RenderTrain(ctx context.Context, rays []l1geom.Ray, t float64) (*TrainResult, error) {
	start := time.Now()
	if !r.grid.Enabled() {
		return nil, ErrAccelerationDisabled
	}
	rays, err := normalizeRays(rays)
	if err != nil {
		return nil, err
	}
	half := len(rays) / 2
	staticRays, dynRays := rays[:half], rays[half:]

	box := r.TrainAABB()
	nearsS, farsS := box.NearFarBatch(staticRays, r.cfg.MinNear)
	nearsD, farsD := box.NearFarBatch(dynRays, r.cfg.MinNear)

	bg, err := r.background(ctx, rays)
	if err != nil {
		return nil, err
	}

	res := &TrainResult{Slice: r.grid.SliceIndex(t)}
	if err := r.marchTrain(ctx, res, staticRays, dynRays, nearsS, farsS, nearsD, farsD); err != nil {
		return nil, err
	}

	var outS, outD field.Output
	err = parallel.Run(ctx, parallel.Config{Workers: 2}, []func(context.Context) error{
		func(ctx context.Context) error {
			var err error
			outS, err = evaluate(ctx, r.static, field.ModeStatic, res.StaticBatch.Positions(), res.StaticBatch.Dirs(), t)
			return err
		},
		func(ctx context.Context) error {
			var err error
			outD, err = evaluate(ctx, r.dynamic, field.ModeDynamic, res.DynamicBatch.Positions(), res.DynamicBatch.Dirs(), t)
			return err
		},
	})
	if err != nil {
		opsf("train render slice=%d failed: %v", res.Slice, err)
		return nil, err
	}
	res.StaticSigma, res.StaticColor = outS.Sigma, outS.Color
	res.DynamicSigma, res.DynamicColor = outD.Sigma, outD.Color
	res.RawPoints = res.DynamicBatch.Positions()
	res.FlowBackward, res.FlowForward = outD.FlowBackward, outD.FlowForward
	res.Blend, res.Deform = outD.Blend, outD.Deform

	compS, err := r.comp.CompositeTrain(ctx, res.StaticBatch, outS.Sigma, outS.Color)
	if err != nil {
		return nil, err
	}
	compD, err := r.comp.CompositeTrain(ctx, res.DynamicBatch, outD.Sigma, outD.Color)
	if err != nil {
		return nil, err
	}
	bgS, bgD := splitBackground(bg, 0, half), splitBackground(bg, half, len(rays))
	res.Static = l4composite.Resolve(compS, bgS, nearsS, farsS)
	res.Dynamic = l4composite.Resolve(compD, bgD, nearsD, farsD)
	res.Dynamicness = compD.WeightedSum(res.DynamicBatch, outD.Blend)

	res.Image = append(append([]l1geom.Color{}, res.Static.Image...), res.Dynamic.Image...)
	res.Depth = append(append([]float64{}, res.Static.Depth...), res.Dynamic.Depth...)
	res.Opacity = append(append([]float64{}, res.Static.Opacity...), res.Dynamic.Opacity...)

	if err := r.warpPasses(ctx, res, bgD, nearsD, farsD, t); err != nil {
		opsf("train render slice=%d warp passes failed: %v", res.Slice, err)
		return nil, err
	}

	diagf("train render slice=%d rays=%d samples=%d/%d truncated=%d/%d took=%v",
		res.Slice, len(rays), res.StaticBatch.Len(), res.DynamicBatch.Len(),
		res.StaticBatch.Truncated, res.DynamicBatch.Truncated, time.Since(start))
	return res, nil
}

// marchTrain marches both halves against the slice for res.Slice. The
// mean count is read before the slice is acquired, so the read lock is
// never taken twice by one render.
func (r *Renderer) marchTrain(ctx context.Context, res *TrainResult, staticRays, dynRays []l1geom.Ray, nearsS, farsS, nearsD, farsD []float64) error {
	meanCount := r.grid.MeanCount()
	lane := r.grid.NextCounterLane()
	view, release := r.grid.Acquire(res.Slice)
	defer release()

	params := l3march.TrainParams{
		Perturb:      r.cfg.Perturb,
		ForceAllRays: r.cfg.ForceAllRays,
		MeanCount:    meanCount,
		Lane:         lane,
	}
	var err error
	params.Seed = r.nextSeed()
	res.StaticBatch, err = r.march.MarchTrain(ctx, staticRays, nearsS, farsS, view, params)
	if err != nil {
		return fmt.Errorf("static half: %w", err)
	}
	params.Seed = r.nextSeed()
	res.DynamicBatch, err = r.march.MarchTrain(ctx, dynRays, nearsD, farsD, view, params)
	if err != nil {
		return fmt.Errorf("dynamic half: %w", err)
	}
	return nil
}

// warpPasses runs the backward and forward scene-flow chains. Each chain
// warps the dynamic samples once by the flow from the unwarped pass and
// a second time by the same-direction flow evaluated at the warped
// points. The two chains are independent and run concurrently.
func (r *Renderer) warpPasses(ctx context.Context, res *TrainResult, bg []l1geom.Color, nears, fars []float64, t float64) error {
	backward := func(o field.Output) []l1geom.Vec3 { return o.FlowBackward }
	forward := func(o field.Output) []l1geom.Vec3 { return o.FlowForward }

	return parallel.Run(ctx, parallel.Config{Workers: 2}, []func(context.Context) error{
		func(ctx context.Context) error {
			var err error
			res.Backward, res.BackwardBackward, err = r.warpChain(ctx, res, res.FlowBackward, backward, bg, nears, fars, t)
			if err != nil {
				return fmt.Errorf("backward warp: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error {
			var err error
			res.Forward, res.ForwardForward, err = r.warpChain(ctx, res, res.FlowForward, forward, bg, nears, fars, t)
			if err != nil {
				return fmt.Errorf("forward warp: %w", err)
			}
			return nil
		},
	})
}

// warpChain renders the two hops of one warp direction.
func (r *Renderer) warpChain(ctx context.Context, res *TrainResult, flow []l1geom.Vec3, next func(field.Output) []l1geom.Vec3, bg []l1geom.Color, nears, fars []float64, t float64) (*WarpPass, *WarpPass, error) {
	first, out, err := r.warpPass(ctx, res, warp(res.RawPoints, flow), bg, nears, fars, t)
	if err != nil {
		return nil, nil, err
	}
	second, _, err := r.warpPass(ctx, res, warp(first.Points, next(out)), bg, nears, fars, t)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

// warpPass evaluates the dynamic field at pts and integrates it with the
// dynamic batch's ray and step structure.
func (r *Renderer) warpPass(ctx context.Context, res *TrainResult, pts []l1geom.Vec3, bg []l1geom.Color, nears, fars []float64, t float64) (*WarpPass, field.Output, error) {
	start := time.Now()
	moved := res.DynamicBatch.Moved(pts)
	out, err := evaluate(ctx, r.dynamic, field.ModeDynamic, pts, moved.Dirs(), t)
	if err != nil {
		return nil, field.Output{}, err
	}
	comp, err := r.comp.CompositeTrain(ctx, moved, out.Sigma, out.Color)
	if err != nil {
		return nil, field.Output{}, err
	}
	final := l4composite.Resolve(comp, bg, nears, fars)

	diff := make([]float64, len(final.Opacity))
	for i, o := range final.Opacity {
		diff[i] = math.Abs(o - res.Dynamic.Opacity[i])
	}
	tracef("warp pass samples=%d took=%v", len(pts), time.Since(start))
	return &WarpPass{
		Points:       pts,
		FlowBackward: out.FlowBackward,
		FlowForward:  out.FlowForward,
		Image:        final.Image,
		Opacity:      final.Opacity,
		AccDiff:      diff,
	}, out, nil
}

// warp returns pts displaced by flow.
func warp(pts, flow []l1geom.Vec3) []l1geom.Vec3 {
	if len(pts) != len(flow) {
		panic(fmt.Sprintf("pipeline: %d points with %d flow vectors", len(pts), len(flow)))
	}
	out := make([]l1geom.Vec3, len(pts))
	for i, p := range pts {
		out[i] = p.Add(flow[i])
	}
	return out
}
