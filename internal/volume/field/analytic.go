package field

import (
	"context"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// Constant is a homogeneous medium with the same density and color
// everywhere. With Dynamic set it also reports zero scene flow and a
// fixed blend, so it satisfies the dynamic contract.
type Constant struct {
	Sigma   float64
	Color   l1geom.Color
	Dynamic bool
	Blend   float64
}

func (c Constant) Evaluate(_ context.Context, q Query) (Output, error) {
	n := q.Len()
	out := Output{
		Sigma: make([]float64, n),
		Color: make([]l1geom.Color, n),
	}
	for i := 0; i < n; i++ {
		out.Sigma[i] = c.Sigma
		out.Color[i] = c.Color
	}
	if c.Dynamic {
		out.FlowBackward = make([]l1geom.Vec3, n)
		out.FlowForward = make([]l1geom.Vec3, n)
		out.Blend = make([]float64, n)
		for i := range out.Blend {
			out.Blend[i] = c.Blend
		}
	}
	return out, nil
}

func (c Constant) Density(_ context.Context, pts []l1geom.Vec3, _ float64) ([]float64, error) {
	out := make([]float64, len(pts))
	for i := range out {
		out[i] = c.Sigma
	}
	return out, nil
}

// StaticBox is an opaque-ish axis-aligned box. It is a static field only:
// it never reports scene flow.
type StaticBox struct {
	Box   l1geom.AABB
	Sigma float64
	Color l1geom.Color
}

func (b StaticBox) Evaluate(ctx context.Context, q Query) (Output, error) {
	sigma, _ := b.Density(ctx, q.Positions, q.Time)
	out := Output{Sigma: sigma, Color: make([]l1geom.Color, len(sigma))}
	for i := range out.Color {
		out.Color[i] = b.Color
	}
	return out, nil
}

func (b StaticBox) Density(_ context.Context, pts []l1geom.Vec3, _ float64) ([]float64, error) {
	out := make([]float64, len(pts))
	for i, p := range pts {
		if b.Box.Contains(p) {
			out[i] = b.Sigma
		}
	}
	return out, nil
}

// MovingSphere is a sphere translating at constant velocity. Time is the
// normalised scene time in [0,1]. FrameStep is the normalised time
// between adjacent frames and scales the reported scene flow.
type MovingSphere struct {
	Center    l1geom.Vec3
	Velocity  l1geom.Vec3
	Radius    float64
	Sigma     float64
	Color     l1geom.Color
	FrameStep float64
}

// CenterAt returns the sphere centre at time t.
func (s MovingSphere) CenterAt(t float64) l1geom.Vec3 {
	return s.Center.Add(s.Velocity.Scale(t))
}

func (s MovingSphere) inside(p l1geom.Vec3, t float64) bool {
	return p.Sub(s.CenterAt(t)).Length() <= s.Radius
}

func (s MovingSphere) Evaluate(_ context.Context, q Query) (Output, error) {
	n := q.Len()
	out := Output{
		Sigma:        make([]float64, n),
		Color:        make([]l1geom.Color, n),
		FlowBackward: make([]l1geom.Vec3, n),
		FlowForward:  make([]l1geom.Vec3, n),
		Blend:        make([]float64, n),
		Deform:       make([]l1geom.Vec3, n),
	}
	step := s.Velocity.Scale(s.FrameStep)
	deform := s.Velocity.Scale(-q.Time)
	for i, p := range q.Positions {
		out.Deform[i] = deform
		if !s.inside(p, q.Time) {
			continue
		}
		out.Sigma[i] = s.Sigma
		out.Color[i] = s.Color
		out.FlowBackward[i] = step.Scale(-1)
		out.FlowForward[i] = step
		out.Blend[i] = 1
	}
	return out, nil
}

func (s MovingSphere) Density(_ context.Context, pts []l1geom.Vec3, t float64) ([]float64, error) {
	out := make([]float64, len(pts))
	for i, p := range pts {
		if s.inside(p, t) {
			out[i] = s.Sigma
		}
	}
	return out, nil
}

// Sum adds the densities of several fields.
type Sum []DensityField

func (s Sum) Density(ctx context.Context, pts []l1geom.Vec3, t float64) ([]float64, error) {
	out := make([]float64, len(pts))
	for _, f := range s {
		d, err := f.Density(ctx, pts, t)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] += d[i]
		}
	}
	return out, nil
}

// ConstantBackground returns the same color for every ray.
type ConstantBackground l1geom.Color

func (c ConstantBackground) Background(_ context.Context, sph [][2]float64, _ []l1geom.Vec3) ([]l1geom.Color, error) {
	out := make([]l1geom.Color, len(sph))
	for i := range out {
		out[i] = l1geom.Color(c)
	}
	return out, nil
}

// SkyGradient blends from Horizon to Zenith by the polar coordinate of
// the background-sphere hit.
type SkyGradient struct {
	Zenith  l1geom.Color
	Horizon l1geom.Color
}

func (g SkyGradient) Background(_ context.Context, sph [][2]float64, _ []l1geom.Vec3) ([]l1geom.Color, error) {
	out := make([]l1geom.Color, len(sph))
	for i, uv := range sph {
		// v = -1 at the zenith, 0 at the horizon.
		w := -uv[1]
		if w < 0 {
			w = 0
		}
		out[i] = g.Zenith.Scale(w).Add(g.Horizon.Scale(1 - w))
	}
	return out, nil
}
