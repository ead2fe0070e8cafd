package main

import (
	"fmt"

	"github.com/banshee-data/dnerf.render/internal/config"
	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// scene is the analytic stand-in for trained fields: a static crate and
// a sphere drifting across it.
type scene struct {
	static     field.Evaluator
	dynamic    field.Evaluator
	density    field.DensityField
	background field.Background
}

func newScene(tuning *config.RenderTuning) *scene {
	box := field.StaticBox{
		Box:   l1geom.AABB{Min: l1geom.Vec3{X: -0.6, Y: -0.6, Z: -0.2}, Max: l1geom.Vec3{X: 0.6, Y: -0.3, Z: 0.2}},
		Sigma: 20,
		Color: l1geom.Color{R: 0.55, G: 0.35, B: 0.2},
	}
	sphere := field.MovingSphere{
		Center:    l1geom.Vec3{X: -0.4, Y: 0.1},
		Velocity:  l1geom.Vec3{X: 0.8},
		Radius:    0.25,
		Sigma:     30,
		Color:     l1geom.Color{R: 0.2, G: 0.6, B: 0.9},
		FrameStep: 1 / float64(tuning.GetTimeSize()),
	}
	s := &scene{
		static:  box,
		dynamic: sphere,
		density: field.Sum{box, sphere},
	}
	if tuning.GetBgRadius() > 0 {
		s.background = field.SkyGradient{
			Zenith:  l1geom.Color{R: 0.35, G: 0.55, B: 0.9},
			Horizon: l1geom.Gray(0.9),
		}
	}
	return s
}

// loadCameras returns the poses and intrinsics from a transforms file, or
// eight orbit cameras with a 60 degree field of view when path is empty.
func loadCameras(path string, scale float64, width, height int) ([]*l1geom.Camera, l1geom.Intrinsics, error) {
	if path != "" {
		tf, err := l1geom.LoadTransforms(path, scale)
		if err != nil {
			return nil, l1geom.Intrinsics{}, fmt.Errorf("load transforms: %w", err)
		}
		if len(tf.Frames) == 0 {
			return nil, l1geom.Intrinsics{}, fmt.Errorf("transforms file %s has no frames", path)
		}
		return tf.Cameras(), tf.Intrinsics, nil
	}
	if width < 1 || height < 1 {
		return nil, l1geom.Intrinsics{}, fmt.Errorf("image size must be positive, got %dx%d", width, height)
	}
	cams, err := l1geom.Orbit(8, 3, 0.5)
	if err != nil {
		return nil, l1geom.Intrinsics{}, err
	}
	// tan(30deg) = 0.57735
	f := float64(width) / 2 / 0.5773502691896258
	in := l1geom.Intrinsics{Fx: f, Fy: f, Cx: float64(width) / 2, Cy: float64(height) / 2, Width: width, Height: height}
	return cams, in, nil
}

// imageRays returns one ray per pixel in row-major order.
func imageRays(cam *l1geom.Camera, in l1geom.Intrinsics) []l1geom.Ray {
	rays := make([]l1geom.Ray, 0, in.Width*in.Height)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			rays = append(rays, cam.Ray(in, float64(x), float64(y)))
		}
	}
	return rays
}
