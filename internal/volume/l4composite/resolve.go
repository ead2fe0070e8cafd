package l4composite

import (
	"fmt"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// Output is the final per-ray image of one composite.
type Output struct {
	Image   []l1geom.Color // color + (1-opacity)*background
	Depth   []float64      // expected distance mapped to [0,1] between near and far
	Opacity []float64
}

// Resolve blends r with the background and normalises depth. bg holds
// one color per ray, or a single color shared by every ray.
func Resolve(r *Result, bg []l1geom.Color, nears, fars []float64) *Output {
	n := len(r.Opacity)
	if len(nears) != n || len(fars) != n {
		panic(fmt.Sprintf("l4composite: %d rays with %d nears and %d fars", n, len(nears), len(fars)))
	}
	if len(bg) != n && len(bg) != 1 {
		panic(fmt.Sprintf("l4composite: %d background colors for %d rays", len(bg), n))
	}
	out := &Output{
		Image:   make([]l1geom.Color, n),
		Depth:   make([]float64, n),
		Opacity: append([]float64(nil), r.Opacity...),
	}
	for i := 0; i < n; i++ {
		c := bg[0]
		if len(bg) == n {
			c = bg[i]
		}
		out.Image[i] = r.Image[i].Add(c.Scale(1 - r.Opacity[i]))
		out.Depth[i] = NormalizeDepth(r.DepthSum[i], r.Opacity[i], nears[i], fars[i])
	}
	return out
}

// NormalizeDepth maps the expected distance depthSum/opacity into [0,1]
// over [near, far]. Empty rays and rays with near >= far get 0.
func NormalizeDepth(depthSum, opacity, near, far float64) float64 {
	if opacity <= 0 || !(near < far) {
		return 0
	}
	d := (depthSum/opacity - near) / (far - near)
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
