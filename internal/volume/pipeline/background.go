package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// background returns the per-ray background colors, or a single shared
// color when the environment model is disabled.
func (r *Renderer) background(ctx context.Context, rays []l1geom.Ray) ([]l1geom.Color, error) {
	if r.cfg.BgRadius <= 0 {
		return []l1geom.Color{r.cfg.BackgroundColor}, nil
	}
	sph := make([][2]float64, len(rays))
	for i, ray := range rays {
		sph[i] = l1geom.SphFromRay(ray, r.cfg.BgRadius)
	}
	colors, err := r.bg.Background(ctx, sph, dirsOf(rays))
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	if len(colors) != len(rays) {
		return nil, fmt.Errorf("background returned %d colors for %d rays", len(colors), len(rays))
	}
	return colors, nil
}

// splitBackground returns the background colors of rays [lo, hi).
func splitBackground(bg []l1geom.Color, lo, hi int) []l1geom.Color {
	if len(bg) == 1 {
		return bg
	}
	return bg[lo:hi]
}
