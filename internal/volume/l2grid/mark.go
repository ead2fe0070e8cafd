package l2grid

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/dnerf.render/internal/parallel"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// MarkUntrained sets every voxel that no camera frustum reaches to the
// Untrained sentinel, in every time slice. A voxel counts as seen when its
// centre projects inside the image dilated by two half-voxels. Voxels
// already seen are left untouched, so repeated calls are idempotent.
func (g *Grid) MarkUntrained(ctx context.Context, cams []*l1geom.Camera, in l1geom.Intrinsics) error {
	if !g.cfg.Enabled {
		return nil
	}
	if len(cams) == 0 {
		return ErrNoCameras
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("invalid intrinsics: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var unseen atomic.Int64
	pc := parallel.Config{Workers: g.cfg.Workers, Grain: 4096}
	err := parallel.For(ctx, pc, g.cascades*g.cells, func(ctx context.Context, lo, hi int) error {
		for k := lo; k < hi; k++ {
			if (k-lo)&0xFFFF == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			level := k / g.cells
			code := uint32(k % g.cells)
			x, y, z := l1geom.Morton3DInvert(code)
			p := g.voxelCenter(level, x, y, z)
			margin := 2 * g.CascadeBound(level) / float64(g.cfg.GridSize)

			seen := false
			for _, cam := range cams {
				if cam.Sees(p, in, margin) {
					seen = true
					break
				}
			}
			if seen {
				continue
			}
			unseen.Add(1)
			for t := 0; t < g.cfg.TimeSize; t++ {
				g.density[g.offset(t, level)+int(code)] = Untrained
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark untrained: %w", err)
	}

	diagf("marked untrained: %d/%d voxels unseen by %d cameras", unseen.Load(), g.cascades*g.cells, len(cams))
	return nil
}
