package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
	"github.com/banshee-data/dnerf.render/internal/volume/l3march"
	"github.com/banshee-data/dnerf.render/internal/volume/l4composite"
)

var (
	// ErrAccelerationDisabled is returned by renders when the occupancy
	// grid is switched off. The dense fallback marcher is not provided.
	ErrAccelerationDisabled = errors.New("occupancy acceleration is disabled")
	// ErrNoRays is returned for an empty ray batch.
	ErrNoRays = errors.New("no rays to render")
	// ErrDegenerateRay is returned for a ray with a zero or non-finite
	// direction.
	ErrDegenerateRay = errors.New("degenerate ray direction")
)

// Renderer renders ray batches against one occupancy grid with a static
// and a dynamic field. A Renderer is safe for concurrent renders; grid
// updates exclude them through the grid's lock.
type Renderer struct {
	cfg     Config
	grid    *l2grid.Grid
	march   *l3march.Config
	comp    *l4composite.Compositor
	static  field.Evaluator
	dynamic field.Evaluator
	bg      field.Background

	trainBox atomic.Pointer[l1geom.AABB]
	inferBox l1geom.AABB
	session  string
	renders  atomic.Uint64
}

// New creates a Renderer. bg may be nil when cfg.BgRadius <= 0.
func New(cfg *Config, grid *l2grid.Grid, march *l3march.Config, static, dynamic field.Evaluator, bg field.Background) (*Renderer, error) {
	if cfg == nil || march == nil {
		return nil, fmt.Errorf("render and march configs are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render config: %w", err)
	}
	if err := march.Validate(); err != nil {
		return nil, fmt.Errorf("invalid march config: %w", err)
	}
	if grid == nil {
		return nil, fmt.Errorf("occupancy grid is nil")
	}
	if gc := grid.Config(); gc.Bound != cfg.Bound || gc.DensityScale != cfg.DensityScale {
		return nil, fmt.Errorf("render bound %.3f and density scale %.3f do not match grid (%.3f, %.3f)",
			cfg.Bound, cfg.DensityScale, gc.Bound, gc.DensityScale)
	}
	if static == nil || dynamic == nil {
		return nil, fmt.Errorf("static and dynamic evaluators are required")
	}
	if cfg.BgRadius > 0 && bg == nil {
		return nil, fmt.Errorf("bg_radius %.3f requires a background model", cfg.BgRadius)
	}
	r := &Renderer{
		cfg:      *cfg,
		grid:     grid,
		march:    march,
		comp:     &l4composite.Compositor{DensityScale: cfg.DensityScale, Workers: cfg.Workers},
		static:   static,
		dynamic:  dynamic,
		bg:       bg,
		inferBox: l1geom.CubeAABB(cfg.Bound),
		session:  uuid.New().String(),
	}
	box := r.inferBox
	r.trainBox.Store(&box)
	return r, nil
}

// Session returns the renderer's session ID, used to tag grid snapshots.
func (r *Renderer) Session() string { return r.session }

// Config returns a copy of the render configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Grid returns the occupancy grid the renderer marches against.
func (r *Renderer) Grid() *l2grid.Grid { return r.grid }

// TrainAABB returns the box used to clip training rays.
func (r *Renderer) TrainAABB() l1geom.AABB { return *r.trainBox.Load() }

// InferAABB returns the fixed box used to clip inference rays.
func (r *Renderer) InferAABB() l1geom.AABB { return r.inferBox }

// SetTrainAABB replaces the training box, for example to crop or perturb
// it between epochs. The inference box is unaffected.
func (r *Renderer) SetTrainAABB(box l1geom.AABB) error {
	if err := box.Validate(); err != nil {
		return err
	}
	r.trainBox.Store(&box)
	return nil
}

// nextSeed returns a fresh perturbation seed per marching call.
func (r *Renderer) nextSeed() uint64 {
	return r.cfg.Seed ^ r.renders.Add(1)*0x9e3779b97f4a7c15
}

// normalizeRays returns a copy of rays with unit-length directions.
func normalizeRays(rays []l1geom.Ray) ([]l1geom.Ray, error) {
	if len(rays) == 0 {
		return nil, ErrNoRays
	}
	out := make([]l1geom.Ray, len(rays))
	for i, ray := range rays {
		if !ray.Valid() {
			return nil, fmt.Errorf("ray %d: %w", i, ErrDegenerateRay)
		}
		out[i] = l1geom.Ray{Origin: ray.Origin, Dir: ray.Dir.Normalize()}
	}
	return out, nil
}

func dirsOf(rays []l1geom.Ray) []l1geom.Vec3 {
	out := make([]l1geom.Vec3, len(rays))
	for i, ray := range rays {
		out[i] = ray.Dir
	}
	return out
}

// evaluate queries ev at pts and checks the outputs
// against mode.
func evaluate(ctx context.Context, ev field.Evaluator, mode field.Mode, pts, dirs []l1geom.Vec3, t float64) (field.Output, error) {
	out, err := ev.Evaluate(ctx, field.Query{Positions: pts, Dirs: dirs, Time: t, Mode: mode})
	if err != nil {
		return field.Output{}, fmt.Errorf("evaluate %s field: %w", mode, err)
	}
	if err := field.ValidateOutput(mode, len(pts), out); err != nil {
		return field.Output{}, fmt.Errorf("evaluate %s field: %w", mode, err)
	}
	return out, nil
}
