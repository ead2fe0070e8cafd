package l3march

import (
	"fmt"
	"math"

	"github.com/banshee-data/dnerf.render/internal/config"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

const sqrt3 = 1.7320508075688772

// Config controls step sizes and sample budgets for both marching modes.
type Config struct {
	DtGamma   float64 // Step growth with distance; 0 = uniform steps (default: 1/128)
	MaxSteps  int     // Per-ray sample budget and iterative step budget (default: 1024)
	StepAlign int     // Batch capacity alignment (default: 128)
	Workers   int     // Goroutines; 0 = GOMAXPROCS (default: 0)
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded RenderTuning.
func ConfigFromTuning(cfg *config.RenderTuning) *Config {
	return &Config{
		DtGamma:   cfg.GetDtGamma(),
		MaxSteps:  cfg.GetMaxSteps(),
		StepAlign: cfg.GetStepAlign(),
		Workers:   cfg.GetWorkers(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DtGamma < 0 || math.IsNaN(c.DtGamma) {
		return fmt.Errorf("DtGamma must be non-negative, got %f", c.DtGamma)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("MaxSteps must be >= 1, got %d", c.MaxSteps)
	}
	if c.StepAlign < 1 {
		return fmt.Errorf("StepAlign must be >= 1, got %d", c.StepAlign)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// Sample is one point emitted along a ray.
type Sample struct {
	Pos   l1geom.Vec3
	Dir   l1geom.Vec3
	Delta float64 // step length used for alpha
	T     float64 // distance along the ray
}

// stepper walks rays through one slice of the bitfield.
type stepper struct {
	view   l2grid.SliceView
	gamma  float64
	dtMin  float64
	dtMax  float64
	bound  float64
	size   float64
	levels int
}

func newStepper(cfg *Config, view l2grid.SliceView) *stepper {
	g := float64(view.GridSize())
	return &stepper{
		view:   view,
		gamma:  cfg.DtGamma,
		dtMin:  2 * sqrt3 / float64(cfg.MaxSteps),
		dtMax:  2 * sqrt3 * math.Ldexp(1, view.Cascades()-1) / g,
		bound:  view.Bound(),
		size:   g,
		levels: view.Cascades(),
	}
}

// dt is the adaptive step length at distance t.
func (s *stepper) dt(t float64) float64 {
	d := t * s.gamma
	if d < s.dtMin {
		return s.dtMin
	}
	if d > s.dtMax {
		return s.dtMax
	}
	return d
}

func (s *stepper) clampLevel(exp int) int {
	if exp < 0 {
		return 0
	}
	if exp > s.levels-1 {
		return s.levels - 1
	}
	return exp
}

// level picks the cascade for a sample: the coarser of the one that
// contains the point and the one whose voxels match the step length.
func (s *stepper) level(p l1geom.Vec3, dt float64) int {
	_, posExp := math.Frexp(p.MaxAbs())
	_, dtExp := math.Frexp(dt * s.size * 0.5)
	return s.clampLevel(max(posExp, dtExp))
}

func (s *stepper) voxel(v, mipBound float64) int {
	n := int(0.5 * (v/mipBound + 1) * s.size)
	if n < 0 {
		return 0
	}
	if n > int(s.size)-1 {
		return int(s.size) - 1
	}
	return n
}

// boundary returns the distance from coordinate v to the exit face of
// voxel n along direction d.
func (s *stepper) boundary(n int, v, d, mipBound float64) float64 {
	if d == 0 {
		return math.Inf(1)
	}
	sign := 1.0
	if d < 0 {
		sign = -1
	}
	face := ((float64(n)+0.5+0.5*sign)/s.size*2 - 1) * mipBound
	return (face - v) / d
}

// march walks r from t towards far, calling emit for each occupied step,
// until far is reached or limit samples have been emitted. It returns
// the position the walk stopped at and the number of samples emitted.
// Empty voxels are skipped by jumping to the next voxel face and then
// rounding up to a whole number of steps.
func (s *stepper) march(r l1geom.Ray, t, far float64, limit int, emit func(Sample)) (float64, int) {
	n := 0
	for t < far && n < limit {
		p := r.At(t).Clamp(-s.bound, s.bound)
		dt := s.dt(t)
		level := s.level(p, dt)
		mipBound := math.Min(math.Ldexp(1, level), s.bound)

		nx := s.voxel(p.X, mipBound)
		ny := s.voxel(p.Y, mipBound)
		nz := s.voxel(p.Z, mipBound)

		if s.view.Occupied(level, nx, ny, nz) {
			emit(Sample{Pos: p, Dir: r.Dir, Delta: dt, T: t})
			n++
			t += dt
			continue
		}

		tx := s.boundary(nx, p.X, r.Dir.X, mipBound)
		ty := s.boundary(ny, p.Y, r.Dir.Y, mipBound)
		tz := s.boundary(nz, p.Z, r.Dir.Z, mipBound)
		tt := t + math.Max(0, math.Min(tx, math.Min(ty, tz)))
		for {
			t += s.dt(t)
			if t >= tt {
				break
			}
		}
	}
	return t, n
}
