package l2grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/dnerf.render/internal/config"
)

// GridConfig provides a configuration builder for Grid. It allows
// setting parameters with defaults and validation before creating a Grid.
type GridConfig struct {
	// Geometry
	Bound    float64 // Scene half-extent, >= 1 (default: 1)
	GridSize int     // Voxels per axis per cascade, power of two (default: 128)
	TimeSize int     // Number of time slices (default: 64)

	// Occupancy refresh
	DensityScale          float64 // Multiplier applied to field densities (default: 1)
	DensityThresh         float64 // Ceiling on the occupancy threshold (default: 0.01)
	Decay                 float64 // EMA decay per update (default: 0.95)
	WarmupUpdates         int     // Full-sweep updates before stochastic refresh (default: 16)
	StochasticUpdateLimit int     // Updates after which refresh stops; 0 = never (default: 100)
	Enabled               bool    // Maintain the grid at all (default: true)

	// Execution
	Workers int    // Goroutines for update tasks; 0 = GOMAXPROCS (default: 0)
	Seed    uint64 // Base seed for per-task random streams (default: 0)
}

// DefaultGridConfig returns a GridConfig loaded from the canonical tuning
// defaults file (config/tuning.defaults.json). Panics if the file cannot
// be found.
func DefaultGridConfig() *GridConfig {
	return GridConfigFromTuning(config.MustLoadDefaultConfig())
}

// GridConfigFromTuning builds a GridConfig from a loaded RenderTuning.
func GridConfigFromTuning(cfg *config.RenderTuning) *GridConfig {
	return &GridConfig{
		Bound:                 cfg.GetBound(),
		GridSize:              cfg.GetGridSize(),
		TimeSize:              cfg.GetTimeSize(),
		DensityScale:          cfg.GetDensityScale(),
		DensityThresh:         cfg.GetDensityThresh(),
		Decay:                 cfg.GetUpdateDecay(),
		WarmupUpdates:         cfg.GetWarmupUpdates(),
		StochasticUpdateLimit: cfg.GetStochasticUpdateLimit(),
		Enabled:               cfg.GetAccelerationEnabled(),
		Workers:               cfg.GetWorkers(),
		Seed:                  cfg.GetSeed(),
	}
}

// Cascades returns the number of nested cascades needed to cover Bound:
// 1 + ceil(log2(Bound)).
func (c *GridConfig) Cascades() int {
	if c.Bound <= 1 {
		return 1
	}
	return 1 + int(math.Ceil(math.Log2(c.Bound)))
}

// Validate checks if the configuration is valid.
func (c *GridConfig) Validate() error {
	if c.Bound < 1 || math.IsInf(c.Bound, 0) || math.IsNaN(c.Bound) {
		return fmt.Errorf("Bound must be a finite value >= 1, got %f", c.Bound)
	}
	if c.GridSize < 2 || c.GridSize > 1024 || c.GridSize&(c.GridSize-1) != 0 {
		return fmt.Errorf("GridSize must be a power of two in [2, 1024], got %d", c.GridSize)
	}
	if c.TimeSize < 1 {
		return fmt.Errorf("TimeSize must be >= 1, got %d", c.TimeSize)
	}
	if c.DensityScale <= 0 {
		return fmt.Errorf("DensityScale must be positive, got %f", c.DensityScale)
	}
	if c.DensityThresh < 0 {
		return fmt.Errorf("DensityThresh must be non-negative, got %f", c.DensityThresh)
	}
	if c.Decay <= 0 || c.Decay > 1 {
		return fmt.Errorf("Decay must be in (0, 1], got %f", c.Decay)
	}
	if c.WarmupUpdates < 0 {
		return fmt.Errorf("WarmupUpdates must be non-negative, got %d", c.WarmupUpdates)
	}
	if c.StochasticUpdateLimit < 0 {
		return fmt.Errorf("StochasticUpdateLimit must be non-negative, got %d", c.StochasticUpdateLimit)
	}
	if c.StochasticUpdateLimit != 0 && c.StochasticUpdateLimit < c.WarmupUpdates {
		return fmt.Errorf("StochasticUpdateLimit (%d) must be 0 or >= WarmupUpdates (%d)", c.StochasticUpdateLimit, c.WarmupUpdates)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// WithBound sets the scene half-extent.
func (c *GridConfig) WithBound(v float64) *GridConfig {
	c.Bound = v
	return c
}

// WithGridSize sets the per-cascade resolution.
func (c *GridConfig) WithGridSize(v int) *GridConfig {
	c.GridSize = v
	return c
}

// WithTimeSize sets the number of time slices.
func (c *GridConfig) WithTimeSize(v int) *GridConfig {
	c.TimeSize = v
	return c
}

// WithDensityThresh sets the occupancy threshold ceiling.
func (c *GridConfig) WithDensityThresh(v float64) *GridConfig {
	c.DensityThresh = v
	return c
}

// WithWarmupUpdates sets the number of full-sweep updates.
func (c *GridConfig) WithWarmupUpdates(v int) *GridConfig {
	c.WarmupUpdates = v
	return c
}

// WithStochasticUpdateLimit sets the update count after which refresh stops.
func (c *GridConfig) WithStochasticUpdateLimit(v int) *GridConfig {
	c.StochasticUpdateLimit = v
	return c
}

// WithEnabled toggles grid maintenance.
func (c *GridConfig) WithEnabled(v bool) *GridConfig {
	c.Enabled = v
	return c
}

// WithWorkers sets the update task parallelism.
func (c *GridConfig) WithWorkers(v int) *GridConfig {
	c.Workers = v
	return c
}

// WithSeed sets the base random seed.
func (c *GridConfig) WithSeed(v uint64) *GridConfig {
	c.Seed = v
	return c
}
