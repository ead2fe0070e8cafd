package pipeline

import (
	"fmt"
	"math"

	"github.com/banshee-data/dnerf.render/internal/config"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
)

// Config holds the render-time options that are not owned by the grid
// or the marcher.
type Config struct {
	Bound           float64      // Half-extent of the render box (default: 1)
	MinNear         float64      // Lower bound on ray near distances (default: 0.2)
	DensityScale    float64      // Multiplier on sigma when compositing (default: 1)
	BgRadius        float64      // Background sphere radius; <= 0 uses BackgroundColor (default: -1)
	BackgroundColor l1geom.Color // Constant background (default: white)
	MaxRayBatch     int          // Rays per chunk in staged inference (default: 4096)
	ForceAllRays    bool         // Give every crossing ray at least one sample (default: false)
	Perturb         bool         // Jitter the first sample of each ray (default: false)
	Seed            uint64       // Base seed for perturbation streams (default: 0)
	Workers         int          // Goroutines for compositing; 0 = GOMAXPROCS (default: 0)
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded RenderTuning.
func ConfigFromTuning(cfg *config.RenderTuning) *Config {
	return &Config{
		Bound:           cfg.GetBound(),
		MinNear:         cfg.GetMinNear(),
		DensityScale:    cfg.GetDensityScale(),
		BgRadius:        cfg.GetBgRadius(),
		BackgroundColor: l1geom.Gray(cfg.GetBackgroundColor()),
		MaxRayBatch:     cfg.GetMaxRayBatch(),
		ForceAllRays:    cfg.GetForceAllRays(),
		Perturb:         cfg.GetPerturb(),
		Seed:            cfg.GetSeed(),
		Workers:         cfg.GetWorkers(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !(c.Bound > 0) || math.IsInf(c.Bound, 0) {
		return fmt.Errorf("Bound must be positive and finite, got %f", c.Bound)
	}
	if c.MinNear < 0 {
		return fmt.Errorf("MinNear must be non-negative, got %f", c.MinNear)
	}
	if !(c.DensityScale > 0) {
		return fmt.Errorf("DensityScale must be positive, got %f", c.DensityScale)
	}
	if c.MaxRayBatch < 1 {
		return fmt.Errorf("MaxRayBatch must be >= 1, got %d", c.MaxRayBatch)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}
