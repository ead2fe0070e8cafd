package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// RenderTuning is the root configuration for the renderer, the
// occupancy grid and its updater.
type RenderTuning struct {
	// Scene
	Bound        *float64 `json:"bound,omitempty"`
	DensityScale *float64 `json:"density_scale,omitempty"`
	MinNear      *float64 `json:"min_near,omitempty"`
	BgRadius     *float64 `json:"bg_radius,omitempty"`
	// Constant background intensity used when bg_radius <= 0.
	BackgroundColor *float64 `json:"background_color,omitempty"`

	// Occupancy grid
	GridSize              *int     `json:"grid_size,omitempty"`
	TimeSize              *int     `json:"time_size,omitempty"`
	AccelerationEnabled   *bool    `json:"acceleration_enabled,omitempty"`
	DensityThresh         *float64 `json:"density_thresh,omitempty"`
	UpdateDecay           *float64 `json:"update_decay,omitempty"`
	WarmupUpdates         *int     `json:"warmup_updates,omitempty"`
	StochasticUpdateLimit *int     `json:"stochastic_update_limit,omitempty"`

	// Marching
	MaxRayBatch  *int     `json:"max_ray_batch,omitempty"`
	MaxSteps     *int     `json:"max_steps,omitempty"`
	DtGamma      *float64 `json:"dt_gamma,omitempty"`
	StepAlign    *int     `json:"step_align,omitempty"`
	ForceAllRays *bool    `json:"force_all_rays,omitempty"`
	Perturb      *bool    `json:"perturb,omitempty"`

	// Execution
	Workers *int    `json:"workers,omitempty"`
	Seed    *uint64 `json:"seed,omitempty"`

	// Persistence
	SnapshotInterval *string `json:"snapshot_interval,omitempty"` // duration string like "60s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a RenderTuning with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *RenderTuning {
	return &RenderTuning{}
}

// LoadTuningConfig loads a RenderTuning from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*RenderTuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RenderTuning {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/volume/l2grid/
		"../../../../" + DefaultConfigPath,    // from internal/volume/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func isPowerOfTwo(v int) bool { return v > 0 && v&(v-1) == 0 }

// Validate checks that the configuration values are valid.
func (c *RenderTuning) Validate() error {
	if c.Bound != nil && *c.Bound < 1 {
		return fmt.Errorf("bound must be >= 1, got %f", *c.Bound)
	}
	if c.DensityScale != nil && *c.DensityScale <= 0 {
		return fmt.Errorf("density_scale must be positive, got %f", *c.DensityScale)
	}
	if c.MinNear != nil && *c.MinNear < 0 {
		return fmt.Errorf("min_near must be non-negative, got %f", *c.MinNear)
	}
	if c.BackgroundColor != nil && (*c.BackgroundColor < 0 || *c.BackgroundColor > 1) {
		return fmt.Errorf("background_color must be between 0 and 1, got %f", *c.BackgroundColor)
	}
	if c.GridSize != nil && (!isPowerOfTwo(*c.GridSize) || *c.GridSize < 2 || *c.GridSize > 1024) {
		return fmt.Errorf("grid_size must be a power of two in [2, 1024], got %d", *c.GridSize)
	}
	if c.TimeSize != nil && *c.TimeSize < 1 {
		return fmt.Errorf("time_size must be >= 1, got %d", *c.TimeSize)
	}
	if c.DensityThresh != nil && *c.DensityThresh < 0 {
		return fmt.Errorf("density_thresh must be non-negative, got %f", *c.DensityThresh)
	}
	if c.UpdateDecay != nil && (*c.UpdateDecay <= 0 || *c.UpdateDecay > 1) {
		return fmt.Errorf("update_decay must be in (0, 1], got %f", *c.UpdateDecay)
	}
	if c.WarmupUpdates != nil && *c.WarmupUpdates < 0 {
		return fmt.Errorf("warmup_updates must be non-negative, got %d", *c.WarmupUpdates)
	}
	if c.StochasticUpdateLimit != nil && *c.StochasticUpdateLimit < 0 {
		return fmt.Errorf("stochastic_update_limit must be non-negative, got %d", *c.StochasticUpdateLimit)
	}
	if c.MaxRayBatch != nil && *c.MaxRayBatch < 1 {
		return fmt.Errorf("max_ray_batch must be >= 1, got %d", *c.MaxRayBatch)
	}
	if c.MaxSteps != nil && *c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be >= 1, got %d", *c.MaxSteps)
	}
	if c.DtGamma != nil && (*c.DtGamma < 0 || math.IsNaN(*c.DtGamma)) {
		return fmt.Errorf("dt_gamma must be non-negative, got %f", *c.DtGamma)
	}
	if c.StepAlign != nil && *c.StepAlign < 1 {
		return fmt.Errorf("step_align must be >= 1, got %d", *c.StepAlign)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.SnapshotInterval != nil && *c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(*c.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval '%s': %w", *c.SnapshotInterval, err)
		}
	}
	return nil
}

// GetBound returns the scene half-extent or the default.
func (c *RenderTuning) GetBound() float64 {
	if c.Bound == nil {
		return 1 // default
	}
	return *c.Bound
}

// GetDensityScale returns the density multiplier or the default.
func (c *RenderTuning) GetDensityScale() float64 {
	if c.DensityScale == nil {
		return 1 // default
	}
	return *c.DensityScale
}

// GetMinNear returns the minimum near distance or the default.
func (c *RenderTuning) GetMinNear() float64 {
	if c.MinNear == nil {
		return 0.2 // default
	}
	return *c.MinNear
}

// GetBgRadius returns the background sphere radius. Values <= 0 select
// the constant background.
func (c *RenderTuning) GetBgRadius() float64 {
	if c.BgRadius == nil {
		return -1 // default
	}
	return *c.BgRadius
}

// GetBackgroundColor returns the constant background intensity or the default.
func (c *RenderTuning) GetBackgroundColor() float64 {
	if c.BackgroundColor == nil {
		return 1 // default
	}
	return *c.BackgroundColor
}

// GetGridSize returns the per-cascade grid side or the default.
func (c *RenderTuning) GetGridSize() int {
	if c.GridSize == nil {
		return 128 // default
	}
	return *c.GridSize
}

// GetTimeSize returns the number of time slices or the default.
func (c *RenderTuning) GetTimeSize() int {
	if c.TimeSize == nil {
		return 64 // default
	}
	return *c.TimeSize
}

// GetAccelerationEnabled reports whether the occupancy grid is maintained.
func (c *RenderTuning) GetAccelerationEnabled() bool {
	if c.AccelerationEnabled == nil {
		return true // default
	}
	return *c.AccelerationEnabled
}

// GetDensityThresh returns the occupancy threshold ceiling or the default.
func (c *RenderTuning) GetDensityThresh() float64 {
	if c.DensityThresh == nil {
		return 0.01 // default
	}
	return *c.DensityThresh
}

// GetUpdateDecay returns the EMA decay or the default.
func (c *RenderTuning) GetUpdateDecay() float64 {
	if c.UpdateDecay == nil {
		return 0.95 // default
	}
	return *c.UpdateDecay
}

// GetWarmupUpdates returns the number of full-sweep updates or the default.
func (c *RenderTuning) GetWarmupUpdates() int {
	if c.WarmupUpdates == nil {
		return 16 // default
	}
	return *c.WarmupUpdates
}

// GetStochasticUpdateLimit returns the update count after which the
// grid stops refreshing, or the default. 0 means no limit.
func (c *RenderTuning) GetStochasticUpdateLimit() int {
	if c.StochasticUpdateLimit == nil {
		return 100 // default
	}
	return *c.StochasticUpdateLimit
}

// GetMaxRayBatch returns the staged-render chunk size or the default.
func (c *RenderTuning) GetMaxRayBatch() int {
	if c.MaxRayBatch == nil {
		return 4096 // default
	}
	return *c.MaxRayBatch
}

// GetMaxSteps returns the per-ray step budget or the default.
func (c *RenderTuning) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return 1024 // default
	}
	return *c.MaxSteps
}

// GetDtGamma returns the step growth factor or the default.
func (c *RenderTuning) GetDtGamma() float64 {
	if c.DtGamma == nil {
		return 1.0 / 128 // default
	}
	return *c.DtGamma
}

// GetStepAlign returns the sample-capacity alignment or the default.
func (c *RenderTuning) GetStepAlign() int {
	if c.StepAlign == nil {
		return 128 // default
	}
	return *c.StepAlign
}

// GetForceAllRays returns the force_all_rays value or the default.
func (c *RenderTuning) GetForceAllRays() bool {
	if c.ForceAllRays == nil {
		return false // default
	}
	return *c.ForceAllRays
}

// GetPerturb returns the perturb value or the default.
func (c *RenderTuning) GetPerturb() bool {
	if c.Perturb == nil {
		return false // default
	}
	return *c.Perturb
}

// GetWorkers returns the worker count. 0 means GOMAXPROCS.
func (c *RenderTuning) GetWorkers() int {
	if c.Workers == nil {
		return 0 // default
	}
	return *c.Workers
}

// GetSeed returns the random seed or the default.
func (c *RenderTuning) GetSeed() uint64 {
	if c.Seed == nil {
		return 0 // default
	}
	return *c.Seed
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a time.Duration.
func (c *RenderTuning) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == nil || *c.SnapshotInterval == "" {
		return 60 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SnapshotInterval)
	if err != nil {
		return 60 * time.Second // default on parse error
	}
	return d
}
