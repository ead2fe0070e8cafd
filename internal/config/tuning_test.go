package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.Bound == nil || *cfg.Bound != 1.0 {
		t.Errorf("Expected Bound 1.0, got %v", cfg.Bound)
	}
	if cfg.GridSize == nil || *cfg.GridSize != 128 {
		t.Errorf("Expected GridSize 128, got %v", cfg.GridSize)
	}
	if cfg.AccelerationEnabled == nil || *cfg.AccelerationEnabled != true {
		t.Errorf("Expected AccelerationEnabled true, got %v", cfg.AccelerationEnabled)
	}
	if cfg.SnapshotInterval == nil || *cfg.SnapshotInterval != "60s" {
		t.Errorf("Expected SnapshotInterval '60s', got %v", cfg.SnapshotInterval)
	}

	// File values and getter defaults must agree.
	empty := EmptyTuningConfig()
	if cfg.GetDtGamma() != empty.GetDtGamma() {
		t.Errorf("GetDtGamma() = %f, default %f", cfg.GetDtGamma(), empty.GetDtGamma())
	}
	if cfg.GetMaxSteps() != empty.GetMaxSteps() {
		t.Errorf("GetMaxSteps() = %d, default %d", cfg.GetMaxSteps(), empty.GetMaxSteps())
	}
	if cfg.GetTimeSize() != empty.GetTimeSize() {
		t.Errorf("GetTimeSize() = %d, default %d", cfg.GetTimeSize(), empty.GetTimeSize())
	}
	if cfg.GetStochasticUpdateLimit() != empty.GetStochasticUpdateLimit() {
		t.Errorf("GetStochasticUpdateLimit() = %d, default %d", cfg.GetStochasticUpdateLimit(), empty.GetStochasticUpdateLimit())
	}
	if cfg.GetBgRadius() != empty.GetBgRadius() {
		t.Errorf("GetBgRadius() = %f, default %f", cfg.GetBgRadius(), empty.GetBgRadius())
	}
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetBound() != 1 {
		t.Errorf("GetBound() = %f, want 1", cfg.GetBound())
	}
	if cfg.GetDensityThresh() != 0.01 {
		t.Errorf("GetDensityThresh() = %f, want 0.01", cfg.GetDensityThresh())
	}
	if cfg.GetUpdateDecay() != 0.95 {
		t.Errorf("GetUpdateDecay() = %f, want 0.95", cfg.GetUpdateDecay())
	}
	if cfg.GetWarmupUpdates() != 16 {
		t.Errorf("GetWarmupUpdates() = %d, want 16", cfg.GetWarmupUpdates())
	}
	if cfg.GetStepAlign() != 128 {
		t.Errorf("GetStepAlign() = %d, want 128", cfg.GetStepAlign())
	}
	if cfg.GetForceAllRays() {
		t.Error("GetForceAllRays() = true, want false")
	}
	if cfg.GetPerturb() {
		t.Error("GetPerturb() = true, want false")
	}
	if cfg.GetMaxRayBatch() != 4096 {
		t.Errorf("GetMaxRayBatch() = %d, want 4096", cfg.GetMaxRayBatch())
	}
	if cfg.GetBackgroundColor() != 1 {
		t.Errorf("GetBackgroundColor() = %f, want 1", cfg.GetBackgroundColor())
	}
	if cfg.GetMinNear() != 0.2 {
		t.Errorf("GetMinNear() = %f, want 0.2", cfg.GetMinNear())
	}
	if cfg.GetSnapshotInterval() != 60*time.Second {
		t.Errorf("GetSnapshotInterval() = %v, want 60s", cfg.GetSnapshotInterval())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "bound": 2.0,
  "grid_size": 64,
  "time_size": 8,
  "perturb": true,
  "seed": 42,
  "snapshot_interval": "5m"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetBound() != 2.0 {
		t.Errorf("Expected Bound 2.0, got %f", cfg.GetBound())
	}
	if cfg.GetGridSize() != 64 {
		t.Errorf("Expected GridSize 64, got %d", cfg.GetGridSize())
	}
	if cfg.GetTimeSize() != 8 {
		t.Errorf("Expected TimeSize 8, got %d", cfg.GetTimeSize())
	}
	if !cfg.GetPerturb() {
		t.Error("Expected Perturb true")
	}
	if cfg.GetSeed() != 42 {
		t.Errorf("Expected Seed 42, got %d", cfg.GetSeed())
	}
	if cfg.GetSnapshotInterval() != 5*time.Minute {
		t.Errorf("Expected SnapshotInterval 5m, got %v", cfg.GetSnapshotInterval())
	}
	// Unset fields fall back to defaults.
	if cfg.GetMaxSteps() != 1024 {
		t.Errorf("Expected default MaxSteps 1024, got %d", cfg.GetMaxSteps())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("bound: 1"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected error for non-JSON extension, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "bound": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_grid.json")
	if err := os.WriteFile(configPath, []byte(`{"grid_size": 100}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error for non power-of-two grid_size, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RenderTuning
		wantErr bool
	}{
		{"empty config is valid", &RenderTuning{}, false},
		{"default config is valid", MustLoadDefaultConfig(), false},
		{"bound below one", &RenderTuning{Bound: ptrFloat64(0.5)}, true},
		{"zero density scale", &RenderTuning{DensityScale: ptrFloat64(0)}, true},
		{"negative min near", &RenderTuning{MinNear: ptrFloat64(-1)}, true},
		{"background out of range", &RenderTuning{BackgroundColor: ptrFloat64(1.5)}, true},
		{"grid not power of two", &RenderTuning{GridSize: ptrInt(96)}, true},
		{"grid too large", &RenderTuning{GridSize: ptrInt(2048)}, true},
		{"grid 32 ok", &RenderTuning{GridSize: ptrInt(32)}, false},
		{"zero time size", &RenderTuning{TimeSize: ptrInt(0)}, true},
		{"decay above one", &RenderTuning{UpdateDecay: ptrFloat64(1.1)}, true},
		{"decay zero", &RenderTuning{UpdateDecay: ptrFloat64(0)}, true},
		{"negative warmup", &RenderTuning{WarmupUpdates: ptrInt(-1)}, true},
		{"negative stochastic limit", &RenderTuning{StochasticUpdateLimit: ptrInt(-3)}, true},
		{"zero ray batch", &RenderTuning{MaxRayBatch: ptrInt(0)}, true},
		{"zero max steps", &RenderTuning{MaxSteps: ptrInt(0)}, true},
		{"negative dt gamma", &RenderTuning{DtGamma: ptrFloat64(-0.1)}, true},
		{"zero step align", &RenderTuning{StepAlign: ptrInt(0)}, true},
		{"negative workers", &RenderTuning{Workers: ptrInt(-2)}, true},
		{"bad snapshot interval", &RenderTuning{SnapshotInterval: ptrString("soon")}, true},
		{"good snapshot interval", &RenderTuning{SnapshotInterval: ptrString("30s")}, false},
		{"flags set", &RenderTuning{ForceAllRays: ptrBool(true), Perturb: ptrBool(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
