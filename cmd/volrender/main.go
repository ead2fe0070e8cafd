// Command volrender maintains a spatio-temporal occupancy grid for an
// analytic dynamic scene and renders it from a posed camera.
//
// It marks the regions no camera sees, runs grid refreshes, persists
// snapshots to SQLite, renders one training batch and one inference
// image, and optionally writes diagnostic plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/dnerf.render/internal/config"
	"github.com/banshee-data/dnerf.render/internal/monitoring"
	"github.com/banshee-data/dnerf.render/internal/volume/field"
	"github.com/banshee-data/dnerf.render/internal/volume/l1geom"
	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
	"github.com/banshee-data/dnerf.render/internal/volume/l3march"
	"github.com/banshee-data/dnerf.render/internal/volume/monitor"
	"github.com/banshee-data/dnerf.render/internal/volume/pipeline"
	"github.com/banshee-data/dnerf.render/internal/volume/storage/sqlite"
)

var (
	configFile     = flag.String("config", config.DefaultConfigPath, "Path to tuning JSON")
	transformsFile = flag.String("transforms", "", "transforms.json with camera poses (default: orbit cameras)")
	poseScale      = flag.Float64("pose-scale", 1, "Scale applied to transforms translations")
	dbFile         = flag.String("db", "volrender.db", "SQLite file for grid snapshots")
	sessionFlag    = flag.String("session", "", "Resume the latest snapshot of this session (default: new session)")
	updates        = flag.Int("updates", 24, "Grid refreshes to run")
	keep           = flag.Int("keep", 5, "Snapshots to keep per session")
	width          = flag.Int("width", 64, "Image width in pixels")
	height         = flag.Int("height", 64, "Image height in pixels")
	camIndex       = flag.Int("camera", 0, "Camera to render from")
	renderTime     = flag.Float64("time", 0.5, "Normalised scene time to render")
	staged         = flag.Bool("staged", false, "Render the inference image in MaxRayBatch chunks")
	outDir         = flag.String("out", "out", "Output directory for images and plots")
	plots          = flag.Bool("plots", false, "Write occupancy plots and dashboard")
	debug          = flag.Bool("debug", false, "Enable diagnostic logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("volrender: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var diag io.Writer
	if *debug {
		diag = os.Stderr
	}
	l2grid.SetLogWriters(os.Stderr, diag, nil)
	l3march.SetLogWriters(os.Stderr, diag, nil)
	pipeline.SetLogWriters(os.Stderr, diag, nil)

	tuning, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cams, in, err := loadCameras(*transformsFile, *poseScale, *width, *height)
	if err != nil {
		return err
	}
	if *camIndex < 0 || *camIndex >= len(cams) {
		return fmt.Errorf("camera %d out of range [0, %d)", *camIndex, len(cams))
	}

	db, err := sqlite.Open(*dbFile)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()
	store := sqlite.NewGridSnapshotStore(db)

	scene := newScene(tuning)
	grid, err := l2grid.New(l2grid.GridConfigFromTuning(tuning))
	if err != nil {
		return err
	}

	sessionID := *sessionFlag
	resumed := false
	if sessionID != "" {
		rec, err := store.Latest(sessionID)
		if err != nil {
			return err
		}
		if rec != nil {
			if err := grid.RestoreRecord(rec); err != nil {
				return fmt.Errorf("restore snapshot %s: %w", rec.SnapshotID, err)
			}
			resumed = true
			monitoring.Logf("resumed session %s from snapshot %s (updates=%d)", sessionID, rec.SnapshotID, rec.Updates)
		}
	} else {
		sessionID = uuid.New().String()
	}

	plotter := monitor.NewGridPlotter(sessionID)
	plotDir := monitor.MakePlotOutputDir(filepath.Join(*outDir, "plots"), sessionID, time.Now())
	if *plots {
		if err := plotter.Start(plotDir); err != nil {
			return err
		}
	}

	if !resumed {
		done := monitoring.Stage("mark untrained")
		if err := grid.MarkUntrained(ctx, cams, in); err != nil {
			return err
		}
		done()
	}
	if err := refresh(ctx, grid, scene.density, store, plotter, sessionID, tuning.GetSnapshotInterval()); err != nil {
		return err
	}

	if _, err := grid.Persist(store, sessionID, "final"); err != nil {
		return err
	}
	if removed, err := store.Prune(sessionID, *keep); err != nil {
		return err
	} else if removed > 0 {
		monitoring.Logf("pruned %d old snapshots of session %s", removed, sessionID)
	}

	r, err := pipeline.New(pipeline.ConfigFromTuning(tuning), grid, l3march.ConfigFromTuning(tuning),
		scene.static, scene.dynamic, scene.background)
	if err != nil {
		return err
	}
	rays := imageRays(cams[*camIndex], in)

	if err := renderTrain(ctx, r, rays, *renderTime); err != nil {
		return err
	}

	done := monitoring.Stage("render")
	res, err := r.Render(ctx, rays, *renderTime, *staged)
	if err != nil {
		return err
	}
	done()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return err
	}
	base := fmt.Sprintf("cam%03d_t%.3f", *camIndex, *renderTime)
	if err := writeColorPNG(filepath.Join(*outDir, base+"_rgb.png"), res.Image, in.Width, in.Height); err != nil {
		return err
	}
	if err := writeGrayPNG(filepath.Join(*outDir, base+"_depth.png"), res.Depth, in.Width, in.Height); err != nil {
		return err
	}
	monitoring.Logf("rendered %dx%d at t=%.3f slice=%d steps=%d mean_opacity=%.3f",
		in.Width, in.Height, *renderTime, res.Slice, res.Steps, stat.Mean(res.Opacity, nil))

	if *plots {
		plotter.Stop()
		if err := plotter.GeneratePlots(); err != nil {
			return err
		}
		mid := grid.Config().GridSize / 2
		if err := monitor.PlotCrossSection(grid, res.Slice, 0, mid, filepath.Join(plotDir, "cross_section.png")); err != nil {
			return err
		}
		if err := monitor.SaveOccupancyDashboard(filepath.Join(plotDir, "occupancy.html"), sessionID, grid.Stats(), plotter.Samples()); err != nil {
			return err
		}
		monitoring.Logf("plots written to %s", plotDir)
	}
	return nil
}

// refresh runs the configured number of grid updates, persisting a
// snapshot whenever interval has elapsed since the last one.
func refresh(ctx context.Context, grid *l2grid.Grid, f field.DensityField, store *sqlite.GridSnapshotStore, plotter *monitor.GridPlotter, sessionID string, interval time.Duration) error {
	defer monitoring.Stage("grid refresh")()
	decay := grid.Config().Decay
	last := time.Now()
	for i := 0; i < *updates; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := grid.Update(ctx, f, decay); err != nil {
			return err
		}
		plotter.Sample(grid)
		if interval > 0 && time.Since(last) >= interval {
			if _, err := grid.Persist(store, sessionID, "periodic"); err != nil {
				monitoring.Logf("periodic snapshot failed: %v", err)
			}
			last = time.Now()
		}
	}
	monitoring.Logf("grid: updates=%d mean_density=%.4f threshold=%.4f", grid.Updates(), grid.MeanDensity(), grid.Threshold())
	return nil
}

// renderTrain runs one training-mode render and logs its scene-flow
// consistency terms.
func renderTrain(ctx context.Context, r *pipeline.Renderer, rays []l1geom.Ray, t float64) error {
	defer monitoring.Stage("render train")()
	res, err := r.RenderTrain(ctx, rays, t)
	if err != nil {
		return err
	}
	monitoring.Logf("train: slice=%d static_samples=%d dynamic_samples=%d truncated=%d/%d",
		res.Slice, res.StaticBatch.Len(), res.DynamicBatch.Len(),
		res.StaticBatch.Truncated, res.DynamicBatch.Truncated)
	monitoring.Logf("train: dynamicness=%.4f acc_diff b=%.4f f=%.4f bb=%.4f ff=%.4f",
		stat.Mean(res.Dynamicness, nil),
		stat.Mean(res.Backward.AccDiff, nil), stat.Mean(res.Forward.AccDiff, nil),
		stat.Mean(res.BackwardBackward.AccDiff, nil), stat.Mean(res.ForwardForward.AccDiff, nil))
	return nil
}
