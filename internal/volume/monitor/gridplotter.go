package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

// GridPlotter records occupancy statistics of a grid after each update
// and writes plots once a run finishes.
type GridPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	sessionID string

	samples []GridSample
}

// GridSample is the grid state captured by one call to Sample.
type GridSample struct {
	Index       int
	Timestamp   time.Time
	Updates     int
	MeanDensity float64
	Threshold   float64
	MeanCount   int
	// Occupancy rate per time slice, averaged over cascades.
	SliceOccupancy []float64
}

// NewGridPlotter creates a plotter for one render session.
func NewGridPlotter(sessionID string) *GridPlotter {
	return &GridPlotter{sessionID: sessionID}
}

// Start initialises the plotter for a new run, creating outputDir.
func (gp *GridPlotter) Start(outputDir string) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	gp.outputDir = outputDir
	gp.enabled = true
	gp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots to produce output files.
func (gp *GridPlotter) Stop() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (gp *GridPlotter) IsEnabled() bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.enabled
}

// Sample captures the grid's current statistics.
func (gp *GridPlotter) Sample(g *l2grid.Grid) {
	if g == nil {
		return
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if !gp.enabled {
		return
	}

	st := g.Stats()
	occ := make([]float64, st.TimeSize)
	for t := range occ {
		for level := 0; level < st.Cascades; level++ {
			occ[t] += st.Block(t, level).OccupancyRate
		}
		occ[t] /= float64(st.Cascades)
	}
	gp.samples = append(gp.samples, GridSample{
		Index:          len(gp.samples),
		Timestamp:      time.Now(),
		Updates:        st.Updates,
		MeanDensity:    st.MeanDensity,
		Threshold:      st.Threshold,
		MeanCount:      st.MeanCount,
		SliceOccupancy: occ,
	})
}

// Samples returns a copy of the recorded samples.
func (gp *GridPlotter) Samples() []GridSample {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return append([]GridSample(nil), gp.samples...)
}

// GetOutputDir returns the current output directory for plots.
func (gp *GridPlotter) GetOutputDir() string {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.outputDir
}

// GeneratePlots writes occupancy.png (one line per time slice) and
// density.png (mean density and threshold) to the output directory.
func (gp *GridPlotter) GeneratePlots() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.outputDir == "" {
		return fmt.Errorf("plotter not started")
	}
	if len(gp.samples) == 0 {
		return fmt.Errorf("no samples recorded")
	}

	pOcc := plot.New()
	pOcc.Title.Text = fmt.Sprintf("Occupancy by time slice (%s)", gp.sessionID)
	pOcc.X.Label.Text = "Update"
	pOcc.Y.Label.Text = "Occupied fraction"
	pOcc.Add(plotter.NewGrid())

	slices := len(gp.samples[0].SliceOccupancy)
	colors := generateColors(slices)
	for t := 0; t < slices; t++ {
		pts := make(plotter.XYs, 0, len(gp.samples))
		for _, s := range gp.samples {
			pts = append(pts, plotter.XY{X: float64(s.Updates), Y: s.SliceOccupancy[t]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[t]
		line.Width = vg.Points(1)
		pOcc.Add(line)
		pOcc.Legend.Add(fmt.Sprintf("t=%d", t), line)
	}
	pOcc.Legend.Top = true
	pOcc.Legend.Left = false
	pOcc.Legend.XOffs = -10
	pOcc.Legend.YOffs = -10

	pDen := plot.New()
	pDen.Title.Text = "Mean density"
	pDen.X.Label.Text = "Update"
	pDen.Y.Label.Text = "Density"
	pDen.Add(plotter.NewGrid())

	meanPts := make(plotter.XYs, 0, len(gp.samples))
	threshPts := make(plotter.XYs, 0, len(gp.samples))
	for _, s := range gp.samples {
		meanPts = append(meanPts, plotter.XY{X: float64(s.Updates), Y: s.MeanDensity})
		threshPts = append(threshPts, plotter.XY{X: float64(s.Updates), Y: s.Threshold})
	}
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	threshLine, err := plotter.NewLine(threshPts)
	if err != nil {
		return err
	}
	threshLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	threshLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pDen.Add(meanLine, threshLine)
	pDen.Legend.Add("mean", meanLine)
	pDen.Legend.Add("threshold", threshLine)
	pDen.Legend.Top = true

	if err := pOcc.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(gp.outputDir, "occupancy.png")); err != nil {
		return fmt.Errorf("save occupancy plot: %w", err)
	}
	if err := pDen.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(gp.outputDir, "density.png")); err != nil {
		return fmt.Errorf("save density plot: %w", err)
	}
	return nil
}

// crossSection adapts a [y][x] density plane to plotter.GridXYZ.
type crossSection struct {
	rows   [][]float32
	extent float64
}

func (c crossSection) Dims() (int, int) { return len(c.rows[0]), len(c.rows) }

func (c crossSection) Z(col, row int) float64 { return float64(c.rows[row][col]) }

func (c crossSection) X(col int) float64 { return c.coord(col, len(c.rows[0])) }

func (c crossSection) Y(row int) float64 { return c.coord(row, len(c.rows)) }

func (c crossSection) coord(i, n int) float64 {
	return (2*(float64(i)+0.5)/float64(n) - 1) * c.extent
}

// PlotCrossSection writes a heat map of the density plane z of one
// (slice, cascade) block to path. Untrained voxels are drawn grey.
func PlotCrossSection(g *l2grid.Grid, slice, cascade, z int, path string) error {
	rows, err := g.CrossSection(slice, cascade, z)
	if err != nil {
		return err
	}
	cs := crossSection{rows: rows, extent: g.CascadeBound(cascade)}

	hm := plotter.NewHeatMap(cs, palette.Heat(32, 1))
	hm.Min = 0
	if hm.Max <= hm.Min {
		hm.Max = 1
	}
	hm.Underflow = color.Gray{Y: 128}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Density slice=%d cascade=%d z=%d", slice, cascade, z)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(hm)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save cross section: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colours for per-slice lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir returns baseDir/<session>/<timestamp>.
func MakePlotOutputDir(baseDir, sessionID string, now time.Time) string {
	return filepath.Join(baseDir, sessionID, FormatTimestamp(now))
}
