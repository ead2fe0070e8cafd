package monitor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

// echartsAssetsPrefix is where the rendered page loads echarts.min.js from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteOccupancyDashboard renders an HTML page with a (slice, cascade)
// occupancy heat map from st and, when history is non-empty, a line
// chart of mean density and threshold over updates.
func WriteOccupancyDashboard(w io.Writer, sessionID string, st l2grid.Stats, history []GridSample) error {
	if len(st.Blocks) == 0 {
		return fmt.Errorf("grid stats have no blocks")
	}

	slices := make([]string, st.TimeSize)
	for t := range slices {
		slices[t] = fmt.Sprintf("t%d", t)
	}
	cascades := make([]string, st.Cascades)
	for level := range cascades {
		cascades[level] = fmt.Sprintf("L%d", level)
	}

	data := make([]opts.HeatMapData, 0, len(st.Blocks))
	for _, b := range st.Blocks {
		data = append(data, opts.HeatMapData{Value: []interface{}{b.Slice, b.Cascade, b.OccupancyRate}})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Grid", Theme: "dark", Width: "900px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy by block", Subtitle: fmt.Sprintf("session=%s updates=%d G=%d", sessionID, st.Updates, st.GridSize)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: slices, Name: "Time slice", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: cascades, Name: "Cascade", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(slices).AddSeries("occupancy", data)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(hm)

	if len(history) > 0 {
		x := make([]int, len(history))
		mean := make([]opts.LineData, len(history))
		thresh := make([]opts.LineData, len(history))
		for i, s := range history {
			x[i] = s.Updates
			mean[i] = opts.LineData{Value: s.MeanDensity}
			thresh[i] = opts.LineData{Value: s.Threshold}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: "Mean density"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Update", NameLocation: "middle", NameGap: 25}),
		)
		line.SetXAxis(x).
			AddSeries("mean", mean).
			AddSeries("threshold", thresh)
		page.AddCharts(line)
	}

	return page.Render(w)
}

// SaveOccupancyDashboard writes the dashboard to path.
func SaveOccupancyDashboard(path, sessionID string, st l2grid.Stats, history []GridSample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dashboard: %w", err)
	}
	if err := WriteOccupancyDashboard(f, sessionID, st, history); err != nil {
		f.Close()
		return fmt.Errorf("render dashboard: %w", err)
	}
	return f.Close()
}
