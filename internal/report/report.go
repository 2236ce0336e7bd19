// Package report renders run convergence charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"vrpcore/internal/store"
)

// ErrNoData is returned when a run has no snapshots yet.
var ErrNoData = errors.New("no snapshots to plot")

// RenderConvergence writes an HTML line chart of the best cost per generation. Generations
// where the population changed its selection phase are marked on the x axis label.
func RenderConvergence(w io.Writer, runID string, snapshots []store.Snapshot) error {
	if len(snapshots) == 0 {
		return ErrNoData
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Best cost per generation",
			Subtitle: fmt.Sprintf("run %s", runID),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "generation"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "cost",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	xs := make([]string, len(snapshots))
	costs := make([]opts.LineData, len(snapshots))
	sizes := make([]opts.LineData, len(snapshots))
	phase := ""
	for i, s := range snapshots {
		xs[i] = strconv.Itoa(s.Generation)
		if s.Phase != phase {
			phase = s.Phase
			xs[i] = fmt.Sprintf("%d (%s)", s.Generation, phase)
		}
		costs[i] = opts.LineData{Value: s.BestCost}
		sizes[i] = opts.LineData{Value: s.PopulationSize}
	}

	line.SetXAxis(xs).
		AddSeries("best cost", costs).
		AddSeries("population size", sizes).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	return line.Render(w)
}
