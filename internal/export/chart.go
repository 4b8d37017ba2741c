package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrNotEnoughPoints = errors.New("chart needs at least two periods")

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorCyan,
}

// RenderTrendPNG draws one line per group over the pivot's periods.
func RenderTrendPNG(w io.Writer, pv datalab.Pivot) error {
	if len(pv.Periods) < 2 {
		return ErrNotEnoughPoints
	}

	series := make([]chart.Series, 0, len(pv.Series))
	for i, s := range pv.Series {
		col := seriesColors[i%len(seriesColors)]
		series = append(series, chart.TimeSeries{
			Name:    s.Title,
			XValues: pv.Periods,
			YValues: s.Values,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
			},
		})
	}

	ch := chart.Chart{
		Title:      "Search trend",
		Width:      1024,
		Height:     480,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: "ratio", Range: &chart.ContinuousRange{Min: 0, Max: 100}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}
