package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/matheuskafuri/trendscope/internal/datalab"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline draws values on the 0..100 ratio scale, averaging neighbouring
// values when there are more than width of them.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	values = downsample(values, width)

	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		idx := int(v / 100 * float64(top))
		if idx < 0 {
			idx = 0
		}
		if idx > top {
			idx = top
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func downsample(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		lo := i * len(values) / width
		hi := (i + 1) * len(values) / width
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// renderTrendChart draws one sparkline per group, labelled with the group name.
func renderTrendChart(pv datalab.Pivot, width int) string {
	if len(pv.Series) == 0 {
		return ""
	}
	lineW := width - lipgloss.Width(chartTitleStyle.Render("")) - 1
	var lines []string
	for _, s := range pv.Series {
		title := chartTitleStyle.Render(truncateStr(s.Title, 13))
		lines = append(lines, title+" "+chartLineStyle.Render(sparkline(s.Values, lineW)))
	}
	if len(pv.Periods) > 0 {
		first := pv.Periods[0].Format("2006-01-02")
		last := pv.Periods[len(pv.Periods)-1].Format("2006-01-02")
		lines = append(lines, metricLabelStyle.Render(strings.Repeat(" ", 15)+first+" → "+last))
	}
	return strings.Join(lines, "\n")
}
