package datalab

import (
	"sort"
	"time"
)

// SortForDisplay orders points by group title, then period.
func SortForDisplay(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Title != points[j].Title {
			return points[i].Title < points[j].Title
		}
		return points[i].Period.Before(points[j].Period)
	})
}

// Series is one group's values aligned to Pivot.Periods.
type Series struct {
	Title  string
	Values []float64
}

// Pivot is the period × group matrix behind the chart.
type Pivot struct {
	Periods []time.Time
	Series  []Series
}

// NewPivot sums ratios per (period, title). Periods ascend; series keep the
// order in which each title first appears. Missing cells are zero.
func NewPivot(points []Point) Pivot {
	periodSet := map[time.Time]bool{}
	var titles []string
	titleIdx := map[string]int{}
	for _, p := range points {
		periodSet[p.Period] = true
		if _, ok := titleIdx[p.Title]; !ok {
			titleIdx[p.Title] = len(titles)
			titles = append(titles, p.Title)
		}
	}

	var pv Pivot
	for t := range periodSet {
		pv.Periods = append(pv.Periods, t)
	}
	sort.Slice(pv.Periods, func(i, j int) bool { return pv.Periods[i].Before(pv.Periods[j]) })

	periodIdx := make(map[time.Time]int, len(pv.Periods))
	for i, t := range pv.Periods {
		periodIdx[t] = i
	}

	pv.Series = make([]Series, len(titles))
	for i, title := range titles {
		pv.Series[i] = Series{Title: title, Values: make([]float64, len(pv.Periods))}
	}
	for _, p := range points {
		pv.Series[titleIdx[p.Title]].Values[periodIdx[p.Period]] += p.Ratio
	}
	return pv
}
