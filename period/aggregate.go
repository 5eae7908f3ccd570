// Package period folds flat records into time series.
package period

import (
	"fmt"
	"math"
	"sort"
)

// Period identifies a time bucket. Sort orders buckets (e.g. 2024, or
// 2024*4+quarter); Label is what charts and tables show.
type Period struct {
	Sort  float64
	Label string
}

// Point is one aggregated value. Breakdown is empty when the series is not
// split by category.
type Point struct {
	Sort      float64 `json:"sortValue"`
	Label     string  `json:"periodLabel"`
	Value     float64 `json:"value"`
	Breakdown string  `json:"breakdownKey,omitempty"`
}

type (
	PeriodFunc[T any]    func(T) (Period, bool)
	MetricFunc[T any]    func(T) (float64, bool)
	BreakdownFunc[T any] func(T) string
)

// Aggregate sums metric per (period, breakdown). Rows without a period or with
// a missing or non-finite metric are skipped. Points come out in ascending
// period order; equal periods keep first-seen order. breakdown may be nil.
func Aggregate[T any](records []T, periodKey PeriodFunc[T], metric MetricFunc[T], breakdown BreakdownFunc[T]) []Point {
	type key struct {
		sort      float64
		breakdown string
	}
	index := make(map[key]int)
	out := make([]Point, 0)

	for _, r := range records {
		p, ok := periodKey(r)
		if !ok || math.IsNaN(p.Sort) || math.IsInf(p.Sort, 0) {
			continue
		}
		v, ok := metric(r)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		var b string
		if breakdown != nil {
			b = breakdown(r)
		}
		k := key{p.Sort, b}
		if i, seen := index[k]; seen {
			out[i].Value += v
			continue
		}
		index[k] = len(out)
		label := p.Label
		if label == "" {
			label = fmt.Sprint(p.Sort)
		}
		out = append(out, Point{Sort: p.Sort, Label: label, Value: v, Breakdown: b})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// Year is the period of a plain year.
func Year(y int) Period {
	return Period{Sort: float64(y), Label: fmt.Sprint(y)}
}

// QuarterIndex numbers quarters consecutively so that idx-4 is the same
// quarter one year earlier.
func QuarterIndex(year, quarter int) int {
	return year*4 + quarter - 1
}

// YearQuarter is the period "2024-Q1".
func YearQuarter(year, quarter int) Period {
	return Period{Sort: float64(QuarterIndex(year, quarter)), Label: fmt.Sprintf("%d-Q%d", year, quarter)}
}

// YearMonth is the period "2024-03", sorted as year*100+month.
func YearMonth(year, month int) Period {
	return Period{Sort: float64(year*100 + month), Label: fmt.Sprintf("%d-%02d", year, month)}
}
