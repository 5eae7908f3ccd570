package period

import (
	"math"
	"sort"
)

// Share returns part as a percentage of total, or 0 when total is 0.
func Share(part, total float64) float64 {
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	s := part / total * 100
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// Change is the relative change current/baseline-1. ok is false when the
// baseline is 0 or either side is not finite.
func Change(current, baseline float64) (float64, bool) {
	if baseline == 0 || !finite(current) || !finite(baseline) {
		return 0, false
	}
	return current/baseline - 1, true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Totals collapses breakdowns into one point per period.
func Totals(points []Point) []Point {
	index := make(map[float64]int)
	out := make([]Point, 0)
	for _, p := range points {
		if i, ok := index[p.Sort]; ok {
			out[i].Value += p.Value
			continue
		}
		index[p.Sort] = len(out)
		out = append(out, Point{Sort: p.Sort, Label: p.Label, Value: p.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// Shares rewrites each value as its percentage of the period total.
func Shares(points []Point) []Point {
	totals := make(map[float64]float64)
	for _, p := range points {
		totals[p.Sort] += p.Value
	}
	out := make([]Point, len(points))
	for i, p := range points {
		p.Value = Share(p.Value, totals[p.Sort])
		out[i] = p
	}
	return out
}

// Breakdowns lists the breakdown keys in first-seen order.
func Breakdowns(points []Point) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range points {
		if !seen[p.Breakdown] {
			seen[p.Breakdown] = true
			out = append(out, p.Breakdown)
		}
	}
	return out
}

// Filter keeps the points of one breakdown key.
func Filter(points []Point, breakdown string) []Point {
	out := make([]Point, 0)
	for _, p := range points {
		if p.Breakdown == breakdown {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the point with the highest period; ok is false for an empty series.
func Latest(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Sort > best.Sort {
			best = p
		}
	}
	return best, true
}

// Labels returns the distinct period labels in ascending period order.
func Labels(points []Point) []string {
	totals := Totals(points)
	out := make([]string, len(totals))
	for i, p := range totals {
		out[i] = p.Label
	}
	return out
}

// Matrix lays a broken-down series out as one row per breakdown and one
// column per period label, the shape stacked bar charts want. Missing cells are 0.
func Matrix(points []Point) (labels, keys []string, values [][]float64) {
	totals := Totals(points)
	col := make(map[float64]int, len(totals))
	for i, t := range totals {
		col[t.Sort] = i
		labels = append(labels, t.Label)
	}
	keys = Breakdowns(points)
	row := make(map[string]int, len(keys))
	values = make([][]float64, len(keys))
	for i, k := range keys {
		row[k] = i
		values[i] = make([]float64, len(labels))
	}
	for _, p := range points {
		values[row[p.Breakdown]][col[p.Sort]] += p.Value
	}
	return labels, keys, values
}
