// Package dataset loads the static statistics files and turns them into
// filtered, aggregated series.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

// Record is one flat row as decoded from JSON, CSV or SQLite.
type Record map[string]any

// Number returns a finite numeric field. Strings are not numbers here: a
// "12" in a metric column is treated like any other malformed value.
func (r Record) Number(field string) (float64, bool) {
	var f float64
	switch v := r[field].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		x, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns an integral numeric field.
func (r Record) Int(field string) (int, bool) {
	f, ok := r.Number(field)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// String renders a field for display and category matching. Whole numbers
// print without decimals so that sector code 41 stays "41".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Code returns the geo code stored in field.
func (r Record) Code(field string) (string, bool) {
	return geo.CodeOf(r[field])
}

// Year extracts a yearly period from field.
func Year(field string) period.PeriodFunc[Record] {
	return func(r Record) (period.Period, bool) {
		y, ok := r.Int(field)
		if !ok {
			return period.Period{}, false
		}
		return period.Year(y), true
	}
}

// YearQuarter extracts "2024-Q1" periods; quarters outside 1..4 are skipped.
func YearQuarter(yearField, quarterField string) period.PeriodFunc[Record] {
	return func(r Record) (period.Period, bool) {
		y, ok1 := r.Int(yearField)
		q, ok2 := r.Int(quarterField)
		if !ok1 || !ok2 || q < 1 || q > 4 {
			return period.Period{}, false
		}
		return period.YearQuarter(y, q), true
	}
}

// YearMonth extracts "2024-03" periods; months outside 1..12 are skipped.
func YearMonth(yearField, monthField string) period.PeriodFunc[Record] {
	return func(r Record) (period.Period, bool) {
		y, ok1 := r.Int(yearField)
		m, ok2 := r.Int(monthField)
		if !ok1 || !ok2 || m < 1 || m > 12 {
			return period.Period{}, false
		}
		return period.YearMonth(y, m), true
	}
}

// Metric sums a numeric field. An empty field name counts rows.
func Metric(field string) period.MetricFunc[Record] {
	if field == "" {
		return func(Record) (float64, bool) { return 1, true }
	}
	return func(r Record) (float64, bool) { return r.Number(field) }
}

// Category splits a series by the value of field.
func Category(field string) period.BreakdownFunc[Record] {
	if field == "" {
		return nil
	}
	return func(r Record) string { return r.String(field) }
}

// Contains reports whether any field matches the folded query text.
func (r Record) Contains(foldedQuery string) bool {
	if foldedQuery == "" {
		return true
	}
	for k := range r {
		if strings.Contains(geo.Fold(r.String(k)), foldedQuery) {
			return true
		}
	}
	return false
}
