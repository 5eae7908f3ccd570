package dataset

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

var ErrInvalidQuery = errors.New("invalid query")

// Query is the filter selection for one request. It is built once and passed
// by value; nothing mutates it afterwards.
type Query struct {
	Scope geo.Scope
	// Categories keeps rows whose field value is one of the listed values.
	// Fields are combined with AND, values within a field with OR.
	Categories map[string][]string
	// Breakdown splits the series by the section's breakdown field.
	Breakdown bool
	// Shares turns broken-down values into percentages of the period total.
	Shares bool
	// FromYear and ToYear bound the period, inclusive. 0 leaves a side open.
	FromYear, ToYear int
	// Period picks one period label for map layers; empty means the latest.
	Period string
	// Text is a free text filter for tables, matched accent-insensitively.
	Text string
}

// QueryFromValues reads a Query from request parameters. Only the section's
// declared filter fields are accepted as categories; a field may repeat or
// hold comma-separated values.
func QueryFromValues(sec *Section, v url.Values) (Query, error) {
	scope, err := geo.ScopeFromQuery(v)
	if err != nil {
		return Query{}, err
	}
	q := Query{
		Scope:     scope,
		Breakdown: Flag(v.Get("breakdown")),
		Shares:    Flag(v.Get("shares")),
		Period:    strings.TrimSpace(v.Get("period")),
		Text:      strings.TrimSpace(v.Get("q")),
	}
	for _, f := range sec.Filters {
		var vals []string
		for _, raw := range v[f] {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					vals = append(vals, s)
				}
			}
		}
		if len(vals) > 0 {
			if q.Categories == nil {
				q.Categories = make(map[string][]string)
			}
			q.Categories[f] = vals
		}
	}
	if q.FromYear, err = yearParam(v, "from"); err != nil {
		return Query{}, err
	}
	if q.ToYear, err = yearParam(v, "to"); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Flag reads an on/off query parameter; "1", "true" and "t" are on.
func Flag(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func yearParam(v url.Values, name string) (int, error) {
	s := strings.TrimSpace(v.Get(name))
	if s == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid year %q", ErrInvalidQuery, name, s)
	}
	return y, nil
}

// Values encodes the query back into request parameters.
func (q Query) Values() url.Values {
	v := q.Scope.Query()
	for f, vals := range q.Categories {
		for _, s := range vals {
			v.Add(f, s)
		}
	}
	if q.Breakdown {
		v.Set("breakdown", "1")
	}
	if q.Shares {
		v.Set("shares", "1")
	}
	if q.FromYear != 0 {
		v.Set("from", strconv.Itoa(q.FromYear))
	}
	if q.ToYear != 0 {
		v.Set("to", strconv.Itoa(q.ToYear))
	}
	if q.Period != "" {
		v.Set("period", q.Period)
	}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	return v
}

// Match reports whether a row passes the scope, category, year and text filters.
func (q Query) Match(sec *Section, r Record) bool {
	if sec.GeoField != "" {
		code, ok := r.Code(sec.GeoField)
		if !ok || !q.Scope.Matches(sec.Level(), code) {
			return false
		}
	} else if !q.Scope.IsZero() {
		return false
	}
	for f, vals := range q.Categories {
		if !slices.Contains(vals, r.String(f)) {
			return false
		}
	}
	if q.FromYear != 0 || q.ToYear != 0 {
		y, ok := r.Int(sec.Year)
		if !ok || (q.FromYear != 0 && y < q.FromYear) || (q.ToYear != 0 && y > q.ToYear) {
			return false
		}
	}
	if q.Text != "" && !r.Contains(geo.Fold(q.Text)) {
		return false
	}
	return true
}

// Filter returns the rows matching q in their original order.
func Filter(sec *Section, rows []Record, q Query) []Record {
	out := make([]Record, 0)
	for _, r := range rows {
		if q.Match(sec, r) {
			out = append(out, r)
		}
	}
	return out
}

// Series filters rows and folds them into the section's time series.
func Series(sec *Section, rows []Record, q Query) []period.Point {
	var breakdown period.BreakdownFunc[Record]
	if q.Breakdown {
		breakdown = Category(sec.Breakdown)
	}
	points := period.Aggregate(Filter(sec, rows, q), sec.PeriodFunc(), Metric(sec.Metric), breakdown)
	if q.Shares && breakdown != nil {
		points = period.Shares(points)
	}
	return points
}

// MapValues sums the metric per municipality for one period, merged municipalities
// counted under their new code. It returns false for sections that are not at
// municipality level or have no rows in scope.
func MapValues(sec *Section, rows []Record, q Query) (map[string]float64, period.Period, bool) {
	if sec.GeoField == "" || sec.Level() != geo.LevelMunicipality {
		return nil, period.Period{}, false
	}
	pf := sec.PeriodFunc()
	in := Filter(sec, rows, q)

	var pick period.Period
	found := false
	for _, r := range in {
		p, ok := pf(r)
		if !ok {
			continue
		}
		if q.Period != "" {
			if p.Label == q.Period {
				pick, found = p, true
				break
			}
			continue
		}
		if !found || p.Sort > pick.Sort {
			pick, found = p, true
		}
	}
	if !found {
		return nil, period.Period{}, false
	}

	metric := Metric(sec.Metric)
	values := geo.AggregateByNormalizedNis(in,
		func(r Record) (string, bool) {
			if p, ok := pf(r); !ok || p.Sort != pick.Sort {
				return "", false
			}
			return r.Code(sec.GeoField)
		},
		func(r Record) (float64, bool) { return metric(r) },
		geo.Sum)
	return values, pick, true
}

// CategoryValues lists the distinct values of a field, sorted, for filter menus.
func CategoryValues(rows []Record, field string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		s := r.String(field)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
