package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

// sectionQuery resolves {slug}/{section} and the filter parameters.
func (s *server) sectionQuery(r *http.Request) (*dataset.Section, []dataset.Record, dataset.Query, error) {
	sec, rows, err := s.data.store.Section(chi.URLParam(r, "slug"), chi.URLParam(r, "section"))
	if err != nil {
		return nil, nil, dataset.Query{}, err
	}
	q, err := dataset.QueryFromValues(sec, r.URL.Query())
	if err != nil {
		return nil, nil, dataset.Query{}, err
	}
	return sec, rows, q, nil
}

var errBadRequest = errors.New("bad request")

func httpStatus(err error) int {
	switch {
	case errors.Is(err, dataset.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, geo.ErrInvalidScope), errors.Is(err, dataset.ErrInvalidQuery), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err with the matching status; server errors are logged.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= 500 {
		s.log.Error("request failed", "path", r.URL.Path, "err", err, "request_id", requestID(r.Context()))
	}
	http.Error(w, err.Error(), code)
}

// ==== chart data ====

type chartSeries struct {
	Key    string    `json:"key"`
	Values []float64 `json:"values"`
}

// chartData is what a Chart.js bar chart needs for one section.
type chartData struct {
	Section    *dataset.Section `json:"section"`
	Scope      geo.Scope        `json:"scope"`
	ScopeLabel string           `json:"scopeLabel"`
	Points     []period.Point   `json:"points"`
	Labels     []string         `json:"labels"`
	Series     []chartSeries    `json:"series"`
	Scale      numberScale      `json:"scale"`
	AxisLabel  string           `json:"axisLabel"`
	Latest     *period.Point    `json:"latest,omitempty"`
	LatestText string           `json:"latestText,omitempty"`
	// LatestShort is LatestText in the axis scale, e.g. "2,5 mln".
	LatestShort string              `json:"latestShort,omitempty"`
	Filters     map[string][]string `json:"filters,omitempty"`
}

func (s *server) buildChart(sec *dataset.Section, rows []dataset.Record, q dataset.Query) chartData {
	points := dataset.Series(sec, rows, q)
	labels, keys, values := period.Matrix(points)
	cd := chartData{
		Section:    sec,
		Scope:      q.Scope,
		ScopeLabel: q.Scope.Label(s.data.dir),
		Points:     points,
		Labels:     labels,
		Series:     make([]chartSeries, len(keys)),
	}
	for i, k := range keys {
		if k == "" {
			k = sec.Label
		}
		cd.Series[i] = chartSeries{Key: k, Values: values[i]}
	}

	totals := period.Totals(points)
	if q.Shares && q.Breakdown {
		cd.Scale = numberScale{1, ""}
		cd.AxisLabel = "Aandeel (%)"
	} else {
		vals := make([]float64, len(totals))
		for i, t := range totals {
			vals[i] = t.Value
		}
		cd.Scale = scaleFor(vals)
		cd.AxisLabel = scaledLabel(sec.Label, cd.Scale)
	}
	if last, ok := period.Latest(totals); ok {
		cd.Latest = &last
		if sec.Currency {
			cd.LatestText = formatCurrency(last.Value)
			cd.LatestShort = formatScaledCurrency(last.Value, cd.Scale)
		} else {
			cd.LatestText = formatNumber(last.Value)
			cd.LatestShort = formatScaled(last.Value, cd.Scale)
		}
	}
	if len(sec.Filters) > 0 {
		cd.Filters = make(map[string][]string, len(sec.Filters))
		for _, f := range sec.Filters {
			cd.Filters[f] = dataset.CategoryValues(rows, f)
		}
	}
	return cd
}

// ==== pages ====

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	reg := s.data.store.Registry()
	if err := s.tpl.ExecuteTemplate(w, "index.gohtml", map[string]any{
		"Analyses": reg.Analyses,
		"Embeds":   reg.EmbedParams(),
	}); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

func (s *server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	reg := s.data.store.Registry()
	a, ok := reg.Analysis(chi.URLParam(r, "slug"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	scope, err := geo.ScopeFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	type sectionView struct {
		Section *dataset.Section
		Chart   template.JS
		Query   template.URL
	}
	var views []sectionView
	for i := range a.Sections {
		sec := &a.Sections[i]
		q, err := dataset.QueryFromValues(sec, r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		b, err := json.Marshal(s.buildChart(sec, s.data.store.Rows(sec), q))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		views = append(views, sectionView{Section: sec, Chart: template.JS(b), Query: template.URL(q.Values().Encode())})
	}

	if err := s.tpl.ExecuteTemplate(w, "analysis.gohtml", map[string]any{
		"Analysis":   a,
		"Sections":   views,
		"Scope":      scope,
		"ScopeLabel": scope.Label(s.data.dir),
		"Regions":    geo.Regions(),
		"Provinces":  geo.Provinces(),
		"Breakdown":  dataset.Flag(r.URL.Query().Get("breakdown")),
	}); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

// handleEmbed renders one section without navigation, for iframes.
func (s *server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	slug, id := chi.URLParam(r, "slug"), chi.URLParam(r, "section")
	if !s.data.store.Registry().IsEmbeddable(slug, id) {
		http.NotFound(w, r)
		return
	}
	sec, rows, q, err := s.sectionQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := json.Marshal(s.buildChart(sec, rows, q))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Security-Policy", "frame-ancestors *")
	if err := s.tpl.ExecuteTemplate(w, "embed.gohtml", map[string]any{
		"Section": sec,
		"Chart":   template.JS(b),
	}); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

// ==== exports ====

// exportSheet returns the series, or the filtered rows with ?rows=1.
func (s *server) exportSheet(r *http.Request) (*dataset.Section, []string, [][]any, error) {
	sec, rows, q, err := s.sectionQuery(r)
	if err != nil {
		return nil, nil, nil, err
	}
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("rows")); raw {
		head, cells := recordSheet(dataset.Filter(sec, rows, q))
		return sec, head, cells, nil
	}
	head, cells := seriesSheet(sec, dataset.Series(sec, rows, q))
	return sec, head, cells, nil
}

func (s *server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	sec, head, cells, err := s.exportSheet(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.Exports.WithLabelValues("csv").Inc()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=_%s_export.csv", safeFile(sec.Key())))
	if err := writeCSV(w, head, cells); err != nil {
		s.log.Error("csv export", "section", sec.Key(), "err", err)
	}
}

func (s *server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	sec, head, cells, err := s.exportSheet(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := newWorkbook(sheetName(sec.ID), head, cells)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer f.Close()
	s.metrics.Exports.WithLabelValues("xlsx").Inc()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=_%s_export.xlsx", safeFile(sec.Key())))
	_ = f.Write(w)
}
