package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

// writeJSON encodes v, or serves a cached copy when one exists for the same
// path and query.
func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	key := r.URL.Path + "?" + r.URL.Query().Encode()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if b, ok := s.cache.Get(r.Context(), key); ok {
		s.metrics.CacheHits.Inc()
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(b)
		return
	}
	s.metrics.CacheMisses.Inc()

	v, err := compute()
	if err != nil {
		w.Header().Del("Content-Type")
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Del("Content-Type")
		http.Error(w, err.Error(), 500)
		return
	}
	s.cache.Set(r.Context(), key, buf.Bytes())
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleAPIAnalyses(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		reg := s.data.store.Registry()
		return map[string]any{
			"analyses": reg.Analyses,
			"embeds":   reg.EmbedParams(),
		}, nil
	})
}

// /api/geo: regions and provinces for the scope selectors
func (s *server) handleAPIGeo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		return map[string]any{
			"regions":   geo.Regions(),
			"provinces": geo.Provinces(),
		}, nil
	})
}

type municipalityView struct {
	Code     string           `json:"code"`
	Name     string           `json:"name"`
	Province geo.ProvinceCode `json:"province"`
	Region   geo.RegionCode   `json:"region"`
	Fused    bool             `json:"fused,omitempty"`
}

// newMunicipalityView places a municipality by its post-2025 code.
func newMunicipalityView(code, name string) municipalityView {
	current, _ := geo.NormalizeNis(code)
	return municipalityView{
		Code:     code,
		Name:     name,
		Province: geo.ProvinceForCode(current),
		Region:   geo.RegionForCode(current),
		Fused:    geo.WasFused(code),
	}
}

// /api/municipalities?q=...: search by name or code; without q, the list in scope
func (s *server) handleAPIMunicipalities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		var ms []geo.Municipality
		if q != "" {
			ms = s.data.dir.Search(q, limit)
		} else {
			scope, err := geo.ScopeFromQuery(r.URL.Query())
			if err != nil {
				return nil, err
			}
			ms = s.data.dir.InScope(scope)
		}
		out := make([]municipalityView, 0, len(ms))
		for _, m := range ms {
			out = append(out, newMunicipalityView(m.Code, m.Name))
		}
		return map[string]any{"q": q, "municipalities": out}, nil
	})
}

// /api/municipalities/{slug}/{section}: municipalities that have data in a
// section, limited to the scope
func (s *server) handleAPISectionMunicipalities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		sec, rows, q, err := s.sectionQuery(r)
		if err != nil {
			return nil, err
		}
		if sec.Level() != geo.LevelMunicipality {
			return nil, fmt.Errorf("%w: %s has no municipality data", errBadRequest, sec.Key())
		}
		ms, declared := s.data.store.Municipalities(sec)
		if !declared {
			for _, c := range dataset.Codes(sec, rows) {
				ms = append(ms, geo.Municipality{Code: c, Name: s.data.dir.Name(c)})
			}
			sort.SliceStable(ms, func(i, j int) bool { return geo.Fold(ms[i].Name) < geo.Fold(ms[j].Name) })
		}
		out := make([]municipalityView, 0, len(ms))
		for _, m := range ms {
			if !q.Scope.Matches(geo.LevelMunicipality, m.Code) {
				continue
			}
			out = append(out, newMunicipalityView(m.Code, geo.FormatMunicipalityName(m.Name)))
		}
		return map[string]any{"section": sec.Key(), "municipalities": out}, nil
	})
}

func (s *server) handleAPISeries(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		sec, rows, q, err := s.sectionQuery(r)
		if err != nil {
			return nil, err
		}
		return s.buildChart(sec, rows, q), nil
	})
}

// /api/table/{slug}/{section}: filtered rows, paged, for the instant search table
func (s *server) handleAPITable(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		sec, rows, q, err := s.sectionQuery(r)
		if err != nil {
			return nil, err
		}
		order := r.URL.Query().Get("order")
		desc := strings.ToUpper(r.URL.Query().Get("dir")) == "DESC"
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		matched := dataset.Filter(sec, rows, q)
		cols := recordColumns(matched)
		if order != "" {
			sortRecords(matched, order, desc)
		}
		total := len(matched)
		pages := max(1, (total+s.perPage-1)/s.perPage)
		page = min(max(page, 1), pages)
		from := min((page-1)*s.perPage, total)
		to := min(from+s.perPage, total)

		// serialise rows as strings for a clean JSON table
		srows := make([]map[string]string, 0, to-from)
		for _, rec := range matched[from:to] {
			m := make(map[string]string, len(cols))
			for _, c := range cols {
				m[c] = rec.String(c)
			}
			srows = append(srows, m)
		}
		return map[string]any{
			"section": sec.Key(),
			"columns": cols,
			"rows":    srows,
			"total":   total,
			"page":    page,
			"pages":   pages,
			"perPage": s.perPage,
			"order":   order,
			"desc":    desc,
			"q":       q.Text,
		}, nil
	})
}

// sortRecords orders by a column: numbers before text, numbers numerically.
func sortRecords(rows []dataset.Record, col string, desc bool) {
	less := func(a, b dataset.Record) bool {
		x, okx := a.Number(col)
		y, oky := b.Number(col)
		switch {
		case okx && oky:
			return x < y
		case okx != oky:
			return okx
		}
		return geo.Fold(a.String(col)) < geo.Fold(b.String(col))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

// /api/map/{slug}/{section}: choropleth of one period (latest by default)
func (s *server) handleAPIMap(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		if s.data.layer == nil {
			return nil, fmt.Errorf("%w: no map layer loaded", errBadRequest)
		}
		sec, rows, q, err := s.sectionQuery(r)
		if err != nil {
			return nil, err
		}
		if sec.Level() != geo.LevelMunicipality {
			return nil, fmt.Errorf("%w: %s has no municipality data", errBadRequest, sec.Key())
		}
		values, p, ok := dataset.MapValues(sec, rows, q)
		if !ok {
			values = map[string]float64{}
		}
		var vals []float64
		for _, v := range values {
			vals = append(vals, v)
		}
		return map[string]any{
			"section": sec.Key(),
			"period":  p.Label,
			"scale":   scaleFor(vals),
			"layer":   s.data.layer.Filter(q.Scope).Choropleth(values, s.data.dir),
		}, nil
	})
}

// /api/narrative/{slug}/{section}: Dutch summary of a quarterly series
func (s *server) handleAPINarrative(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, func() (any, error) {
		sec, rows, q, err := s.sectionQuery(r)
		if err != nil {
			return nil, err
		}
		if !sec.Quarterly() {
			return nil, fmt.Errorf("%w: %s is not quarterly", errBadRequest, sec.Key())
		}
		q.Breakdown, q.Shares = false, false
		subject := sec.Subject
		if subject == "" {
			subject = strings.ToLower(sec.Title)
		}
		n, ok := period.Quarterly(subject, q.Scope.Label(s.data.dir), dataset.Series(sec, rows, q))
		return map[string]any{
			"section":   sec.Key(),
			"available": ok,
			"narrative": n,
		}, nil
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	status := "ok"
	if err := s.cache.Health(r.Context()); err != nil {
		status = "degraded: " + err.Error()
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"sections": len(s.data.store.Registry().Sections()),
	})
}
