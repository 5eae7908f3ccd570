package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

var ErrUnknownSection = errors.New("unknown section")

// Registry lists the analyses and their sections (analyses.yaml).
type Registry struct {
	Analyses []Analysis `yaml:"analyses" json:"analyses"`
}

type Analysis struct {
	Slug     string    `yaml:"slug" json:"slug"`
	Title    string    `yaml:"title" json:"title"`
	Summary  string    `yaml:"summary" json:"summary,omitempty"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Section describes how one chart is computed from one dataset. Exactly one
// of Data, Chunks or Table names the source.
type Section struct {
	Slug string `yaml:"-" json:"slug"`
	ID   string `yaml:"id" json:"id"`

	Title   string `yaml:"title" json:"title"`
	Label   string `yaml:"label" json:"label,omitempty"`
	Subject string `yaml:"subject" json:"subject,omitempty"`

	Data   string `yaml:"data" json:"-"`
	Chunks string `yaml:"chunks" json:"-"`
	Table  string `yaml:"table" json:"-"`

	// Municipalities optionally names the list of municipalities present in the data.
	Municipalities string `yaml:"municipalities" json:"-"`

	GeoField string `yaml:"geo_field" json:"geoField,omitempty"`
	GeoLevel string `yaml:"geo_level" json:"geoLevel,omitempty"`

	Year    string `yaml:"year" json:"-"`
	Quarter string `yaml:"quarter" json:"-"`
	Month   string `yaml:"month" json:"-"`

	Metric    string   `yaml:"metric" json:"metric"`
	Breakdown string   `yaml:"breakdown" json:"breakdown,omitempty"`
	Filters   []string `yaml:"filters" json:"filters,omitempty"`

	Currency bool `yaml:"currency" json:"currency,omitempty"`
	Embed    bool `yaml:"embed" json:"embed,omitempty"`
}

// Key is "slug/section".
func (s *Section) Key() string { return s.Slug + "/" + s.ID }

// Level is the granularity of the section's geo field.
func (s *Section) Level() geo.Level {
	if s.GeoField == "" {
		return geo.LevelBelgium
	}
	l, err := geo.ParseLevel(s.GeoLevel)
	if err != nil {
		return geo.LevelMunicipality
	}
	return l
}

// Quarterly reports whether the series is indexed by quarter.
func (s *Section) Quarterly() bool { return s.Quarter != "" }

func (s *Section) PeriodFunc() period.PeriodFunc[Record] {
	switch {
	case s.Quarter != "":
		return YearQuarter(s.Year, s.Quarter)
	case s.Month != "":
		return YearMonth(s.Year, s.Month)
	}
	return Year(s.Year)
}

// ParseRegistry decodes analyses.yaml and fills in each section's slug.
func ParseRegistry(r io.Reader) (*Registry, error) {
	var reg Registry
	if err := yaml.NewDecoder(r).Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	for i := range reg.Analyses {
		a := &reg.Analyses[i]
		for j := range a.Sections {
			a.Sections[j].Slug = a.Slug
		}
	}
	return &reg, nil
}

func LoadRegistry(fsys fs.FS, name string) (*Registry, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRegistry(f)
}

func (r *Registry) Analysis(slug string) (*Analysis, bool) {
	for i := range r.Analyses {
		if r.Analyses[i].Slug == slug {
			return &r.Analyses[i], true
		}
	}
	return nil, false
}

func (r *Registry) Section(slug, id string) (*Section, error) {
	a, ok := r.Analysis(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSection, slug, id)
	}
	for i := range a.Sections {
		if a.Sections[i].ID == id {
			return &a.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSection, slug, id)
}

// Sections lists every section in registry order.
func (r *Registry) Sections() []*Section {
	var out []*Section
	for i := range r.Analyses {
		for j := range r.Analyses[i].Sections {
			out = append(out, &r.Analyses[i].Sections[j])
		}
	}
	return out
}

type EmbedParam struct {
	Slug    string `json:"slug"`
	Section string `json:"section"`
}

// EmbedParams lists the sections that may be shown in an iframe.
func (r *Registry) EmbedParams() []EmbedParam {
	var out []EmbedParam
	for _, s := range r.Sections() {
		if s.Embed {
			out = append(out, EmbedParam{s.Slug, s.ID})
		}
	}
	return out
}

func (r *Registry) IsEmbeddable(slug, id string) bool {
	s, err := r.Section(slug, id)
	return err == nil && s.Embed
}

// Validate checks every section and returns all problems joined.
func (r *Registry) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, s := range r.Sections() {
		if seen[s.Key()] {
			errs = append(errs, fmt.Errorf("%s: duplicate section", s.Key()))
		}
		seen[s.Key()] = true
		for _, msg := range s.problems() {
			errs = append(errs, fmt.Errorf("%s: %s", s.Key(), msg))
		}
	}
	return errors.Join(errs...)
}

func (s *Section) problems() []string {
	var out []string
	sources := 0
	for _, p := range []string{s.Data, s.Chunks, s.Table} {
		if p != "" {
			sources++
		}
	}
	if sources != 1 {
		out = append(out, "exactly one of data, chunks or table is required")
	}
	if s.Data != "" {
		out = append(out, ValidatePath(s.Data, "data", s.Slug)...)
	}
	if s.Chunks != "" {
		out = append(out, ValidatePath(s.Chunks, "chunks", s.Slug)...)
	}
	if s.Municipalities != "" {
		out = append(out, ValidatePath(s.Municipalities, "municipalities", s.Slug)...)
	}
	if s.Year == "" {
		out = append(out, "year field is required")
	}
	if s.Quarter != "" && s.Month != "" {
		out = append(out, "quarter and month are exclusive")
	}
	if s.GeoLevel != "" {
		if _, err := geo.ParseLevel(s.GeoLevel); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// ValidatePath checks a data path from the registry: non-empty, no parent or
// home directory references, and inside the analysis folder.
func ValidatePath(p, kind, slug string) []string {
	if strings.TrimSpace(p) == "" {
		return []string{kind + " is required and must not be empty"}
	}
	var out []string
	if strings.Contains(p, "..") {
		out = append(out, kind+` contains ".." (parent directory traversal)`)
	}
	if strings.Contains(p, "~") {
		out = append(out, kind+` contains "~" (home directory expansion)`)
	}
	if !strings.HasPrefix(p, slug+"/") {
		out = append(out, fmt.Sprintf("%s should start with %q but is %q", kind, slug+"/", p))
	}
	return out
}
