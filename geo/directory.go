package geo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Municipality is one entry of the municipality list. Code is the NIS code in
// string form; the JSON files carry it as a number or as a string.
type Municipality struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (m *Municipality) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code json.Number `json:"code"`
		Name string      `json:"name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		// codes written as strings ("11001") land here
		var s struct {
			Code string `json:"code"`
			Name string `json:"name"`
		}
		if err2 := json.Unmarshal(b, &s); err2 != nil {
			return err
		}
		raw.Code, raw.Name = json.Number(s.Code), s.Name
	}
	code, ok := CodeOf(raw.Code)
	if !ok {
		return fmt.Errorf("municipality %q: invalid code %q", raw.Name, raw.Code)
	}
	m.Code, m.Name = code, raw.Name
	return nil
}

// Directory is the read-only list of municipalities with name lookup and search.
type Directory struct {
	list   []Municipality
	byCode map[string]int
	folded []string
}

// NewDirectory builds a directory; later duplicates of a code are ignored.
func NewDirectory(ms []Municipality) *Directory {
	d := &Directory{byCode: make(map[string]int, len(ms))}
	for _, m := range ms {
		if _, dup := d.byCode[m.Code]; dup || m.Code == "" {
			continue
		}
		m.Name = FormatMunicipalityName(m.Name)
		d.byCode[m.Code] = len(d.list)
		d.list = append(d.list, m)
		d.folded = append(d.folded, Fold(m.Name))
	}
	return d
}

func (d *Directory) Len() int { return len(d.list) }

func (d *Directory) All() []Municipality {
	return append([]Municipality(nil), d.list...)
}

// Name returns the municipality name, following 2025 mergers when the code
// itself is unknown.
func (d *Directory) Name(code string) string {
	if d == nil {
		return ""
	}
	if i, ok := d.byCode[strings.TrimSpace(code)]; ok {
		return d.list[i].Name
	}
	if n, ok := NormalizeNis(code); ok {
		if i, ok := d.byCode[n]; ok {
			return d.list[i].Name
		}
		if f, ok := FusionInfo(n); ok {
			return f.NewName
		}
	}
	return ""
}

// Search matches q against names ignoring case and accents, or against the
// code prefix when q is numeric. Names starting with q sort first.
func (d *Directory) Search(q string, limit int) []Municipality {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	fq := Fold(q)
	numeric := strings.IndexFunc(q, func(r rune) bool { return !unicode.IsDigit(r) }) < 0

	type hit struct {
		idx    int
		prefix bool
	}
	var hits []hit
	for i, m := range d.list {
		switch {
		case numeric && strings.HasPrefix(m.Code, q):
			hits = append(hits, hit{i, true})
		case strings.HasPrefix(d.folded[i], fq):
			hits = append(hits, hit{i, true})
		case strings.Contains(d.folded[i], fq):
			hits = append(hits, hit{i, false})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].prefix != hits[b].prefix {
			return hits[a].prefix
		}
		return d.folded[hits[a].idx] < d.folded[hits[b].idx]
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Municipality, len(hits))
	for i, h := range hits {
		out[i] = d.list[h.idx]
	}
	return out
}

// InScope lists the municipalities inside a selection.
func (d *Directory) InScope(s Scope) []Municipality {
	var out []Municipality
	for _, m := range d.list {
		if s.Matches(LevelMunicipality, m.Code) {
			out = append(out, m)
		}
	}
	return out
}

// Fold strips diacritics and lowercases.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

var lowerNL = cases.Lower(language.Dutch)

// FormatMunicipalityName turns "SINT-NIKLAAS" into "Sint-Niklaas": each
// hyphen-separated part is lowercased with a capital first letter.
func FormatMunicipalityName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	parts := strings.Split(name, "-")
	for i, p := range parts {
		p = lowerNL.String(strings.TrimSpace(p))
		r, size := utf8.DecodeRuneInString(p)
		if r != utf8.RuneError {
			p = string(unicode.ToUpper(r)) + p[size:]
		}
		parts[i] = p
	}
	return strings.Join(parts, "-")
}
