package geo

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Level is the geographic granularity of a dataset row or of a selection.
type Level string

const (
	LevelBelgium      Level = "belgium"
	LevelRegion       Level = "region"
	LevelProvince     Level = "province"
	LevelMunicipality Level = "municipality"
)

var ErrInvalidScope = errors.New("invalid geographic scope")

// ParseLevel accepts the level names used in the registry and query strings.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelMunicipality, "m", "":
		return LevelMunicipality, nil
	case LevelProvince:
		return LevelProvince, nil
	case LevelRegion:
		return LevelRegion, nil
	case LevelBelgium:
		return LevelBelgium, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Scope is the current geographic selection. The finest non-empty field wins.
// The zero value selects all of Belgium.
type Scope struct {
	Region       RegionCode   `json:"region,omitempty"`
	Province     ProvinceCode `json:"province,omitempty"`
	Municipality string       `json:"municipality,omitempty"`
}

// ParseScope validates a selection. Region "1000" is the same as no region.
func ParseScope(region, province, municipality string) (Scope, error) {
	var s Scope
	region = strings.TrimSpace(region)
	if region != "" && RegionCode(region) != Belgium {
		if RegionName(RegionCode(region)) == "" {
			return Scope{}, fmt.Errorf("%w: region %q", ErrInvalidScope, region)
		}
		s.Region = RegionCode(region)
	}
	if province = strings.TrimSpace(province); province != "" {
		r, ok := RegionForProvince(ProvinceCode(province))
		if !ok {
			return Scope{}, fmt.Errorf("%w: province %q", ErrInvalidScope, province)
		}
		if s.Region != "" && s.Region != r {
			return Scope{}, fmt.Errorf("%w: province %q is not in region %q", ErrInvalidScope, province, s.Region)
		}
		s.Province = ProvinceCode(province)
		s.Region = r
	}
	if municipality = strings.TrimSpace(municipality); municipality != "" {
		code, ok := CodeOf(municipality)
		if !ok {
			return Scope{}, fmt.Errorf("%w: municipality %q", ErrInvalidScope, municipality)
		}
		s.Municipality = code
	}
	return s, nil
}

// ScopeFromQuery reads region, province and municipality query parameters.
func ScopeFromQuery(q url.Values) (Scope, error) {
	return ParseScope(q.Get("region"), q.Get("province"), q.Get("municipality"))
}

// Level reports how fine the selection is.
func (s Scope) Level() Level {
	switch {
	case s.Municipality != "":
		return LevelMunicipality
	case s.Province != "":
		return LevelProvince
	case s.Region != "" && s.Region != Belgium:
		return LevelRegion
	}
	return LevelBelgium
}

func (s Scope) IsZero() bool { return s.Level() == LevelBelgium }

// Query encodes the selection back into query parameters.
func (s Scope) Query() url.Values {
	v := url.Values{}
	if s.Region != "" && s.Region != Belgium {
		v.Set("region", string(s.Region))
	}
	if s.Province != "" {
		v.Set("province", string(s.Province))
	}
	if s.Municipality != "" {
		v.Set("municipality", s.Municipality)
	}
	return v
}

// Matches reports whether a row at the given level with the given geo code
// falls inside the selection. Rows coarser than the selection never match.
// Region rows carrying the Belgium sentinel are national totals and are left
// out so that region sums are not counted twice.
func (s Scope) Matches(rowLevel Level, code string) bool {
	code = strings.TrimSpace(code)
	switch rowLevel {
	case LevelBelgium:
		return s.IsZero()
	case LevelRegion:
		if RegionCode(code) == Belgium {
			return false
		}
		switch s.Level() {
		case LevelBelgium:
			return true
		case LevelRegion:
			return RegionCode(code) == s.Region
		}
		return false
	case LevelProvince:
		switch s.Level() {
		case LevelBelgium:
			return true
		case LevelRegion:
			r, ok := RegionForProvince(ProvinceCode(code))
			return ok && r == s.Region
		case LevelProvince:
			return ProvinceCode(code) == s.Province
		}
		return false
	default:
		// merged municipalities are classified by their post-2025 code
		code, _ = NormalizeNis(code)
		switch s.Level() {
		case LevelBelgium:
			return true
		case LevelRegion:
			return RegionForCode(code) == s.Region
		case LevelProvince:
			return ProvinceForCode(code) == s.Province
		case LevelMunicipality:
			m, _ := NormalizeNis(s.Municipality)
			return code == m
		}
	}
	return false
}

// Label names the selection for page titles and narratives.
func (s Scope) Label(dir *Directory) string {
	switch s.Level() {
	case LevelMunicipality:
		if dir != nil {
			if n := dir.Name(s.Municipality); n != "" {
				return n
			}
		}
		return s.Municipality
	case LevelProvince:
		return ProvinceName(s.Province)
	case LevelRegion:
		return RegionName(s.Region)
	}
	return RegionName(Belgium)
}
