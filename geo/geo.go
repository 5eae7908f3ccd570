// Package geo classifies Belgian NIS codes into provinces and regions and
// filters rows by a geographic selection.
package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type (
	RegionCode   string
	ProvinceCode string
)

// Region codes. Belgium is not a region: it means "no geographic filter".
const (
	Belgium  RegionCode = "1000"
	Flanders RegionCode = "2000"
	Wallonia RegionCode = "3000"
	Brussels RegionCode = "4000"
)

const (
	Antwerpen      ProvinceCode = "10000"
	VlaamsBrabant  ProvinceCode = "20001"
	WaalsBrabant   ProvinceCode = "20002"
	BrusselsCap    ProvinceCode = "21000"
	WestVlaanderen ProvinceCode = "30000"
	OostVlaanderen ProvinceCode = "40000"
	Henegouwen     ProvinceCode = "50000"
	Luik           ProvinceCode = "60000"
	Limburg        ProvinceCode = "70000"
	Luxemburg      ProvinceCode = "80000"
	Namen          ProvinceCode = "90000"
)

type Region struct {
	Code RegionCode `json:"code"`
	Name string     `json:"name"`
}

type Province struct {
	Code       ProvinceCode `json:"code"`
	Name       string       `json:"name"`
	RegionCode RegionCode   `json:"regionCode"`
}

var regions = []Region{
	{Belgium, "België"},
	{Flanders, "Vlaanderen"},
	{Wallonia, "Wallonië"},
	{Brussels, "Brussel"},
}

var provinces = []Province{
	{Antwerpen, "Antwerpen", Flanders},
	{Limburg, "Limburg", Flanders},
	{OostVlaanderen, "Oost-Vlaanderen", Flanders},
	{VlaamsBrabant, "Vlaams-Brabant", Flanders},
	{WestVlaanderen, "West-Vlaanderen", Flanders},
	{WaalsBrabant, "Waals-Brabant", Wallonia},
	{Henegouwen, "Henegouwen", Wallonia},
	{Luik, "Luik", Wallonia},
	{Luxemburg, "Luxemburg", Wallonia},
	{Namen, "Namen", Wallonia},
	{BrusselsCap, "Brussel", Brussels},
}

// first digit of the NIS code -> province, checked after the Brussels prefix
var provinceByDigit = map[byte]ProvinceCode{
	'1': Antwerpen,
	'7': Limburg,
	'4': OostVlaanderen,
	'3': WestVlaanderen,
	'5': Henegouwen,
	'6': Luik,
	'8': Luxemburg,
	'9': Namen,
}

// Regions returns the region table, Belgium first.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// Provinces returns the province table.
func Provinces() []Province {
	out := make([]Province, len(provinces))
	copy(out, provinces)
	return out
}

// ProvincesIn lists the provinces of a region. Belgium lists all of them.
func ProvincesIn(r RegionCode) []Province {
	if r == Belgium || r == "" {
		return Provinces()
	}
	var out []Province
	for _, p := range provinces {
		if p.RegionCode == r {
			out = append(out, p)
		}
	}
	return out
}

func RegionName(r RegionCode) string {
	for _, reg := range regions {
		if reg.Code == r {
			return reg.Name
		}
	}
	return ""
}

func ProvinceName(p ProvinceCode) string {
	for _, prov := range provinces {
		if prov.Code == p {
			return prov.Name
		}
	}
	return ""
}

// ProvinceForMunicipality returns the province owning a municipality code.
// Unknown prefixes fall back to Antwerpen.
func ProvinceForMunicipality(code int) ProvinceCode {
	return ProvinceForCode(strconv.Itoa(code))
}

// ProvinceForCode is ProvinceForMunicipality for the string form of a code.
func ProvinceForCode(code string) ProvinceCode {
	p, _ := lookupProvince(code)
	return p
}

func lookupProvince(code string) (ProvinceCode, bool) {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "21") {
		return BrusselsCap, true
	}
	if code == "" {
		return Antwerpen, false
	}
	if p, ok := provinceByDigit[code[0]]; ok {
		return p, true
	}
	if len(code) >= 2 {
		switch code[:2] {
		case "23", "24":
			return VlaamsBrabant, true
		case "25":
			return WaalsBrabant, true
		}
	}
	return Antwerpen, false
}

// RegionForProvince looks a province up in the static table.
func RegionForProvince(p ProvinceCode) (RegionCode, bool) {
	for _, prov := range provinces {
		if prov.Code == p {
			return prov.RegionCode, true
		}
	}
	return "", false
}

// RegionForMunicipality composes ProvinceForMunicipality and RegionForProvince.
// When no region is found it returns Belgium, which is indistinguishable from
// "no filter"; use ClassifyMunicipality when the difference matters.
func RegionForMunicipality(code int) RegionCode {
	return RegionForCode(strconv.Itoa(code))
}

func RegionForCode(code string) RegionCode {
	if r, ok := RegionForProvince(ProvinceForCode(code)); ok {
		return r
	}
	return Belgium
}

// ClassifyMunicipality is the strict form of the resolver: ok is false when
// the code did not match any known prefix and the fallback province was used.
func ClassifyMunicipality(code string) (ProvinceCode, RegionCode, bool) {
	p, matched := lookupProvince(code)
	r, ok := RegionForProvince(p)
	return p, r, matched && ok
}

// CodeOf coerces a decoded value (JSON number, integer or numeric string) into
// the string form of a NIS code.
func CodeOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		if _, err := strconv.ParseUint(s, 10, 64); err != nil {
			return "", false
		}
		return s, true
	case json.Number:
		return CodeOf(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || x != math.Trunc(x) {
			return "", false
		}
		return strconv.FormatInt(int64(x), 10), true
	case float32:
		return CodeOf(float64(x))
	case int:
		if x < 0 {
			return "", false
		}
		return strconv.Itoa(x), true
	case int64:
		if x < 0 {
			return "", false
		}
		return strconv.FormatInt(x, 10), true
	case int32:
		return CodeOf(int64(x))
	}
	return "", false
}
