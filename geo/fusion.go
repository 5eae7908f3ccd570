package geo

import (
	"math"
	"strings"
)

// NisFusion is a 2025 municipal merger: the old codes now report under NewCode.
type NisFusion struct {
	OldCodes []string `json:"oldCodes"`
	NewCode  string   `json:"newCode"`
	NewName  string   `json:"newName"`
}

var fusions2025 = []NisFusion{
	{[]string{"11002", "11007"}, "11002", "Antwerpen"},
	{[]string{"23023", "23024", "23032"}, "23106", "Pajottegem"},
	{[]string{"37012", "37018"}, "37021", "Wingene"},
	{[]string{"37007", "37015"}, "37022", "Tielt"},
	{[]string{"44012", "44048"}, "44086", "Nazareth-De Pinte"},
	{[]string{"44034", "44073"}, "44087", "Lochristi"},
	{[]string{"46014", "44045"}, "46029", "Lokeren"},
	{[]string{"44040", "44043"}, "44088", "Merelbeke-Melle"},
	{[]string{"46003", "46013", "11056"}, "46030", "Beveren-Kruibeke-Zwijndrecht"},
	{[]string{"73006", "73032"}, "73110", "Bilzen-Hoeselt"},
	{[]string{"73009", "73083"}, "73111", "Tongeren-Borgloon"},
	{[]string{"71069", "71057"}, "71071", "Tessenderlo-Ham"},
	{[]string{"71022", "73040"}, "71072", "Hasselt"},
	{[]string{"82003", "82005"}, "82039", "Bastogne"},
}

var oldToNew = func() map[string]string {
	m := make(map[string]string)
	for _, f := range fusions2025 {
		for _, old := range f.OldCodes {
			m[old] = f.NewCode
		}
	}
	return m
}()

func Fusions() []NisFusion { return fusions2025 }

func padNis(code string) string {
	code = strings.TrimSpace(code)
	if n := len(code); n > 0 && n < 5 {
		code = strings.Repeat("0", 5-n) + code
	}
	return code
}

// NormalizeNis maps a NIS code to its post-2025 code. Codes not involved in a
// merger come back unchanged (padded to five digits).
func NormalizeNis(code string) (string, bool) {
	code = padNis(code)
	if code == "" {
		return "", false
	}
	if n, ok := oldToNew[code]; ok {
		return n, true
	}
	return code, true
}

func WasFused(code string) bool {
	_, ok := oldToNew[padNis(code)]
	return ok
}

// FusionInfo finds the merger a code took part in, as old or new code.
func FusionInfo(code string) (NisFusion, bool) {
	code = padNis(code)
	for _, f := range fusions2025 {
		if f.NewCode == code {
			return f, true
		}
		for _, old := range f.OldCodes {
			if old == code {
				return f, true
			}
		}
	}
	return NisFusion{}, false
}

// Constituents lists the old codes merged into newCode.
func Constituents(newCode string) []string {
	newCode = padNis(newCode)
	for _, f := range fusions2025 {
		if f.NewCode == newCode {
			return append([]string(nil), f.OldCodes...)
		}
	}
	return nil
}

type Reducer string

const (
	Sum Reducer = "sum"
	Avg Reducer = "avg"
	Max Reducer = "max"
	Min Reducer = "min"
)

// AggregateByNormalizedNis groups rows by their post-merger NIS code and
// reduces the values. Rows without a code or with a non-finite value are skipped.
func AggregateByNormalizedNis[T any](rows []T, code func(T) (string, bool), value func(T) (float64, bool), reduce Reducer) map[string]float64 {
	type acc struct {
		sum, min, max float64
		n             int
	}
	grouped := make(map[string]*acc)
	for _, r := range rows {
		c, ok := code(r)
		if !ok {
			continue
		}
		norm, ok := NormalizeNis(c)
		if !ok {
			continue
		}
		v, ok := value(r)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		a := grouped[norm]
		if a == nil {
			a = &acc{min: v, max: v}
			grouped[norm] = a
		}
		a.sum += v
		a.n++
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}

	out := make(map[string]float64, len(grouped))
	for c, a := range grouped {
		switch reduce {
		case Avg:
			out[c] = a.sum / float64(a.n)
		case Max:
			out[c] = a.max
		case Min:
			out[c] = a.min
		default:
			out[c] = a.sum
		}
	}
	return out
}
