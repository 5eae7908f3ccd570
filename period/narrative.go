package period

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Narrative is the Dutch text shown above quarterly charts. Last4 is empty
// when fewer than four consecutive quarters end at the latest one.
type Narrative struct {
	Latest string `json:"latest"`
	Last4  string `json:"last4,omitempty"`
}

var nl = message.NewPrinter(language.Dutch)

// FormatCount formats a value rounded to a whole number with Dutch grouping.
func FormatCount(v float64) string {
	return nl.Sprintf("%d", int64(math.Round(v)))
}

func formatPercent(ratio float64) string {
	return nl.Sprintf("%d%%", int64(math.Round(ratio*100)))
}

// Quarterly builds the narrative for a quarterly series whose Sort values are
// QuarterIndex numbers. ok is false when the series has no finite points.
func Quarterly(subject, place string, series []Point) (Narrative, bool) {
	cleaned := make([]Point, 0, len(series))
	for _, p := range series {
		if finite(p.Sort) && finite(p.Value) {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return Narrative{}, false
	}
	sort.SliceStable(cleaned, func(i, j int) bool { return cleaned[i].Sort < cleaned[j].Sort })

	byIndex := make(map[int]Point, len(cleaned))
	var sum float64
	for _, p := range cleaned {
		byIndex[int(p.Sort)] = p
		sum += p.Value
	}
	latest := cleaned[len(cleaned)-1]
	li := int(latest.Sort)
	avgQuarter := sum / float64(len(cleaned))

	var cmp1 []string
	if prev, ok := byIndex[li-4]; ok {
		cmp1 = append(cmp1, compare(latest.Value, prev.Value, "hetzelfde kwartaal vorig jaar"))
	}
	cmp1 = append(cmp1, compare(latest.Value, avgQuarter, "het gemiddelde van alle beschikbare kwartalen"))

	var b strings.Builder
	b.WriteString("Het aantal " + subject + " in " + place + " bedroeg in het laatst beschikbare kwartaal (" +
		latest.Label + ") " + FormatCount(latest.Value) + ".")
	b.WriteString(" Dit is " + strings.Join(cmp1, " en ") + ".")
	n := Narrative{Latest: b.String()}

	sum4, ok := windowSum(byIndex, li-3, li)
	if !ok {
		return n, true
	}
	var cmp4 []string
	if prev4, ok := windowSum(byIndex, li-7, li-4); ok {
		cmp4 = append(cmp4, compare(sum4, prev4, "dezelfde periode een jaar eerder"))
	}
	if avg4, ok := rolling4Average(byIndex); ok {
		cmp4 = append(cmp4, compare(sum4, avg4, "het gemiddelde van alle 4-kwartaalperiodes"))
	}

	b.Reset()
	b.WriteString("Over de laatste 4 beschikbare kwartalen (tot en met " + latest.Label + ") gaat het om " +
		FormatCount(sum4) + " " + subject + ".")
	if len(cmp4) > 0 {
		b.WriteString(" Dit is " + strings.Join(cmp4, " en ") + ".")
	}
	n.Last4 = b.String()
	return n, true
}

func compare(current, baseline float64, what string) string {
	ratio, ok := Change(current, baseline)
	switch {
	case !ok:
		return "niet vergelijkbaar met " + what
	case ratio == 0:
		return "evenveel als " + what
	case ratio > 0:
		return formatPercent(ratio) + " meer dan " + what
	}
	return formatPercent(-ratio) + " minder dan " + what
}

// windowSum sums quarters from..to inclusive; all of them must be present.
func windowSum(byIndex map[int]Point, from, to int) (float64, bool) {
	var s float64
	for i := from; i <= to; i++ {
		p, ok := byIndex[i]
		if !ok {
			return 0, false
		}
		s += p.Value
	}
	return s, true
}

func rolling4Average(byIndex map[int]Point) (float64, bool) {
	var total float64
	var n int
	for i := range byIndex {
		if s, ok := windowSum(byIndex, i-3, i); ok {
			total += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}
