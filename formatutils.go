package main

import (
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"embuild.be/statbord/period"
)

// ==== nl-BE number formatting ====

var nlBE = message.NewPrinter(language.MustParse("nl-BE"))

// numberScale divides chart values so axis labels stay short.
type numberScale struct {
	Divisor float64 `json:"divisor"`
	Suffix  string  `json:"suffix"`
}

// scaleFor picks k, mln or mrd from the largest absolute value.
func scaleFor(values []float64) numberScale {
	var maxAbs float64
	for _, v := range values {
		if a := math.Abs(v); a > maxAbs && !math.IsInf(a, 0) {
			maxAbs = a
		}
	}
	switch {
	case maxAbs >= 1e9:
		return numberScale{1e9, "mrd"}
	case maxAbs >= 1e6:
		return numberScale{1e6, "mln"}
	case maxAbs >= 1e4:
		return numberScale{1e3, "k"}
	}
	return numberScale{1, ""}
}

// formatMax5Digits rounds to five significant digits.
func formatMax5Digits(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nlBE.Sprint(number.Decimal(0))
	}
	intDigits := int(math.Floor(math.Log10(math.Abs(v)))) + 1
	frac := max(0, 5-intDigits)
	p := math.Pow(10, float64(frac))
	rounded := math.Round(v*p) / p
	return nlBE.Sprint(number.Decimal(rounded, number.MaxFractionDigits(frac)))
}

func formatScaled(v float64, sc numberScale) string {
	s := formatMax5Digits(v / sc.Divisor)
	if sc.Suffix != "" {
		return s + " " + sc.Suffix
	}
	return s
}

func formatScaledCurrency(v float64, sc numberScale) string {
	return "€ " + formatScaled(v, sc)
}

// scaledLabel turns "Uitgave (€)" into "Uitgave (mln €)".
func scaledLabel(base string, sc numberScale) string {
	if sc.Suffix == "" {
		return base
	}
	return strings.Replace(base, "(€)", "("+sc.Suffix+" €)", 1)
}

// formatNumber rounds to a whole number, for tooltips and tables.
func formatNumber(v float64) string { return period.FormatCount(v) }

func formatCurrency(v float64) string { return "€ " + formatNumber(v) }

// ==== utilidades ====

func quoteIdent(id string) string {
	// minimal: wrap with double quotes and escape existing quotes
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// remove extension
func stripExt(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext)
}

func safeFile(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, s)
	if s == "" {
		s = "export"
	}
	return s
}
