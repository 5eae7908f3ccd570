package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/period"
)

// ==== CSV / XLSX ====

// seriesSheet lays a series out as rows: period, [breakdown,] value.
func seriesSheet(sec *dataset.Section, points []period.Point) (head []string, rows [][]any) {
	split := false
	for _, p := range points {
		if p.Breakdown != "" {
			split = true
			break
		}
	}
	label := sec.Label
	if label == "" {
		label = "value"
	}
	head = []string{"period"}
	if split {
		head = append(head, sec.Breakdown)
	}
	head = append(head, label)
	for _, p := range points {
		row := []any{p.Label}
		if split {
			row = append(row, p.Breakdown)
		}
		row = append(row, p.Value)
		rows = append(rows, row)
	}
	return head, rows
}

// recordSheet lays raw rows out with the columns sorted by name.
func recordSheet(records []dataset.Record) (head []string, rows [][]any) {
	head = recordColumns(records)
	for _, r := range records {
		row := make([]any, len(head))
		for i, c := range head {
			if f, ok := r.Number(c); ok {
				row[i] = f
			} else {
				row[i] = r.String(c)
			}
		}
		rows = append(rows, row)
	}
	return head, rows
}

func recordColumns(records []dataset.Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func cellString(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func writeCSV(w io.Writer, head []string, rows [][]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return err
	}
	line := make([]string, len(head))
	for _, r := range rows {
		for i := range line {
			line[i] = ""
			if i < len(r) {
				line[i] = cellString(r[i])
			}
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// newWorkbook builds an XLSX file with one sheet. Numbers stay numbers so
// spreadsheet tools can sum them.
func newWorkbook(sheet string, head []string, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		sheet = "Sheet1"
	}
	h := make([]any, len(head))
	for i, c := range head {
		h[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &h); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range rows {
		row := r
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeXLSX(w io.Writer, sheet string, head []string, rows [][]any) error {
	f, err := newWorkbook(sheet, head, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// sheetName trims a section title to Excel's 31 character limit.
func sheetName(s string) string {
	s = safeFile(s)
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}
