package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

// ==== TUI (Bubble Tea) ====

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

type tuiModel struct {
	data      *appData
	list      list.Model
	sec       *dataset.Section
	points    []period.Point
	scope     geo.Scope
	regionIx  int // index into scopeRegions
	provIx    int // -1 = whole region
	breakdown bool
	shares    bool
	input     textinput.Model
	status    string
	focus     int // 0=list, 1=search
}

// scopeRegions is the cycle order of the region key; "" is all of Belgium.
var scopeRegions = []geo.RegionCode{"", geo.Flanders, geo.Wallonia, geo.Brussels}

func initialTUI(data *appData) tuiModel {
	secs := data.store.Registry().Sections()
	items := make([]list.Item, len(secs))
	for i, s := range secs {
		items[i] = sectionItem{s}
	}
	l := list.New(items, list.NewDefaultDelegate(), 32, 20)
	l.Title = "Secties"
	in := textinput.New()
	in.Placeholder = "gemeente... (/ om te zoeken)"
	return tuiModel{data: data, list: l, input: in, provIx: -1}
}

type sectionItem struct{ s *dataset.Section }

func (i sectionItem) FilterValue() string { return i.s.Title + " " + i.s.Key() }
func (i sectionItem) Title() string       { return i.s.Title }
func (i sectionItem) Description() string { return i.s.Key() }

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focus == 1 {
			switch msg.String() {
			case "esc":
				m.focus = 0
				m.input.Blur()
				return m, nil
			case "enter":
				m.focus = 0
				m.input.Blur()
				m.pickMunicipality(m.input.Value())
				return m.reload(), nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c", "Q":
			return m, tea.Quit
		case "/":
			m.focus = 1
			m.input.Focus()
			return m, nil
		case "enter":
			if it, ok := m.list.SelectedItem().(sectionItem); ok {
				m.sec = it.s
				return m.reload(), nil
			}
		case "R": // cycle region
			m.regionIx = (m.regionIx + 1) % len(scopeRegions)
			m.provIx = -1
			m.input.SetValue("")
			m.setScope()
			return m.reload(), nil
		case "V": // cycle province within the region
			provs := geo.ProvincesIn(scopeRegions[m.regionIx])
			if len(provs) > 0 {
				m.provIx++
				if m.provIx >= len(provs) {
					m.provIx = -1
				}
				m.input.SetValue("")
				m.setScope()
				return m.reload(), nil
			}
		case "B":
			m.breakdown = !m.breakdown
			return m.reload(), nil
		case "S":
			m.shares = !m.shares
			return m.reload(), nil
		case "E": // export CSV
			if m.sec != nil {
				m.status = exportStatus(m.exportFile("csv"))
			}
		case "X": // export XLSX
			if m.sec != nil {
				m.status = exportStatus(m.exportFile("xlsx"))
			}
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width/3, msg.Height-5)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func exportStatus(fn string, err error) string {
	if err != nil {
		return err.Error()
	}
	return "Geëxporteerd: " + fn
}

func (m *tuiModel) setScope() {
	s := geo.Scope{Region: scopeRegions[m.regionIx]}
	if provs := geo.ProvincesIn(s.Region); m.provIx >= 0 && m.provIx < len(provs) {
		s.Province = provs[m.provIx].Code
	}
	m.scope = s
}

// pickMunicipality narrows the scope to the best search hit; empty input
// goes back to the region/province selection.
func (m *tuiModel) pickMunicipality(q string) {
	m.setScope()
	if strings.TrimSpace(q) == "" {
		return
	}
	hits := m.data.dir.Search(q, 1)
	if len(hits) == 0 {
		m.status = "geen gemeente gevonden voor " + q
		return
	}
	code, _ := geo.NormalizeNis(hits[0].Code)
	m.scope = geo.Scope{
		Region:       geo.RegionForCode(code),
		Province:     geo.ProvinceForCode(code),
		Municipality: code,
	}
	m.input.SetValue(hits[0].Name)
}

func (m tuiModel) query() dataset.Query {
	return dataset.Query{Scope: m.scope, Breakdown: m.breakdown, Shares: m.shares}
}

func (m tuiModel) reload() tuiModel {
	if m.sec == nil {
		return m
	}
	m.points = dataset.Series(m.sec, m.data.store.Rows(m.sec), m.query())
	m.status = fmt.Sprintf("%d punten", len(m.points))
	return m
}

func (m tuiModel) View() string {
	left := lipgloss.NewStyle().Width(34).Render(m.list.View())
	var b strings.Builder
	if m.sec == nil {
		b.WriteString(mutedStyle.Render("Kies een sectie met [enter]") + "\n")
	} else {
		b.WriteString(titleStyle.Render(m.sec.Title) + "  " + mutedStyle.Render(m.sec.Key()) + "\n")
	}
	fmt.Fprintf(&b, "Gebied [R/V]: %s\n", m.scope.Label(m.data.dir))
	fmt.Fprintf(&b, "Gemeente [/]: %s\n", m.input.View())
	fmt.Fprintf(&b, "Opsplitsing [B]: %s  · Aandelen [S]: %s\n", onOff(m.breakdown), onOff(m.shares))
	if m.sec != nil {
		fmt.Fprintf(&b, "\n%s\n", renderHistogram(m.points, 40, 16))
	}
	b.WriteString(mutedStyle.Render("[enter] open  [E] CSV  [X] XLSX  [Q] stop") + "\n")
	b.WriteString(statusStyle.Render(m.status))
	right := lipgloss.NewStyle().Width(84).Render(b.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func onOff(b bool) string {
	if b {
		return "aan"
	}
	return "uit"
}

// renderHistogram draws the last maxRows periods of the series totals.
func renderHistogram(points []period.Point, maxBar, maxRows int) string {
	totals := period.Totals(points)
	if len(totals) == 0 {
		return "(geen gegevens)"
	}
	if len(totals) > maxRows {
		totals = totals[len(totals)-maxRows:]
	}
	var maxv float64
	for _, p := range totals {
		maxv = max(maxv, p.Value)
	}
	var b strings.Builder
	for _, p := range totals {
		n := 0
		if maxv > 0 && p.Value > 0 {
			n = int(p.Value / maxv * float64(maxBar))
		}
		fmt.Fprintf(&b, "%-10s | %-*s %s\n", p.Label, maxBar, strings.Repeat("█", n), formatNumber(p.Value))
	}
	return b.String()
}

func (m tuiModel) exportFile(format string) (string, error) {
	if m.sec == nil {
		return "", errors.New("geen sectie")
	}
	head, rows := seriesSheet(m.sec, m.points)
	fn := fmt.Sprintf("%s_export_%d.%s", safeFile(m.sec.Key()), time.Now().Unix(), format)
	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if format == "xlsx" {
		err = writeXLSX(f, sheetName(m.sec.ID), head, rows)
	} else {
		err = writeCSV(f, head, rows)
	}
	if err != nil {
		return "", err
	}
	return fn, nil
}
