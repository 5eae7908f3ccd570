package main

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embuild.be/statbord/geo"
	"embuild.be/statbord/period"
)

func press(m tuiModel, key string) tuiModel {
	var msg tea.KeyMsg
	if key == "enter" {
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUINavigation(t *testing.T) {
	m := initialTUI(fixtureData(t))
	assert.Contains(t, m.View(), "Kies een sectie")

	m = press(m, "enter")
	require.NotNil(t, m.sec)
	assert.Equal(t, "faillissementen/kwartaal", m.sec.Key())
	assert.Len(t, m.points, 3)

	m = press(m, "R")
	assert.Equal(t, geo.Scope{Region: geo.Flanders}, m.scope)
	assert.Len(t, m.points, 3)

	m = press(m, "V")
	assert.Equal(t, geo.Antwerpen, m.scope.Province)
	assert.Len(t, m.points, 1)

	m = press(m, "B")
	assert.True(t, m.breakdown)
	m = press(m, "S")
	assert.True(t, m.shares)

	m.pickMunicipality("hass")
	assert.Equal(t, "71072", m.scope.Municipality)
	assert.Equal(t, geo.Limburg, m.scope.Province)

	m.pickMunicipality("xyz")
	assert.Contains(t, m.status, "geen gemeente gevonden")
	assert.Empty(t, m.scope.Municipality)

	view := m.View()
	assert.Contains(t, view, "Faillissementen per kwartaal")
	assert.Contains(t, view, "Opsplitsing [B]: aan")
}

func TestTUIExport(t *testing.T) {
	t.Chdir(t.TempDir())
	m := press(initialTUI(fixtureData(t)), "enter")

	fn, err := m.exportFile("csv")
	require.NoError(t, err)
	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "period,Aantal\n2023-Q4,2\n"))

	fn, err = m.exportFile("xlsx")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fn, ".xlsx"))

	m.sec = nil
	_, err = m.exportFile("csv")
	assert.Error(t, err)
}

func TestRenderHistogram(t *testing.T) {
	assert.Equal(t, "(geen gegevens)", renderHistogram(nil, 10, 5))

	out := renderHistogram([]period.Point{
		{Sort: 1, Label: "2022", Value: 5},
		{Sort: 2, Label: "2023", Value: 10},
		{Sort: 3, Label: "2024", Value: 0},
	}, 10, 2)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2023"))
	assert.Equal(t, 10, strings.Count(lines[0], "█"))
	assert.Equal(t, 0, strings.Count(lines[1], "█"))
}
