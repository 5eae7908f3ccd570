package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
)

const fixtureRegistry = `
analyses:
  - slug: faillissementen
    title: Faillissementen
    summary: Faillissementen per kwartaal en per provincie.
    sections:
      - id: kwartaal
        title: Faillissementen per kwartaal
        label: Aantal
        subject: faillissementen
        data: faillissementen/kwartaal.json
        geo_field: m
        year: y
        quarter: q
        metric: n
        breakdown: sector
        filters: [sector]
        embed: true
      - id: provincies
        title: Uitgaven per provincie
        label: Uitgave (€)
        data: faillissementen/provincies.json
        geo_field: p
        geo_level: province
        year: y
        metric: n
        currency: true
`

const fixtureLayer = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"code":11001,"LAU_NAME":"Aartselaar"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
 {"type":"Feature","properties":{"code":71072,"LAU_NAME":"Hasselt"},
  "geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,3],[2,2]]]}},
 {"type":"Feature","properties":{"code":62063,"LAU_NAME":"Liège"},
  "geometry":{"type":"Polygon","coordinates":[[[4,0],[5,0],[5,1],[4,1],[4,0]]]}}
]}`

func fixtureRows() map[string][]dataset.Record {
	return map[string][]dataset.Record{
		"faillissementen/kwartaal": {
			{"m": 11001.0, "y": 2023.0, "q": 4.0, "n": 2.0, "sector": "F"},
			{"m": 71002.0, "y": 2024.0, "q": 1.0, "n": 3.0, "sector": "F"},
			{"m": 71022.0, "y": 2024.0, "q": 1.0, "n": 4.0, "sector": "G"},
			{"m": 62063.0, "y": 2024.0, "q": 1.0, "n": 5.0, "sector": "F"},
			{"m": 71072.0, "y": 2024.0, "q": 2.0, "n": 1.0, "sector": "G"},
		},
		"faillissementen/provincies": {
			{"p": 70000.0, "y": 2023.0, "n": 2e6},
			{"p": 10000.0, "y": 2023.0, "n": 3e6},
			{"p": 50000.0, "y": 2024.0, "n": 1.5e6},
		},
	}
}

func fixtureData(t *testing.T) *appData {
	t.Helper()
	reg, err := dataset.ParseRegistry(strings.NewReader(fixtureRegistry))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())
	layer, err := geo.ReadLayer(strings.NewReader(fixtureLayer))
	require.NoError(t, err)
	return &appData{
		store: dataset.NewStore(reg, fixtureRows()),
		dir: geo.NewDirectory([]geo.Municipality{
			{Code: "11001", Name: "Aartselaar"},
			{Code: "71002", Name: "As"},
			{Code: "71072", Name: "Hasselt"},
			{Code: "62063", Name: "Luik"},
			{Code: "21004", Name: "Brussel"},
		}),
		layer: layer,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
