package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validateRegistry = `
analyses:
  - slug: bouw
    title: Bouw
    sections:
      - id: goed
        title: Goed
        data: bouw/goed.json
        geo_field: m
        year: y
        quarter: q
        metric: n
      - id: slecht
        title: Slecht
        data: bouw/slecht.json
        geo_field: m
        year: y
        quarter: q
        metric: n
      - id: verkopen
        title: Verkopen
        table: verkopen
        year: y
        metric: n
      - id: ontbreekt
        title: Ontbreekt
        table: ontbreekt
        year: y
`

func writeDataDir(t *testing.T, registry string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["analyses.yaml"] = registry
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestRunValidate(t *testing.T) {
	dir := writeDataDir(t, validateRegistry, map[string]string{
		"bouw/goed.json":   `[{"m":11001,"y":2024,"q":1,"n":3}]`,
		"bouw/slecht.json": `[{"m":11001,"y":2024,"q":1,"n":"drie"}]`,
	})
	cfg := config{DataDir: dir, Registry: "analyses.yaml", DBPath: createTestDB(t), ChunkConcurrency: 1}

	var out bytes.Buffer
	err := runValidate(context.Background(), cfg, &out)
	assert.EqualError(t, err, "2 of 4 sections failed")
	assert.Equal(t, "ok   bouw/goed (1 rows)\n"+
		"FAIL bouw/slecht: invalid row: row 0: metric \"n\" must be a number, got string\n"+
		"ok   bouw/verkopen (2 rows)\n"+
		"FAIL bouw/ontbreekt: table \"ontbreekt\" not in database (have: municipalities, verkopen)\n",
		out.String())
}

func TestRunValidateRegistryErrors(t *testing.T) {
	dir := writeDataDir(t, `
analyses:
  - slug: bouw
    sections:
      - id: weg
        data: ../elders.json
        year: y
`, map[string]string{})

	var out bytes.Buffer
	err := runValidate(context.Background(), config{DataDir: dir, Registry: "analyses.yaml"}, &out)
	assert.EqualError(t, err, "registry is invalid")
	assert.Contains(t, out.String(), `bouw/weg: data contains ".." (parent directory traversal)`)
	assert.Contains(t, out.String(), `bouw/weg: data should start with "bouw/"`)
}

func TestOpenData(t *testing.T) {
	dir := writeDataDir(t, `
analyses:
  - slug: bouw
    sections:
      - id: goed
        data: bouw/goed.csv
        geo_field: m
        year: y
        metric: n
        municipalities: bouw/gemeenten.json
`, map[string]string{
		"bouw/goed.csv":          "m,y,n\n11001,2024,3\n71002,2024,4\n",
		"bouw/gemeenten.json":    `[{"code":11001,"name":"AARTSELAAR"}]`,
		"municipalities.geojson": fixtureLayer,
	})

	data, err := openData(context.Background(), config{DataDir: dir, Registry: "analyses.yaml"}, discardLogger())
	require.NoError(t, err)
	defer data.Close()

	sec, rows, err := data.store.Section("bouw", "goed")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	ms, ok := data.store.Municipalities(sec)
	assert.True(t, ok)
	assert.Len(t, ms, 1)
	// no municipalities.json and no database: names come from the map layer
	assert.Equal(t, 3, data.dir.Len())
	assert.Equal(t, "Hasselt", data.dir.Name("71072"))
	assert.Equal(t, 3, data.layer.Len())
}
