package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"vergunningen/data.json": {Data: []byte(`[{"m":11001,"y":2024,"q":1,"n":3},{"m":"21004","y":2024,"q":2,"n":1.5}]`)},
		"bad.json":               {Data: []byte(`{"not":"an array"}`)},
	}
	rows, err := LoadJSON(fsys, "vergunningen/data.json")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	n, ok := rows[0].Number("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	code, ok := rows[1].Code("m")
	assert.True(t, ok)
	assert.Equal(t, "21004", code)

	_, err = LoadJSON(fsys, "bad.json")
	assert.Error(t, err)
	_, err = LoadJSON(fsys, "missing.json")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	fsys := fstest.MapFS{
		"comma.csv":     {Data: []byte("\xef\xbb\xbfy,sector,n\n2023,41,10\n2024,F,\n")},
		"semicolon.csv": {Data: []byte("y;naam;n\n2023;Liège;2,5\n")},
	}
	rows, err := Load(fsys, "comma.csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Record{"y": 2023.0, "sector": 41.0, "n": 10.0}, rows[0])
	assert.Equal(t, "41", rows[0].String("sector"))
	assert.Nil(t, rows[1]["n"])

	rows, err = Load(fsys, "semicolon.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Liège", rows[0]["naam"])
	// decimal commas stay text and do not count as a metric
	_, ok := rows[0].Number("n")
	assert.False(t, ok)
}

func TestRecordAccessors(t *testing.T) {
	r := Record{"a": 2.0, "b": "12", "c": 2.5, "d": json.Number("7"), "e": nil}

	_, ok := r.Number("b")
	assert.False(t, ok)
	v, ok := r.Number("d")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	i, ok := r.Int("a")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = r.Int("c")
	assert.False(t, ok)

	assert.Equal(t, "2.5", r.String("c"))
	assert.Equal(t, "", r.String("e"))
	assert.True(t, Record{"naam": "Liège"}.Contains("liege"))
	assert.False(t, Record{"naam": "Gent"}.Contains("liege"))
}

func chunkedFS(chunks int, total int) fstest.MapFS {
	fsys := fstest.MapFS{}
	meta := ChunkMetadata{TotalRecords: total, RecordsPerChunk: 2}
	// list chunks in reverse to check index ordering
	for i := chunks - 1; i >= 0; i-- {
		name := fmt.Sprintf("chunk_%d.json", i)
		meta.Chunks = append(meta.Chunks, ChunkInfo{Index: i, Filename: name, Records: 2})
		fsys["investeringen/"+name] = &fstest.MapFile{
			Data: []byte(fmt.Sprintf(`[{"i":%d},{"i":%d}]`, 2*i, 2*i+1)),
		}
	}
	b, _ := json.Marshal(meta)
	fsys["investeringen/metadata.json"] = &fstest.MapFile{Data: b}
	return fsys
}

func TestLoadChunked(t *testing.T) {
	for _, conc := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", conc), func(t *testing.T) {
			var (
				mu    sync.Mutex
				calls []int
			)
			rows, err := LoadChunked(context.Background(), chunkedFS(5, 10), "investeringen/metadata.json", ChunkOptions{
				Concurrency: conc,
				Progress: func(done, total int) {
					mu.Lock()
					defer mu.Unlock()
					assert.Equal(t, 5, total)
					calls = append(calls, done)
				},
			})
			require.NoError(t, err)
			require.Len(t, rows, 10)
			for i, r := range rows {
				n, _ := r.Int("i")
				assert.Equal(t, i, n)
			}
			assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)
		})
	}
}

func TestLoadChunkedIncomplete(t *testing.T) {
	_, err := LoadChunked(context.Background(), chunkedFS(3, 7), "investeringen/metadata.json", ChunkOptions{})
	assert.ErrorIs(t, err, ErrIncomplete)

	fsys := chunkedFS(3, 6)
	delete(fsys, "investeringen/chunk_1.json")
	_, err = LoadChunked(context.Background(), fsys, "investeringen/metadata.json", ChunkOptions{})
	assert.ErrorContains(t, err, "chunk 1")

	empty := fstest.MapFS{"x/metadata.json": {Data: []byte(`{"total_records":0,"chunks":[]}`)}}
	_, err = LoadChunked(context.Background(), empty, "x/metadata.json", ChunkOptions{})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestLoadChunkedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadChunked(ctx, chunkedFS(3, 6), "investeringen/metadata.json", ChunkOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateStandardRows(t *testing.T) {
	ok := []Record{{"m": 11001.0, "y": 2024.0, "q": 1.0, "n": 3.0}}
	assert.NoError(t, ValidateStandardRows(ok))

	tests := map[string][]Record{
		"empty":          {},
		"text year":      {{"m": 11001.0, "y": "2024", "q": 1.0, "n": 3.0}},
		"no metric":      {{"m": 11001.0, "y": 2024.0, "q": 1.0}},
		"text metric":    {{"m": 11001.0, "y": 2024.0, "q": 1.0, "n": "3"}},
		"missing field":  {{"m": 11001.0, "y": 2024.0, "n": 3.0}},
		"second row bad": {ok[0], {"m": nil, "y": 2024.0, "q": 1.0, "n": 3.0}},
	}
	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateStandardRows(rows), ErrInvalidRow)
		})
	}
}
