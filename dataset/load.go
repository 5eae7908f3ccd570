package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidRow = errors.New("invalid row")
	ErrIncomplete = errors.New("incomplete chunked dataset")
)

// LoadJSON reads a JSON array of flat objects.
func LoadJSON(fsys fs.FS, name string) ([]Record, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var rows []Record
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rows, nil
}

// LoadCSV reads a CSV file with a header row. The separator is ';' when the
// header has no commas. Numeric cells become float64, empty cells nil.
func LoadCSV(fsys fs.FS, name string) ([]Record, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	first, _, _ := bytes.Cut(b, []byte("\n"))

	cr := csv.NewReader(bytes.NewReader(b))
	if !bytes.Contains(first, []byte(",")) && bytes.Contains(first, []byte(";")) {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", name, err)
	}
	for i := range head {
		head[i] = strings.TrimSpace(head[i])
	}
	var rows []Record
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		r := make(Record, len(head))
		for i, h := range head {
			if i >= len(cells) {
				break
			}
			r[h] = parseCell(cells[i])
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Load picks the reader from the file extension.
func Load(fsys fs.FS, name string) ([]Record, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return LoadCSV(fsys, name)
	default:
		return LoadJSON(fsys, name)
	}
}

// ChunkMetadata is the metadata.json written next to chunked datasets.
type ChunkMetadata struct {
	TotalRecords    int         `json:"total_records"`
	RecordsPerChunk int         `json:"records_per_chunk"`
	Chunks          []ChunkInfo `json:"chunks"`
}

type ChunkInfo struct {
	Index    int     `json:"index"`
	Filename string  `json:"filename"`
	Records  int     `json:"records"`
	SizeMB   float64 `json:"size_mb"`
}

type ChunkOptions struct {
	// Concurrency is the number of chunks read at once; below 1 means one at a time.
	Concurrency int
	// Progress is called after each chunk with the number of chunks done.
	Progress func(done, total int)
}

// LoadChunked reads a dataset split into numbered chunk files listed in a
// metadata file. Chunks may finish in any order; the result keeps chunk index
// order. Loading stops at the first error or when ctx is cancelled.
func LoadChunked(ctx context.Context, fsys fs.FS, metadataPath string, opts ChunkOptions) ([]Record, error) {
	b, err := fs.ReadFile(fsys, metadataPath)
	if err != nil {
		return nil, err
	}
	var meta ChunkMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", metadataPath, err)
	}
	if len(meta.Chunks) == 0 {
		return nil, fmt.Errorf("%s: %w: no chunks listed", metadataPath, ErrIncomplete)
	}
	chunks := append([]ChunkInfo(nil), meta.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	dir := path.Dir(metadataPath)
	parts := make([][]Record, len(chunks))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Concurrency))
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := LoadJSON(fsys, path.Join(dir, c.Filename))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.Index, err)
			}
			parts[i] = rows

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(n, len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for _, p := range parts {
		out = append(out, p...)
	}
	if meta.TotalRecords > 0 && meta.TotalRecords != len(out) {
		return nil, fmt.Errorf("%s: %w: %d records, metadata says %d", metadataPath, ErrIncomplete, len(out), meta.TotalRecords)
	}
	return out, nil
}

// ValidateStandardRows checks rows in the standard m/y/q layout: numeric
// municipality, year and quarter plus at least one numeric metric.
func ValidateStandardRows(rows []Record) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidRow)
	}
	for i, r := range rows {
		for _, f := range []string{"m", "y", "q"} {
			if _, ok := r.Number(f); !ok {
				return fmt.Errorf("%w: row %d: field %q must be a number, got %T", ErrInvalidRow, i, f, r[f])
			}
		}
		metrics := 0
		for k, v := range r {
			if k == "m" || k == "y" || k == "q" {
				continue
			}
			if _, ok := r.Number(k); !ok {
				return fmt.Errorf("%w: row %d: metric %q must be a number, got %T", ErrInvalidRow, i, k, v)
			}
			metrics++
		}
		if metrics == 0 {
			return fmt.Errorf("%w: row %d: no metric fields", ErrInvalidRow, i)
		}
	}
	return nil
}
