package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"embuild.be/statbord/geo"
)

// TableReader reads all rows of a database table.
type TableReader interface {
	ReadTable(ctx context.Context, table string) ([]Record, error)
}

type StoreOptions struct {
	// Tables serves sections declared with a table; nil rejects them.
	Tables TableReader
	Chunks ChunkOptions
	Logger *slog.Logger
}

// Store holds the rows of every registry section. It is filled once by Open
// and only read afterwards, so it is safe for concurrent use.
type Store struct {
	reg            *Registry
	rows           map[string][]Record
	municipalities map[string][]geo.Municipality
}

// Open loads every section of reg. Sections sharing a source are read once.
func Open(ctx context.Context, fsys fs.FS, reg *Registry, opts StoreOptions) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	st := &Store{reg: reg, rows: make(map[string][]Record), municipalities: make(map[string][]geo.Municipality)}
	bySource := make(map[string][]Record)

	for _, sec := range reg.Sections() {
		src := sec.source()
		rows, ok := bySource[src]
		if !ok {
			start := time.Now()
			var err error
			rows, err = loadSection(ctx, fsys, sec, opts)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", sec.Key(), err)
			}
			bySource[src] = rows
			log.Info("dataset loaded", "section", sec.Key(), "source", src, "rows", len(rows), "took", time.Since(start))
		}
		st.rows[sec.Key()] = rows

		if sec.Municipalities != "" {
			ms, err := loadMunicipalities(fsys, sec.Municipalities)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", sec.Key(), err)
			}
			st.municipalities[sec.Key()] = ms
		}
	}
	return st, nil
}

func loadMunicipalities(fsys fs.FS, name string) ([]geo.Municipality, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var ms []geo.Municipality
	if err := json.Unmarshal(b, &ms); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return ms, nil
}

func (s *Section) source() string {
	switch {
	case s.Table != "":
		return "table:" + s.Table
	case s.Chunks != "":
		return "chunks:" + s.Chunks
	}
	return "file:" + s.Data
}

func loadSection(ctx context.Context, fsys fs.FS, sec *Section, opts StoreOptions) ([]Record, error) {
	switch {
	case sec.Table != "":
		if opts.Tables == nil {
			return nil, fmt.Errorf("table %q: no database configured", sec.Table)
		}
		return opts.Tables.ReadTable(ctx, sec.Table)
	case sec.Chunks != "":
		return LoadChunked(ctx, fsys, sec.Chunks, opts.Chunks)
	}
	return Load(fsys, sec.Data)
}

// NewStore builds a store from rows already in memory, keyed by "slug/section".
func NewStore(reg *Registry, rows map[string][]Record) *Store {
	st := &Store{reg: reg, rows: make(map[string][]Record, len(rows)), municipalities: map[string][]geo.Municipality{}}
	for k, v := range rows {
		st.rows[k] = v
	}
	return st
}

func (st *Store) Registry() *Registry { return st.reg }

// Section returns a section and its rows.
func (st *Store) Section(slug, id string) (*Section, []Record, error) {
	sec, err := st.reg.Section(slug, id)
	if err != nil {
		return nil, nil, err
	}
	return sec, st.rows[sec.Key()], nil
}

// Rows returns the rows loaded for a section.
func (st *Store) Rows(sec *Section) []Record { return st.rows[sec.Key()] }

// Municipalities returns the municipality list declared for a section.
func (st *Store) Municipalities(sec *Section) ([]geo.Municipality, bool) {
	ms, ok := st.municipalities[sec.Key()]
	return ms, ok
}

// Codes lists the distinct geo codes present in rows, in first-seen order.
func Codes(sec *Section, rows []Record) []string {
	if sec.GeoField == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		c, ok := r.Code(sec.GeoField)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
