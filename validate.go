package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"embuild.be/statbord/dataset"
)

// standardLayout reports whether a section reads rows in the m/y/q layout
// shared by most quarterly datasets.
func standardLayout(sec *dataset.Section) bool {
	return sec.GeoField == "m" && sec.Year == "y" && sec.Quarter == "q"
}

// runValidate checks the registry paths, then loads every section and checks
// the m/y/q rows. All problems are reported before failing.
func runValidate(ctx context.Context, cfg config, out io.Writer) error {
	fsys := os.DirFS(cfg.DataDir)
	reg, err := dataset.LoadRegistry(fsys, cfg.Registry)
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		fmt.Fprintf(out, "registry: %v\n", err)
		return errors.New("registry is invalid")
	}

	var (
		tables dataset.TableReader
		have   []string
	)
	if cfg.DBPath != "" {
		db, err := openSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		tables = sqliteTables{db: db}
		if have, err = listTables(ctx, db); err != nil {
			return err
		}
	}

	failed := 0
	for _, sec := range reg.Sections() {
		if sec.Table != "" && tables != nil && !slices.Contains(have, sec.Table) {
			failed++
			fmt.Fprintf(out, "FAIL %s: table %q not in database (have: %s)\n", sec.Key(), sec.Table, strings.Join(have, ", "))
			continue
		}
		st, err := dataset.Open(ctx, fsys, &dataset.Registry{Analyses: []dataset.Analysis{{
			Slug:     sec.Slug,
			Sections: []dataset.Section{*sec},
		}}}, dataset.StoreOptions{
			Tables: tables,
			Chunks: dataset.ChunkOptions{Concurrency: cfg.ChunkConcurrency},
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", sec.Key(), err)
			continue
		}
		rows := st.Rows(sec)
		if standardLayout(sec) {
			if err := dataset.ValidateStandardRows(rows); err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", sec.Key(), err)
				continue
			}
		}
		fmt.Fprintf(out, "ok   %s (%d rows)\n", sec.Key(), len(rows))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sections failed", failed, len(reg.Sections()))
	}
	return nil
}
