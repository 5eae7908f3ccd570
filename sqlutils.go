package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
)

// ==== SQLite sections (read-only) ====

type Column struct{ Name, Type string }

// ColNames returns only the column names.
func ColNames(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

func openSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	// one connection so the session pragma holds for every query
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return db, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		tables = append(tables, n)
	}
	return tables, rows.Err()
}

// tableExists reports whether the table exists
func tableExists(ctx context.Context, db *sql.DB, name string) bool {
	var n int
	_ = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	return n > 0
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Column{}
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		res = append(res, Column{Name: name, Type: ctype})
	}
	return res, rows.Err()
}

// pickFirstColumnName returns the first candidate present in cols (case-insensitive)
func pickFirstColumnName(cols []Column, candidates ...string) string {
	for _, want := range candidates {
		for _, c := range cols {
			if strings.EqualFold(c.Name, want) {
				return c.Name
			}
		}
	}
	return ""
}

// sqliteTables serves registry sections declared with "table:".
type sqliteTables struct{ db *sql.DB }

func (t sqliteTables) ReadTable(ctx context.Context, table string) ([]dataset.Record, error) {
	if !tableExists(ctx, t.db, table) {
		return nil, fmt.Errorf("table %q not found", table)
	}
	cols, err := tableColumns(ctx, t.db, table)
	if err != nil {
		return nil, err
	}
	names := ColNames(cols)
	sel := make([]string, len(names))
	for i, n := range names {
		sel[i] = quoteIdent(n)
	}
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ","), quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dataset.Record
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(dataset.Record, len(names))
		for i, n := range names {
			if b, ok := vals[i].([]byte); ok {
				rec[n] = string(b)
				continue
			}
			rec[n] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// readMunicipalityTable loads code/name pairs from a table that has a
// NIS code column and a name column.
func readMunicipalityTable(ctx context.Context, db *sql.DB, table string) ([]geo.Municipality, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	codeCol := pickFirstColumnName(cols, "code", "nis", "nis_code", "refnis", "cd_refnis")
	nameCol := pickFirstColumnName(cols, "name", "naam", "LAU_NAME", "tx_descr_nl")
	if codeCol == "" || nameCol == "" {
		return nil, fmt.Errorf("table %q: no code/name columns", table)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s", quoteIdent(codeCol), quoteIdent(nameCol), quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []geo.Municipality
	for rows.Next() {
		var code any
		var name sql.NullString
		if err := rows.Scan(&code, &name); err != nil {
			return nil, err
		}
		if b, ok := code.([]byte); ok {
			code = string(b)
		}
		c, ok := geo.CodeOf(code)
		if !ok {
			continue
		}
		out = append(out, geo.Municipality{Code: c, Name: name.String})
	}
	return out, rows.Err()
}
