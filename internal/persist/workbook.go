package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/value"
)

//go:embed workbook.sql
var workbookSQL string

const (
	// WorkbookExt is the extension of exported workbooks.
	WorkbookExt = ".db"

	// TablePrefix is prepended to a variable name to form its table name.
	TablePrefix = "var_"

	// ValueColumn holds the variable's number in every variable table.
	// Missing values are NULL.
	ValueColumn = "value"
)

// ExportWorkbook writes s to a SQLite file at path, replacing any existing
// file. Every variable becomes a table with one column per dimension plus
// ValueColumn and one row per cell; the variables, coordinates and
// attributes tables index them.
//
// The workbook is an export. Nothing reads it back as results.
func ExportWorkbook(ctx context.Context, path string, s *dataset.Store) error {
	if err := checkExt(path, WorkbookExt); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Code: ErrCodeExport, Path: path, Err: err}
	}
	db, err := openWorkbook(path)
	if err != nil {
		return &Error{Code: ErrCodeExport, Path: path, Err: err}
	}
	defer db.Close()

	if err := writeWorkbook(ctx, db, s); err != nil {
		return &Error{Code: ErrCodeExport, Path: path, Err: err}
	}
	return nil
}

// openWorkbook creates the SQLite file and applies the schema.
func openWorkbook(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(workbookSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return db, nil
}

func writeWorkbook(ctx context.Context, db *sql.DB, s *dataset.Store) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, name := range s.CoordinateNames() {
		c, _ := s.Coordinate(name)
		for i, v := range c.Values {
			raw, err := value.Marshal(v)
			if err != nil {
				return fmt.Errorf("coordinate %q: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO coordinates (name, position, value) VALUES (?, ?, ?)`,
				name, i, string(raw)); err != nil {
				return fmt.Errorf("coordinate %q: %w", name, err)
			}
		}
	}

	for i, a := range s.Attrs() {
		raw, err := value.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attributes (position, name, value) VALUES (?, ?, ?)`,
			i, a.Name, string(raw)); err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
	}

	for i, name := range s.VariableNames() {
		v, _ := s.Variable(name)
		dims, err := json.Marshal(v.Dims)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		table := TablePrefix + name
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO variables (position, name, table_name, dims, provenance) VALUES (?, ?, ?, ?, ?)`,
			i, name, table, string(dims), v.Provenance); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if err := writeVariable(ctx, tx, s, v, table); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// writeVariable creates the variable's table and inserts one row per cell
// in row-major order.
func writeVariable(ctx context.Context, tx *sql.Tx, s *dataset.Store, v dataset.Variable, table string) error {
	coords := make([]dataset.Coordinate, len(v.Dims))
	cols := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		if strings.EqualFold(d, ValueColumn) {
			return fmt.Errorf("dimension %q clashes with the value column", d)
		}
		coords[i], _ = s.Coordinate(d)
		cols[i] = quoteIdent(d)
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s, %s REAL)",
		quoteIdent(table), strings.Join(cols, ", "), quoteIdent(ValueColumn))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdent(table), strings.TrimSuffix(strings.Repeat("?, ", len(v.Dims)+1), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	idx := make([]int, len(coords))
	args := make([]any, len(coords)+1)
	for cell, x := range v.Data {
		rem := cell
		for i := len(coords) - 1; i >= 0; i-- {
			n := coords[i].Len()
			idx[i] = rem % n
			rem /= n
		}
		for i, c := range coords {
			args[i] = value.Native(c.Values[idx[i]])
		}
		args[len(coords)] = nil
		if !math.IsNaN(x) {
			args[len(coords)] = x
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
