package meta

import (
	"fmt"

	"github.com/rnbguy/uosql-server/pkg/types"
)

// EngineID selects the storage engine implementation backing a table.
type EngineID uint8

const (
	FlatFile EngineID = iota + 1
	InvertedIndex
	BStar
)

func (e EngineID) String() string {
	switch e {
	case FlatFile:
		return "flatfile"
	case InvertedIndex:
		return "inverted-index"
	case BStar:
		return "bstar"
	default:
		return "unknown"
	}
}

// Table holds the schema of one table: its name, its ordered column list
// (order defines the on-disk field order) and the engine that stores its
// rows. Tables are loaded from their metadata file when a database is
// opened and held for the lifetime of the engine handle.
type Table struct {
	Name    string
	Columns []types.Column
	Engine  EngineID
}

// NewTable validates the column list and builds a Table. At most one
// column may be marked as primary key and column names must be unique.
func NewTable(name string, columns []types.Column, engine EngineID) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q needs at least one column", name)
	}

	seen := make(map[string]bool, len(columns))
	pkCount := 0
	for _, col := range columns {
		if seen[col.Name] {
			return nil, fmt.Errorf("table %q column %q: %w", name, col.Name, ErrDuplicateColumn)
		}
		seen[col.Name] = true
		if col.IsPrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return nil, fmt.Errorf("table %q: %w", name, ErrMultiplePrimaryKeys)
	}

	cols := make([]types.Column, len(columns))
	copy(cols, columns)

	return &Table{Name: name, Columns: cols, Engine: engine}, nil
}

// PrimaryKeyIndex returns the index of the primary key column.
// The absence of a primary key is a distinct recorded state, reported
// as ErrFoundNoPrimaryKey rather than silently tolerated.
func (t *Table) PrimaryKeyIndex() (int, error) {
	for i, col := range t.Columns {
		if col.IsPrimaryKey {
			return i, nil
		}
	}
	return -1, fmt.Errorf("table %q: %w", t.Name, ErrFoundNoPrimaryKey)
}

// HasPrimaryKey reports whether any column is marked as primary key.
func (t *Table) HasPrimaryKey() bool {
	_, err := t.PrimaryKeyIndex()
	return err == nil
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, col := range t.Columns {
		if col.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("table %q has no column %q", t.Name, name)
}

// AddColumn appends a column to the schema. New columns may not be
// primary keys; the row codec only tolerates appended columns for rows
// written against older schema versions when they are nullable.
func (t *Table) AddColumn(col types.Column) error {
	if col.IsPrimaryKey {
		return fmt.Errorf("column %q would add a second primary key: %w", col.Name, ErrAddColumn)
	}
	if _, err := t.ColumnIndex(col.Name); err == nil {
		return fmt.Errorf("column %q: %w", col.Name, ErrAddColumn)
	}
	if !col.AllowNull {
		return fmt.Errorf("appended column %q must allow null: %w", col.Name, ErrAddColumn)
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// RemoveColumn removes the named column from the schema. The primary key
// column cannot be removed.
func (t *Table) RemoveColumn(name string) error {
	i, err := t.ColumnIndex(name)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, ErrRemoveColumn)
	}
	if t.Columns[i].IsPrimaryKey {
		return fmt.Errorf("column %q is the primary key: %w", name, ErrRemoveColumn)
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	return nil
}
