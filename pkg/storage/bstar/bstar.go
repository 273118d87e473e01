// Package bstar implements an index-backed storage engine satisfying the
// same contract as the flat-file engine. Rows live in the same heap file
// format; an in-memory B-tree over the primary key, rebuilt per engine
// instance, accelerates key lookups and duplicate detection. Tables
// without a primary key cannot use this engine.
package bstar

import (
	"fmt"

	"github.com/google/btree"

	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/storage/flatfile"
	"github.com/rnbguy/uosql-server/pkg/types"
)

const btreeDegree = 16

// Engine wraps the flat-file heap with a primary-key B-tree index.
type Engine struct {
	heap    *flatfile.Engine
	pkIndex int
	index   *btree.BTree // nil until first use, dropped on mutation through other paths
}

// New builds a bstar engine for the table. The table must declare a
// primary key; operations on a key-less table fail with
// storage.ErrMissingPrimaryKey.
func New(table *meta.Table, dir string) *Engine {
	pkIndex, err := table.PrimaryKeyIndex()
	if err != nil {
		pkIndex = -1
	}
	return &Engine{
		heap:    flatfile.New(table, dir),
		pkIndex: pkIndex,
	}
}

// Layout exposes the row layout derived from the table schema.
func (e *Engine) Layout() *storage.Layout {
	return e.heap.Layout()
}

func (e *Engine) Table() *meta.Table {
	return e.heap.Table()
}

func (e *Engine) CreateTable() error {
	if e.pkIndex < 0 {
		return fmt.Errorf("table %q: %w", e.Table().Name, storage.ErrMissingPrimaryKey)
	}
	return e.heap.CreateTable()
}

func (e *Engine) FullScan() (*storage.Rows, error) {
	return e.heap.FullScan()
}

// Lookup uses the key index for predicates on the primary key column and
// falls back to the heap scan for everything else. Index-served results
// come back in key order.
func (e *Engine) Lookup(columnIndex int, value []byte, comp types.CompType) (*storage.Rows, error) {
	if columnIndex != e.pkIndex {
		return e.heap.Lookup(columnIndex, value, comp)
	}
	if err := e.ensureIndex(); err != nil {
		return nil, err
	}

	key, err := e.decodeKey(value)
	if err != nil {
		return nil, err
	}

	layout := e.heap.Layout()
	matched := make([]byte, 0)
	collect := func(it btree.Item) bool {
		matched = append(matched, it.(*keyedRow).row...)
		return true
	}
	pivot := &keyedRow{key: key}

	switch comp {
	case types.Equals:
		if it := e.index.Get(pivot); it != nil {
			collect(it)
		}
	case types.LessThan:
		e.index.AscendLessThan(pivot, collect)
	case types.LessThanOrEqual:
		e.index.AscendLessThan(pivot, collect)
		if it := e.index.Get(pivot); it != nil {
			collect(it)
		}
	case types.GreaterThan:
		e.index.AscendGreaterOrEqual(pivot, func(it btree.Item) bool {
			if !it.(*keyedRow).less(pivot) && !pivot.less(it.(*keyedRow)) {
				return true // skip the pivot itself
			}
			return collect(it)
		})
	case types.GreaterThanOrEqual:
		e.index.AscendGreaterOrEqual(pivot, collect)
	case types.NotEqual:
		e.index.Ascend(func(it btree.Item) bool {
			if !it.(*keyedRow).less(pivot) && !pivot.less(it.(*keyedRow)) {
				return true
			}
			return collect(it)
		})
	default:
		return nil, fmt.Errorf("comparison %v: %w", comp, storage.ErrInvalidState)
	}

	return storage.NewRows(layout.Columns(), matched), nil
}

// InsertRow rejects duplicate keys via the index before touching the
// heap, then keeps the index current.
func (e *Engine) InsertRow(rowData []byte) (storage.RowID, error) {
	if e.pkIndex < 0 {
		return storage.RowID{}, fmt.Errorf("table %q: %w", e.Table().Name, storage.ErrMissingPrimaryKey)
	}
	if err := e.ensureIndex(); err != nil {
		return storage.RowID{}, err
	}

	layout := e.heap.Layout()
	if uint32(len(rowData)) != layout.RowSize() {
		return storage.RowID{}, fmt.Errorf("row of %d bytes, want %d: %w",
			len(rowData), layout.RowSize(), types.ErrWrongLength)
	}
	if layout.IsNull(rowData, e.pkIndex) {
		return storage.RowID{}, fmt.Errorf("table %q: NULL primary key: %w",
			e.Table().Name, storage.ErrPrimaryKeyNotAllowed)
	}

	key, err := layout.DecodeValue(rowData, e.pkIndex)
	if err != nil {
		return storage.RowID{}, err
	}
	if e.index.Has(&keyedRow{key: key}) {
		return storage.RowID{}, fmt.Errorf("table %q key %s: %w",
			e.Table().Name, key, storage.ErrPrimaryKeyValueExists)
	}

	rowID, err := e.heap.InsertRow(rowData)
	if err != nil {
		return storage.RowID{}, err
	}

	row := make([]byte, len(rowData))
	copy(row, rowData)
	row[0] = 1
	e.index.ReplaceOrInsert(&keyedRow{key: key, row: row})
	return rowID, nil
}

func (e *Engine) Delete(columnIndex int, value []byte, comp types.CompType) (uint64, error) {
	removed, err := e.heap.Delete(columnIndex, value, comp)
	e.index = nil
	return removed, err
}

func (e *Engine) Modify(constraintColumnIndex int, constraintValue []byte, comp types.CompType, values []storage.ColumnUpdate) (uint64, error) {
	updated, err := e.heap.Modify(constraintColumnIndex, constraintValue, comp, values)
	e.index = nil
	return updated, err
}

func (e *Engine) Reorganize() error {
	e.index = nil
	return e.heap.Reorganize()
}

func (e *Engine) Reset() error {
	e.index = nil
	return e.heap.Reset()
}

// keyedRow is a B-tree item holding one live row keyed by its primary
// key value.
type keyedRow struct {
	key types.Value
	row []byte
}

func (k *keyedRow) Less(than btree.Item) bool {
	return k.less(than.(*keyedRow))
}

func (k *keyedRow) less(other *keyedRow) bool {
	less, err := k.key.Compare(types.LessThan, other.key)
	if err != nil {
		return false
	}
	return less
}

// ensureIndex rebuilds the key index from a heap scan on first use.
func (e *Engine) ensureIndex() error {
	if e.pkIndex < 0 {
		return fmt.Errorf("table %q: %w", e.Table().Name, storage.ErrMissingPrimaryKey)
	}
	if e.index != nil {
		return nil
	}

	rows, err := e.heap.FullScan()
	if err != nil {
		return err
	}

	index := btree.New(btreeDegree)
	for {
		ok, err := rows.Advance()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		raw, err := rows.RawRow()
		if err != nil {
			return err
		}
		key, err := e.heap.Layout().DecodeValue(raw, e.pkIndex)
		if err != nil {
			return err
		}
		row := make([]byte, len(raw))
		copy(row, raw)
		index.ReplaceOrInsert(&keyedRow{key: key, row: row})
	}

	e.index = index
	return nil
}

func (e *Engine) decodeKey(value []byte) (types.Value, error) {
	colType := e.Table().Columns[e.pkIndex].Type
	if uint32(len(value)) != colType.Size() {
		return nil, fmt.Errorf("constraint value of %d bytes for %s column: %w",
			len(value), colType, types.ErrWrongLength)
	}
	return types.Decode(colType, value)
}
