package storage

import (
	"fmt"

	"github.com/rnbguy/uosql-server/pkg/types"
)

// ResultSet is the value form of query output: ordered column descriptors
// plus the concatenated encoded rows. It is what crosses the wire; empty
// metadata and empty data are distinguishable states.
type ResultSet struct {
	Columns []types.Column
	Data    []byte
}

// Rows returns a cursor positioned before the first row.
func (rs ResultSet) Rows() *Rows {
	return NewRows(rs.Columns, rs.Data)
}

// Rows is a forward-only cursor over engine output. Scan results are
// copied into the cursor eagerly when it is produced, so the table lock
// is released before the cursor is consumed. The cursor is single-pass
// and not restartable; its column count and per-column types never change
// after construction.
type Rows struct {
	columns []types.Column
	layout  *Layout
	data    []byte
	pos     int // byte offset of the current row, -1 before the first Advance
}

// NewRows builds a cursor over encoded row data. The data must be a
// whole number of rows for the given columns.
func NewRows(columns []types.Column, data []byte) *Rows {
	return &Rows{
		columns: columns,
		layout:  NewLayout(columns),
		data:    data,
		pos:     -1,
	}
}

// Columns returns the ordered column descriptors.
func (r *Rows) Columns() []types.Column {
	return r.columns
}

// ColumnCount returns the number of columns per row.
func (r *Rows) ColumnCount() int {
	return len(r.columns)
}

// Advance moves the cursor to the next row. It returns false once the
// data is exhausted; the cursor position only moves forward.
func (r *Rows) Advance() (bool, error) {
	next := 0
	if r.pos >= 0 {
		next = r.pos + int(r.layout.RowSize())
	}
	if next >= len(r.data) {
		r.pos = len(r.data)
		return false, nil
	}
	if len(r.data)-next < int(r.layout.RowSize()) {
		return false, fmt.Errorf("trailing %d bytes are not a whole row: %w",
			len(r.data)-next, types.ErrInterruptedRead)
	}
	r.pos = next
	return true, nil
}

// Get decodes column i of the current row. NULL decodes to (nil, nil).
// Calling Get before the first Advance or after exhaustion is an error.
func (r *Rows) Get(i int) (types.Value, error) {
	row, err := r.current()
	if err != nil {
		return nil, err
	}
	return r.layout.DecodeValue(row, i)
}

// RawRow returns the current row's encoded bytes.
func (r *Rows) RawRow() ([]byte, error) {
	return r.current()
}

func (r *Rows) current() ([]byte, error) {
	if r.pos < 0 {
		return nil, fmt.Errorf("cursor not advanced: %w", ErrBeginningOfFile)
	}
	if r.pos >= len(r.data) {
		return nil, fmt.Errorf("cursor exhausted: %w", ErrEndOfFile)
	}
	return r.data[r.pos : r.pos+int(r.layout.RowSize())], nil
}

// ResultSet returns the value form of this cursor's content, regardless
// of how far the cursor has been consumed.
func (r *Rows) ResultSet() ResultSet {
	return ResultSet{Columns: r.columns, Data: r.data}
}
