package storage

import (
	"fmt"

	"github.com/rnbguy/uosql-server/pkg/types"
)

// Row markers. Every stored row starts with a marker byte; tombstoned
// rows keep their bytes on disk until the next reorganize.
const (
	rowTombstone byte = 0
	rowLive      byte = 1
)

// Layout maps a table's column list onto the fixed row byte layout:
// a presence/tombstone marker, a null bitmap holding one bit per nullable
// column, then each column's value at a fixed offset. The row byte length
// is constant and derived solely from the column list.
type Layout struct {
	columns   []types.Column
	offsets   []uint32 // byte offset of each column's value
	nullBits  []int    // bit position in the null bitmap, -1 if not nullable
	bitmapLen uint32
	rowSize   uint32
}

// NewLayout computes the layout for the given column list.
func NewLayout(columns []types.Column) *Layout {
	l := &Layout{
		columns:  columns,
		offsets:  make([]uint32, len(columns)),
		nullBits: make([]int, len(columns)),
	}

	nullable := 0
	for i, col := range columns {
		l.nullBits[i] = -1
		if col.AllowNull {
			l.nullBits[i] = nullable
			nullable++
		}
	}
	l.bitmapLen = uint32((nullable + 7) / 8)

	offset := 1 + l.bitmapLen // marker byte, then bitmap
	for i, col := range columns {
		l.offsets[i] = offset
		offset += col.Type.Size()
	}
	l.rowSize = offset

	return l
}

// RowSize returns the constant byte length of one encoded row.
func (l *Layout) RowSize() uint32 {
	return l.rowSize
}

// Columns returns the column list this layout was built from.
func (l *Layout) Columns() []types.Column {
	return l.columns
}

// EncodeRow encodes one logical row. A nil value encodes NULL and is only
// accepted for nullable columns; the value region of a NULL column is
// zero-filled so the row length stays constant.
func (l *Layout) EncodeRow(values []types.Value) ([]byte, error) {
	if len(values) != len(l.columns) {
		return nil, fmt.Errorf("row has %d values, schema has %d columns: %w",
			len(values), len(l.columns), types.ErrWrongLength)
	}

	row := make([]byte, l.rowSize)
	row[0] = rowLive

	for i, value := range values {
		col := l.columns[i]
		if value == nil {
			if !col.AllowNull {
				return nil, fmt.Errorf("column %q: %w", col.Name, ErrNullNotAllowed)
			}
			l.setNull(row, i)
			continue
		}
		if value.Type() != col.Type {
			return nil, fmt.Errorf("column %q expects %s, got %s: %w",
				col.Name, col.Type, value.Type(), types.ErrInvalidType)
		}

		encoded, err := types.Encode(value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		copy(row[l.offsets[i]:], encoded)
	}

	return row, nil
}

// DecodeValue decodes the value of column i from an encoded row.
// A NULL value decodes to (nil, nil).
func (l *Layout) DecodeValue(row []byte, i int) (types.Value, error) {
	if i < 0 || i >= len(l.columns) {
		return nil, fmt.Errorf("column index %d of %d: %w", i, len(l.columns), ErrOutOfBounds)
	}
	if uint32(len(row)) != l.rowSize {
		return nil, fmt.Errorf("row of %d bytes, layout expects %d: %w",
			len(row), l.rowSize, types.ErrWrongLength)
	}
	if l.IsNull(row, i) {
		return nil, nil
	}
	return types.Decode(l.columns[i].Type, row[l.offsets[i]:])
}

// ValueBytes returns the raw encoded byte region of column i.
func (l *Layout) ValueBytes(row []byte, i int) ([]byte, error) {
	if i < 0 || i >= len(l.columns) {
		return nil, fmt.Errorf("column index %d of %d: %w", i, len(l.columns), ErrOutOfBounds)
	}
	if uint32(len(row)) != l.rowSize {
		return nil, fmt.Errorf("row of %d bytes, layout expects %d: %w",
			len(row), l.rowSize, types.ErrWrongLength)
	}
	size := l.columns[i].Type.Size()
	return row[l.offsets[i] : l.offsets[i]+size], nil
}

// ValueOffset returns the byte offset of column i within a row.
func (l *Layout) ValueOffset(i int) (uint32, error) {
	if i < 0 || i >= len(l.columns) {
		return 0, fmt.Errorf("column index %d of %d: %w", i, len(l.columns), ErrOutOfBounds)
	}
	return l.offsets[i], nil
}

// Live reports whether the row's marker byte says the row is not
// tombstoned.
func (l *Layout) Live(row []byte) bool {
	return len(row) > 0 && row[0] == rowLive
}

// Tombstone marks the row as deleted in place.
func (l *Layout) Tombstone(row []byte) {
	row[0] = rowTombstone
}

// IsNull reports whether column i of the row is NULL.
func (l *Layout) IsNull(row []byte, i int) bool {
	bit := l.nullBits[i]
	if bit < 0 {
		return false
	}
	return row[1+bit/8]&(1<<(bit%8)) != 0
}

func (l *Layout) setNull(row []byte, i int) {
	bit := l.nullBits[i]
	row[1+bit/8] |= 1 << (bit % 8)
}

// ClearNull marks column i of the row as non-NULL. A no-op for columns
// that are not nullable, which carry no bitmap bit.
func (l *Layout) ClearNull(row []byte, i int) {
	bit := l.nullBits[i]
	if bit < 0 {
		return
	}
	row[1+bit/8] &^= 1 << (bit % 8)
}
