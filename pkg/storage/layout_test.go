package storage

import (
	"errors"
	"testing"

	"github.com/rnbguy/uosql-server/pkg/types"
)

func testColumns() []types.Column {
	return []types.Column{
		{Name: "id", Type: types.IntType(), IsPrimaryKey: true},
		{Name: "name", Type: types.CharType(8)},
		{Name: "active", Type: types.BoolType(), AllowNull: true},
		{Name: "score", Type: types.IntType(), AllowNull: true},
	}
}

func testRow(t *testing.T, l *Layout, id int32, name string, active types.Value, score types.Value) []byte {
	t.Helper()
	row, err := l.EncodeRow([]types.Value{
		types.NewIntValue(id),
		types.NewCharValue(name, 8),
		active,
		score,
	})
	if err != nil {
		t.Fatalf("EncodeRow failed: %v", err)
	}
	return row
}

func TestLayoutRowSize(t *testing.T) {
	l := NewLayout(testColumns())

	// marker + 1 bitmap byte (2 nullable) + 4 + 9 + 1 + 4
	want := uint32(1 + 1 + 4 + 9 + 1 + 4)
	if l.RowSize() != want {
		t.Errorf("RowSize = %d, want %d", l.RowSize(), want)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 7, "elena", types.NewBoolValue(true), types.NewIntValue(99))

	if !l.Live(row) {
		t.Fatal("freshly encoded row must be live")
	}

	id, err := l.DecodeValue(row, 0)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if id.String() != "7" {
		t.Errorf("id = %s, want 7", id)
	}

	name, err := l.DecodeValue(row, 1)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if name.String() != "elena" {
		t.Errorf("name = %s, want elena", name)
	}
}

func TestLayoutNulls(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 1, "a", nil, types.NewIntValue(3))

	if !l.IsNull(row, 2) {
		t.Error("column 2 should be NULL")
	}
	if l.IsNull(row, 3) {
		t.Error("column 3 should not be NULL")
	}

	v, err := l.DecodeValue(row, 2)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if v != nil {
		t.Errorf("NULL decoded to %v", v)
	}
}

func TestLayoutNullRejected(t *testing.T) {
	l := NewLayout(testColumns())
	_, err := l.EncodeRow([]types.Value{
		types.NewIntValue(1),
		nil, // name does not allow null
		nil,
		nil,
	})
	if !errors.Is(err, ErrNullNotAllowed) {
		t.Errorf("expected ErrNullNotAllowed, got %v", err)
	}
}

func TestLayoutTypeMismatch(t *testing.T) {
	l := NewLayout(testColumns())
	_, err := l.EncodeRow([]types.Value{
		types.NewBoolValue(true),
		types.NewCharValue("x", 8),
		nil,
		nil,
	})
	if !errors.Is(err, types.ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestLayoutClearNull(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 1, "a", nil, types.NewIntValue(3))

	encoded, err := types.Encode(types.NewBoolValue(true))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	off, err := l.ValueOffset(2)
	if err != nil {
		t.Fatalf("ValueOffset failed: %v", err)
	}
	copy(row[off:], encoded)
	l.ClearNull(row, 2)

	if l.IsNull(row, 2) {
		t.Fatal("column 2 still NULL after ClearNull")
	}
	v, err := l.DecodeValue(row, 2)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if v == nil || !v.(*types.BoolValue).Value {
		t.Errorf("column 2 = %v, want true", v)
	}

	// clearing a column without a bitmap bit is a no-op
	l.ClearNull(row, 0)
	if l.IsNull(row, 3) {
		t.Error("column 3 NULL flag disturbed")
	}
}

func TestLayoutColumnOutOfBounds(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 1, "a", nil, nil)

	if _, err := l.DecodeValue(row, 9); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("DecodeValue: expected ErrOutOfBounds, got %v", err)
	}
	if _, err := l.ValueBytes(row, -1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ValueBytes: expected ErrOutOfBounds, got %v", err)
	}
	if _, err := l.ValueOffset(9); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ValueOffset: expected ErrOutOfBounds, got %v", err)
	}
}

func TestLayoutWrongRowLength(t *testing.T) {
	l := NewLayout(testColumns())
	_, err := l.DecodeValue(make([]byte, 3), 0)
	if !errors.Is(err, types.ErrWrongLength) {
		t.Errorf("expected ErrWrongLength, got %v", err)
	}
}

func TestLayoutTombstone(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 1, "a", nil, nil)

	l.Tombstone(row)
	if l.Live(row) {
		t.Error("tombstoned row reported live")
	}
}

func TestRowsCursor(t *testing.T) {
	l := NewLayout(testColumns())
	var data []byte
	for i := int32(0); i < 3; i++ {
		data = append(data, testRow(t, l, i, "row", types.NewBoolValue(true), nil)...)
	}

	rows := NewRows(testColumns(), data)
	if rows.ColumnCount() != 4 {
		t.Fatalf("ColumnCount = %d, want 4", rows.ColumnCount())
	}

	// access before the first Advance is an invalid state
	if _, err := rows.Get(0); !errors.Is(err, ErrBeginningOfFile) {
		t.Errorf("expected ErrBeginningOfFile, got %v", err)
	}

	count := int32(0)
	for {
		ok, err := rows.Advance()
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if !ok {
			break
		}
		id, err := rows.Get(0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if id.(*types.IntValue).Value != count {
			t.Errorf("row %d id = %s", count, id)
		}
		count++
	}
	if count != 3 {
		t.Errorf("cursor yielded %d rows, want 3", count)
	}

	// cursor is forward-only and exhausted
	if _, err := rows.Get(0); !errors.Is(err, ErrEndOfFile) {
		t.Errorf("expected ErrEndOfFile, got %v", err)
	}
	if ok, _ := rows.Advance(); ok {
		t.Error("Advance succeeded after exhaustion")
	}
}

func TestRowsEmptyStates(t *testing.T) {
	// empty data with metadata is distinguishable from empty metadata
	withMeta := NewRows(testColumns(), nil)
	if withMeta.ColumnCount() != 4 {
		t.Errorf("ColumnCount = %d, want 4", withMeta.ColumnCount())
	}
	if ok, _ := withMeta.Advance(); ok {
		t.Error("empty data yielded a row")
	}

	empty := NewRows(nil, nil)
	if empty.ColumnCount() != 0 {
		t.Errorf("ColumnCount = %d, want 0", empty.ColumnCount())
	}
}

func TestRowsTruncatedData(t *testing.T) {
	l := NewLayout(testColumns())
	row := testRow(t, l, 1, "a", nil, nil)

	rows := NewRows(testColumns(), row[:len(row)-2])
	_, err := rows.Advance()
	if !errors.Is(err, types.ErrInterruptedRead) {
		t.Errorf("expected ErrInterruptedRead, got %v", err)
	}
}
