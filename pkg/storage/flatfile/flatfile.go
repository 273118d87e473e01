// Package flatfile implements the reference storage engine: an
// append/tombstone heap file with linear scans. It trades O(n) scan cost
// for insert, lookup and delete simplicity; index-backed engines offer
// the same contract with better asymptotics.
package flatfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/types"
)

// Data file header: magic, format version, generation counter, row size.
// The generation is bumped whenever row offsets are invalidated.
const (
	dataMagic   uint32 = 0x756F4454 // "uoDT"
	dataVersion uint8  = 1
	headerSize         = 4 + 1 + 8 + 4
)

const dataExtension = ".dat"

// Engine is the flat-file storage engine for one table. An instance is
// created per table access and assumes the caller already holds the
// table's lock; it opens and closes the data file per operation.
type Engine struct {
	table  *meta.Table
	dir    string
	layout *storage.Layout
}

// New builds a flat-file engine for a table whose files live in dir.
func New(table *meta.Table, dir string) *Engine {
	return &Engine{
		table:  table,
		dir:    dir,
		layout: storage.NewLayout(table.Columns),
	}
}

// Layout exposes the row layout derived from the table schema, for
// callers that encode rows before inserting them.
func (e *Engine) Layout() *storage.Layout {
	return e.layout
}

func (e *Engine) path() string {
	return filepath.Join(e.dir, e.table.Name+dataExtension)
}

// Table returns the owning table schema.
func (e *Engine) Table() *meta.Table {
	return e.table
}

// CreateTable writes the data file with an empty data region. It fails
// if the file already exists.
func (e *Engine) CreateTable() error {
	f, err := os.OpenFile(e.path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("creating table %q: %w", e.table.Name, err)
	}
	defer f.Close()

	if err := writeHeader(f, header{generation: 0, rowSize: e.layout.RowSize()}); err != nil {
		return fmt.Errorf("writing header for %q: %w", e.table.Name, err)
	}
	return f.Sync()
}

// FullScan returns a cursor over every live row. Rows are copied into
// the cursor eagerly, so the table lock may be released once FullScan
// returns.
func (e *Engine) FullScan() (*storage.Rows, error) {
	f, _, err := e.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := e.readAll(f)
	if err != nil {
		return nil, err
	}

	rowSize := int(e.layout.RowSize())
	live := make([]byte, 0, len(data))
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if e.layout.Live(row) {
			live = append(live, row...)
		}
	}
	return storage.NewRows(e.table.Columns, live), nil
}

// Lookup returns a cursor over live rows whose value at columnIndex
// satisfies comp against the encoded constraint value.
func (e *Engine) Lookup(columnIndex int, value []byte, comp types.CompType) (*storage.Rows, error) {
	constraint, err := e.decodeConstraint(columnIndex, value)
	if err != nil {
		return nil, err
	}

	f, _, err := e.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := e.readAll(f)
	if err != nil {
		return nil, err
	}

	rowSize := int(e.layout.RowSize())
	matched := make([]byte, 0)
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if !e.layout.Live(row) {
			continue
		}
		match, err := e.rowMatches(row, columnIndex, constraint, comp)
		if err != nil {
			return nil, err
		}
		if match {
			matched = append(matched, row...)
		}
	}
	return storage.NewRows(e.table.Columns, matched), nil
}

// InsertRow appends one encoded row. If the table declares a primary
// key, existing live rows are scanned first and a duplicate key value is
// rejected; the table is left unchanged by a rejected insert.
func (e *Engine) InsertRow(rowData []byte) (storage.RowID, error) {
	if uint32(len(rowData)) != e.layout.RowSize() {
		return storage.RowID{}, fmt.Errorf("row of %d bytes, table %q expects %d: %w",
			len(rowData), e.table.Name, e.layout.RowSize(), types.ErrWrongLength)
	}

	f, hdr, err := e.open()
	if err != nil {
		return storage.RowID{}, err
	}
	defer f.Close()

	if pkIndex, err := e.table.PrimaryKeyIndex(); err == nil {
		if err := e.checkPrimaryKey(f, pkIndex, rowData); err != nil {
			return storage.RowID{}, err
		}
	}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return storage.RowID{}, err
	}

	row := make([]byte, len(rowData))
	copy(row, rowData)
	row[0] = 1 // live marker

	if _, err := f.WriteAt(row, end); err != nil {
		return storage.RowID{}, fmt.Errorf("appending to %q: %w", e.table.Name, err)
	}
	if err := f.Sync(); err != nil {
		return storage.RowID{}, err
	}

	return storage.RowID{Generation: hdr.generation, Offset: uint64(end)}, nil
}

// Delete tombstones every live row matching the predicate and returns
// the count removed. Space is reclaimed later by Reorganize.
func (e *Engine) Delete(columnIndex int, value []byte, comp types.CompType) (uint64, error) {
	constraint, err := e.decodeConstraint(columnIndex, value)
	if err != nil {
		return 0, err
	}

	f, _, err := e.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	data, err := e.readAll(f)
	if err != nil {
		return 0, err
	}

	rowSize := int(e.layout.RowSize())
	var removed uint64
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if !e.layout.Live(row) {
			continue
		}
		match, err := e.rowMatches(row, columnIndex, constraint, comp)
		if err != nil {
			return removed, err
		}
		if !match {
			continue
		}
		if _, err := f.WriteAt([]byte{0}, int64(headerSize+off)); err != nil {
			return removed, fmt.Errorf("tombstoning row in %q: %w", e.table.Name, err)
		}
		removed++
	}
	return removed, f.Sync()
}

// Modify overwrites the named columns of every live row matching the
// constraint, in place, and returns the count updated. All updates are
// validated before the first row is touched. A target column that was
// NULL becomes non-NULL.
func (e *Engine) Modify(constraintColumnIndex int, constraintValue []byte, comp types.CompType, values []storage.ColumnUpdate) (uint64, error) {
	constraint, err := e.decodeConstraint(constraintColumnIndex, constraintValue)
	if err != nil {
		return 0, err
	}

	offsets := make([]uint32, len(values))
	for i, update := range values {
		off, err := e.layout.ValueOffset(update.ColumnIndex)
		if err != nil {
			return 0, err
		}
		width := e.table.Columns[update.ColumnIndex].Type.Size()
		if uint32(len(update.Value)) != width {
			return 0, fmt.Errorf("column %q update of %d bytes, want %d: %w",
				e.table.Columns[update.ColumnIndex].Name, len(update.Value), width,
				types.ErrWrongLength)
		}
		offsets[i] = off
	}

	f, _, err := e.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	data, err := e.readAll(f)
	if err != nil {
		return 0, err
	}

	rowSize := int(e.layout.RowSize())
	var updated uint64
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if !e.layout.Live(row) {
			continue
		}
		match, err := e.rowMatches(row, constraintColumnIndex, constraint, comp)
		if err != nil {
			return updated, err
		}
		if !match {
			continue
		}
		for i, update := range values {
			copy(row[offsets[i]:], update.Value)
			e.layout.ClearNull(row, update.ColumnIndex)
		}
		if _, err := f.WriteAt(row, int64(headerSize+off)); err != nil {
			return updated, fmt.Errorf("modifying row in %q: %w", e.table.Name, err)
		}
		updated++
	}
	return updated, f.Sync()
}

// Reorganize rewrites the live rows contiguously into a new file and
// atomically swaps it in, so a failure cannot corrupt the existing data.
// The file generation is bumped, invalidating previously issued row ids.
func (e *Engine) Reorganize() error {
	f, hdr, err := e.open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := e.readAll(f)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(e.dir, e.table.Name+".dat.tmp*")
	if err != nil {
		return fmt.Errorf("reorganizing %q: %w", e.table.Name, err)
	}
	defer os.Remove(tmp.Name())

	if err := writeHeader(tmp, header{generation: hdr.generation + 1, rowSize: e.layout.RowSize()}); err != nil {
		tmp.Close()
		return err
	}

	rowSize := int(e.layout.RowSize())
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if !e.layout.Live(row) {
			continue
		}
		if _, err := tmp.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("reorganizing %q: %w", e.table.Name, err)
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), e.path())
}

// Reset truncates all table data, leaving only the empty header. Row ids
// are invalidated.
func (e *Engine) Reset() error {
	f, hdr, err := e.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(headerSize); err != nil {
		return fmt.Errorf("resetting %q: %w", e.table.Name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := writeHeader(f, header{generation: hdr.generation + 1, rowSize: e.layout.RowSize()}); err != nil {
		return err
	}
	return f.Sync()
}

// Generation returns the current file generation. Row ids issued under
// an older generation are stale.
func (e *Engine) Generation() (uint64, error) {
	f, hdr, err := e.open()
	if err != nil {
		return 0, err
	}
	f.Close()
	return hdr.generation, nil
}

type header struct {
	generation uint64
	rowSize    uint32
}

func writeHeader(w io.Writer, h header) error {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:], dataMagic)
	buf[4] = dataVersion
	binary.BigEndian.PutUint64(buf[5:], h.generation)
	binary.BigEndian.PutUint32(buf[13:], h.rowSize)
	_, err := w.Write(buf)
	return err
}

// open opens the data file and validates its header against the schema
// this engine was built with.
func (e *Engine) open() (*os.File, header, error) {
	f, err := os.OpenFile(e.path(), os.O_RDWR, 0o640)
	if err != nil {
		return nil, header{}, fmt.Errorf("opening table %q: %w", e.table.Name, err)
	}

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, header{}, fmt.Errorf("reading header of %q: %w", e.table.Name, types.ErrInterruptedRead)
	}

	if binary.BigEndian.Uint32(buf[0:]) != dataMagic {
		f.Close()
		return nil, header{}, fmt.Errorf("table %q data file: %w", e.table.Name, meta.ErrWrongMagicNumber)
	}
	if buf[4] != dataVersion {
		f.Close()
		return nil, header{}, fmt.Errorf("table %q data file version %d unsupported", e.table.Name, buf[4])
	}

	hdr := header{
		generation: binary.BigEndian.Uint64(buf[5:]),
		rowSize:    binary.BigEndian.Uint32(buf[13:]),
	}
	if hdr.rowSize != e.layout.RowSize() {
		f.Close()
		return nil, header{}, fmt.Errorf("table %q stores rows of %d bytes, schema expects %d: %w",
			e.table.Name, hdr.rowSize, e.layout.RowSize(), types.ErrWrongLength)
	}
	return f, hdr, nil
}

// readAll reads the data region into memory and verifies it holds a
// whole number of rows.
func (e *Engine) readAll(f *os.File) ([]byte, error) {
	if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading table %q: %w", e.table.Name, err)
	}
	if len(data)%int(e.layout.RowSize()) != 0 {
		return nil, fmt.Errorf("table %q data region of %d bytes is not a whole number of rows: %w",
			e.table.Name, len(data), types.ErrInterruptedRead)
	}
	return data, nil
}

// decodeConstraint validates the column index and decodes the encoded
// constraint value against that column's type.
func (e *Engine) decodeConstraint(columnIndex int, value []byte) (types.Value, error) {
	if columnIndex < 0 || columnIndex >= len(e.table.Columns) {
		return nil, fmt.Errorf("column index %d of %d: %w",
			columnIndex, len(e.table.Columns), storage.ErrInvalidColumn)
	}
	colType := e.table.Columns[columnIndex].Type
	if uint32(len(value)) != colType.Size() {
		return nil, fmt.Errorf("constraint value of %d bytes for %s column: %w",
			len(value), colType, types.ErrWrongLength)
	}
	return types.Decode(colType, value)
}

// rowMatches evaluates the predicate for one live row. NULL never
// matches any comparison.
func (e *Engine) rowMatches(row []byte, columnIndex int, constraint types.Value, comp types.CompType) (bool, error) {
	value, err := e.layout.DecodeValue(row, columnIndex)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}
	return value.Compare(comp, constraint)
}

// checkPrimaryKey scans live rows for a duplicate of the new row's
// primary key value. A NULL primary key is rejected outright.
func (e *Engine) checkPrimaryKey(f *os.File, pkIndex int, rowData []byte) error {
	if e.layout.IsNull(rowData, pkIndex) {
		return fmt.Errorf("table %q: NULL primary key: %w", e.table.Name, storage.ErrPrimaryKeyNotAllowed)
	}

	newKey, err := e.layout.ValueBytes(rowData, pkIndex)
	if err != nil {
		return err
	}

	data, err := e.readAll(f)
	if err != nil {
		return err
	}

	// Encodings are fixed-width and zero-padded, so key equality is a
	// byte comparison.
	rowSize := int(e.layout.RowSize())
	for off := 0; off < len(data); off += rowSize {
		row := data[off : off+rowSize]
		if !e.layout.Live(row) {
			continue
		}
		existing, err := e.layout.ValueBytes(row, pkIndex)
		if err != nil {
			return err
		}
		if bytes.Equal(existing, newKey) {
			return fmt.Errorf("table %q: %w", e.table.Name, storage.ErrPrimaryKeyValueExists)
		}
	}
	return nil
}
