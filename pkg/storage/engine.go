package storage

import (
	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/types"
)

// RowID identifies an inserted row. The offset is only meaningful for
// the file generation it was issued under: Reorganize moves rows and
// bumps the generation, invalidating every previously issued id.
type RowID struct {
	Generation uint64
	Offset     uint64
}

// ColumnUpdate names one column to overwrite during Modify. The value
// must already be encoded at the column's fixed width.
type ColumnUpdate struct {
	ColumnIndex int
	Value       []byte
}

// Engine is the contract every table storage implementation satisfies.
// The engine assumes exclusive access has already been granted by the
// per-table lock (meta.LockRegistry); every operation is synchronous and
// runs to completion before returning. Scan results are copied eagerly
// into the returned cursor, so cursors stay valid after the lock is
// released.
//
// Constraint values are passed as raw encoded bytes at the constrained
// column's fixed width; for Char columns the encoding itself carries the
// effective length.
type Engine interface {
	// CreateTable materializes the table's persistent representation:
	// a structural header and an empty data region. It fails if the
	// file already exists or cannot be created.
	CreateTable() error

	// Table returns the owning table schema.
	Table() *meta.Table

	// FullScan returns a cursor over every live row, skipping
	// tombstoned rows.
	FullScan() (*Rows, error)

	// Lookup returns a cursor restricted to live rows whose value at
	// columnIndex satisfies comp against value.
	Lookup(columnIndex int, value []byte, comp types.CompType) (*Rows, error)

	// InsertRow appends one encoded row, enforcing primary key
	// uniqueness over live rows, and returns the new row's id.
	InsertRow(rowData []byte) (RowID, error)

	// Delete tombstones all live rows matching the predicate and
	// returns the count removed. Space is not reclaimed.
	Delete(columnIndex int, value []byte, comp types.CompType) (uint64, error)

	// Modify overwrites the named columns in place for every live row
	// matching the constraint and returns the count updated.
	Modify(constraintColumnIndex int, constraintValue []byte, comp types.CompType, values []ColumnUpdate) (uint64, error)

	// Reorganize compacts the file by physically removing tombstoned
	// rows. A failed reorganize leaves the original data intact.
	Reorganize() error

	// Reset truncates all table data, leaving only the empty header.
	Reset() error
}
