package storage

import "errors"

// Engine-level error taxonomy. Schema violations are always recoverable:
// the attempted mutation is rejected and the table is left unchanged.
var (
	ErrEngine = errors.New("storage engine error")

	ErrOutOfBounds   = errors.New("index out of bounds")
	ErrInvalidColumn = errors.New("invalid column index")
	ErrInvalidState  = errors.New("invalid cursor state")

	ErrMissingPrimaryKey     = errors.New("engine requires a primary key but the table has none")
	ErrPrimaryKeyValueExists = errors.New("primary key value already exists")
	ErrPrimaryKeyNotAllowed  = errors.New("value not allowed for primary key column")
	ErrNullNotAllowed        = errors.New("column does not allow null")

	ErrEndOfFile       = errors.New("end of file")
	ErrBeginningOfFile = errors.New("beginning of file")
)
