package meta

import "errors"

var (
	// ErrWrongMagicNumber is returned when a metadata or data file does
	// not start with the expected magic number.
	ErrWrongMagicNumber = errors.New("wrong magic number")

	// ErrLoadDatabase is returned when a database directory cannot be
	// read or contains unreadable table metadata.
	ErrLoadDatabase = errors.New("could not load database")

	ErrTableExists = errors.New("table already exists")
	ErrNoSuchTable = errors.New("no such table")

	ErrDuplicateColumn     = errors.New("duplicate column name")
	ErrMultiplePrimaryKeys = errors.New("table declares more than one primary key")
	ErrFoundNoPrimaryKey   = errors.New("table has no primary key column")
	ErrAddColumn           = errors.New("could not add column")
	ErrRemoveColumn        = errors.New("could not remove column")
)
