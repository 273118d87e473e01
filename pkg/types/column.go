package types

// Column describes one column of a table schema. Column order within a
// table defines the on-disk field order; the schema is immutable once the
// table is created except through explicit add/remove column operations
// on the table metadata.
type Column struct {
	Name         string
	Type         SqlType
	IsPrimaryKey bool
	AllowNull    bool
	Description  string
}
