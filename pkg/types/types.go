package types

import "fmt"

// TypeID identifies a SQL column type.
type TypeID uint32

const (
	IntID TypeID = iota
	BoolID
	CharID
)

// SqlType describes a column type together with the parameters that
// determine its on-disk width. Int and Bool carry no parameters; Char
// carries the declared maximum length.
type SqlType struct {
	ID  TypeID
	Len uint8 // maximum length, Char only
}

func IntType() SqlType {
	return SqlType{ID: IntID}
}

func BoolType() SqlType {
	return SqlType{ID: BoolID}
}

func CharType(maxLen uint8) SqlType {
	return SqlType{ID: CharID, Len: maxLen}
}

// Size returns the number of bytes a value of this type occupies on disk.
// Char values are stored at their declared maximum width behind a one byte
// effective-length marker so that shorter strings round-trip exactly.
func (t SqlType) Size() uint32 {
	switch t.ID {
	case IntID:
		return 4
	case BoolID:
		return 1
	case CharID:
		return 1 + uint32(t.Len)
	default:
		return 0
	}
}

func (t SqlType) String() string {
	switch t.ID {
	case IntID:
		return "INT"
	case BoolID:
		return "BOOL"
	case CharID:
		return fmt.Sprintf("CHAR(%d)", t.Len)
	default:
		return "UNKNOWN"
	}
}
