package types

import (
	"fmt"
	"io"
	"strings"
)

// CharValue represents a fixed-length text column value. On disk a Char
// occupies its declared maximum width plus one byte holding the effective
// length, so "ab" stored in a CHAR(8) round-trips as "ab", not "ab\0\0...".
type CharValue struct {
	Value  string
	MaxLen uint8
}

// NewCharValue creates a CharValue for a CHAR(maxLen) column. Values
// longer than maxLen bytes are truncated.
func NewCharValue(value string, maxLen uint8) *CharValue {
	if len(value) > int(maxLen) {
		value = value[:maxLen]
	}
	return &CharValue{Value: value, MaxLen: maxLen}
}

func (v *CharValue) Serialize(w io.Writer) error {
	buf := make([]byte, 1+int(v.MaxLen))
	buf[0] = byte(len(v.Value))
	copy(buf[1:], v.Value)
	_, err := w.Write(buf)
	return err
}

// Compare orders lexicographically by byte value.
func (v *CharValue) Compare(op CompType, other Value) (bool, error) {
	otherChar, ok := other.(*CharValue)
	if !ok {
		return false, fmt.Errorf("comparing %s with %s: %w", v.Type(), other.Type(), ErrInvalidType)
	}
	return compareOrdered(strings.Compare(v.Value, otherChar.Value), op), nil
}

func (v *CharValue) Type() SqlType {
	return CharType(v.MaxLen)
}

func (v *CharValue) String() string {
	return v.Value
}

func decodeChar(maxLen uint8, buf []byte) (Value, error) {
	effective := int(buf[0])
	if effective > int(maxLen) {
		return nil, fmt.Errorf("char effective length %d exceeds declared %d: %w",
			effective, maxLen, ErrWrongLength)
	}
	return &CharValue{Value: string(buf[1 : 1+effective]), MaxLen: maxLen}, nil
}
