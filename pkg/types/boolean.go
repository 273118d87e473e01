package types

import (
	"fmt"
	"io"
)

// BoolValue represents a boolean column value, stored as a single byte.
type BoolValue struct {
	Value bool
}

func NewBoolValue(value bool) *BoolValue {
	return &BoolValue{Value: value}
}

func (v *BoolValue) Serialize(w io.Writer) error {
	b := byte(0)
	if v.Value {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

// Compare treats false < true; ordered operators are permitted so that
// lookup predicates work uniformly across all types.
func (v *BoolValue) Compare(op CompType, other Value) (bool, error) {
	otherBool, ok := other.(*BoolValue)
	if !ok {
		return false, fmt.Errorf("comparing BOOL with %s: %w", other.Type(), ErrInvalidType)
	}

	cmp := 0
	if !v.Value && otherBool.Value {
		cmp = -1
	} else if v.Value && !otherBool.Value {
		cmp = 1
	}
	return compareOrdered(cmp, op), nil
}

func (v *BoolValue) Type() SqlType {
	return BoolType()
}

func (v *BoolValue) String() string {
	if v.Value {
		return "true"
	}
	return "false"
}

func decodeBool(buf []byte) (Value, error) {
	return NewBoolValue(buf[0] != 0), nil
}
