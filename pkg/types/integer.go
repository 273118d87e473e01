package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// IntValue represents a 32-bit signed integer column value.
type IntValue struct {
	Value int32
}

func NewIntValue(value int32) *IntValue {
	return &IntValue{Value: value}
}

func (v *IntValue) Serialize(w io.Writer) error {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, uint32(v.Value))
	_, err := w.Write(bytes)
	return err
}

func (v *IntValue) Compare(op CompType, other Value) (bool, error) {
	otherInt, ok := other.(*IntValue)
	if !ok {
		return false, fmt.Errorf("comparing INT with %s: %w", other.Type(), ErrInvalidType)
	}

	cmp := 0
	if v.Value < otherInt.Value {
		cmp = -1
	} else if v.Value > otherInt.Value {
		cmp = 1
	}
	return compareOrdered(cmp, op), nil
}

func (v *IntValue) Type() SqlType {
	return IntType()
}

func (v *IntValue) String() string {
	return strconv.FormatInt(int64(v.Value), 10)
}

func decodeInt(buf []byte) (Value, error) {
	return NewIntValue(int32(binary.BigEndian.Uint32(buf[:4]))), nil
}
