package types

import (
	"fmt"
	"io"
)

// Value is a single typed column value. Implementations encode themselves
// into the fixed-width layout their SqlType declares and compare against
// other values of the same type.
type Value interface {
	Serialize(w io.Writer) error

	Compare(op CompType, other Value) (bool, error)

	Type() SqlType

	String() string
}

// Decode reads one value of type t from the front of buf. The buffer may
// be longer than the value; exactly t.Size() bytes are consumed.
func Decode(t SqlType, buf []byte) (Value, error) {
	if uint32(len(buf)) < t.Size() {
		return nil, fmt.Errorf("decoding %s from %d bytes: %w", t, len(buf), ErrInterruptedRead)
	}

	switch t.ID {
	case IntID:
		return decodeInt(buf)
	case BoolID:
		return decodeBool(buf)
	case CharID:
		return decodeChar(t.Len, buf)
	default:
		return nil, fmt.Errorf("type id %d: %w", t.ID, ErrInvalidType)
	}
}

// Encode returns the fixed-width encoding of v. The result is always
// exactly v.Type().Size() bytes long.
func Encode(v Value) ([]byte, error) {
	var buf writerBuf
	if err := v.Serialize(&buf); err != nil {
		return nil, err
	}
	if uint32(len(buf)) != v.Type().Size() {
		return nil, fmt.Errorf("encoded %s to %d bytes, want %d: %w",
			v.Type(), len(buf), v.Type().Size(), ErrWrongLength)
	}
	return buf, nil
}

type writerBuf []byte

func (b *writerBuf) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
