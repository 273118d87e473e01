package types

import "errors"

var (
	// ErrInterruptedRead is returned when a value cannot be decoded
	// because the byte buffer ends before the value does.
	ErrInterruptedRead = errors.New("interrupted read: buffer too short")

	// ErrWrongLength is returned when an encoded value does not match
	// the fixed width its column type requires.
	ErrWrongLength = errors.New("encoded value has wrong length")

	// ErrInvalidType is returned when a value is used in a context
	// expecting a different SQL type.
	ErrInvalidType = errors.New("invalid type")
)
