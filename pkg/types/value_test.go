package types

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"int zero", NewIntValue(0)},
		{"int positive", NewIntValue(42)},
		{"int negative", NewIntValue(-7)},
		{"int max", NewIntValue(2147483647)},
		{"int min", NewIntValue(-2147483648)},
		{"bool true", NewBoolValue(true)},
		{"bool false", NewBoolValue(false)},
		{"char empty", NewCharValue("", 8)},
		{"char short", NewCharValue("ab", 8)},
		{"char full width", NewCharValue("abcdefgh", 8)},
		{"char single byte", NewCharValue("x", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			if uint32(len(encoded)) != tt.value.Type().Size() {
				t.Errorf("encoded length = %d, want %d", len(encoded), tt.value.Type().Size())
			}

			decoded, err := Decode(tt.value.Type(), encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			equal, err := decoded.Compare(Equals, tt.value)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if !equal {
				t.Errorf("round trip mismatch: got %s, want %s", decoded, tt.value)
			}
		})
	}
}

func TestCharTruncation(t *testing.T) {
	v := NewCharValue("toolongvalue", 4)
	if v.Value != "tool" {
		t.Errorf("expected truncation to %q, got %q", "tool", v.Value)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	tests := []struct {
		name string
		typ  SqlType
		buf  []byte
	}{
		{"int from 2 bytes", IntType(), []byte{0, 1}},
		{"bool from empty", BoolType(), nil},
		{"char from partial", CharType(8), []byte{3, 'a', 'b'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.typ, tt.buf)
			if !errors.Is(err, ErrInterruptedRead) {
				t.Errorf("expected ErrInterruptedRead, got %v", err)
			}
		})
	}
}

func TestDecodeCorruptCharLength(t *testing.T) {
	// effective length byte claims more than the declared maximum
	buf := make([]byte, 1+4)
	buf[0] = 9
	_, err := Decode(CharType(4), buf)
	if !errors.Is(err, ErrWrongLength) {
		t.Errorf("expected ErrWrongLength, got %v", err)
	}
}

func TestCompareOperators(t *testing.T) {
	tests := []struct {
		name     string
		left     Value
		right    Value
		op       CompType
		expected bool
	}{
		{"int eq true", NewIntValue(5), NewIntValue(5), Equals, true},
		{"int eq false", NewIntValue(5), NewIntValue(6), Equals, false},
		{"int lt", NewIntValue(5), NewIntValue(6), LessThan, true},
		{"int gt", NewIntValue(7), NewIntValue(6), GreaterThan, true},
		{"int le equal", NewIntValue(6), NewIntValue(6), LessThanOrEqual, true},
		{"int ge smaller", NewIntValue(5), NewIntValue(6), GreaterThanOrEqual, false},
		{"int ne", NewIntValue(5), NewIntValue(6), NotEqual, true},
		{"char lt", NewCharValue("abc", 8), NewCharValue("abd", 8), LessThan, true},
		{"char eq ignores padding", NewCharValue("ab", 8), NewCharValue("ab", 8), Equals, true},
		{"bool false lt true", NewBoolValue(false), NewBoolValue(true), LessThan, true},
		{"bool ne", NewBoolValue(true), NewBoolValue(false), NotEqual, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.left.Compare(tt.op, tt.right)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("%s %s %s = %v, want %v", tt.left, tt.op, tt.right, got, tt.expected)
			}
		})
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	_, err := NewIntValue(1).Compare(Equals, NewBoolValue(true))
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}
