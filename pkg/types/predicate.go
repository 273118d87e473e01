package types

// CompType is a comparison operator used by lookup, delete and modify
// predicates.
type CompType int

const (
	Equals CompType = iota
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	NotEqual
)

func (c CompType) String() string {
	switch c {
	case Equals:
		return "="

	case LessThan:
		return "<"

	case GreaterThan:
		return ">"

	case LessThanOrEqual:
		return "<="

	case GreaterThanOrEqual:
		return ">="

	case NotEqual:
		return "!="

	default:
		return "UNKNOWN"
	}
}

// compareOrdered maps a three-way comparison result onto a CompType.
func compareOrdered(cmp int, op CompType) bool {
	switch op {
	case Equals:
		return cmp == 0
	case LessThan:
		return cmp < 0
	case GreaterThan:
		return cmp > 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThanOrEqual:
		return cmp >= 0
	case NotEqual:
		return cmp != 0
	default:
		return false
	}
}
