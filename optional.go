package stmtkey

import "strconv"

// OptionalInt is an int32 that may be unset. The zero value is unset, which means the driver default applies.
type OptionalInt struct {
	Int   int32
	Valid bool
}

// SomeInt returns a set OptionalInt holding n.
func SomeInt(n int32) OptionalInt {
	return OptionalInt{Int: n, Valid: true}
}

// Equal reports whether o and other are both unset or both set to the same value.
func (o OptionalInt) Equal(other OptionalInt) bool {
	if o.Valid != other.Valid {
		return false
	}
	return !o.Valid || o.Int == other.Int
}

// hash is 0 when unset. The constants valid for the optional fields of a Key are all non-zero so a set value never
// hashes like an unset one.
func (o OptionalInt) hash() uint64 {
	if !o.Valid {
		return 0
	}
	return uint64(uint32(o.Int))
}

func (o OptionalInt) String() string {
	if !o.Valid {
		return "null"
	}
	return strconv.FormatInt(int64(o.Int), 10)
}
