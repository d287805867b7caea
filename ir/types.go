package ir

import "fmt"

// Type is the type of an SSA value.  Only integer types are supported.
type Type uint8

// Enumeration of value types
const (
	Invalid Type = iota
	I8
	I16
	I32
	I64
)

// Bits returns the width of the type in bits
func (t Type) Bits() int {
	switch t {
	case I8:
		return 8
	case I16:
		return 16
	case I32:
		return 32
	case I64:
		return 64
	}

	return 0
}

// Bytes returns the width of the type in bytes
func (t Type) Bytes() int {
	return t.Bits() / 8
}

// IsInt indicates whether the type is a valid integer type
func (t Type) IsInt() bool {
	return t >= I8 && t <= I64
}

// Normalize sign-extends imm from the width of t so that every immediate
// stored in the IR has a single canonical representation.
func (t Type) Normalize(imm int64) int64 {
	switch t {
	case I8:
		return int64(int8(imm))
	case I16:
		return int64(int16(imm))
	case I32:
		return int64(int32(imm))
	}

	return imm
}

func (t Type) String() string {
	if t.IsInt() {
		return fmt.Sprintf("i%d", t.Bits())
	}

	return "invalid"
}
