package ir

import "strings"

// CallConv is a calling convention tag attached to a signature
type CallConv uint8

// Enumeration of calling conventions
const (
	SystemV CallConv = iota
	Fast
)

func (cc CallConv) String() string {
	switch cc {
	case SystemV:
		return "system_v"
	case Fast:
		return "fast"
	}

	return "unknown"
}

// AbiParam is a single parameter or return value of a signature
type AbiParam struct {
	Value Type
}

// NewAbiParam creates a new ABI parameter of the given type
func NewAbiParam(t Type) AbiParam {
	return AbiParam{Value: t}
}

// Signature is the ordered parameter and return types of a function.  It is
// shared between a declaration and every call site that references it.
type Signature struct {
	Params   []AbiParam
	Returns  []AbiParam
	CallConv CallConv
}

// NewSignature creates an empty signature with the given calling convention
func NewSignature(cc CallConv) Signature {
	return Signature{CallConv: cc}
}

// Clone returns a deep copy of the signature
func (s Signature) Clone() Signature {
	return Signature{
		Params:   append([]AbiParam(nil), s.Params...),
		Returns:  append([]AbiParam(nil), s.Returns...),
		CallConv: s.CallConv,
	}
}

// Equal compares two signatures structurally
func (s Signature) Equal(o Signature) bool {
	if s.CallConv != o.CallConv || len(s.Params) != len(o.Params) || len(s.Returns) != len(o.Returns) {
		return false
	}

	for i, p := range s.Params {
		if p != o.Params[i] {
			return false
		}
	}

	for i, r := range s.Returns {
		if r != o.Returns[i] {
			return false
		}
	}

	return true
}

func (s Signature) String() string {
	sb := strings.Builder{}
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Value.String())
	}
	sb.WriteByte(')')

	if len(s.Returns) > 0 {
		sb.WriteString(" -> ")
		for i, r := range s.Returns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.Value.String())
		}
	}

	sb.WriteByte(' ')
	sb.WriteString(s.CallConv.String())
	return sb.String()
}
