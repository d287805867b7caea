// Package binemit holds the machine code produced for a single function: the
// encoded bytes and the relocations a module must apply to them.
package binemit

import (
	"encoding/binary"
	"fmt"

	"lathe/ir"
)

// Reloc is the kind of a relocation
type Reloc uint8

// Enumeration of relocation kinds
const (
	// Abs8 is an absolute 8-byte address
	Abs8 Reloc = iota

	// X86CallPCRel4 is a 4-byte PC-relative call target
	X86CallPCRel4

	// X86CallPLTRel4 is a 4-byte PC-relative call through the PLT
	X86CallPLTRel4
)

func (r Reloc) String() string {
	switch r {
	case Abs8:
		return "Abs8"
	case X86CallPCRel4:
		return "X86CallPCRel4"
	case X86CallPLTRel4:
		return "X86CallPLTRel4"
	}

	return "unknown"
}

// Size returns the number of bytes patched by the relocation
func (r Reloc) Size() int {
	if r == Abs8 {
		return 8
	}

	return 4
}

// MachReloc is a relocation against a named external function
type MachReloc struct {
	Offset uint32
	Kind   Reloc
	Name   ir.UserExternalName
	Addend int64
}

// CompiledCode is the result of lowering a function for one target
type CompiledCode struct {
	Code   []byte
	Relocs []MachReloc

	// FrameSize is the size of the stack frame below the saved frame pointer
	FrameSize uint32
}

// ApplyReloc patches a relocation given the absolute address the code is
// placed at and the resolved address of the target
func ApplyReloc(code []byte, base uintptr, r MachReloc, target uintptr) error {
	site := code[r.Offset : int(r.Offset)+r.Kind.Size()]

	switch r.Kind {
	case Abs8:
		binary.LittleEndian.PutUint64(site, uint64(int64(target)+r.Addend))
	case X86CallPCRel4, X86CallPLTRel4:
		pc := int64(base) + int64(r.Offset)
		delta := int64(target) + r.Addend - pc
		if delta != int64(int32(delta)) {
			return fmt.Errorf("%s relocation to %s out of range", r.Kind, r.Name)
		}

		binary.LittleEndian.PutUint32(site, uint32(int32(delta)))
	default:
		return fmt.Errorf("unsupported relocation kind %s", r.Kind)
	}

	return nil
}
