package binemit

import (
	"encoding/binary"
	"fmt"

	"lathe/ir"
)

// Label is a position in a CodeBuffer that may be referenced before it is
// bound
type Label uint32

// labelFixup is a 4-byte PC-relative reference to a label, patched once the
// buffer is finished
type labelFixup struct {
	offset int
	label  Label
}

// CodeBuffer accumulates encoded instructions along with label references
// and relocations
type CodeBuffer struct {
	data   []byte
	labels []int
	fixups []labelFixup
	relocs []MachReloc
}

// NewCodeBuffer creates a buffer with `numLabels` labels preallocated
func NewCodeBuffer(numLabels int) *CodeBuffer {
	labels := make([]int, numLabels)
	for i := range labels {
		labels[i] = -1
	}

	return &CodeBuffer{labels: labels}
}

// Len returns the current offset in the buffer
func (cb *CodeBuffer) Len() int { return len(cb.data) }

// Put1 appends a single byte
func (cb *CodeBuffer) Put1(b byte) { cb.data = append(cb.data, b) }

// PutBytes appends raw bytes
func (cb *CodeBuffer) PutBytes(bs ...byte) { cb.data = append(cb.data, bs...) }

// Put4 appends a little-endian uint32
func (cb *CodeBuffer) Put4(v uint32) {
	cb.data = binary.LittleEndian.AppendUint32(cb.data, v)
}

// Put8 appends a little-endian uint64
func (cb *CodeBuffer) Put8(v uint64) {
	cb.data = binary.LittleEndian.AppendUint64(cb.data, v)
}

// NewLabel allocates an unbound label
func (cb *CodeBuffer) NewLabel() Label {
	cb.labels = append(cb.labels, -1)
	return Label(len(cb.labels) - 1)
}

// BindLabel binds a label to the current offset
func (cb *CodeBuffer) BindLabel(l Label) {
	cb.labels[l] = len(cb.data)
}

// UseLabelRel32 emits a 4-byte placeholder that will hold the distance from
// the end of the placeholder to the label
func (cb *CodeBuffer) UseLabelRel32(l Label) {
	cb.fixups = append(cb.fixups, labelFixup{offset: len(cb.data), label: l})
	cb.Put4(0)
}

// AddReloc records a relocation at the current offset
func (cb *CodeBuffer) AddReloc(kind Reloc, name ir.UserExternalName, addend int64) {
	cb.relocs = append(cb.relocs, MachReloc{
		Offset: uint32(len(cb.data)),
		Kind:   kind,
		Name:   name,
		Addend: addend,
	})
}

// Finish patches all label references and returns the compiled code
func (cb *CodeBuffer) Finish(frameSize uint32) (*CompiledCode, error) {
	for _, fix := range cb.fixups {
		target := cb.labels[fix.label]
		if target < 0 {
			return nil, fmt.Errorf("label %d referenced but never bound", fix.label)
		}

		rel := int32(target - (fix.offset + 4))
		binary.LittleEndian.PutUint32(cb.data[fix.offset:], uint32(rel))
	}

	return &CompiledCode{
		Code:      cb.data,
		Relocs:    cb.relocs,
		FrameSize: frameSize,
	}, nil
}
