package x64

import (
	"lathe/binemit"
	"lathe/ir"
)

// reg is a general purpose register number as used in ModRM encoding
type reg uint8

const (
	rax reg = 0
	rcx reg = 1
	rdx reg = 2
	rbx reg = 3
	rsp reg = 4
	rbp reg = 5
	rsi reg = 6
	rdi reg = 7
	r8  reg = 8
	r9  reg = 9
	r10 reg = 10
	r11 reg = 11
)

// System V integer argument and return registers, in order
var (
	argRegs = [...]reg{rdi, rsi, rdx, rcx, r8, r9}
	retRegs = [...]reg{rax, rdx}
)

// encoder wraps a code buffer with the handful of x86-64 encodings the
// lowering needs.  All memory operands are rbp-relative with a 32-bit
// displacement.
type encoder struct {
	buf *binemit.CodeBuffer
}

// rex emits a REX prefix when one is required: 64-bit operand size or an
// extended register in the reg or rm field.
func (e encoder) rex(w bool, regField, rm reg) {
	var b byte = 0x40
	if w {
		b |= 0x08
	}
	if regField >= 8 {
		b |= 0x04
	}
	if rm >= 8 {
		b |= 0x01
	}

	if b != 0x40 {
		e.buf.Put1(b)
	}
}

func modrm(mod byte, regField, rm reg) byte {
	return mod<<6 | byte(regField&7)<<3 | byte(rm&7)
}

// store: mov [rbp+disp], src
func (e encoder) store(src reg, disp int32) {
	e.rex(true, src, rbp)
	e.buf.PutBytes(0x89, modrm(2, src, rbp))
	e.buf.Put4(uint32(disp))
}

// load: mov dst, [rbp+disp]
func (e encoder) load(dst reg, disp int32) {
	e.rex(true, dst, rbp)
	e.buf.PutBytes(0x8B, modrm(2, dst, rbp))
	e.buf.Put4(uint32(disp))
}

// movRR: mov dst, src (64-bit)
func (e encoder) movRR(dst, src reg) {
	e.rex(true, src, dst)
	e.buf.PutBytes(0x89, modrm(3, src, dst))
}

// movImm loads an immediate into dst using the shortest form that preserves
// its value at the given width
func (e encoder) movImm(dst reg, imm int64, wide bool) {
	switch {
	case !wide:
		// mov r32, imm32 zero-extends into the full register
		e.rex(false, 0, dst)
		e.buf.Put1(0xB8 + byte(dst&7))
		e.buf.Put4(uint32(imm))
	case imm == int64(int32(imm)):
		// mov r/m64, imm32 sign-extends
		e.rex(true, 0, dst)
		e.buf.PutBytes(0xC7, modrm(3, 0, dst))
		e.buf.Put4(uint32(imm))
	default:
		e.movAbs(dst, uint64(imm))
	}
}

// movAbs: movabs dst, imm64.  Returns the offset of the immediate.
func (e encoder) movAbs(dst reg, imm uint64) int {
	e.rex(true, 0, dst)
	e.buf.Put1(0xB8 + byte(dst&7))
	off := e.buf.Len()
	e.buf.Put8(imm)
	return off
}

// alu: op dst, src for the "r/m, r" forms (add 0x01, sub 0x29)
func (e encoder) alu(opcode byte, dst, src reg, wide bool) {
	e.rex(wide, src, dst)
	e.buf.PutBytes(opcode, modrm(3, src, dst))
}

// imul: imul dst, src
func (e encoder) imul(dst, src reg, wide bool) {
	e.rex(wide, dst, src)
	e.buf.PutBytes(0x0F, 0xAF, modrm(3, dst, src))
}

// addImm: add dst, imm32
func (e encoder) addImm(dst reg, imm int32, wide bool) {
	e.rex(wide, 0, dst)
	e.buf.PutBytes(0x81, modrm(3, 0, dst))
	e.buf.Put4(uint32(imm))
}

// test: test r, r at the width of t
func (e encoder) test(r reg, t ir.Type) {
	switch t {
	case ir.I8:
		e.rex(false, r, r)
		e.buf.PutBytes(0x84, modrm(3, r, r))
	case ir.I16:
		e.buf.Put1(0x66)
		e.rex(false, r, r)
		e.buf.PutBytes(0x85, modrm(3, r, r))
	default:
		e.rex(t == ir.I64, r, r)
		e.buf.PutBytes(0x85, modrm(3, r, r))
	}
}

func (e encoder) push(r reg) {
	e.rex(false, 0, r)
	e.buf.Put1(0x50 + byte(r&7))
}

// subRSP/addRSP adjust the stack pointer by an immediate
func (e encoder) subRSP(n int32) {
	e.buf.PutBytes(0x48, 0x81, modrm(3, 5, rsp))
	e.buf.Put4(uint32(n))
}

func (e encoder) addRSP(n int32) {
	e.buf.PutBytes(0x48, 0x81, modrm(3, 0, rsp))
	e.buf.Put4(uint32(n))
}

// jmp: jmp rel32 to a label
func (e encoder) jmp(l binemit.Label) {
	e.buf.Put1(0xE9)
	e.buf.UseLabelRel32(l)
}

// jz: je rel32 to a label
func (e encoder) jz(l binemit.Label) {
	e.buf.PutBytes(0x0F, 0x84)
	e.buf.UseLabelRel32(l)
}

// callRel32 emits `call rel32` with a relocation on the displacement
func (e encoder) callRel32(kind binemit.Reloc, name ir.UserExternalName) {
	e.buf.Put1(0xE8)
	e.buf.AddReloc(kind, name, -4)
	e.buf.Put4(0)
}

// callAbs emits `movabs r11, target; call r11` with an absolute relocation
func (e encoder) callAbs(name ir.UserExternalName) {
	e.rex(true, 0, r11)
	e.buf.Put1(0xB8 + byte(r11&7))
	e.buf.AddReloc(binemit.Abs8, name, 0)
	e.buf.Put8(0)

	// call r11
	e.rex(false, 0, r11)
	e.buf.PutBytes(0xFF, modrm(3, 2, r11))
}

func (e encoder) prologue() {
	// push rbp; mov rbp, rsp
	e.buf.Put1(0x55)
	e.buf.PutBytes(0x48, 0x89, 0xE5)
}

func (e encoder) epilogue() {
	// leave; ret
	e.buf.PutBytes(0xC9, 0xC3)
}
