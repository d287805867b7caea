// Package x64 lowers verified IR functions to x86-64 machine code using the
// System V calling convention.
//
// The lowering is deliberately simple: every SSA value is given its own
// 8-byte slot in the stack frame and each instruction loads its operands
// into scratch registers, computes, and stores its result back.  Block
// parameters are written by the branches that target them.
package x64

import (
	"fmt"

	"lathe/binemit"
	"lathe/ir"
	"lathe/settings"
)

// maxReturns is the number of return values that fit in return registers
const maxReturns = len(retRegs)

// Backend lowers functions for x86-64
type Backend struct {
	flags settings.Flags
}

// New creates a new x86-64 backend with the given flags
func New(flags settings.Flags) *Backend {
	return &Backend{flags: flags}
}

// Flags returns the flags the backend was created with
func (b *Backend) Flags() settings.Flags {
	return b.flags
}

// CompileFunction lowers a function that has already passed verification
func (b *Backend) CompileFunction(f *ir.Function) (*binemit.CompiledCode, error) {
	if len(f.Signature.Returns) > maxReturns {
		return nil, fmt.Errorf("x64: %d return values exceed the %d supported by the calling convention", len(f.Signature.Returns), maxReturns)
	}

	l := newLowerer(b.flags, f)
	return l.lower()
}

// -----------------------------------------------------------------------------

// lowerer holds the state for lowering a single function
type lowerer struct {
	f     *ir.Function
	flags settings.Flags
	enc   encoder

	// scratchBase is the slot index of the first scratch slot used for
	// parallel copies into block parameters
	scratchBase int
	numSlots    int

	// cached is the value currently held in rax, if any.  Only used when
	// optimizing.
	cached ir.Value
}

func newLowerer(flags settings.Flags, f *ir.Function) *lowerer {
	maxArgs := 0
	for _, b := range f.Layout.Blocks() {
		for _, dest := range f.Successors(b) {
			if len(dest.Args) > maxArgs {
				maxArgs = len(dest.Args)
			}
		}
	}

	numValues := f.DFG.NumValues()
	return &lowerer{
		f:           f,
		flags:       flags,
		enc:         encoder{buf: binemit.NewCodeBuffer(f.DFG.NumBlocks())},
		scratchBase: numValues,
		numSlots:    numValues + maxArgs,
		cached:      ir.InvalidValue,
	}
}

// slot returns the frame offset of a value's slot
func slot(i int) int32 {
	return -int32(8 * (i + 1))
}

func (l *lowerer) valueSlot(v ir.Value) int32 {
	return slot(int(v))
}

func (l *lowerer) optimizing() bool {
	return l.flags.OptLevel() != settings.OptNone
}

// frameSize returns the frame size rounded so that rsp stays 16-byte aligned
// at call sites
func (l *lowerer) frameSize() int32 {
	size := int32(8 * l.numSlots)
	return (size + 15) &^ 15
}

func (l *lowerer) lower() (*binemit.CompiledCode, error) {
	entry, ok := l.f.Layout.EntryBlock()
	if !ok {
		return nil, fmt.Errorf("x64: function %s has no entry block", l.f.Name)
	}

	l.enc.prologue()
	frame := l.frameSize()
	if frame > 0 {
		l.enc.subRSP(frame)
	}

	// spill incoming arguments into the entry block's parameter slots
	for i, p := range l.f.DFG.BlockParams(entry) {
		if i < len(argRegs) {
			l.enc.store(argRegs[i], l.valueSlot(p))
		} else {
			// stack arguments sit above the return address and saved rbp
			l.enc.load(rax, int32(16+8*(i-len(argRegs))))
			l.enc.store(rax, l.valueSlot(p))
		}
	}

	blocks := l.f.Layout.Blocks()
	for i, b := range blocks {
		l.enc.buf.BindLabel(binemit.Label(b))
		l.cached = ir.InvalidValue

		var next ir.Block = ir.InvalidBlock
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}

		for _, inst := range l.f.Layout.BlockInsts(b) {
			if err := l.lowerInst(inst, next); err != nil {
				return nil, err
			}
		}
	}

	return l.enc.buf.Finish(uint32(frame))
}

// loadRAX loads a value into rax, skipping the load if rax already holds it
func (l *lowerer) loadRAX(v ir.Value) {
	if l.optimizing() && l.cached == v {
		return
	}

	l.enc.load(rax, l.valueSlot(v))
	l.cached = v
}

// storeRAX writes rax into a value's slot
func (l *lowerer) storeRAX(v ir.Value) {
	l.enc.store(rax, l.valueSlot(v))
	l.cached = v
}

func (l *lowerer) lowerInst(inst ir.Inst, next ir.Block) error {
	data := l.f.DFG.InstData(inst)
	wide := data.Type == ir.I64

	switch data.Opcode {
	case ir.OpIconst:
		l.enc.movImm(rax, data.Imm, wide)
		l.storeRAX(l.f.DFG.FirstResult(inst))
	case ir.OpIadd, ir.OpIsub, ir.OpImul:
		l.loadRAX(data.Args[0])
		l.enc.load(rcx, l.valueSlot(data.Args[1]))

		switch data.Opcode {
		case ir.OpIadd:
			l.enc.alu(0x01, rax, rcx, wide)
		case ir.OpIsub:
			l.enc.alu(0x29, rax, rcx, wide)
		case ir.OpImul:
			l.enc.imul(rax, rcx, wide)
		}

		l.storeRAX(l.f.DFG.FirstResult(inst))
	case ir.OpIaddImm:
		l.loadRAX(data.Args[0])
		if !wide || data.Imm == int64(int32(data.Imm)) {
			l.enc.addImm(rax, int32(data.Imm), wide)
		} else {
			l.enc.movAbs(rcx, uint64(data.Imm))
			l.enc.alu(0x01, rax, rcx, true)
		}
		l.storeRAX(l.f.DFG.FirstResult(inst))
	case ir.OpJump:
		l.lowerEdge(data.Dests[0], next)
	case ir.OpBrif:
		l.loadRAX(data.Args[0])
		l.enc.test(rax, l.f.DFG.ValueType(data.Args[0]))

		elseLabel := l.enc.buf.NewLabel()
		l.enc.jz(elseLabel)
		l.lowerEdge(data.Dests[0], ir.InvalidBlock)

		l.enc.buf.BindLabel(elseLabel)
		l.cached = ir.InvalidValue
		l.lowerEdge(data.Dests[1], next)
	case ir.OpCall:
		return l.lowerCall(inst, data)
	case ir.OpReturn:
		for i, v := range data.Args {
			l.enc.load(retRegs[i], l.valueSlot(v))
		}
		l.enc.epilogue()
	default:
		return fmt.Errorf("x64: cannot lower opcode %s", data.Opcode)
	}

	return nil
}

// lowerEdge copies branch arguments into the destination's parameters and
// jumps to it.  The copy goes through scratch slots since arguments may
// themselves be parameters of the destination.
func (l *lowerer) lowerEdge(dest ir.BlockCall, next ir.Block) {
	params := l.f.DFG.BlockParams(dest.Block)

	for i, arg := range dest.Args {
		l.enc.load(rax, l.valueSlot(arg))
		l.enc.store(rax, slot(l.scratchBase+i))
	}

	for i := range dest.Args {
		l.enc.load(rax, slot(l.scratchBase+i))
		l.enc.store(rax, l.valueSlot(params[i]))
	}
	l.cached = ir.InvalidValue

	if l.optimizing() && dest.Block == next {
		return
	}

	l.enc.jmp(binemit.Label(dest.Block))
}

func (l *lowerer) lowerCall(inst ir.Inst, data *ir.InstData) error {
	ext := l.f.DFG.ExtFuncs[data.Func]
	sig := l.f.DFG.Signatures[ext.Signature]
	if len(sig.Returns) > maxReturns {
		return fmt.Errorf("x64: call to %s returns %d values; at most %d are supported", ext.Name, len(sig.Returns), maxReturns)
	}

	// arguments beyond the register set are pushed right to left; keep rsp
	// 16-byte aligned at the call
	var stackArgs []ir.Value
	if len(data.Args) > len(argRegs) {
		stackArgs = data.Args[len(argRegs):]
	}

	adjust := int32(8 * len(stackArgs))
	if len(stackArgs)%2 == 1 {
		l.enc.subRSP(8)
		adjust += 8
	}

	for i := len(stackArgs) - 1; i >= 0; i-- {
		l.enc.load(rax, l.valueSlot(stackArgs[i]))
		l.enc.push(rax)
	}

	for i, arg := range data.Args {
		if i >= len(argRegs) {
			break
		}

		l.enc.load(argRegs[i], l.valueSlot(arg))
	}

	if l.flags.IsPIC() {
		l.enc.callRel32(binemit.X86CallPLTRel4, ext.Name)
	} else {
		l.enc.callAbs(ext.Name)
	}

	if adjust > 0 {
		l.enc.addRSP(adjust)
	}

	for i, res := range l.f.DFG.InstResults(inst) {
		l.enc.store(retRegs[i], l.valueSlot(res))
	}
	l.cached = ir.InvalidValue

	return nil
}
