// Package frontend builds IR function bodies.  Values are produced either
// directly by instructions or through Variables, which the builder converts
// into SSA form on the fly, inserting block parameters where definitions
// from several predecessors meet.
package frontend

import (
	"fmt"

	"lathe/ir"
)

// Variable is a local storage slot identified by a caller chosen number.  It
// is unique within the function being built.
type Variable uint32

func (v Variable) String() string {
	return fmt.Sprintf("var%d", uint32(v))
}

// predEdge is a branch into a block: the instruction and which of its
// destinations targets the block
type predEdge struct {
	block ir.Block
	inst  ir.Inst
	dest  int
}

// pendingParam is a block parameter created for a variable read in a block
// whose predecessors are not all known yet
type pendingParam struct {
	variable Variable
	param    ir.Value
}

// blockState is the per-block bookkeeping of the builder
type blockState struct {
	// sealed is set once no further predecessors may be added
	sealed bool

	// filled is set once the block has been terminated
	filled bool

	preds   []predEdge
	pending []pendingParam

	// userParams is the number of parameters appended explicitly rather than
	// by variable resolution
	userParams int
}

// FunctionBuilderContext holds the builder state that can be reused between
// functions to avoid reallocation
type FunctionBuilderContext struct {
	types  map[Variable]ir.Type
	defs   map[Variable]map[ir.Block]ir.Value
	blocks []blockState
}

// NewFunctionBuilderContext creates an empty builder context
func NewFunctionBuilderContext() *FunctionBuilderContext {
	fbc := &FunctionBuilderContext{}
	fbc.clear()
	return fbc
}

func (fbc *FunctionBuilderContext) clear() {
	fbc.types = make(map[Variable]ir.Type)
	fbc.defs = make(map[Variable]map[ir.Block]ir.Value)
	fbc.blocks = fbc.blocks[:0]
}

// FunctionBuilder appends blocks and instructions to a function
type FunctionBuilder struct {
	// Func is the function being built
	Func *ir.Function

	ctx *FunctionBuilderContext

	current    ir.Block
	hasCurrent bool

	err *BuildError
}

// NewFunctionBuilder creates a builder for a function.  The context is reset
// and is exclusively owned by the builder until the function is finalized.
func NewFunctionBuilder(f *ir.Function, ctx *FunctionBuilderContext) *FunctionBuilder {
	ctx.clear()

	// blocks may already exist if the function was partially built elsewhere
	for i := 0; i < f.DFG.NumBlocks(); i++ {
		ctx.blocks = append(ctx.blocks, blockState{userParams: len(f.DFG.BlockParams(ir.Block(i)))})
	}

	return &FunctionBuilder{Func: f, ctx: ctx, current: ir.InvalidBlock}
}

// Err returns the first error encountered while building, if any
func (fb *FunctionBuilder) Err() error {
	if fb.err != nil {
		return fb.err
	}

	return nil
}

// fail records the first build error; it always returns false so callers can
// bail out with `return fb.fail(...)`
func (fb *FunctionBuilder) fail(op string, kind error, format string, args ...interface{}) bool {
	if fb.err == nil {
		fb.err = &BuildError{
			Func:   fb.Func.Name.String(),
			Op:     op,
			Kind:   kind,
			Detail: fmt.Sprintf(format, args...),
		}
	}

	return false
}

func (fb *FunctionBuilder) failed() bool {
	return fb.err != nil
}

func (fb *FunctionBuilder) state(b ir.Block) *blockState {
	return &fb.ctx.blocks[b]
}

func (fb *FunctionBuilder) checkBlock(op string, b ir.Block) bool {
	if int(b) >= len(fb.ctx.blocks) {
		return fb.fail(op, ErrMalformed, "%s does not exist", b)
	}

	return true
}

func (fb *FunctionBuilder) checkValue(op string, v ir.Value) bool {
	if !fb.Func.DFG.ValueIsValid(v) {
		return fb.fail(op, ErrMalformed, "%s is not a valid value", v)
	}

	return true
}

// -----------------------------------------------------------------------------

// CreateBlock allocates a new block.  It is not part of the function until an
// instruction is inserted into it.
func (fb *FunctionBuilder) CreateBlock() ir.Block {
	b := fb.Func.DFG.MakeBlock()
	fb.ctx.blocks = append(fb.ctx.blocks, blockState{})
	return b
}

// SwitchToBlock makes b the block that instructions are inserted into.  The
// block being switched away from must either be empty or terminated.
func (fb *FunctionBuilder) SwitchToBlock(b ir.Block) {
	if fb.failed() || !fb.checkBlock("switch_to_block", b) {
		return
	}

	if fb.hasCurrent && fb.current != b {
		st := fb.state(fb.current)
		if !st.filled && len(fb.Func.Layout.BlockInsts(fb.current)) > 0 {
			fb.fail("switch_to_block", ErrMalformed, "%s must be terminated before switching to %s", fb.current, b)
			return
		}
	}

	if fb.state(b).filled {
		fb.fail("switch_to_block", ErrMalformed, "%s is already terminated", b)
		return
	}

	fb.current = b
	fb.hasCurrent = true
}

// CurrentBlock returns the block instructions are being inserted into
func (fb *FunctionBuilder) CurrentBlock() (ir.Block, bool) {
	return fb.current, fb.hasCurrent
}

// SealBlock declares that every predecessor of b is known.  Variable reads
// in b that were waiting on its predecessors are resolved now.  Each block
// must be sealed exactly once.
func (fb *FunctionBuilder) SealBlock(b ir.Block) {
	if fb.failed() || !fb.checkBlock("seal_block", b) {
		return
	}

	st := fb.state(b)
	if st.sealed {
		fb.fail("seal_block", ErrSealedBlock, "%s is sealed twice", b)
		return
	}

	pending := st.pending
	st.pending = nil
	st.sealed = true

	if len(pending) > 0 && len(st.preds) == 0 {
		fb.fail("seal_block", ErrUseBeforeDef, "%s is read in %s but never defined on a path from the entry block", pending[0].variable, b)
		return
	}

	for _, pp := range pending {
		if !fb.completeParam(pp.variable, b, pp.param) {
			if fb.err != nil && fb.err.Op == "use_var" {
				fb.err.Op = "seal_block"
			}
			return
		}
	}
}

// SealAllBlocks seals every block that has not been sealed yet
func (fb *FunctionBuilder) SealAllBlocks() {
	for i := range fb.ctx.blocks {
		if fb.failed() {
			return
		}

		if !fb.ctx.blocks[i].sealed {
			fb.SealBlock(ir.Block(i))
		}
	}
}

// IsSealed indicates whether a block has been sealed
func (fb *FunctionBuilder) IsSealed(b ir.Block) bool {
	return int(b) < len(fb.ctx.blocks) && fb.state(b).sealed
}

// AppendBlockParam adds an explicit parameter to a block.  Explicit parameters
// must be added before any variable is read in the block.
func (fb *FunctionBuilder) AppendBlockParam(b ir.Block, t ir.Type) ir.Value {
	if fb.failed() || !fb.checkBlock("append_block_param", b) {
		return ir.InvalidValue
	}

	if !t.IsInt() {
		fb.fail("append_block_param", ErrTypeMismatch, "block parameters must have an integer type, got %s", t)
		return ir.InvalidValue
	}

	st := fb.state(b)
	if len(fb.Func.DFG.BlockParams(b)) != st.userParams {
		fb.fail("append_block_param", ErrMalformed, "parameters of %s must be declared before variables are read in it", b)
		return ir.InvalidValue
	}

	if len(st.preds) > 0 {
		fb.fail("append_block_param", ErrMalformed, "%s already has predecessors", b)
		return ir.InvalidValue
	}

	st.userParams++
	return fb.Func.DFG.AppendBlockParam(b, t)
}

// AppendBlockParamsForFunctionParams makes b the entry block of the function
// and binds the function's parameters as its block parameters, in signature
// order
func (fb *FunctionBuilder) AppendBlockParamsForFunctionParams(b ir.Block) {
	const op = "append_block_params_for_function_params"
	if fb.failed() || !fb.checkBlock(op, b) {
		return
	}

	if entry, ok := fb.Func.Layout.EntryBlock(); ok && entry != b {
		fb.fail(op, ErrMalformed, "%s is already the entry block", entry)
		return
	}

	if len(fb.Func.DFG.BlockParams(b)) > 0 || len(fb.Func.Layout.BlockInsts(b)) > 0 {
		fb.fail(op, ErrMalformed, "entry block %s must be empty", b)
		return
	}

	fb.Func.Layout.AppendBlock(b)
	for _, p := range fb.Func.Signature.Params {
		fb.AppendBlockParam(b, p.Value)
	}
}

// BlockParams returns the parameters of a block
func (fb *FunctionBuilder) BlockParams(b ir.Block) []ir.Value {
	if !fb.checkBlock("block_params", b) {
		return nil
	}

	return fb.Func.DFG.BlockParams(b)
}

// InstResults returns the results of an instruction
func (fb *FunctionBuilder) InstResults(inst ir.Inst) []ir.Value {
	if !fb.Func.DFG.InstIsValid(inst) {
		fb.fail("inst_results", ErrMalformed, "%s is not a valid instruction", inst)
		return nil
	}

	return fb.Func.DFG.InstResults(inst)
}

// ImportFunction adds an external function reference to the function
func (fb *FunctionBuilder) ImportFunction(data ir.ExtFuncData) ir.FuncRef {
	return fb.Func.ImportFunction(data)
}

// ImportSignature adds a signature to the function
func (fb *FunctionBuilder) ImportSignature(sig ir.Signature) ir.SigRef {
	return fb.Func.ImportSignature(sig)
}

// Finalize checks that every block that was used is sealed and terminated.
// It returns the first build error, if any occurred.
func (fb *FunctionBuilder) Finalize() error {
	if fb.failed() {
		return fb.err
	}

	for i, st := range fb.ctx.blocks {
		b := ir.Block(i)
		used := fb.Func.Layout.IsBlockInserted(b) || len(st.preds) > 0

		if !used {
			continue
		}

		if !st.sealed {
			fb.fail("finalize", ErrMalformed, "%s was never sealed", b)
			break
		}

		if !st.filled {
			fb.fail("finalize", ErrMalformed, "%s is not terminated", b)
			break
		}
	}

	return fb.Err()
}

// Ins returns an inserter that appends instructions to the current block
func (fb *FunctionBuilder) Ins() *InstBuilder {
	return &InstBuilder{fb: fb}
}
