package frontend

import "lathe/ir"

// InstBuilder appends instructions to the end of the builder's current block.
// Each method returns the instruction's result (if any); after a build error
// every method returns an invalid handle.
type InstBuilder struct {
	fb *FunctionBuilder
}

// begin checks that an instruction can be appended to the current block
func (ib *InstBuilder) begin(op string) bool {
	fb := ib.fb
	if fb.failed() {
		return false
	}

	if !fb.hasCurrent {
		return fb.fail(op, ErrMalformed, "no current block")
	}

	if fb.state(fb.current).filled {
		return fb.fail(op, ErrMalformed, "%s is already terminated", fb.current)
	}

	return true
}

// emit appends an instruction and creates its results
func (ib *InstBuilder) emit(data ir.InstData) ir.Inst {
	fb := ib.fb

	inst := fb.Func.DFG.MakeInst(data)
	fb.Func.Layout.AppendInst(inst, fb.current)
	fb.Func.DFG.MakeInstResults(inst)

	if data.Opcode.IsTerminator() {
		fb.state(fb.current).filled = true
	}

	return inst
}

// operand checks a value exists and has the expected type
func (ib *InstBuilder) operand(op string, v ir.Value, t ir.Type) bool {
	if !ib.fb.checkValue(op, v) {
		return false
	}

	if vt := ib.fb.Func.DFG.ValueType(v); vt != t {
		return ib.fb.fail(op, ErrTypeMismatch, "%s has type %s; expected %s", v, vt, t)
	}

	return true
}

// operandList checks a list of values against ABI parameters
func (ib *InstBuilder) operandList(op, what string, vals []ir.Value, params []ir.AbiParam) bool {
	if len(vals) != len(params) {
		return ib.fb.fail(op, ErrArityMismatch, "expected %d %ss, got %d", len(params), what, len(vals))
	}

	for i, v := range vals {
		if !ib.operand(op, v, params[i].Value) {
			return false
		}
	}

	return true
}

// -----------------------------------------------------------------------------

// Iconst materializes an integer constant.  The immediate is truncated to the
// width of the type.
func (ib *InstBuilder) Iconst(t ir.Type, imm int64) ir.Value {
	if !ib.begin("iconst") {
		return ir.InvalidValue
	}

	if !t.IsInt() {
		ib.fb.fail("iconst", ErrTypeMismatch, "iconst requires an integer type, got %s", t)
		return ir.InvalidValue
	}

	inst := ib.emit(ir.InstData{Opcode: ir.OpIconst, Type: t, Imm: t.Normalize(imm)})
	return ib.fb.Func.DFG.FirstResult(inst)
}

// Iadd adds two values of the same type with wrapping
func (ib *InstBuilder) Iadd(x, y ir.Value) ir.Value {
	return ib.binary("iadd", ir.OpIadd, x, y)
}

// Isub subtracts y from x with wrapping
func (ib *InstBuilder) Isub(x, y ir.Value) ir.Value {
	return ib.binary("isub", ir.OpIsub, x, y)
}

// Imul multiplies two values with wrapping
func (ib *InstBuilder) Imul(x, y ir.Value) ir.Value {
	return ib.binary("imul", ir.OpImul, x, y)
}

func (ib *InstBuilder) binary(op string, opcode ir.Opcode, x, y ir.Value) ir.Value {
	if !ib.begin(op) || !ib.fb.checkValue(op, x) {
		return ir.InvalidValue
	}

	t := ib.fb.Func.DFG.ValueType(x)
	if !ib.operand(op, y, t) {
		return ir.InvalidValue
	}

	inst := ib.emit(ir.InstData{Opcode: opcode, Type: t, Args: []ir.Value{x, y}})
	return ib.fb.Func.DFG.FirstResult(inst)
}

// IaddImm adds an immediate to a value.  The immediate is interpreted in the
// value's type.
func (ib *InstBuilder) IaddImm(x ir.Value, imm int64) ir.Value {
	if !ib.begin("iadd_imm") || !ib.fb.checkValue("iadd_imm", x) {
		return ir.InvalidValue
	}

	t := ib.fb.Func.DFG.ValueType(x)
	inst := ib.emit(ir.InstData{Opcode: ir.OpIaddImm, Type: t, Args: []ir.Value{x}, Imm: t.Normalize(imm)})
	return ib.fb.Func.DFG.FirstResult(inst)
}

// -----------------------------------------------------------------------------

// blockCall validates a branch destination.  Only the explicit parameters of
// the target are supplied by the caller; arguments for parameters created by
// variable resolution are appended by the builder.
func (ib *InstBuilder) blockCall(op string, b ir.Block, args []ir.Value) (ir.BlockCall, bool) {
	fb := ib.fb
	if !fb.checkBlock(op, b) {
		return ir.BlockCall{}, false
	}

	st := fb.state(b)
	if st.sealed {
		return ir.BlockCall{}, fb.fail(op, ErrSealedBlock, "cannot add a predecessor to sealed %s", b)
	}

	if len(args) != st.userParams {
		return ir.BlockCall{}, fb.fail(op, ErrArityMismatch, "%s takes %d arguments, got %d", b, st.userParams, len(args))
	}

	params := fb.Func.DFG.BlockParams(b)
	for i, arg := range args {
		if !ib.operand(op, arg, fb.Func.DFG.ValueType(params[i])) {
			return ir.BlockCall{}, false
		}
	}

	// the argument list is extended in place when the target's variables are
	// resolved so it must not alias the caller's slice
	return ir.BlockCall{Block: b, Args: append([]ir.Value(nil), args...)}, true
}

// addPreds records the current block as a predecessor of each destination of
// a branch
func (ib *InstBuilder) addPreds(inst ir.Inst, dests []ir.BlockCall) {
	fb := ib.fb
	for i, dest := range dests {
		st := fb.state(dest.Block)
		st.preds = append(st.preds, predEdge{block: fb.current, inst: inst, dest: i})
	}
}

// Jump unconditionally transfers control to b, passing args to its explicit
// parameters
func (ib *InstBuilder) Jump(b ir.Block, args []ir.Value) ir.Inst {
	if !ib.begin("jump") {
		return ir.InvalidInst
	}

	dest, ok := ib.blockCall("jump", b, args)
	if !ok {
		return ir.InvalidInst
	}

	inst := ib.emit(ir.InstData{Opcode: ir.OpJump, Dests: []ir.BlockCall{dest}})
	ib.addPreds(inst, []ir.BlockCall{dest})
	return inst
}

// Brif branches to thenBlock if c is nonzero and to elseBlock otherwise
func (ib *InstBuilder) Brif(c ir.Value, thenBlock ir.Block, thenArgs []ir.Value, elseBlock ir.Block, elseArgs []ir.Value) ir.Inst {
	if !ib.begin("brif") || !ib.fb.checkValue("brif", c) {
		return ir.InvalidInst
	}

	thenDest, ok := ib.blockCall("brif", thenBlock, thenArgs)
	if !ok {
		return ir.InvalidInst
	}

	elseDest, ok := ib.blockCall("brif", elseBlock, elseArgs)
	if !ok {
		return ir.InvalidInst
	}

	dests := []ir.BlockCall{thenDest, elseDest}
	inst := ib.emit(ir.InstData{Opcode: ir.OpBrif, Args: []ir.Value{c}, Dests: dests})
	ib.addPreds(inst, dests)
	return inst
}

// Call calls an imported function.  The results of the call are available
// through FunctionBuilder.InstResults.
func (ib *InstBuilder) Call(fref ir.FuncRef, args []ir.Value) ir.Inst {
	if !ib.begin("call") {
		return ir.InvalidInst
	}

	dfg := &ib.fb.Func.DFG
	if int(fref) >= len(dfg.ExtFuncs) {
		ib.fb.fail("call", ErrMalformed, "%s has not been imported", fref)
		return ir.InvalidInst
	}

	sig := dfg.Signatures[dfg.ExtFuncs[fref].Signature]
	if !ib.operandList("call", "argument", args, sig.Params) {
		return ir.InvalidInst
	}

	return ib.emit(ir.InstData{Opcode: ir.OpCall, Func: fref, Args: append([]ir.Value(nil), args...)})
}

// Return returns from the function.  The values must match the function's
// signature.
func (ib *InstBuilder) Return(vals []ir.Value) ir.Inst {
	if !ib.begin("return") {
		return ir.InvalidInst
	}

	if !ib.operandList("return", "return value", vals, ib.fb.Func.Signature.Returns) {
		return ir.InvalidInst
	}

	return ib.emit(ir.InstData{Opcode: ir.OpReturn, Args: append([]ir.Value(nil), vals...)})
}
