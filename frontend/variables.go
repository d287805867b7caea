package frontend

import "lathe/ir"

// DeclareVar declares a variable of the given type.  A variable may only be
// declared once per function.
func (fb *FunctionBuilder) DeclareVar(v Variable, t ir.Type) {
	if fb.failed() {
		return
	}

	if _, ok := fb.ctx.types[v]; ok {
		fb.fail("declare_var", ErrMalformed, "%s is declared twice", v)
		return
	}

	if !t.IsInt() {
		fb.fail("declare_var", ErrTypeMismatch, "%s must have an integer type, got %s", v, t)
		return
	}

	fb.ctx.types[v] = t
	fb.ctx.defs[v] = make(map[ir.Block]ir.Value)
}

// DefVar assigns a value to a variable in the current block
func (fb *FunctionBuilder) DefVar(v Variable, val ir.Value) {
	if fb.failed() || !fb.checkValue("def_var", val) {
		return
	}

	t, ok := fb.ctx.types[v]
	if !ok {
		fb.fail("def_var", ErrUndeclaredVariable, "%s has not been declared", v)
		return
	}

	if vt := fb.Func.DFG.ValueType(val); vt != t {
		fb.fail("def_var", ErrTypeMismatch, "cannot assign %s of type %s to %s of type %s", val, vt, v, t)
		return
	}

	if !fb.hasCurrent {
		fb.fail("def_var", ErrMalformed, "no current block")
		return
	}

	fb.ctx.defs[v][fb.current] = val
}

// UseVar returns the value of a variable at the current point in the current
// block.  Reading a variable that has no definition along some path from the
// entry block is an error.
func (fb *FunctionBuilder) UseVar(v Variable) ir.Value {
	if fb.failed() {
		return ir.InvalidValue
	}

	if _, ok := fb.ctx.types[v]; !ok {
		fb.fail("use_var", ErrUndeclaredVariable, "%s has not been declared", v)
		return ir.InvalidValue
	}

	if !fb.hasCurrent {
		fb.fail("use_var", ErrMalformed, "no current block")
		return ir.InvalidValue
	}

	val, ok := fb.useVarIn(v, fb.current)
	if !ok {
		return ir.InvalidValue
	}

	return val
}

// useVarIn resolves the value of a variable at the end of block b.  Chains
// of sealed blocks with a single predecessor are walked without recursion;
// every block on the chain records the resolved value.
func (fb *FunctionBuilder) useVarIn(v Variable, b ir.Block) (ir.Value, bool) {
	start := b
	var chain []ir.Block
	onChain := make(map[ir.Block]bool)

	for {
		if val, ok := fb.ctx.defs[v][b]; ok {
			fb.recordChain(v, chain, val)
			return val, true
		}

		st := fb.state(b)
		if !st.sealed || len(st.preds) != 1 {
			break
		}

		// a cycle of single-predecessor blocks cannot be entered from the
		// entry block
		if onChain[b] {
			fb.fail("use_var", ErrUseBeforeDef, "%s is read in %s but never defined on a path from the entry block", v, start)
			return ir.InvalidValue, false
		}

		onChain[b] = true
		chain = append(chain, b)
		b = st.preds[0].block
	}

	val, ok := fb.resolveVarIn(v, b, start)
	if ok {
		fb.recordChain(v, chain, val)
	}

	return val, ok
}

// resolveVarIn resolves v in a block that is either unsealed or does not
// have exactly one predecessor
func (fb *FunctionBuilder) resolveVarIn(v Variable, b, start ir.Block) (ir.Value, bool) {
	st := fb.state(b)
	t := fb.ctx.types[v]

	if !st.sealed {
		// more predecessors may arrive: stand in a parameter and resolve it
		// when the block is sealed
		param := fb.Func.DFG.AppendBlockParam(b, t)
		st.pending = append(st.pending, pendingParam{variable: v, param: param})
		fb.ctx.defs[v][b] = param
		return param, true
	}

	if len(st.preds) == 0 {
		fb.fail("use_var", ErrUseBeforeDef, "%s is read in %s but never defined on a path from the entry block", v, start)
		return ir.InvalidValue, false
	}

	// define the parameter before visiting predecessors so that loops
	// resolve to it
	param := fb.Func.DFG.AppendBlockParam(b, t)
	fb.ctx.defs[v][b] = param

	if !fb.completeParam(v, b, param) {
		return ir.InvalidValue, false
	}
	return param, true
}

func (fb *FunctionBuilder) recordChain(v Variable, chain []ir.Block, val ir.Value) {
	for _, b := range chain {
		fb.ctx.defs[v][b] = val
	}
}

// completeParam passes the value of v from every predecessor of b as the
// argument for param
func (fb *FunctionBuilder) completeParam(v Variable, b ir.Block, param ir.Value) bool {
	for _, pred := range fb.state(b).preds {
		val, ok := fb.useVarIn(v, pred.block)
		if !ok {
			return false
		}

		data := fb.Func.DFG.InstData(pred.inst)
		data.Dests[pred.dest].Args = append(data.Dests[pred.dest].Args, val)
	}

	return true
}
