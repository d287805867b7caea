package codegen

import (
	"fmt"
	"strings"

	"lathe/ir"
)

// VerifierError is a single structural problem found in a function
type VerifierError struct {
	// Location names the entity the problem was found at (eg. `inst3`)
	Location string
	Message  string
}

func (ve VerifierError) Error() string {
	return ve.Location + ": " + ve.Message
}

// VerifierErrors is the full list of problems found in a function
type VerifierErrors []VerifierError

func (ves VerifierErrors) Error() string {
	msgs := make([]string, len(ves))
	for i, ve := range ves {
		msgs[i] = ve.Error()
	}

	return "verifier errors:\n  " + strings.Join(msgs, "\n  ")
}

// Verify checks that a fully built function is well formed: types and
// arities agree, every block is terminated and reachable, and every value is
// defined before it is used.  It returns VerifierErrors on failure.
func Verify(f *ir.Function) error {
	v := &verifier{f: f}
	v.run()

	if len(v.errs) > 0 {
		return v.errs
	}

	return nil
}

// -----------------------------------------------------------------------------

type verifier struct {
	f    *ir.Function
	errs VerifierErrors

	// idom maps each reachable block to its immediate dominator
	idom map[ir.Block]ir.Block

	// rpo is the reverse post-order of reachable blocks
	rpo []ir.Block
}

func (v *verifier) report(loc fmt.Stringer, format string, args ...interface{}) {
	v.errs = append(v.errs, VerifierError{Location: loc.String(), Message: fmt.Sprintf(format, args...)})
}

func (v *verifier) run() {
	entry, ok := v.f.Layout.EntryBlock()
	if !ok {
		v.errs = append(v.errs, VerifierError{Location: v.f.Name.String(), Message: "function has no entry block"})
		return
	}

	v.checkEntryParams(entry)

	for _, b := range v.f.Layout.Blocks() {
		v.checkBlockStructure(b)
	}

	// dominance is only meaningful once the structure is sound
	if len(v.errs) > 0 {
		return
	}

	v.computeDominators(entry)
	for _, b := range v.f.Layout.Blocks() {
		if _, ok := v.idom[b]; !ok {
			v.report(b, "block is unreachable from the entry block")
		}
	}

	if len(v.errs) > 0 {
		return
	}

	v.checkDominance()
}

func (v *verifier) checkEntryParams(entry ir.Block) {
	params := v.f.DFG.BlockParams(entry)
	sigParams := v.f.Signature.Params

	if len(params) != len(sigParams) {
		v.report(entry, "entry block has %d parameters but the signature has %d", len(params), len(sigParams))
		return
	}

	for i, p := range params {
		if t := v.f.DFG.ValueType(p); t != sigParams[i].Value {
			v.report(entry, "entry parameter %d has type %s; signature expects %s", i, t, sigParams[i].Value)
		}
	}
}

func (v *verifier) checkBlockStructure(b ir.Block) {
	insts := v.f.Layout.BlockInsts(b)
	if len(insts) == 0 {
		v.report(b, "block is empty")
		return
	}

	for i, inst := range insts {
		data := v.f.DFG.InstData(inst)
		isLast := i == len(insts)-1

		if data.Opcode.IsTerminator() && !isLast {
			v.report(inst, "terminator %s is not the last instruction of %s", data.Opcode, b)
		} else if !data.Opcode.IsTerminator() && isLast {
			v.report(b, "block does not end in a terminator")
		}

		v.checkInst(inst, data)
	}
}

func (v *verifier) checkInst(inst ir.Inst, data *ir.InstData) {
	dfg := &v.f.DFG

	for _, arg := range data.Args {
		if !dfg.ValueIsValid(arg) {
			v.report(inst, "uses invalid value %s", arg)
			return
		}
	}

	switch data.Opcode {
	case ir.OpIconst:
		if !data.Type.IsInt() {
			v.report(inst, "iconst has non-integer type %s", data.Type)
		}
	case ir.OpIadd, ir.OpIsub, ir.OpImul:
		if len(data.Args) != 2 {
			v.report(inst, "%s takes 2 operands, got %d", data.Opcode, len(data.Args))
			return
		}

		for _, arg := range data.Args {
			if t := dfg.ValueType(arg); t != data.Type {
				v.report(inst, "operand %s has type %s; expected %s", arg, t, data.Type)
			}
		}
	case ir.OpIaddImm:
		if len(data.Args) != 1 {
			v.report(inst, "iadd_imm takes 1 operand, got %d", len(data.Args))
		} else if t := dfg.ValueType(data.Args[0]); t != data.Type {
			v.report(inst, "operand %s has type %s; expected %s", data.Args[0], t, data.Type)
		}
	case ir.OpJump:
		if len(data.Dests) != 1 {
			v.report(inst, "jump must have exactly one destination")
			return
		}

		v.checkBlockCall(inst, data.Dests[0])
	case ir.OpBrif:
		if len(data.Args) != 1 || len(data.Dests) != 2 {
			v.report(inst, "brif must have one condition and two destinations")
			return
		}

		if !dfg.ValueType(data.Args[0]).IsInt() {
			v.report(inst, "brif condition %s is not an integer", data.Args[0])
		}

		v.checkBlockCall(inst, data.Dests[0])
		v.checkBlockCall(inst, data.Dests[1])
	case ir.OpCall:
		if int(data.Func) >= len(dfg.ExtFuncs) {
			v.report(inst, "calls undeclared function reference %s", data.Func)
			return
		}

		ext := dfg.ExtFuncs[data.Func]
		if int(ext.Signature) >= len(dfg.Signatures) {
			v.report(inst, "%s has undeclared signature %s", data.Func, ext.Signature)
			return
		}

		sig := dfg.Signatures[ext.Signature]
		v.checkValueList(inst, "call argument", data.Args, sig.Params)

		if results := dfg.InstResults(inst); len(results) != len(sig.Returns) {
			v.report(inst, "call has %d results; %s returns %d values", len(results), data.Func, len(sig.Returns))
		}
	case ir.OpReturn:
		v.checkValueList(inst, "return value", data.Args, v.f.Signature.Returns)
	}
}

// checkValueList compares a list of values against ABI parameters
func (v *verifier) checkValueList(inst ir.Inst, what string, vals []ir.Value, params []ir.AbiParam) {
	if len(vals) != len(params) {
		v.report(inst, "expected %d %ss, got %d", len(params), what, len(vals))
		return
	}

	for i, val := range vals {
		if t := v.f.DFG.ValueType(val); t != params[i].Value {
			v.report(inst, "%s %d (%s) has type %s; expected %s", what, i, val, t, params[i].Value)
		}
	}
}

func (v *verifier) checkBlockCall(inst ir.Inst, bc ir.BlockCall) {
	if !v.f.DFG.BlockIsValid(bc.Block) || !v.f.Layout.IsBlockInserted(bc.Block) {
		v.report(inst, "branches to %s which is not in the layout", bc.Block)
		return
	}

	params := v.f.DFG.BlockParams(bc.Block)
	if len(params) != len(bc.Args) {
		v.report(inst, "passes %d arguments to %s which takes %d", len(bc.Args), bc.Block, len(params))
		return
	}

	for i, arg := range bc.Args {
		if !v.f.DFG.ValueIsValid(arg) {
			v.report(inst, "passes invalid value %s to %s", arg, bc.Block)
			continue
		}

		if at, pt := v.f.DFG.ValueType(arg), v.f.DFG.ValueType(params[i]); at != pt {
			v.report(inst, "argument %d to %s has type %s; parameter is %s", i, bc.Block, at, pt)
		}
	}
}

// -----------------------------------------------------------------------------

// computeDominators computes immediate dominators for all reachable blocks
// using the iterative algorithm of Cooper, Harvey, and Kennedy.
func (v *verifier) computeDominators(entry ir.Block) {
	visited := make(map[ir.Block]bool)
	var post []ir.Block

	var dfs func(b ir.Block)
	dfs = func(b ir.Block) {
		visited[b] = true
		for _, s := range v.f.Successors(b) {
			if !visited[s.Block] {
				dfs(s.Block)
			}
		}
		post = append(post, b)
	}
	dfs(entry)

	order := make(map[ir.Block]int, len(post))
	for i, b := range post {
		order[b] = i
	}

	for i := len(post) - 1; i >= 0; i-- {
		v.rpo = append(v.rpo, post[i])
	}

	preds := make(map[ir.Block][]ir.Block)
	for _, b := range v.rpo {
		for _, s := range v.f.Successors(b) {
			preds[s.Block] = append(preds[s.Block], b)
		}
	}

	v.idom = map[ir.Block]ir.Block{entry: entry}
	intersect := func(a, b ir.Block) ir.Block {
		for a != b {
			for order[a] < order[b] {
				a = v.idom[a]
			}
			for order[b] < order[a] {
				b = v.idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for _, b := range v.rpo[1:] {
			newIdom := ir.InvalidBlock
			for _, p := range preds[b] {
				if _, ok := v.idom[p]; !ok {
					continue
				}

				if newIdom == ir.InvalidBlock {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}

			if cur, ok := v.idom[b]; !ok || cur != newIdom {
				v.idom[b] = newIdom
				changed = true
			}
		}
	}
}

// dominates indicates whether block a dominates block b
func (v *verifier) dominates(a, b ir.Block) bool {
	for {
		if a == b {
			return true
		}

		parent := v.idom[b]
		if parent == b {
			return false
		}
		b = parent
	}
}

// checkDominance verifies that every use of a value is dominated by its
// definition
func (v *verifier) checkDominance() {
	dfg := &v.f.DFG

	position := make(map[ir.Inst]int)
	for _, b := range v.f.Layout.Blocks() {
		for i, inst := range v.f.Layout.BlockInsts(b) {
			position[inst] = i
		}
	}

	checkUse := func(inst ir.Inst, useBlock ir.Block, usePos int, val ir.Value) {
		if !dfg.ValueIsValid(val) {
			return
		}

		def := dfg.ValueDef(val)
		var defBlock ir.Block
		defPos := -1

		switch def.Kind {
		case ir.DefParam:
			defBlock = def.Block
			if !v.f.Layout.IsBlockInserted(defBlock) {
				v.report(inst, "uses %s, a parameter of %s which is not in the layout", val, defBlock)
				return
			}
		case ir.DefResult:
			b, ok := v.f.Layout.InstBlock(def.Inst)
			if !ok {
				v.report(inst, "uses %s defined by %s which is not in the layout", val, def.Inst)
				return
			}
			defBlock = b
			defPos = position[def.Inst]
		}

		if defBlock == useBlock {
			if defPos >= usePos {
				v.report(inst, "uses %s before it is defined", val)
			}
		} else if !v.dominates(defBlock, useBlock) {
			v.report(inst, "uses %s which does not dominate the use in %s", val, useBlock)
		}
	}

	for _, b := range v.f.Layout.Blocks() {
		for i, inst := range v.f.Layout.BlockInsts(b) {
			data := dfg.InstData(inst)
			for _, arg := range data.Args {
				checkUse(inst, b, i, arg)
			}
			for _, dest := range data.Dests {
				for _, arg := range dest.Args {
					checkUse(inst, b, i, arg)
				}
			}
		}
	}
}
