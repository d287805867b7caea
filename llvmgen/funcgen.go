package llvmgen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	lir "lathe/ir"
	"lathe/module"
)

// funcGenerator translates the body of one verified function.  Block
// parameters of the entry block become the function's parameters; those of
// every other block become phi nodes whose incoming values are added as the
// branches into the block are translated.
type funcGenerator struct {
	m      *Module
	f      *lir.Function
	llFunc *ir.Func

	blocks map[lir.Block]*ir.Block
	phis   map[lir.Block][]*ir.InstPhi
	values map[lir.Value]value.Value
}

func newFuncGenerator(m *Module, f *lir.Function, llFunc *ir.Func) *funcGenerator {
	return &funcGenerator{
		m:      m,
		f:      f,
		llFunc: llFunc,
		blocks: make(map[lir.Block]*ir.Block),
		phis:   make(map[lir.Block][]*ir.InstPhi),
		values: make(map[lir.Value]value.Value),
	}
}

func (fg *funcGenerator) generate() error {
	entry, _ := fg.f.Layout.EntryBlock()

	// create every block up front so that branches can refer to blocks laid
	// out after them
	for _, b := range fg.f.Layout.Blocks() {
		llBlock := fg.llFunc.NewBlock(b.String())
		fg.blocks[b] = llBlock

		params := fg.f.DFG.BlockParams(b)
		if b == entry {
			for i, p := range params {
				fg.values[p] = fg.llFunc.Params[i]
			}

			continue
		}

		for _, p := range params {
			// incoming values are not known yet so the type is given
			// explicitly rather than inferred from them
			phi := &ir.InstPhi{Typ: convType(fg.f.DFG.ValueType(p))}
			llBlock.Insts = append(llBlock.Insts, phi)

			fg.values[p] = phi
			fg.phis[b] = append(fg.phis[b], phi)
		}
	}

	// definitions dominate their uses so visiting blocks in reverse post
	// order sees every value before it is used
	for _, b := range fg.reversePostOrder(entry) {
		for _, inst := range fg.f.Layout.BlockInsts(b) {
			if err := fg.generateInst(b, inst); err != nil {
				return err
			}
		}
	}

	return nil
}

func (fg *funcGenerator) reversePostOrder(entry lir.Block) []lir.Block {
	visited := make(map[lir.Block]bool)
	var post []lir.Block

	var visit func(b lir.Block)
	visit = func(b lir.Block) {
		visited[b] = true
		for _, s := range fg.f.Successors(b) {
			if !visited[s.Block] {
				visit(s.Block)
			}
		}
		post = append(post, b)
	}
	visit(entry)

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}

	return post
}

func (fg *funcGenerator) value(v lir.Value) value.Value {
	return fg.values[v]
}

func (fg *funcGenerator) valueList(vals []lir.Value) []value.Value {
	llVals := make([]value.Value, len(vals))
	for i, v := range vals {
		llVals[i] = fg.value(v)
	}

	return llVals
}

// generateInst translates a single instruction of block b
func (fg *funcGenerator) generateInst(b lir.Block, inst lir.Inst) error {
	llBlock := fg.blocks[b]
	data := fg.f.DFG.InstData(inst)
	results := fg.f.DFG.InstResults(inst)

	switch data.Opcode {
	case lir.OpIconst:
		fg.values[results[0]] = constant.NewInt(convType(data.Type), data.Imm)
	case lir.OpIadd:
		fg.values[results[0]] = llBlock.NewAdd(fg.value(data.Args[0]), fg.value(data.Args[1]))
	case lir.OpIaddImm:
		fg.values[results[0]] = llBlock.NewAdd(fg.value(data.Args[0]), constant.NewInt(convType(data.Type), data.Imm))
	case lir.OpIsub:
		fg.values[results[0]] = llBlock.NewSub(fg.value(data.Args[0]), fg.value(data.Args[1]))
	case lir.OpImul:
		fg.values[results[0]] = llBlock.NewMul(fg.value(data.Args[0]), fg.value(data.Args[1]))
	case lir.OpJump:
		fg.addIncoming(b, data.Dests[0])
		llBlock.NewBr(fg.blocks[data.Dests[0].Block])
	case lir.OpBrif:
		cond := data.Args[0]
		zero := constant.NewInt(convType(fg.f.DFG.ValueType(cond)), 0)
		cmp := llBlock.NewICmp(enum.IPredNE, fg.value(cond), zero)

		fg.addIncoming(b, data.Dests[0])
		fg.addIncoming(b, data.Dests[1])
		llBlock.NewCondBr(cmp, fg.blocks[data.Dests[0].Block], fg.blocks[data.Dests[1].Block])
	case lir.OpCall:
		return fg.generateCall(llBlock, data, results)
	case lir.OpReturn:
		fg.generateReturn(llBlock, data.Args)
	default:
		return fmt.Errorf("no LLVM translation for %s", data.Opcode)
	}

	return nil
}

// addIncoming records the values a branch from b passes to the parameters of
// its destination
func (fg *funcGenerator) addIncoming(b lir.Block, dest lir.BlockCall) {
	for i, phi := range fg.phis[dest.Block] {
		phi.Incs = append(phi.Incs, ir.NewIncoming(fg.value(dest.Args[i]), fg.blocks[b]))
	}
}

func (fg *funcGenerator) generateCall(llBlock *ir.Block, data *lir.InstData, results []lir.Value) error {
	ext := fg.f.DFG.ExtFuncs[data.Func]

	callee, err := fg.m.function(module.FuncIDFromName(ext.Name))
	if err != nil {
		return err
	}

	call := llBlock.NewCall(callee, fg.valueList(data.Args)...)
	call.CallingConv = callee.CallingConv

	switch len(results) {
	case 0:
	case 1:
		fg.values[results[0]] = call
	default:
		for i, r := range results {
			fg.values[r] = llBlock.NewExtractValue(call, uint64(i))
		}
	}

	return nil
}

func (fg *funcGenerator) generateReturn(llBlock *ir.Block, vals []lir.Value) {
	switch len(vals) {
	case 0:
		llBlock.NewRet(nil)
	case 1:
		llBlock.NewRet(fg.value(vals[0]))
	default:
		retType := fg.llFunc.Sig.RetType
		var agg value.Value = constant.NewUndef(retType)
		for i, v := range vals {
			agg = llBlock.NewInsertValue(agg, fg.value(v), uint64(i))
		}

		llBlock.NewRet(agg)
	}
}
