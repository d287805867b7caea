package ir

// ValueDefKind indicates how a value was defined
type ValueDefKind uint8

// Enumeration of value definition kinds
const (
	DefResult ValueDefKind = iota // result of an instruction
	DefParam                      // parameter of a block
)

// ValueDef is the definition point of a value
type ValueDef struct {
	Kind  ValueDefKind
	Inst  Inst
	Block Block
	Num   int
}

// valueData stores the type and definition of a value
type valueData struct {
	typ Type
	def ValueDef
}

// blockData stores the parameters of a block
type blockData struct {
	params []Value
}

// DataFlowGraph owns every value, instruction, and block of a function along
// with the external functions and signatures its calls refer to.
type DataFlowGraph struct {
	insts   []InstData
	results [][]Value
	values  []valueData
	blocks  []blockData

	// Signatures is the table of signatures referenced by ExtFuncs
	Signatures []Signature

	// ExtFuncs is the table of functions that calls may reference
	ExtFuncs []ExtFuncData
}

// NumValues returns the number of values allocated in the graph
func (dfg *DataFlowGraph) NumValues() int { return len(dfg.values) }

// NumInsts returns the number of instructions allocated in the graph
func (dfg *DataFlowGraph) NumInsts() int { return len(dfg.insts) }

// NumBlocks returns the number of blocks allocated in the graph
func (dfg *DataFlowGraph) NumBlocks() int { return len(dfg.blocks) }

// ValueIsValid checks whether v refers to an allocated value
func (dfg *DataFlowGraph) ValueIsValid(v Value) bool {
	return int(v) < len(dfg.values)
}

// InstIsValid checks whether inst refers to an allocated instruction
func (dfg *DataFlowGraph) InstIsValid(inst Inst) bool {
	return int(inst) < len(dfg.insts)
}

// BlockIsValid checks whether b refers to an allocated block
func (dfg *DataFlowGraph) BlockIsValid(b Block) bool {
	return int(b) < len(dfg.blocks)
}

// ValueType returns the type of a value
func (dfg *DataFlowGraph) ValueType(v Value) Type {
	return dfg.values[v].typ
}

// ValueDef returns where a value was defined
func (dfg *DataFlowGraph) ValueDef(v Value) ValueDef {
	return dfg.values[v].def
}

// MakeBlock allocates a new block with no parameters
func (dfg *DataFlowGraph) MakeBlock() Block {
	dfg.blocks = append(dfg.blocks, blockData{})
	return Block(len(dfg.blocks) - 1)
}

// AppendBlockParam adds a parameter of type t to the end of a block's
// parameter list and returns the new value
func (dfg *DataFlowGraph) AppendBlockParam(b Block, t Type) Value {
	bd := &dfg.blocks[b]
	v := dfg.makeValue(t, ValueDef{Kind: DefParam, Block: b, Num: len(bd.params), Inst: InvalidInst})
	bd.params = append(bd.params, v)
	return v
}

// BlockParams returns the parameters of a block
func (dfg *DataFlowGraph) BlockParams(b Block) []Value {
	return dfg.blocks[b].params
}

// MakeInst allocates a new instruction.  Results are created separately by
// MakeInstResults.
func (dfg *DataFlowGraph) MakeInst(data InstData) Inst {
	dfg.insts = append(dfg.insts, data)
	dfg.results = append(dfg.results, nil)
	return Inst(len(dfg.insts) - 1)
}

// InstData returns a pointer to the payload of an instruction so that branch
// arguments may be amended in place
func (dfg *DataFlowGraph) InstData(inst Inst) *InstData {
	return &dfg.insts[inst]
}

// MakeInstResults creates the result values of an instruction from its
// opcode: one value of the controlling type for arithmetic, the callee's
// return types for calls, and nothing for terminators.
func (dfg *DataFlowGraph) MakeInstResults(inst Inst) []Value {
	data := &dfg.insts[inst]

	var types []Type
	switch data.Opcode {
	case OpIconst, OpIadd, OpIaddImm, OpIsub, OpImul:
		types = []Type{data.Type}
	case OpCall:
		for _, r := range dfg.CallSignature(inst).Returns {
			types = append(types, r.Value)
		}
	}

	results := make([]Value, len(types))
	for i, t := range types {
		results[i] = dfg.makeValue(t, ValueDef{Kind: DefResult, Inst: inst, Num: i, Block: InvalidBlock})
	}

	dfg.results[inst] = results
	return results
}

// InstResults returns the results of an instruction
func (dfg *DataFlowGraph) InstResults(inst Inst) []Value {
	return dfg.results[inst]
}

// FirstResult returns the first result of an instruction or InvalidValue if
// it has none
func (dfg *DataFlowGraph) FirstResult(inst Inst) Value {
	if rs := dfg.results[inst]; len(rs) > 0 {
		return rs[0]
	}

	return InvalidValue
}

// CallSignature returns the signature of the function called by a call
// instruction
func (dfg *DataFlowGraph) CallSignature(inst Inst) Signature {
	ext := dfg.ExtFuncs[dfg.insts[inst].Func]
	return dfg.Signatures[ext.Signature]
}

// ImportSignature adds a signature to the function's signature table
func (dfg *DataFlowGraph) ImportSignature(sig Signature) SigRef {
	dfg.Signatures = append(dfg.Signatures, sig.Clone())
	return SigRef(len(dfg.Signatures) - 1)
}

// ImportFunction adds an external function to the function's reference table
func (dfg *DataFlowGraph) ImportFunction(data ExtFuncData) FuncRef {
	dfg.ExtFuncs = append(dfg.ExtFuncs, data)
	return FuncRef(len(dfg.ExtFuncs) - 1)
}

func (dfg *DataFlowGraph) makeValue(t Type, def ValueDef) Value {
	dfg.values = append(dfg.values, valueData{typ: t, def: def})
	return Value(len(dfg.values) - 1)
}
