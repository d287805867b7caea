package ir

// Opcode identifies the operation performed by an instruction
type Opcode uint8

// Enumeration of opcodes
const (
	OpIconst Opcode = iota
	OpIadd
	OpIaddImm
	OpIsub
	OpImul
	OpJump
	OpBrif
	OpCall
	OpReturn
)

var opcodeNames = [...]string{
	"iconst",   // OpIconst
	"iadd",     // OpIadd
	"iadd_imm", // OpIaddImm
	"isub",     // OpIsub
	"imul",     // OpImul
	"jump",     // OpJump
	"brif",     // OpBrif
	"call",     // OpCall
	"return",   // OpReturn
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}

	return "unknown"
}

// IsTerminator indicates whether the opcode ends a block
func (op Opcode) IsTerminator() bool {
	return op == OpJump || op == OpBrif || op == OpReturn
}

// IsBranch indicates whether the opcode transfers control to other blocks
func (op Opcode) IsBranch() bool {
	return op == OpJump || op == OpBrif
}

// BlockCall is a branch destination along with the values passed to the
// destination's block parameters
type BlockCall struct {
	Block Block
	Args  []Value
}

// InstData is the payload of a single instruction.  Which fields are
// meaningful depends on the opcode:
//
//	iconst:   Type, Imm
//	iadd:     Args[0], Args[1]
//	iadd_imm: Args[0], Imm
//	jump:     Dests[0]
//	brif:     Args[0] (condition), Dests[0] (nonzero), Dests[1] (zero)
//	call:     Func, Args
//	return:   Args
type InstData struct {
	Opcode Opcode

	// Type is the controlling type of the instruction (the result type for
	// arithmetic).
	Type Type

	Args  []Value
	Imm   int64
	Dests []BlockCall
	Func  FuncRef
}
