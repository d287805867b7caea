package ir

import "fmt"

// Entities are small indices into the tables owned by a Function.  None of
// them hold a reference to the table they index.
type (
	Value   uint32
	Inst    uint32
	Block   uint32
	FuncRef uint32
	SigRef  uint32
)

const reservedIndex = ^uint32(0)

// Sentinel values for entities that have not been assigned
const (
	InvalidValue   = Value(reservedIndex)
	InvalidInst    = Inst(reservedIndex)
	InvalidBlock   = Block(reservedIndex)
	InvalidFuncRef = FuncRef(reservedIndex)
	InvalidSigRef  = SigRef(reservedIndex)
)

func (v Value) String() string   { return fmt.Sprintf("v%d", uint32(v)) }
func (i Inst) String() string    { return fmt.Sprintf("inst%d", uint32(i)) }
func (b Block) String() string   { return fmt.Sprintf("block%d", uint32(b)) }
func (f FuncRef) String() string { return fmt.Sprintf("fn%d", uint32(f)) }
func (s SigRef) String() string  { return fmt.Sprintf("sig%d", uint32(s)) }

// UserExternalName names an entity defined outside of the function: the
// namespace identifies the module that owns the declaration and the index
// identifies the declaration within it.
type UserExternalName struct {
	Namespace uint32
	Index     uint32
}

func (n UserExternalName) String() string {
	return fmt.Sprintf("u%d:%d", n.Namespace, n.Index)
}

// UserFuncName is the name of a function being built.  A non-empty Testcase
// takes precedence over the user name.
type UserFuncName struct {
	User     UserExternalName
	Testcase string
}

// TestcaseName creates a function name used for standalone functions that are
// not tied to a module declaration
func TestcaseName(name string) UserFuncName {
	return UserFuncName{Testcase: name}
}

func (n UserFuncName) String() string {
	if n.Testcase != "" {
		return "%" + n.Testcase
	}

	return n.User.String()
}

// ExtFuncData describes an external function referenced by call instructions
type ExtFuncData struct {
	Name      UserExternalName
	Signature SigRef

	// Colocated indicates the callee is known to be defined in the same
	// artifact as the caller
	Colocated bool
}
