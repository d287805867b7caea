// Package ir defines the block-structured SSA intermediate representation
// consumed by the code generators.  A Function owns all of its values,
// instructions, and blocks; every entity is referred to by index.
package ir

// Function is a single function body in SSA form
type Function struct {
	// Name is the name the function was created with.  Modules identify
	// functions by declaration, not by this name.
	Name UserFuncName

	// Signature is the signature of the function itself
	Signature Signature

	DFG    DataFlowGraph
	Layout Layout
}

// NewFunction creates an empty function with a name and signature
func NewFunction(name UserFuncName, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig.Clone(),
		Layout:    newLayout(),
	}
}

// ImportFunction adds an external function reference to the function
func (f *Function) ImportFunction(data ExtFuncData) FuncRef {
	return f.DFG.ImportFunction(data)
}

// ImportSignature adds a signature reference to the function
func (f *Function) ImportSignature(sig Signature) SigRef {
	return f.DFG.ImportSignature(sig)
}

// Successors returns the destinations of the terminator of a block
func (f *Function) Successors(b Block) []BlockCall {
	last, ok := f.Layout.LastInst(b)
	if !ok {
		return nil
	}

	data := f.DFG.InstData(last)
	if !data.Opcode.IsBranch() {
		return nil
	}

	return data.Dests
}
