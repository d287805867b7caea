// Package llvmgen translates built IR functions into LLVM IR source text.
// The text can be passed to `opt` and `llc` to produce optimized assembly for
// any target LLVM supports.
package llvmgen

import (
	"fmt"
	"io"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"lathe/codegen"
	lir "lathe/ir"
	"lathe/isa"
	"lathe/module"
)

// Module is a module whose functions are translated into an LLVM module.  It
// performs no code generation of its own: the target is only used to fill in
// the module's triple and calling convention.
type Module struct {
	reg *module.Registry
	isa isa.TargetISA

	// llModule is the LLVM module being built
	llModule *ir.Module

	// funcs holds the LLVM function of each declared function that has been
	// referenced or defined so far
	funcs map[module.FuncID]*ir.Func
}

// New creates an empty LLVM module named name
func New(target isa.TargetISA, name string) *Module {
	llModule := ir.NewModule()
	llModule.SourceFilename = name
	llModule.TargetTriple = target.Triple().String()

	return &Module{
		reg:      module.NewRegistry(),
		isa:      target,
		llModule: llModule,
		funcs:    make(map[module.FuncID]*ir.Func),
	}
}

// ISA returns the module's target
func (m *Module) ISA() isa.TargetISA {
	return m.isa
}

// Declarations returns the module's function namespace
func (m *Module) Declarations() *module.Declarations {
	return m.reg.Declarations()
}

// MakeSignature creates an empty signature for the target calling convention
func (m *Module) MakeSignature() lir.Signature {
	return lir.NewSignature(m.isa.DefaultCallConv())
}

// DeclareFunction declares a function in the module
func (m *Module) DeclareFunction(name string, linkage module.Linkage, sig lir.Signature) (module.FuncID, error) {
	return m.reg.DeclareFunction(name, linkage, sig)
}

// DeclareFuncInFunc makes a function of this module callable from fn
func (m *Module) DeclareFuncInFunc(id module.FuncID, fn *lir.Function) (lir.FuncRef, error) {
	return m.reg.DeclareFuncInFunc(id, fn)
}

// DefineFunction verifies the function in ctx and translates it into the body
// of id
func (m *Module) DefineFunction(id module.FuncID, ctx *codegen.Context) error {
	decl, err := m.reg.CheckDefinition(id, ctx.Func)
	if err != nil {
		return err
	}

	if err := ctx.Verify(); err != nil {
		return fmt.Errorf("defining `%s`: %w", decl.Name, err)
	}

	llFunc, err := m.function(id)
	if err != nil {
		return err
	}

	if err := newFuncGenerator(m, ctx.Func, llFunc).generate(); err != nil {
		return fmt.Errorf("defining `%s`: %w", decl.Name, err)
	}

	m.reg.MarkDefined(id)
	return nil
}

// Finish checks that every function that must be defined was and applies the
// final linkage of every declaration.  It is idempotent.
func (m *Module) Finish() error {
	if m.reg.IsFinalized() {
		return nil
	}

	if err := m.reg.CheckComplete(); err != nil {
		return err
	}

	decls := m.reg.Declarations()
	for _, id := range decls.Functions() {
		llFunc, err := m.function(id)
		if err != nil {
			return err
		}

		decl, _ := decls.Function(id)
		llFunc.Linkage = convLinkage(decl.Linkage)
	}

	m.reg.Finalize()
	return nil
}

// WriteTo finishes the module and writes its LLVM IR source text to w
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	if err := m.Finish(); err != nil {
		return 0, err
	}

	return m.llModule.WriteTo(w)
}

func (m *Module) String() string {
	return m.llModule.String()
}

// function returns the LLVM function for a declaration, creating it on first
// use
func (m *Module) function(id module.FuncID) (*ir.Func, error) {
	if f, ok := m.funcs[id]; ok {
		return f, nil
	}

	decl, err := m.reg.Declarations().Function(id)
	if err != nil {
		return nil, err
	}

	params := make([]*ir.Param, len(decl.Signature.Params))
	for i, p := range decl.Signature.Params {
		params[i] = ir.NewParam("", convType(p.Value))
	}

	f := m.llModule.NewFunc(decl.Name, convReturnType(decl.Signature), params...)
	f.CallingConv = convCallConv(decl.Signature.CallConv)

	m.funcs[id] = f
	return f, nil
}

// -----------------------------------------------------------------------------

// convType converts an integer type to its LLVM equivalent
func convType(t lir.Type) *types.IntType {
	switch t {
	case lir.I8:
		return types.I8
	case lir.I16:
		return types.I16
	case lir.I32:
		return types.I32
	default:
		return types.I64
	}
}

// convReturnType converts the return list of a signature: nothing becomes
// void, a single value is returned directly and several values are returned
// as a struct
func convReturnType(sig lir.Signature) types.Type {
	switch len(sig.Returns) {
	case 0:
		return types.Void
	case 1:
		return convType(sig.Returns[0].Value)
	}

	fields := make([]types.Type, len(sig.Returns))
	for i, r := range sig.Returns {
		fields[i] = convType(r.Value)
	}

	return types.NewStruct(fields...)
}

func convCallConv(cc lir.CallConv) enum.CallingConv {
	if cc == lir.Fast {
		return enum.CallingConvFast
	}

	return enum.CallingConvNone
}

func convLinkage(l module.Linkage) enum.Linkage {
	switch l {
	case module.Local:
		return enum.LinkageInternal
	case module.Preemptible:
		return enum.LinkageWeak
	}

	return enum.LinkageNone
}
