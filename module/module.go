// Package module defines the function namespace shared by every output module
// flavor and the interface the flavors implement.
package module

import (
	"fmt"

	"lathe/codegen"
	"lathe/ir"
	"lathe/isa"
)

// Module is an output module that accumulates function declarations and
// definitions for one backend.  Every flavor ends in a one-way terminal
// operation after which declaring or defining fails with ErrFinalized.
type Module interface {
	// ISA returns the target the module compiles for
	ISA() isa.TargetISA

	// Declarations returns the module's function namespace
	Declarations() *Declarations

	// MakeSignature creates an empty signature using the target's default
	// calling convention
	MakeSignature() ir.Signature

	// DeclareFunction declares a function in the module
	DeclareFunction(name string, linkage Linkage, sig ir.Signature) (FuncID, error)

	// DeclareFuncInFunc makes a declared function callable from the body of
	// fn and returns the reference to use in call instructions
	DeclareFuncInFunc(id FuncID, fn *ir.Function) (ir.FuncRef, error)

	// DefineFunction compiles the function held by ctx as the body of id
	DefineFunction(id FuncID, ctx *codegen.Context) error
}

// Reimport declares a function from src in dst with Import linkage so that
// functions defined in dst can call it
func Reimport(dst, src Module, id FuncID) (FuncID, error) {
	decl, err := src.Declarations().Function(id)
	if err != nil {
		return FuncID{}, err
	}

	return dst.DeclareFunction(decl.Name, Import, decl.Signature)
}

// -----------------------------------------------------------------------------

// Registry is the declaration and definition bookkeeping shared by the module
// flavors.  It enforces the declaration rules; the flavors add compilation and
// artifact production on top.
type Registry struct {
	decls     *Declarations
	defined   []bool
	finalized bool
}

// NewRegistry creates an empty registry with a fresh namespace
func NewRegistry() *Registry {
	return &Registry{decls: NewDeclarations()}
}

// Declarations returns the registry's namespace
func (r *Registry) Declarations() *Declarations {
	return r.decls
}

// IsFinalized indicates whether the registry has been closed to mutation
func (r *Registry) IsFinalized() bool {
	return r.finalized
}

// IsDefined indicates whether a body has been defined for a function
func (r *Registry) IsDefined(id FuncID) bool {
	return r.decls.Owns(id) && r.defined[id.index]
}

// DeclareFunction declares a function unless the registry is finalized
func (r *Registry) DeclareFunction(name string, linkage Linkage, sig ir.Signature) (FuncID, error) {
	if r.finalized {
		return FuncID{}, fmt.Errorf("declaring `%s`: %w", name, ErrFinalized)
	}

	id, err := r.decls.DeclareFunction(name, linkage, sig)
	if err != nil {
		return FuncID{}, err
	}

	for len(r.defined) < len(r.decls.functions) {
		r.defined = append(r.defined, false)
	}

	return id, nil
}

// DeclareFuncInFunc imports a declared function into fn's reference table
func (r *Registry) DeclareFuncInFunc(id FuncID, fn *ir.Function) (ir.FuncRef, error) {
	decl, err := r.decls.Function(id)
	if err != nil {
		return ir.InvalidFuncRef, err
	}

	sigRef := fn.ImportSignature(decl.Signature)
	return fn.ImportFunction(ir.ExtFuncData{
		Name:      id.ExternalName(),
		Signature: sigRef,
		Colocated: decl.Linkage.IsFinal(),
	}), nil
}

// CheckDefinition validates that fn can be defined as the body of id: the
// function is declared here, definable, not yet defined, and every function
// it calls is declared in this registry with the signature fn uses.  On
// success the references of fn are marked colocated by the callees' current
// linkage.
func (r *Registry) CheckDefinition(id FuncID, fn *ir.Function) (*FunctionDeclaration, error) {
	if r.finalized {
		return nil, fmt.Errorf("defining %s: %w", id, ErrFinalized)
	}

	decl, err := r.decls.Function(id)
	if err != nil {
		return nil, err
	}

	if fn == nil {
		return nil, fmt.Errorf("defining `%s`: context has no function", decl.Name)
	}

	if !decl.Linkage.IsDefinable() {
		return nil, &InvalidImportDefinitionError{Name: decl.Name}
	}

	if r.defined[id.index] {
		return nil, &DuplicateDefinitionError{Name: decl.Name}
	}

	if !decl.Signature.Equal(fn.Signature) {
		return nil, &IncompatibleSignatureError{Name: decl.Name, Prev: decl.Signature.Clone(), New: fn.Signature.Clone()}
	}

	colocated := make([]bool, len(fn.DFG.ExtFuncs))
	for i, ext := range fn.DFG.ExtFuncs {
		callee, err := r.decls.Function(FuncIDFromName(ext.Name))
		if err != nil {
			return nil, fmt.Errorf("defining `%s`: call to %s: %w", decl.Name, ext.Name, ErrForeignFunction)
		}

		if int(ext.Signature) >= len(fn.DFG.Signatures) {
			return nil, fmt.Errorf("defining `%s`: reference to `%s` has no signature", decl.Name, callee.Name)
		}

		if sig := fn.DFG.Signatures[ext.Signature]; !sig.Equal(callee.Signature) {
			return nil, &IncompatibleSignatureError{Name: callee.Name, Prev: callee.Signature.Clone(), New: sig.Clone()}
		}

		colocated[i] = callee.Linkage.IsFinal()
	}

	// linkage may have been merged since the references were made
	for i := range fn.DFG.ExtFuncs {
		fn.DFG.ExtFuncs[i].Colocated = colocated[i]
	}

	return decl, nil
}

// MarkDefined records that a function has a body
func (r *Registry) MarkDefined(id FuncID) {
	r.defined[id.index] = true
}

// CheckComplete returns an error for the first function that must be defined
// in the module but was not
func (r *Registry) CheckComplete() error {
	for i, decl := range r.decls.functions {
		if decl.Linkage.IsDefinable() && !r.defined[i] {
			return &UndefinedFunctionError{Name: decl.Name, Linkage: decl.Linkage}
		}
	}

	return nil
}

// Finalize closes the registry to further declarations and definitions
func (r *Registry) Finalize() {
	r.finalized = true
}
