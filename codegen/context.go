// Package codegen drives a built IR function through verification and
// lowering for a target ISA.
package codegen

import (
	"fmt"

	"lathe/binemit"
	"lathe/ir"
	"lathe/isa"
)

// CompileError is returned when a function fails verification or lowering.
// No machine code is produced for a function that fails.
type CompileError struct {
	// Func is the name of the function that failed
	Func string

	// Err is either VerifierErrors or a backend error
	Err error
}

func (ce *CompileError) Error() string {
	return fmt.Sprintf("compilation of %s failed: %s", ce.Func, ce.Err)
}

func (ce *CompileError) Unwrap() error {
	return ce.Err
}

// Context holds a function and the code compiled from it.  The compiled code
// is tied to the ISA it was produced for: compiling the same context for a
// different ISA lowers the IR again rather than reusing machine code.
type Context struct {
	// Func is the function being compiled
	Func *ir.Function

	compiled    *binemit.CompiledCode
	compiledFor isa.TargetISA
}

// NewContext creates a context with no function
func NewContext() *Context {
	return &Context{}
}

// ForFunction creates a context for a built function
func ForFunction(f *ir.Function) *Context {
	return &Context{Func: f}
}

// Verify runs the verifier over the context's function
func (ctx *Context) Verify() error {
	if ctx.Func == nil {
		return &CompileError{Func: "<none>", Err: fmt.Errorf("context has no function")}
	}

	if err := Verify(ctx.Func); err != nil {
		return &CompileError{Func: ctx.Func.Name.String(), Err: err}
	}

	return nil
}

// Compile verifies the function and lowers it for the given ISA.  The result
// is cached until the context is cleared or compiled for another ISA.
func (ctx *Context) Compile(target isa.TargetISA) (*binemit.CompiledCode, error) {
	if ctx.compiled != nil && ctx.compiledFor == target {
		return ctx.compiled, nil
	}

	ctx.compiled, ctx.compiledFor = nil, nil
	if err := ctx.Verify(); err != nil {
		return nil, err
	}

	code, err := target.CompileFunction(ctx.Func)
	if err != nil {
		return nil, &CompileError{Func: ctx.Func.Name.String(), Err: err}
	}

	ctx.compiled, ctx.compiledFor = code, target
	return code, nil
}

// CompiledCode returns the most recently compiled code, if any
func (ctx *Context) CompiledCode() *binemit.CompiledCode {
	return ctx.compiled
}

// Clear drops the function and any compiled code so the context can be
// reused
func (ctx *Context) Clear() {
	ctx.Func = nil
	ctx.compiled = nil
	ctx.compiledFor = nil
}
