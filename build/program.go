package build

import (
	"lathe/frontend"
	"lathe/ir"
	"lathe/module"
)

// Names of the functions that make up a program
const (
	runtimeName = "increment_runtime"
	mainName    = "main"
)

// numberVar is the variable holding the number threaded through `main`
const numberVar frontend.Variable = 10

// incrementSignature creates the signature `(i32) -> i32` shared by the
// runtime and the imported increment function
func incrementSignature(m module.Module) ir.Signature {
	sig := m.MakeSignature()
	sig.Params = append(sig.Params, ir.NewAbiParam(ir.I32))
	sig.Returns = append(sig.Returns, ir.NewAbiParam(ir.I32))
	return sig
}

// mainSignature creates the signature `() -> i32` of `main`
func mainSignature(m module.Module) ir.Signature {
	sig := m.MakeSignature()
	sig.Returns = append(sig.Returns, ir.NewAbiParam(ir.I32))
	return sig
}

// buildIncrementRuntime builds the body of `increment_runtime` which returns
// its argument plus the project's increment
func (c *Compiler) buildIncrementRuntime(id module.FuncID, sig ir.Signature) (*ir.Function, error) {
	fn := ir.NewFunction(ir.UserFuncName{User: id.ExternalName()}, sig)
	fb := frontend.NewFunctionBuilder(fn, c.fctx)

	block := fb.CreateBlock()
	fb.AppendBlockParamsForFunctionParams(block)
	fb.SealBlock(block)
	fb.SwitchToBlock(block)

	params := fb.BlockParams(block)
	if err := fb.Err(); err != nil {
		return nil, err
	}

	sum := fb.Ins().IaddImm(params[0], int64(c.proj.Runtime.Increment))
	fb.Ins().Return([]ir.Value{sum})

	if err := fb.Finalize(); err != nil {
		return nil, err
	}

	return fn, nil
}

// buildMain builds the body of `main`: it passes the project's initial value
// to the imported increment function, carries the result across a jump into a
// second block and returns it.
func (c *Compiler) buildMain(m module.Module, id, importID module.FuncID, sig ir.Signature) (*ir.Function, error) {
	fn := ir.NewFunction(ir.UserFuncName{User: id.ExternalName()}, sig)

	incRef, err := m.DeclareFuncInFunc(importID, fn)
	if err != nil {
		return nil, err
	}

	fb := frontend.NewFunctionBuilder(fn, c.fctx)

	entry := fb.CreateBlock()
	fb.DeclareVar(numberVar, ir.I32)
	fb.SealBlock(entry)
	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SwitchToBlock(entry)

	initial := fb.Ins().Iconst(ir.I32, int64(c.proj.Runtime.Initial))
	call := fb.Ins().Call(incRef, []ir.Value{initial})

	results := fb.InstResults(call)
	if err := fb.Err(); err != nil {
		return nil, err
	}

	fb.DefVar(numberVar, results[0])

	exit := fb.CreateBlock()
	fb.Ins().Jump(exit, nil)
	fb.SealBlock(exit)
	fb.SwitchToBlock(exit)

	number := fb.UseVar(numberVar)
	fb.Ins().Return([]ir.Value{number})

	if err := fb.Finalize(); err != nil {
		return nil, err
	}

	return fn, nil
}
