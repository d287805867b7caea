package llvmgen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"lathe/codegen"
	"lathe/frontend"
	lir "lathe/ir"
	"lathe/isa"
	"lathe/module"
	"lathe/settings"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	ib, err := isa.LookupByName("x86_64-unknown-linux-gnu")
	if err != nil {
		t.Fatal(err)
	}

	target, err := ib.Finish(settings.NewFlags(settings.NewBuilder()))
	if err != nil {
		t.Fatal(err)
	}

	return New(target, "counter")
}

func signature(m *Module, params, returns int) lir.Signature {
	sig := m.MakeSignature()
	for i := 0; i < params; i++ {
		sig.Params = append(sig.Params, lir.NewAbiParam(lir.I32))
	}
	for i := 0; i < returns; i++ {
		sig.Returns = append(sig.Returns, lir.NewAbiParam(lir.I32))
	}
	return sig
}

func define(t *testing.T, m *Module, id module.FuncID, fn *lir.Function) {
	t.Helper()

	if err := m.DefineFunction(id, codegen.ForFunction(fn)); err != nil {
		t.Fatalf("unexpected error defining %s: %s", fn.Name, err)
	}
}

// defineProgram defines a local increment function and an exported `main`
// which passes 10 to an imported `increment_number_c`
func defineProgram(t *testing.T, m *Module) {
	t.Helper()

	runtime, err := m.DeclareFunction("increment_runtime", module.Local, signature(m, 1, 1))
	if err != nil {
		t.Fatal(err)
	}

	main, err := m.DeclareFunction("main", module.Export, signature(m, 0, 1))
	if err != nil {
		t.Fatal(err)
	}

	imported, err := m.DeclareFunction("increment_number_c", module.Import, signature(m, 1, 1))
	if err != nil {
		t.Fatal(err)
	}

	fctx := frontend.NewFunctionBuilderContext()

	incFn := lir.NewFunction(lir.UserFuncName{User: runtime.ExternalName()}, signature(m, 1, 1))
	fb := frontend.NewFunctionBuilder(incFn, fctx)
	b := fb.CreateBlock()
	fb.AppendBlockParamsForFunctionParams(b)
	fb.SealBlock(b)
	fb.SwitchToBlock(b)
	fb.Ins().Return([]lir.Value{fb.Ins().IaddImm(fb.BlockParams(b)[0], 1)})
	if err := fb.Finalize(); err != nil {
		t.Fatal(err)
	}

	mainFn := lir.NewFunction(lir.UserFuncName{User: main.ExternalName()}, signature(m, 0, 1))
	ref, err := m.DeclareFuncInFunc(imported, mainFn)
	if err != nil {
		t.Fatal(err)
	}

	fb = frontend.NewFunctionBuilder(mainFn, fctx)
	b = fb.CreateBlock()
	fb.AppendBlockParamsForFunctionParams(b)
	fb.SealBlock(b)
	fb.SwitchToBlock(b)
	call := fb.Ins().Call(ref, []lir.Value{fb.Ins().Iconst(lir.I32, 10)})
	fb.Ins().Return(fb.InstResults(call))
	if err := fb.Finalize(); err != nil {
		t.Fatal(err)
	}

	define(t, m, runtime, incFn)
	define(t, m, main, mainFn)
}

// -----------------------------------------------------------------------------

func TestGenerateProgram(t *testing.T) {
	m := newTestModule(t)
	defineProgram(t, m)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("unexpected error writing module: %s", err)
	}

	text := buf.String()
	for _, want := range []string{
		`source_filename = "counter"`,
		`target triple = "x86_64-unknown-linux-gnu"`,
		"define internal i32 @increment_runtime(",
		"add i32 %0, 1",
		"define i32 @main()",
		"call i32 @increment_number_c(i32 10)",
		"declare i32 @increment_number_c(",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}

	if strings.Contains(text, "define internal i32 @main") {
		t.Errorf("exported main was given internal linkage:\n%s", text)
	}
}

func TestBlockParamsBecomePhis(t *testing.T) {
	m := newTestModule(t)

	sig := signature(m, 1, 1)
	id, err := m.DeclareFunction("select", module.Export, sig)
	if err != nil {
		t.Fatal(err)
	}

	fn := lir.NewFunction(lir.UserFuncName{User: id.ExternalName()}, sig)
	fb := frontend.NewFunctionBuilder(fn, frontend.NewFunctionBuilderContext())
	x := frontend.Variable(0)

	entry, thenBlock, elseBlock, merge := fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock()

	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SealBlock(entry)
	fb.SwitchToBlock(entry)
	fb.DeclareVar(x, lir.I32)
	fb.Ins().Brif(fb.BlockParams(entry)[0], thenBlock, nil, elseBlock, nil)
	fb.SealBlock(thenBlock)
	fb.SealBlock(elseBlock)

	fb.SwitchToBlock(thenBlock)
	fb.DefVar(x, fb.Ins().Iconst(lir.I32, 1))
	fb.Ins().Jump(merge, nil)

	fb.SwitchToBlock(elseBlock)
	fb.DefVar(x, fb.Ins().Iconst(lir.I32, 2))
	fb.Ins().Jump(merge, nil)

	fb.SealBlock(merge)
	fb.SwitchToBlock(merge)
	fb.Ins().Return([]lir.Value{fb.UseVar(x)})

	if err := fb.Finalize(); err != nil {
		t.Fatal(err)
	}

	define(t, m, id, fn)

	text := m.String()
	for _, want := range []string{"icmp ne i32 %0, 0", "br i1", "phi i32", "%block1", "%block2", "ret i32"} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestFinish(t *testing.T) {
	m := newTestModule(t)
	if _, err := m.DeclareFunction("increment_runtime", module.Local, signature(m, 1, 1)); err != nil {
		t.Fatal(err)
	}

	var ufe *module.UndefinedFunctionError
	if err := m.Finish(); !errors.As(err, &ufe) || ufe.Name != "increment_runtime" {
		t.Errorf("expected an UndefinedFunctionError, got %v", err)
	}

	m = newTestModule(t)
	defineProgram(t, m)

	if err := m.Finish(); err != nil {
		t.Fatal(err)
	}

	first := m.String()
	if err := m.Finish(); err != nil {
		t.Errorf("finishing twice should have no effect, got %v", err)
	}

	if m.String() != first {
		t.Errorf("output changed after finishing twice")
	}

	if _, err := m.DeclareFunction("late", module.Local, signature(m, 0, 0)); !errors.Is(err, module.ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestDefineRejectsInvalidFunctions(t *testing.T) {
	m := newTestModule(t)

	id, err := m.DeclareFunction("main", module.Export, signature(m, 0, 1))
	if err != nil {
		t.Fatal(err)
	}

	// a function with no blocks fails verification
	fn := lir.NewFunction(lir.UserFuncName{User: id.ExternalName()}, signature(m, 0, 1))

	var ce *codegen.CompileError
	if err := m.DefineFunction(id, codegen.ForFunction(fn)); !errors.As(err, &ce) {
		t.Errorf("expected a CompileError, got %v", err)
	}

	if m.reg.IsDefined(id) {
		t.Errorf("rejected definitions must not mark the function defined")
	}
}

func TestHostTargetTriple(t *testing.T) {
	ib, err := isa.LookupByName("host")
	if err != nil {
		t.Skipf("no backend for the host: %s", err)
	}

	target, err := ib.Finish(settings.NewFlags(settings.NewBuilder()))
	if err != nil {
		t.Fatal(err)
	}

	text := New(target, "counter").String()
	if !strings.Contains(text, `target triple = "x86_64-`) {
		t.Errorf("expected a full x86_64 target triple:\n%s", text)
	}
}
