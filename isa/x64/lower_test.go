package x64

import (
	"bytes"
	"strings"
	"testing"

	"lathe/binemit"
	"lathe/frontend"
	"lathe/ir"
	"lathe/settings"
)

func flags(t *testing.T, pic bool, opt string) settings.Flags {
	t.Helper()

	sb := settings.NewBuilder()
	if pic {
		if err := sb.Enable("is_pic"); err != nil {
			t.Fatal(err)
		}
	}

	if err := sb.Set("opt_level", opt); err != nil {
		t.Fatal(err)
	}

	return settings.NewFlags(sb)
}

func signature(params, returns int) ir.Signature {
	sig := ir.NewSignature(ir.SystemV)
	for i := 0; i < params; i++ {
		sig.Params = append(sig.Params, ir.NewAbiParam(ir.I32))
	}
	for i := 0; i < returns; i++ {
		sig.Returns = append(sig.Returns, ir.NewAbiParam(ir.I32))
	}
	return sig
}

// buildIncrement builds `(i32) -> i32` returning its argument plus one
func buildIncrement(t *testing.T) *ir.Function {
	t.Helper()

	fn := ir.NewFunction(ir.TestcaseName("inc"), signature(1, 1))
	fb := frontend.NewFunctionBuilder(fn, frontend.NewFunctionBuilderContext())

	b := fb.CreateBlock()
	fb.AppendBlockParamsForFunctionParams(b)
	fb.SealBlock(b)
	fb.SwitchToBlock(b)
	fb.Ins().Return([]ir.Value{fb.Ins().IaddImm(fb.BlockParams(b)[0], 1)})

	if err := fb.Finalize(); err != nil {
		t.Fatalf("unexpected build error: %s", err)
	}

	return fn
}

// buildCaller builds `() -> i32` which calls an imported `(i32) -> i32` with
// 10 and then jumps to a block returning the result
func buildCaller(t *testing.T, callee ir.UserExternalName) *ir.Function {
	t.Helper()

	fn := ir.NewFunction(ir.TestcaseName("caller"), signature(0, 1))
	fb := frontend.NewFunctionBuilder(fn, frontend.NewFunctionBuilderContext())

	sigRef := fb.ImportSignature(signature(1, 1))
	ref := fb.ImportFunction(ir.ExtFuncData{Name: callee, Signature: sigRef})

	entry, exit := fb.CreateBlock(), fb.CreateBlock()
	fb.AppendBlockParam(exit, ir.I32)
	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SealBlock(entry)
	fb.SwitchToBlock(entry)

	call := fb.Ins().Call(ref, []ir.Value{fb.Ins().Iconst(ir.I32, 10)})
	fb.Ins().Jump(exit, fb.InstResults(call))

	fb.SealBlock(exit)
	fb.SwitchToBlock(exit)
	fb.Ins().Return(fb.BlockParams(exit))

	if err := fb.Finalize(); err != nil {
		t.Fatalf("unexpected build error: %s", err)
	}

	return fn
}

func TestLowerIncrement(t *testing.T) {
	code, err := New(flags(t, false, "none")).CompileFunction(buildIncrement(t))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := []byte{
		0x55, 0x48, 0x89, 0xE5, // push rbp; mov rbp, rsp
		0x48, 0x81, 0xEC, 0x10, 0x00, 0x00, 0x00, // sub rsp, 16
		0x48, 0x89, 0xBD, 0xF8, 0xFF, 0xFF, 0xFF, // mov [rbp-8], rdi
		0x48, 0x8B, 0x85, 0xF8, 0xFF, 0xFF, 0xFF, // mov rax, [rbp-8]
		0x81, 0xC0, 0x01, 0x00, 0x00, 0x00, // add eax, 1
		0x48, 0x89, 0x85, 0xF0, 0xFF, 0xFF, 0xFF, // mov [rbp-16], rax
		0x48, 0x8B, 0x85, 0xF0, 0xFF, 0xFF, 0xFF, // mov rax, [rbp-16]
		0xC9, 0xC3, // leave; ret
	}

	if !bytes.Equal(code.Code, want) {
		t.Errorf("got\n% X\nwant\n% X", code.Code, want)
	}

	if code.FrameSize != 16 {
		t.Errorf("frame size = %d; want 16", code.FrameSize)
	}

	if len(code.Relocs) != 0 {
		t.Errorf("expected no relocations, got %+v", code.Relocs)
	}
}

func TestLowerCallRelocations(t *testing.T) {
	callee := ir.UserExternalName{Namespace: 7, Index: 2}

	tests := []struct {
		pic    bool
		kind   binemit.Reloc
		addend int64
	}{
		{false, binemit.Abs8, 0},
		{true, binemit.X86CallPLTRel4, -4},
	}

	for _, tc := range tests {
		code, err := New(flags(t, tc.pic, "none")).CompileFunction(buildCaller(t, callee))
		if err != nil {
			t.Fatalf("pic=%v: unexpected error: %s", tc.pic, err)
		}

		if len(code.Relocs) != 1 {
			t.Fatalf("pic=%v: expected one relocation, got %+v", tc.pic, code.Relocs)
		}

		r := code.Relocs[0]
		if r.Kind != tc.kind || r.Name != callee || r.Addend != tc.addend {
			t.Errorf("pic=%v: got relocation %+v; want %s against %s with addend %d", tc.pic, r, tc.kind, callee, tc.addend)
		}

		if end := int(r.Offset) + r.Kind.Size(); end > len(code.Code) {
			t.Errorf("pic=%v: relocation ends at %d past the code (%d bytes)", tc.pic, end, len(code.Code))
		}

		// the frame must keep rsp 16-byte aligned at the call
		if code.FrameSize%16 != 0 {
			t.Errorf("pic=%v: frame size %d is not 16-byte aligned", tc.pic, code.FrameSize)
		}
	}
}

func TestOptimizationElidesFallthrough(t *testing.T) {
	callee := ir.UserExternalName{Namespace: 1, Index: 0}

	plain, err := New(flags(t, false, "none")).CompileFunction(buildCaller(t, callee))
	if err != nil {
		t.Fatal(err)
	}

	opt, err := New(flags(t, false, "speed")).CompileFunction(buildCaller(t, callee))
	if err != nil {
		t.Fatal(err)
	}

	// the jump into the next block is a 5-byte jmp rel32
	if len(plain.Code)-len(opt.Code) != 5 {
		t.Errorf("expected the optimized code to be 5 bytes shorter, got %d and %d bytes", len(plain.Code), len(opt.Code))
	}
}

func TestTooManyReturns(t *testing.T) {
	fn := ir.NewFunction(ir.TestcaseName("triple"), signature(0, 3))

	_, err := New(flags(t, false, "none")).CompileFunction(fn)
	if err == nil || !strings.Contains(err.Error(), "3 return values") {
		t.Errorf("expected a return count error, got %v", err)
	}
}

// buildSumLoop builds `(i32) -> i32` returning n + (n-1) + ... + 1.  The
// entry block falls through into the loop header.
func buildSumLoop(t *testing.T) *ir.Function {
	t.Helper()

	fn := ir.NewFunction(ir.TestcaseName("sum"), signature(1, 1))
	fb := frontend.NewFunctionBuilder(fn, frontend.NewFunctionBuilderContext())
	i, sum := frontend.Variable(0), frontend.Variable(1)

	entry, header, body, exit := fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock()

	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SealBlock(entry)
	fb.SwitchToBlock(entry)
	fb.DeclareVar(i, ir.I32)
	fb.DeclareVar(sum, ir.I32)
	fb.DefVar(i, fb.BlockParams(entry)[0])
	fb.DefVar(sum, fb.Ins().Iconst(ir.I32, 0))
	fb.Ins().Jump(header, nil)

	fb.SwitchToBlock(header)
	fb.Ins().Brif(fb.UseVar(i), body, nil, exit, nil)
	fb.SealBlock(body)
	fb.SealBlock(exit)

	fb.SwitchToBlock(body)
	iv := fb.UseVar(i)
	sv := fb.UseVar(sum)
	fb.DefVar(sum, fb.Ins().Iadd(sv, iv))
	fb.DefVar(i, fb.Ins().IaddImm(iv, -1))
	fb.Ins().Jump(header, nil)
	fb.SealBlock(header)

	fb.SwitchToBlock(exit)
	fb.Ins().Return([]ir.Value{fb.UseVar(sum)})

	if err := fb.Finalize(); err != nil {
		t.Fatalf("unexpected build error: %s", err)
	}

	return fn
}

func TestLoopElidesOnlyFallthrough(t *testing.T) {
	plain, err := New(flags(t, false, "none")).CompileFunction(buildSumLoop(t))
	if err != nil {
		t.Fatal(err)
	}

	opt, err := New(flags(t, false, "speed")).CompileFunction(buildSumLoop(t))
	if err != nil {
		t.Fatal(err)
	}

	// only the entry block's jump into the header is elided; the back edge
	// and the branch into the body are kept
	if len(plain.Code)-len(opt.Code) != 5 {
		t.Errorf("expected the optimized loop to be 5 bytes shorter, got %d and %d bytes", len(plain.Code), len(opt.Code))
	}
}
