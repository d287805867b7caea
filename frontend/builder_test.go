package frontend

import (
	"errors"
	"testing"

	"lathe/ir"
)

func i32Sig(params, returns int) ir.Signature {
	sig := ir.NewSignature(ir.SystemV)
	for i := 0; i < params; i++ {
		sig.Params = append(sig.Params, ir.NewAbiParam(ir.I32))
	}
	for i := 0; i < returns; i++ {
		sig.Returns = append(sig.Returns, ir.NewAbiParam(ir.I32))
	}
	return sig
}

// buildDiamond builds a function that selects 1 or 2 through a variable
// assigned on both sides of a branch.  If sealLate is set, the merge block
// is read before it is sealed.
func buildDiamond(sealLate bool) (*ir.Function, error) {
	fn := ir.NewFunction(ir.TestcaseName("diamond"), i32Sig(1, 1))
	fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())
	x := Variable(0)

	entry := fb.CreateBlock()
	thenBlock := fb.CreateBlock()
	elseBlock := fb.CreateBlock()
	merge := fb.CreateBlock()

	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SealBlock(entry)
	fb.SwitchToBlock(entry)
	fb.DeclareVar(x, ir.I32)

	cond := fb.BlockParams(entry)[0]
	fb.Ins().Brif(cond, thenBlock, nil, elseBlock, nil)
	fb.SealBlock(thenBlock)
	fb.SealBlock(elseBlock)

	fb.SwitchToBlock(thenBlock)
	fb.DefVar(x, fb.Ins().Iconst(ir.I32, 1))
	fb.Ins().Jump(merge, nil)

	fb.SwitchToBlock(elseBlock)
	fb.DefVar(x, fb.Ins().Iconst(ir.I32, 2))

	if sealLate {
		fb.Ins().Jump(merge, nil)
		fb.SwitchToBlock(merge)
		result := fb.UseVar(x)
		fb.SealBlock(merge)
		fb.Ins().Return([]ir.Value{result})
	} else {
		fb.Ins().Jump(merge, nil)
		fb.SealBlock(merge)
		fb.SwitchToBlock(merge)
		fb.Ins().Return([]ir.Value{fb.UseVar(x)})
	}

	return fn, fb.Finalize()
}

const diamondText = `function %diamond(i32) -> i32 system_v {
block0(v0: i32):
    brif v0, block1, block2

block1:
    v1 = iconst.i32 1
    jump block3(v1)

block2:
    v2 = iconst.i32 2
    jump block3(v2)

block3(v3: i32):
    return v3
}
`

func TestMergedPredecessors(t *testing.T) {
	for _, sealLate := range []bool{false, true} {
		fn, err := buildDiamond(sealLate)
		if err != nil {
			t.Fatalf("sealLate=%v: unexpected error: %s", sealLate, err)
		}

		if got := fn.String(); got != diamondText {
			t.Errorf("sealLate=%v: got\n%s\nwant\n%s", sealLate, got, diamondText)
		}
	}
}

func TestSinglePredecessor(t *testing.T) {
	sig := i32Sig(0, 1)
	fn := ir.NewFunction(ir.TestcaseName("main"), sig)
	fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())

	sigRef := fb.ImportSignature(i32Sig(1, 1))
	inc := fb.ImportFunction(ir.ExtFuncData{Name: ir.UserExternalName{Namespace: 0, Index: 2}, Signature: sigRef})

	num := Variable(10)
	entry := fb.CreateBlock()
	fb.DeclareVar(num, ir.I32)
	fb.SealBlock(entry)
	fb.AppendBlockParamsForFunctionParams(entry)
	fb.SwitchToBlock(entry)

	call := fb.Ins().Call(inc, []ir.Value{fb.Ins().Iconst(ir.I32, 10)})
	fb.DefVar(num, fb.InstResults(call)[0])

	exit := fb.CreateBlock()
	fb.Ins().Jump(exit, nil)
	fb.SealBlock(exit)
	fb.SwitchToBlock(exit)
	fb.Ins().Return([]ir.Value{fb.UseVar(num)})

	if err := fb.Finalize(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := `function %main() -> i32 system_v {
    sig0 = (i32) -> i32 system_v
    fn0 = u0:2 sig0

block0:
    v0 = iconst.i32 10
    v1 = call fn0(v0)
    jump block1

block1:
    return v1
}
`
	if got := fn.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

// buildSumLoop builds a function returning n + (n-1) + ... + 1 with a loop
// whose header is read before its back edge exists
func buildSumLoop() (*ir.Function, error) {
	fn := ir.NewFunction(ir.TestcaseName("sum"), i32Sig(1, 1))
	fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())
	i, sum := Variable(0), Variable(1)

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

	return fn, fb.Finalize()
}

const sumLoopText = `function %sum(i32) -> i32 system_v {
block0(v0: i32):
    v1 = iconst.i32 0
    jump block1(v0, v1)

block1(v2: i32, v3: i32):
    brif v2, block2, block3

block2:
    v4 = iadd v3, v2
    v5 = iadd_imm v2, -1
    jump block1(v5, v4)

block3:
    return v3
}
`

func TestLoopHeaderSealedLate(t *testing.T) {
	fn, err := buildSumLoop()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if got := fn.String(); got != sumLoopText {
		t.Errorf("got\n%s\nwant\n%s", got, sumLoopText)
	}
}

func TestIconstNormalizesImmediate(t *testing.T) {
	tests := []struct {
		typ  ir.Type
		imm  int64
		want int64
	}{
		{ir.I8, 0xff, -1},
		{ir.I16, 0x8000, -32768},
		{ir.I32, 1 << 32, 0},
		{ir.I32, 10, 10},
		{ir.I64, -5, -5},
	}

	for _, tc := range tests {
		fn := ir.NewFunction(ir.TestcaseName("k"), ir.NewSignature(ir.SystemV))
		fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())
		b := fb.CreateBlock()
		fb.SwitchToBlock(b)

		v := fb.Ins().Iconst(tc.typ, tc.imm)
		if err := fb.Err(); err != nil {
			t.Fatalf("iconst.%s %d: unexpected error: %s", tc.typ, tc.imm, err)
		}

		inst := fn.DFG.ValueDef(v).Inst
		if got := fn.DFG.InstData(inst).Imm; got != tc.want {
			t.Errorf("iconst.%s %d: immediate = %d; want %d", tc.typ, tc.imm, got, tc.want)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(fb *FunctionBuilder)
		want  error
	}{
		{
			"jump arity",
			func(fb *FunctionBuilder) {
				entry, target := fb.CreateBlock(), fb.CreateBlock()
				fb.SwitchToBlock(entry)
				fb.Ins().Jump(target, []ir.Value{fb.Ins().Iconst(ir.I32, 1)})
			},
			ErrArityMismatch,
		},
		{
			"block argument type",
			func(fb *FunctionBuilder) {
				entry, target := fb.CreateBlock(), fb.CreateBlock()
				fb.AppendBlockParam(target, ir.I64)
				fb.SwitchToBlock(entry)
				fb.Ins().Jump(target, []ir.Value{fb.Ins().Iconst(ir.I32, 1)})
			},
			ErrTypeMismatch,
		},
		{
			"use before def",
			func(fb *FunctionBuilder) {
				entry := fb.CreateBlock()
				fb.DeclareVar(Variable(0), ir.I32)
				fb.SealBlock(entry)
				fb.SwitchToBlock(entry)
				fb.UseVar(Variable(0))
			},
			ErrUseBeforeDef,
		},
		{
			"use before def found on seal",
			func(fb *FunctionBuilder) {
				entry := fb.CreateBlock()
				fb.DeclareVar(Variable(0), ir.I32)
				fb.SwitchToBlock(entry)
				fb.UseVar(Variable(0))
				fb.SealBlock(entry)
			},
			ErrUseBeforeDef,
		},
		{
			"use in a cycle unreachable from entry",
			func(fb *FunctionBuilder) {
				entry, p1, p2, b := fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock(), fb.CreateBlock()
				fb.DeclareVar(Variable(0), ir.I32)
				fb.SealBlock(entry)
				fb.SwitchToBlock(entry)
				fb.Ins().Return([]ir.Value{fb.Ins().Iconst(ir.I32, 0)})

				fb.SwitchToBlock(p1)
				fb.Ins().Jump(p2, nil)
				fb.SwitchToBlock(p2)
				fb.Ins().Brif(fb.Ins().Iconst(ir.I32, 1), p1, nil, b, nil)
				fb.SealBlock(p1)
				fb.SealBlock(p2)
				fb.SealBlock(b)

				fb.SwitchToBlock(b)
				fb.UseVar(Variable(0))
			},
			ErrUseBeforeDef,
		},
		{
			"undeclared variable",
			func(fb *FunctionBuilder) {
				fb.SwitchToBlock(fb.CreateBlock())
				fb.DefVar(Variable(3), fb.Ins().Iconst(ir.I32, 1))
			},
			ErrUndeclaredVariable,
		},
		{
			"jump to sealed block",
			func(fb *FunctionBuilder) {
				entry, target := fb.CreateBlock(), fb.CreateBlock()
				fb.SealBlock(target)
				fb.SwitchToBlock(entry)
				fb.Ins().Jump(target, nil)
			},
			ErrSealedBlock,
		},
		{
			"sealed twice",
			func(fb *FunctionBuilder) {
				entry := fb.CreateBlock()
				fb.SealBlock(entry)
				fb.SealBlock(entry)
			},
			ErrSealedBlock,
		},
		{
			"return type",
			func(fb *FunctionBuilder) {
				fb.SwitchToBlock(fb.CreateBlock())
				fb.Ins().Return([]ir.Value{fb.Ins().Iconst(ir.I64, 1)})
			},
			ErrTypeMismatch,
		},
		{
			"append after terminator",
			func(fb *FunctionBuilder) {
				fb.SwitchToBlock(fb.CreateBlock())
				fb.Ins().Return([]ir.Value{fb.Ins().Iconst(ir.I32, 1)})
				fb.Ins().Iconst(ir.I32, 2)
			},
			ErrMalformed,
		},
		{
			"never sealed",
			func(fb *FunctionBuilder) {
				fb.SwitchToBlock(fb.CreateBlock())
				fb.Ins().Return([]ir.Value{fb.Ins().Iconst(ir.I32, 1)})
			},
			ErrMalformed,
		},
	}

	for _, tc := range tests {
		fn := ir.NewFunction(ir.TestcaseName("bad"), i32Sig(0, 1))
		fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())
		tc.build(fb)

		err := fb.Finalize()
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got error %v; want %v", tc.name, err, tc.want)
			continue
		}

		var be *BuildError
		if !errors.As(err, &be) || be.Func != "%bad" {
			t.Errorf("%s: expected a BuildError for %%bad, got %#v", tc.name, err)
		}
	}
}

func TestFirstErrorIsKept(t *testing.T) {
	fn := ir.NewFunction(ir.TestcaseName("bad"), i32Sig(0, 1))
	fb := NewFunctionBuilder(fn, NewFunctionBuilderContext())

	entry := fb.CreateBlock()
	fb.SealBlock(entry)
	fb.SealBlock(entry)

	fb.SwitchToBlock(entry)
	if v := fb.Ins().Iconst(ir.I32, 1); v != ir.InvalidValue {
		t.Errorf("expected an invalid value after a build error, got %s", v)
	}

	fb.UseVar(Variable(7))

	err := fb.Finalize()
	if !errors.Is(err, ErrSealedBlock) {
		t.Fatalf("expected the first error to be kept, got %v", err)
	}

	if n := fn.DFG.NumInsts(); n != 0 {
		t.Errorf("expected no instructions after a build error, got %d", n)
	}
}
