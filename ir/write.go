package ir

import (
	"fmt"
	"io"
	"strings"
)

// String renders the function in its textual form
func (f *Function) String() string {
	sb := &strings.Builder{}
	WriteFunction(sb, f)
	return sb.String()
}

// WriteFunction writes the textual form of a function to w
func WriteFunction(w io.Writer, f *Function) error {
	ew := &errWriter{w: w}

	ew.printf("function %s%s {\n", f.Name, f.Signature)

	for i, sig := range f.DFG.Signatures {
		ew.printf("    %s = %s\n", SigRef(i), sig)
	}

	for i, ext := range f.DFG.ExtFuncs {
		colocated := ""
		if ext.Colocated {
			colocated = "colocated "
		}
		ew.printf("    %s = %s%s %s\n", FuncRef(i), colocated, ext.Name, ext.Signature)
	}

	for i, b := range f.Layout.Blocks() {
		if i > 0 || len(f.DFG.Signatures) > 0 || len(f.DFG.ExtFuncs) > 0 {
			ew.printf("\n")
		}

		ew.printf("%s", b)
		if params := f.DFG.BlockParams(b); len(params) > 0 {
			ew.printf("(")
			for j, p := range params {
				if j > 0 {
					ew.printf(", ")
				}
				ew.printf("%s: %s", p, f.DFG.ValueType(p))
			}
			ew.printf(")")
		}
		ew.printf(":\n")

		for _, inst := range f.Layout.BlockInsts(b) {
			ew.printf("    %s\n", f.DisplayInst(inst))
		}
	}

	ew.printf("}\n")
	return ew.err
}

// DisplayInst renders a single instruction with its results
func (f *Function) DisplayInst(inst Inst) string {
	data := f.DFG.InstData(inst)
	sb := strings.Builder{}

	if results := f.DFG.InstResults(inst); len(results) > 0 {
		sb.WriteString(joinValues(results))
		sb.WriteString(" = ")
	}

	sb.WriteString(data.Opcode.String())

	switch data.Opcode {
	case OpIconst:
		fmt.Fprintf(&sb, ".%s %d", data.Type, data.Imm)
	case OpIadd, OpIsub, OpImul:
		fmt.Fprintf(&sb, " %s", joinValues(data.Args))
	case OpIaddImm:
		fmt.Fprintf(&sb, " %s, %d", joinValues(data.Args), data.Imm)
	case OpJump:
		fmt.Fprintf(&sb, " %s", blockCallString(data.Dests[0]))
	case OpBrif:
		fmt.Fprintf(&sb, " %s, %s, %s", joinValues(data.Args), blockCallString(data.Dests[0]), blockCallString(data.Dests[1]))
	case OpCall:
		fmt.Fprintf(&sb, " %s(%s)", data.Func, joinValues(data.Args))
	case OpReturn:
		if len(data.Args) > 0 {
			fmt.Fprintf(&sb, " %s", joinValues(data.Args))
		}
	}

	return sb.String()
}

// -----------------------------------------------------------------------------

func blockCallString(bc BlockCall) string {
	if len(bc.Args) == 0 {
		return bc.Block.String()
	}

	return fmt.Sprintf("%s(%s)", bc.Block, joinValues(bc.Args))
}

func joinValues(vals []Value) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = v.String()
	}

	return strings.Join(strs, ", ")
}

// errWriter remembers the first write error so formatting code does not have
// to check every call
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
