package jit

import (
	"reflect"

	"lathe/ir"
	"lathe/module"
)

// goKinds lists the Go kinds that may carry each IR type across the call
// boundary
var goKinds = map[ir.Type][]reflect.Kind{
	ir.I8:  {reflect.Int8, reflect.Uint8},
	ir.I16: {reflect.Int16, reflect.Uint16},
	ir.I32: {reflect.Int32, reflect.Uint32},
	ir.I64: {reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint, reflect.Uintptr},
}

// Bind sets the Go function variable pointed to by fptr to call a finalized
// function of the module, eg.
//
//	var inc func(int32) int32
//	err := m.Bind(id, &inc)
//
// The Go type must match the function's declared signature exactly.  Calling
// the bound function after the module has been freed panics with
// ErrModuleFreed.
func (m *Module) Bind(id module.FuncID, fptr any) error {
	addr, err := m.GetFinalizedFunction(id)
	if err != nil {
		return err
	}

	decl, err := m.reg.Declarations().Function(id)
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(fptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Func {
		return &BindError{Name: decl.Name, Signature: decl.Signature, GoType: reflect.TypeOf(fptr), Reason: "expected a pointer to a function variable"}
	}

	fnType := rv.Elem().Type()
	if reason := checkGoSignature(fnType, decl.Signature); reason != "" {
		return &BindError{Name: decl.Name, Signature: decl.Signature, GoType: fnType, Reason: reason}
	}

	native := reflect.New(fnType)
	if err := registerFunc(native.Interface(), addr); err != nil {
		return err
	}

	rv.Elem().Set(reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		if m.freed {
			panic(ErrModuleFreed)
		}

		return native.Elem().Call(args)
	}))

	return nil
}

// checkGoSignature returns a description of why a Go function type cannot
// call a function with the given signature or an empty string if it can
func checkGoSignature(fnType reflect.Type, sig ir.Signature) string {
	if fnType.IsVariadic() {
		return "variadic functions are not supported"
	}

	if fnType.NumIn() != len(sig.Params) {
		return "parameter count does not match"
	}

	for i, p := range sig.Params {
		if !kindCarries(fnType.In(i).Kind(), p.Value) {
			return "parameter " + fnType.In(i).String() + " cannot carry " + p.Value.String()
		}
	}

	// only a single integer register is read back across the boundary
	if len(sig.Returns) > 1 {
		return "functions with more than one return value cannot be bound"
	}

	if fnType.NumOut() != len(sig.Returns) {
		return "return count does not match"
	}

	for i, r := range sig.Returns {
		if !kindCarries(fnType.Out(i).Kind(), r.Value) {
			return "return " + fnType.Out(i).String() + " cannot carry " + r.Value.String()
		}
	}

	return ""
}

func kindCarries(k reflect.Kind, t ir.Type) bool {
	for _, allowed := range goKinds[t] {
		if k == allowed {
			return true
		}
	}

	return false
}
