package jit

import (
	"errors"
	"fmt"
	"reflect"

	"lathe/ir"
)

var (
	// ErrNotFinalized is returned when code is requested before the module
	// has been finalized
	ErrNotFinalized = errors.New("module has not been finalized")

	// ErrModuleFreed is returned (or raised by bound callables) once the
	// module's executable memory has been released
	ErrModuleFreed = errors.New("module memory has been freed")

	// ErrUnsupportedPlatform is returned on platforms where executable memory
	// cannot be allocated or entered
	ErrUnsupportedPlatform = errors.New("jit is not supported on this platform")
)

// UnresolvedSymbolError is returned by FinalizeDefinitions when a called
// function is neither defined in the module nor available from the host
type UnresolvedSymbolError struct {
	Name string
}

func (use *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("unable to resolve symbol `%s`", use.Name)
}

// BindError is returned when a Go function type does not match the declared
// signature of the function it is bound to
type BindError struct {
	Name      string
	Signature ir.Signature
	GoType    reflect.Type
	Reason    string
}

func (be *BindError) Error() string {
	return fmt.Sprintf("cannot bind `%s` %s to %s: %s", be.Name, be.Signature, be.GoType, be.Reason)
}
