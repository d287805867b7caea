package frontend

import (
	"errors"
	"fmt"
)

// Build error kinds.  Every BuildError wraps exactly one of these.
var (
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrArityMismatch      = errors.New("arity mismatch")
	ErrUndeclaredVariable = errors.New("undeclared variable")
	ErrUseBeforeDef       = errors.New("variable used before any definition")
	ErrSealedBlock        = errors.New("sealed block")
	ErrMalformed          = errors.New("malformed function")
)

// BuildError is the first misuse of a FunctionBuilder.  Once one occurs the
// builder ignores further operations; the partially built function must be
// discarded.
type BuildError struct {
	// Func is the name of the function being built
	Func string

	// Op is the builder operation that failed
	Op string

	Kind   error
	Detail string
}

func (be *BuildError) Error() string {
	return fmt.Sprintf("building %s: %s: %s: %s", be.Func, be.Op, be.Kind, be.Detail)
}

func (be *BuildError) Unwrap() error {
	return be.Kind
}
