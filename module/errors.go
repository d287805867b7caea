package module

import (
	"errors"
	"fmt"

	"lathe/ir"
)

var (
	// ErrFinalized is returned when a module is mutated after it has been
	// finalized or finished
	ErrFinalized = errors.New("module is already finalized")

	// ErrForeignFunction is returned when a function handle is used with a
	// module other than the one that declared it
	ErrForeignFunction = errors.New("function was declared in a different module")
)

// IncompatibleDeclarationError is returned when a function is redeclared with
// a linkage that cannot be merged with its previous declaration
type IncompatibleDeclarationError struct {
	Name      string
	Prev, New Linkage
}

func (ide *IncompatibleDeclarationError) Error() string {
	return fmt.Sprintf("function `%s` is declared %s but was previously declared %s", ide.Name, ide.New, ide.Prev)
}

// IncompatibleSignatureError is returned when a function is redeclared or
// referenced with a signature different from its declaration
type IncompatibleSignatureError struct {
	Name      string
	Prev, New ir.Signature
}

func (ise *IncompatibleSignatureError) Error() string {
	return fmt.Sprintf("function `%s` used with signature %s but was declared with %s", ise.Name, ise.New, ise.Prev)
}

// DuplicateDefinitionError is returned when a function is defined twice
type DuplicateDefinitionError struct {
	Name string
}

func (dde *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("function `%s` is defined more than once", dde.Name)
}

// InvalidImportDefinitionError is returned when a body is defined for an
// imported function
type InvalidImportDefinitionError struct {
	Name string
}

func (iide *InvalidImportDefinitionError) Error() string {
	return fmt.Sprintf("function `%s` is imported and cannot be defined", iide.Name)
}

// UndefinedFunctionError is returned when a module is finalized while a
// function that must be defined in it has no body
type UndefinedFunctionError struct {
	Name    string
	Linkage Linkage
}

func (ufe *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("%s function `%s` is declared but never defined", ufe.Linkage, ufe.Name)
}
