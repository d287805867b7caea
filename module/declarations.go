package module

import (
	"errors"
	"fmt"
	"sync/atomic"

	"lathe/ir"
)

// namespaceCounter hands out a distinct namespace to every declaration table
// so that function handles can be traced back to their module
var namespaceCounter uint32

// FuncID is a handle to a function declared in a module.  It is only
// meaningful to the module that returned it.
type FuncID struct {
	ns    uint32
	index uint32
}

// FuncIDFromName recovers the handle a module encoded into an external name
// by DeclareFuncInFunc
func FuncIDFromName(name ir.UserExternalName) FuncID {
	return FuncID{ns: name.Namespace, index: name.Index}
}

// ExternalName returns the name under which the function is referenced from
// IR and relocations
func (id FuncID) ExternalName() ir.UserExternalName {
	return ir.UserExternalName{Namespace: id.ns, Index: id.index}
}

// Index returns the position of the function in its module's declaration
// table
func (id FuncID) Index() int {
	return int(id.index)
}

func (id FuncID) String() string {
	return fmt.Sprintf("funcid%d:%d", id.ns, id.index)
}

// FunctionDeclaration is the information known about a function before (and
// regardless of whether) it is defined
type FunctionDeclaration struct {
	Name      string
	Linkage   Linkage
	Signature ir.Signature
}

// Declarations is the function namespace of one module
type Declarations struct {
	ns        uint32
	functions []FunctionDeclaration
	names     map[string]FuncID
}

// NewDeclarations creates an empty declaration table with a fresh namespace
func NewDeclarations() *Declarations {
	return &Declarations{
		ns:    atomic.AddUint32(&namespaceCounter, 1),
		names: make(map[string]FuncID),
	}
}

// Owns indicates whether a handle was issued by this table
func (d *Declarations) Owns(id FuncID) bool {
	return id.ns == d.ns && int(id.index) < len(d.functions)
}

// Get looks up a function by name
func (d *Declarations) Get(name string) (FuncID, bool) {
	id, ok := d.names[name]
	return id, ok
}

// Function returns the declaration of a function.  The handle must be owned by
// this table.
func (d *Declarations) Function(id FuncID) (*FunctionDeclaration, error) {
	if !d.Owns(id) {
		return nil, fmt.Errorf("%w: %s", ErrForeignFunction, id)
	}

	return &d.functions[id.index], nil
}

// Functions returns the handles of every declared function in declaration
// order
func (d *Declarations) Functions() []FuncID {
	ids := make([]FuncID, len(d.functions))
	for i := range d.functions {
		ids[i] = FuncID{ns: d.ns, index: uint32(i)}
	}

	return ids
}

// DeclareFunction declares a function, or redeclares an existing one.  A
// redeclaration must use an identical signature; its linkage is merged with
// the previous one and the original handle is returned.
func (d *Declarations) DeclareFunction(name string, linkage Linkage, sig ir.Signature) (FuncID, error) {
	if name == "" {
		return FuncID{}, errors.New("function name must not be empty")
	}

	if id, ok := d.names[name]; ok {
		decl := &d.functions[id.index]

		if !decl.Signature.Equal(sig) {
			return FuncID{}, &IncompatibleSignatureError{Name: name, Prev: decl.Signature.Clone(), New: sig.Clone()}
		}

		merged, ok := merge(decl.Linkage, linkage)
		if !ok {
			return FuncID{}, &IncompatibleDeclarationError{Name: name, Prev: decl.Linkage, New: linkage}
		}

		decl.Linkage = merged
		return id, nil
	}

	id := FuncID{ns: d.ns, index: uint32(len(d.functions))}
	d.functions = append(d.functions, FunctionDeclaration{
		Name:      name,
		Linkage:   linkage,
		Signature: sig.Clone(),
	})
	d.names[name] = id

	return id, nil
}
