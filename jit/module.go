package jit

import (
	"fmt"

	"lathe/binemit"
	"lathe/codegen"
	"lathe/ir"
	"lathe/isa"
	"lathe/module"
)

// functionAlignment is the alignment of each function in the code region
const functionAlignment = 16

// Module is a module whose functions are compiled into memory of the running
// process.  Definitions are queued until FinalizeDefinitions places them in
// a single executable region.
type Module struct {
	reg *module.Registry
	isa isa.TargetISA

	symbols map[string]uintptr
	lookups []func(name string) (uintptr, bool)

	// pending is the compiled code of each defined function in definition
	// order; it is dropped once the module is finalized
	pending []pendingFunc

	region *codeRegion
	addrs  map[module.FuncID]uintptr
	freed  bool
}

type pendingFunc struct {
	id   module.FuncID
	code *binemit.CompiledCode
}

// New creates an empty JIT module
func New(b *Builder) *Module {
	symbols := make(map[string]uintptr, len(b.symbols))
	for name, addr := range b.symbols {
		symbols[name] = addr
	}

	return &Module{
		reg:     module.NewRegistry(),
		isa:     b.isa,
		symbols: symbols,
		lookups: append([]func(string) (uintptr, bool){}, b.lookups...),
		addrs:   make(map[module.FuncID]uintptr),
	}
}

// ISA returns the module's target
func (m *Module) ISA() isa.TargetISA {
	return m.isa
}

// Declarations returns the module's function namespace
func (m *Module) Declarations() *module.Declarations {
	return m.reg.Declarations()
}

// MakeSignature creates an empty signature for the host calling convention
func (m *Module) MakeSignature() ir.Signature {
	return ir.NewSignature(m.isa.DefaultCallConv())
}

// DeclareFunction declares a function in the module
func (m *Module) DeclareFunction(name string, linkage module.Linkage, sig ir.Signature) (module.FuncID, error) {
	return m.reg.DeclareFunction(name, linkage, sig)
}

// DeclareFuncInFunc makes a function of this module callable from fn
func (m *Module) DeclareFuncInFunc(id module.FuncID, fn *ir.Function) (ir.FuncRef, error) {
	return m.reg.DeclareFuncInFunc(id, fn)
}

// DefineFunction compiles the function in ctx as the body of id.  The code
// cannot be called until the module is finalized.
func (m *Module) DefineFunction(id module.FuncID, ctx *codegen.Context) error {
	if m.freed {
		return ErrModuleFreed
	}

	decl, err := m.reg.CheckDefinition(id, ctx.Func)
	if err != nil {
		return err
	}

	code, err := ctx.Compile(m.isa)
	if err != nil {
		return fmt.Errorf("defining `%s`: %w", decl.Name, err)
	}

	m.pending = append(m.pending, pendingFunc{id: id, code: code})
	m.reg.MarkDefined(id)
	return nil
}

// FinalizeDefinitions places every defined function in executable memory and
// resolves the calls between them and out to the host.  After it succeeds the
// module accepts no further declarations or definitions.  Calling it again
// has no effect.
func (m *Module) FinalizeDefinitions() error {
	if m.freed {
		return ErrModuleFreed
	}

	if m.reg.IsFinalized() {
		return nil
	}

	if err := m.reg.CheckComplete(); err != nil {
		return err
	}

	offsets := make([]int, len(m.pending))
	size := 0
	for i, pf := range m.pending {
		size = alignTo(size, functionAlignment)
		offsets[i] = size
		size += len(pf.code.Code)
	}

	if size == 0 {
		m.reg.Finalize()
		m.pending = nil
		return nil
	}

	region, err := allocCode(size)
	if err != nil {
		return err
	}

	addrs := make(map[module.FuncID]uintptr, len(m.pending))
	for i, pf := range m.pending {
		copy(region.bytes()[offsets[i]:], pf.code.Code)
		addrs[pf.id] = region.base() + uintptr(offsets[i])
	}

	for i, pf := range m.pending {
		code := region.bytes()[offsets[i] : offsets[i]+len(pf.code.Code)]

		for _, reloc := range pf.code.Relocs {
			target, err := m.resolve(reloc.Name, addrs)
			if err == nil {
				err = binemit.ApplyReloc(code, addrs[pf.id], reloc, target)
			}

			if err != nil {
				region.release()
				return err
			}
		}
	}

	if err := region.makeExecutable(); err != nil {
		region.release()
		return err
	}

	m.region = region
	m.addrs = addrs
	m.pending = nil
	m.reg.Finalize()
	return nil
}

// resolve finds the address of a relocation target: functions of this module
// first, then explicit symbols, lookup functions and finally the host
func (m *Module) resolve(name ir.UserExternalName, addrs map[module.FuncID]uintptr) (uintptr, error) {
	id := module.FuncIDFromName(name)
	decl, err := m.reg.Declarations().Function(id)
	if err != nil {
		return 0, err
	}

	if addr, ok := addrs[id]; ok {
		return addr, nil
	}

	if addr, ok := m.symbols[decl.Name]; ok {
		return addr, nil
	}

	for _, lookup := range m.lookups {
		if addr, ok := lookup(decl.Name); ok {
			return addr, nil
		}
	}

	if addr, ok := hostSymbol(decl.Name); ok {
		return addr, nil
	}

	return 0, &UnresolvedSymbolError{Name: decl.Name}
}

// GetFinalizedFunction returns the address of a function defined in the
// module
func (m *Module) GetFinalizedFunction(id module.FuncID) (uintptr, error) {
	if m.freed {
		return 0, ErrModuleFreed
	}

	if !m.reg.IsFinalized() {
		return 0, ErrNotFinalized
	}

	decl, err := m.reg.Declarations().Function(id)
	if err != nil {
		return 0, err
	}

	addr, ok := m.addrs[id]
	if !ok {
		return 0, &module.UndefinedFunctionError{Name: decl.Name, Linkage: decl.Linkage}
	}

	return addr, nil
}

// Free releases the module's executable memory.  Callables bound to the
// module panic with ErrModuleFreed afterwards.
func (m *Module) Free() error {
	if m.freed {
		return nil
	}

	m.freed = true
	m.addrs = nil
	if m.region != nil {
		err := m.region.release()
		m.region = nil
		return err
	}

	return nil
}

func alignTo(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
