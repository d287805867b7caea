// Package object compiles functions into a relocatable object file for later
// linking.
package object

import (
	"fmt"
	"io"

	"lathe/binemit"
	"lathe/codegen"
	"lathe/ir"
	"lathe/isa"
	"lathe/module"
)

// functionAlignment is the alignment of each function within `.text`
const functionAlignment = 16

// Builder configures an object module before it is created
type Builder struct {
	isa  isa.TargetISA
	name string
}

// NewBuilder creates a builder for an object named name.  Only ELF targets on
// x86-64 are supported.
func NewBuilder(target isa.TargetISA, name string) (*Builder, error) {
	triple := target.Triple()
	if triple.Architecture != isa.ArchX86_64 {
		return nil, &isa.LookupError{Triple: triple, Reason: "object files can only be emitted for x86_64"}
	}

	if format := triple.BinaryFormat(); format != isa.FormatELF {
		return nil, &isa.LookupError{Triple: triple, Reason: fmt.Sprintf("%s object files are not supported", format)}
	}

	return &Builder{isa: target, name: name}, nil
}

// textRange is the location of a function's code within `.text`
type textRange struct {
	offset, size uint32
}

// reloc is a relocation within `.text`
type reloc struct {
	offset uint64
	kind   binemit.Reloc
	target module.FuncID
	addend int64
}

// Module is a module whose functions are accumulated into the `.text` section
// of a relocatable object
type Module struct {
	reg  *module.Registry
	isa  isa.TargetISA
	name string

	text   []byte
	funcs  map[module.FuncID]textRange
	relocs []reloc

	product *Product
}

// New creates an empty object module
func New(b *Builder) *Module {
	return &Module{
		reg:   module.NewRegistry(),
		isa:   b.isa,
		name:  b.name,
		funcs: make(map[module.FuncID]textRange),
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

// MakeSignature creates an empty signature for the target calling convention
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

// DefineFunction compiles the function in ctx and appends it to `.text`.
// Calls to other functions are left as relocations against their symbols.
func (m *Module) DefineFunction(id module.FuncID, ctx *codegen.Context) error {
	decl, err := m.reg.CheckDefinition(id, ctx.Func)
	if err != nil {
		return err
	}

	code, err := ctx.Compile(m.isa)
	if err != nil {
		return fmt.Errorf("defining `%s`: %w", decl.Name, err)
	}

	// pad with int3 so that falling off a function traps
	for len(m.text)%functionAlignment != 0 {
		m.text = append(m.text, 0xcc)
	}

	offset := uint32(len(m.text))
	m.text = append(m.text, code.Code...)
	m.funcs[id] = textRange{offset: offset, size: uint32(len(code.Code))}

	for _, r := range code.Relocs {
		m.relocs = append(m.relocs, reloc{
			offset: uint64(offset) + uint64(r.Offset),
			kind:   r.Kind,
			target: module.FuncIDFromName(r.Name),
			addend: r.Addend,
		})
	}

	m.reg.MarkDefined(id)
	return nil
}

// Finish serializes the module.  The module accepts no further declarations
// or definitions afterwards; finishing again returns the same product.
func (m *Module) Finish() (*Product, error) {
	if m.product != nil {
		return m.product, nil
	}

	if err := m.reg.CheckComplete(); err != nil {
		return nil, err
	}

	data, err := newELFWriter(m).write()
	if err != nil {
		return nil, fmt.Errorf("writing object `%s`: %w", m.name, err)
	}

	m.reg.Finalize()
	m.product = &Product{name: m.name, format: m.isa.Triple().BinaryFormat(), data: data}
	return m.product, nil
}

// -----------------------------------------------------------------------------

// Product is a serialized object file
type Product struct {
	name   string
	format isa.BinaryFormat
	data   []byte
}

// Name returns the name the object was created with
func (p *Product) Name() string {
	return p.name
}

// Format returns the object file format
func (p *Product) Format() isa.BinaryFormat {
	return p.format
}

// Mangling returns the symbol mangling scheme applied to function names.
// Names are emitted exactly as declared.
func (p *Product) Mangling() string {
	return "none"
}

// Emit returns a copy of the object file's bytes
func (p *Product) Emit() ([]byte, error) {
	return append([]byte(nil), p.data...), nil
}

// WriteStream writes the object file to w
func (p *Product) WriteStream(w io.Writer) error {
	n, err := w.Write(p.data)
	if err != nil {
		return err
	}

	if n != len(p.data) {
		return io.ErrShortWrite
	}

	return nil
}
