package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"lathe/binemit"
	"lathe/module"
)

// section indices of the relocatable file
const (
	shNull = iota
	shText
	shRelaText
	shSymtab
	shStrtab
	shNoteStack
	shShstrtab
	shCount
)

// stringTable accumulates NUL terminated names
type stringTable struct {
	data []byte
}

func newStringTable() *stringTable {
	return &stringTable{data: []byte{0}}
}

func (st *stringTable) add(name string) uint32 {
	if name == "" {
		return 0
	}

	off := uint32(len(st.data))
	st.data = append(st.data, name...)
	st.data = append(st.data, 0)
	return off
}

// elfWriter serializes a finished object module as an ELF64 relocatable file
// for x86-64
type elfWriter struct {
	m *Module

	strtab   *stringTable
	shstrtab *stringTable

	symbols []elf.Sym64

	// symIndex maps every declared function to its symbol table index
	symIndex map[module.FuncID]uint32

	// firstGlobal is the index of the first non-local symbol
	firstGlobal uint32
}

func newELFWriter(m *Module) *elfWriter {
	return &elfWriter{
		m:        m,
		strtab:   newStringTable(),
		shstrtab: newStringTable(),
		symIndex: make(map[module.FuncID]uint32),
	}
}

// buildSymbols lays out the symbol table: the null symbol, the file and
// section symbols, local functions and then global functions.  ELF requires
// every local symbol to precede the globals.
func (ew *elfWriter) buildSymbols() {
	decls := ew.m.reg.Declarations()

	ew.symbols = append(ew.symbols,
		elf.Sym64{},
		elf.Sym64{
			Name:  ew.strtab.add(ew.m.name),
			Info:  elf.ST_INFO(elf.STB_LOCAL, elf.STT_FILE),
			Shndx: uint16(elf.SHN_ABS),
		},
		elf.Sym64{
			Info:  elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION),
			Shndx: shText,
		},
	)

	var globals []module.FuncID
	for _, id := range decls.Functions() {
		decl, _ := decls.Function(id)
		if decl.Linkage.IsGlobal() {
			globals = append(globals, id)
			continue
		}

		ew.addSymbol(id, decl)
	}

	ew.firstGlobal = uint32(len(ew.symbols))
	for _, id := range globals {
		decl, _ := decls.Function(id)
		ew.addSymbol(id, decl)
	}
}

func (ew *elfWriter) addSymbol(id module.FuncID, decl *module.FunctionDeclaration) {
	sym := elf.Sym64{Name: ew.strtab.add(decl.Name)}

	var bind elf.SymBind
	switch decl.Linkage {
	case module.Local:
		bind = elf.STB_LOCAL
	case module.Preemptible:
		bind = elf.STB_WEAK
	default:
		bind = elf.STB_GLOBAL
	}

	if fr, ok := ew.m.funcs[id]; ok {
		sym.Info = elf.ST_INFO(bind, elf.STT_FUNC)
		sym.Shndx = shText
		sym.Value = uint64(fr.offset)
		sym.Size = uint64(fr.size)
	} else {
		// imports are undefined and untyped
		sym.Info = elf.ST_INFO(bind, elf.STT_NOTYPE)
		sym.Shndx = uint16(elf.SHN_UNDEF)
	}

	ew.symIndex[id] = uint32(len(ew.symbols))
	ew.symbols = append(ew.symbols, sym)
}

// relocType maps a relocation kind to its ELF x86-64 type
func relocType(kind binemit.Reloc) (elf.R_X86_64, error) {
	switch kind {
	case binemit.Abs8:
		return elf.R_X86_64_64, nil
	case binemit.X86CallPCRel4:
		return elf.R_X86_64_PC32, nil
	case binemit.X86CallPLTRel4:
		return elf.R_X86_64_PLT32, nil
	}

	return 0, fmt.Errorf("relocation kind %s has no ELF equivalent", kind)
}

func (ew *elfWriter) buildRelocs() ([]elf.Rela64, error) {
	relas := make([]elf.Rela64, 0, len(ew.m.relocs))
	for _, r := range ew.m.relocs {
		typ, err := relocType(r.kind)
		if err != nil {
			return nil, err
		}

		sym, ok := ew.symIndex[r.target]
		if !ok {
			return nil, fmt.Errorf("relocation at %#x refers to an undeclared function", r.offset)
		}

		relas = append(relas, elf.Rela64{
			Off:    r.offset,
			Info:   elf.R_INFO(sym, uint32(typ)),
			Addend: r.addend,
		})
	}

	return relas, nil
}

// write produces the complete file
func (ew *elfWriter) write() ([]byte, error) {
	ew.buildSymbols()

	relas, err := ew.buildRelocs()
	if err != nil {
		return nil, err
	}

	var sections [shCount]elf.Section64
	names := [shCount]string{"", ".text", ".rela.text", ".symtab", ".strtab", ".note.GNU-stack", ".shstrtab"}
	for i, name := range names {
		sections[i].Name = ew.shstrtab.add(name)
	}

	buf := &bytes.Buffer{}
	buf.Write(make([]byte, binary.Size(elf.Header64{})))

	place := func(i int, align int, data interface{}) error {
		pad(buf, align)
		off := buf.Len()
		if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
			return err
		}

		sections[i].Off = uint64(off)
		sections[i].Size = uint64(buf.Len() - off)
		sections[i].Addralign = uint64(align)
		return nil
	}

	sections[shText].Type = uint32(elf.SHT_PROGBITS)
	sections[shText].Flags = uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)
	if err := place(shText, 16, ew.m.text); err != nil {
		return nil, err
	}

	sections[shRelaText].Type = uint32(elf.SHT_RELA)
	sections[shRelaText].Flags = uint64(elf.SHF_INFO_LINK)
	sections[shRelaText].Link = shSymtab
	sections[shRelaText].Info = shText
	sections[shRelaText].Entsize = uint64(binary.Size(elf.Rela64{}))
	if err := place(shRelaText, 8, relas); err != nil {
		return nil, err
	}

	sections[shSymtab].Type = uint32(elf.SHT_SYMTAB)
	sections[shSymtab].Link = shStrtab
	sections[shSymtab].Info = ew.firstGlobal
	sections[shSymtab].Entsize = uint64(binary.Size(elf.Sym64{}))
	if err := place(shSymtab, 8, ew.symbols); err != nil {
		return nil, err
	}

	sections[shStrtab].Type = uint32(elf.SHT_STRTAB)
	if err := place(shStrtab, 1, ew.strtab.data); err != nil {
		return nil, err
	}

	// marks the stack as non-executable for the linker
	sections[shNoteStack].Type = uint32(elf.SHT_PROGBITS)
	sections[shNoteStack].Off = uint64(buf.Len())
	sections[shNoteStack].Addralign = 1

	sections[shShstrtab].Type = uint32(elf.SHT_STRTAB)
	if err := place(shShstrtab, 1, ew.shstrtab.data); err != nil {
		return nil, err
	}

	pad(buf, 8)
	shoff := buf.Len()
	if err := binary.Write(buf, binary.LittleEndian, sections[:]); err != nil {
		return nil, err
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shoff),
		Ehsize:    uint16(binary.Size(elf.Header64{})),
		Shentsize: uint16(binary.Size(elf.Section64{})),
		Shnum:     shCount,
		Shstrndx:  shShstrtab,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	out := buf.Bytes()
	hdrBuf := &bytes.Buffer{}
	if err := binary.Write(hdrBuf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	copy(out, hdrBuf.Bytes())

	return out, nil
}

// pad extends buf with zeros to a multiple of align
func pad(buf *bytes.Buffer, align int) {
	for buf.Len()%align != 0 {
		buf.WriteByte(0)
	}
}
