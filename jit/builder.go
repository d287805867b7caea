// Package jit compiles functions into executable memory of the running
// process.
package jit

import (
	"errors"

	"lathe/isa"
	"lathe/settings"
)

// Builder configures a JIT module before it is created
type Builder struct {
	isa     isa.TargetISA
	symbols map[string]uintptr
	lookups []func(name string) (uintptr, bool)
}

// NewBuilder creates a builder for the host target with default flags
func NewBuilder() (*Builder, error) {
	ib, err := isa.Host()
	if err != nil {
		return nil, err
	}

	target, err := ib.Finish(settings.NewFlags(settings.NewBuilder()))
	if err != nil {
		return nil, err
	}

	return NewBuilderWithISA(target)
}

// NewBuilderWithISA creates a builder for a configured target.  The target
// must be the host architecture and must not use position independent code:
// calls out of the JIT region are made through absolute addresses.
func NewBuilderWithISA(target isa.TargetISA) (*Builder, error) {
	if target.Triple().Architecture != isa.HostTriple().Architecture {
		return nil, &isa.LookupError{Triple: target.Triple(), Reason: "the jit can only target the host architecture"}
	}

	if target.Flags().IsPIC() {
		return nil, errors.New("the jit does not support position independent code; disable `is_pic`")
	}

	return &Builder{isa: target, symbols: make(map[string]uintptr)}, nil
}

// Symbol defines the address of a named symbol.  Explicit symbols take
// priority over lookup functions and the host symbol table.
func (b *Builder) Symbol(name string, addr uintptr) *Builder {
	b.symbols[name] = addr
	return b
}

// SymbolLookup adds a function consulted for symbols not defined explicitly.
// Lookups are tried in the order they were added, before the host symbol
// table.
func (b *Builder) SymbolLookup(lookup func(name string) (uintptr, bool)) *Builder {
	b.lookups = append(b.lookups, lookup)
	return b
}
