// Package isa looks up and configures target instruction set backends.
package isa

import (
	"fmt"

	"lathe/binemit"
	"lathe/ir"
	"lathe/isa/x64"
	"lathe/settings"
)

// TargetISA is a configured code generator for one target
type TargetISA interface {
	// Name is the short name of the instruction set
	Name() string

	Triple() Triple
	Flags() settings.Flags

	// DefaultCallConv is the calling convention new signatures should use
	DefaultCallConv() ir.CallConv

	// CompileFunction lowers a verified function to machine code
	CompileFunction(f *ir.Function) (*binemit.CompiledCode, error)
}

// LookupError is returned when no backend supports a triple
type LookupError struct {
	Triple Triple
	Reason string
}

func (le *LookupError) Error() string {
	return fmt.Sprintf("no backend for target %s: %s", le.Triple, le.Reason)
}

// Builder is a target that has been looked up but not yet configured with
// flags
type Builder struct {
	triple Triple
	name   string
}

// Lookup finds the backend for a triple
func Lookup(triple Triple) (*Builder, error) {
	switch triple.Architecture {
	case ArchX86_64:
		return &Builder{triple: triple, name: "x64"}, nil
	case ArchAarch64:
		return nil, &LookupError{Triple: triple, Reason: "aarch64 is not supported"}
	}

	return nil, &LookupError{Triple: triple, Reason: "unknown architecture"}
}

// Host looks up the backend for the running process's target
func Host() (*Builder, error) {
	return Lookup(HostTriple())
}

// LookupByName parses and looks up a triple.  The name `host` selects the
// running process's target.
func LookupByName(name string) (*Builder, error) {
	if name == "" || name == "host" {
		return Host()
	}

	triple, err := ParseTriple(name)
	if err != nil {
		return nil, err
	}

	return Lookup(triple)
}

// Triple returns the triple the builder was looked up with
func (b *Builder) Triple() Triple {
	return b.triple
}

// Finish configures the backend with a set of flags
func (b *Builder) Finish(flags settings.Flags) (TargetISA, error) {
	switch b.name {
	case "x64":
		return &x64ISA{triple: b.triple, backend: x64.New(flags)}, nil
	}

	return nil, &LookupError{Triple: b.triple, Reason: "backend not available"}
}

// -----------------------------------------------------------------------------

// x64ISA adapts the x64 backend to TargetISA
type x64ISA struct {
	triple  Triple
	backend *x64.Backend
}

func (t *x64ISA) Name() string                 { return "x64" }
func (t *x64ISA) Triple() Triple               { return t.triple }
func (t *x64ISA) Flags() settings.Flags        { return t.backend.Flags() }
func (t *x64ISA) DefaultCallConv() ir.CallConv { return ir.SystemV }

func (t *x64ISA) CompileFunction(f *ir.Function) (*binemit.CompiledCode, error) {
	return t.backend.CompileFunction(f)
}
