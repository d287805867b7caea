package isa

import (
	"fmt"
	"runtime"
	"strings"
)

// Architecture is the instruction set of a target
type Architecture uint8

// Enumeration of architectures
const (
	ArchUnknown Architecture = iota
	ArchX86_64
	ArchAarch64
)

// OperatingSystem is the operating system of a target
type OperatingSystem uint8

// Enumeration of operating systems
const (
	OSUnknown OperatingSystem = iota
	OSLinux
	OSDarwin
	OSWindows
	OSFreeBSD
)

// BinaryFormat is the object file format used by a target
type BinaryFormat uint8

// Enumeration of binary formats
const (
	FormatUnknown BinaryFormat = iota
	FormatELF
	FormatMachO
	FormatCOFF
)

func (f BinaryFormat) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatMachO:
		return "macho"
	case FormatCOFF:
		return "coff"
	}

	return "unknown"
}

// archNames maps triple and GOARCH spellings to architectures
var archNames = map[string]Architecture{
	"x86_64":  ArchX86_64,
	"amd64":   ArchX86_64,
	"aarch64": ArchAarch64,
	"arm64":   ArchAarch64,
}

// osNames maps triple and GOOS spellings to operating systems
var osNames = map[string]OperatingSystem{
	"linux":   OSLinux,
	"darwin":  OSDarwin,
	"macos":   OSDarwin,
	"windows": OSWindows,
	"freebsd": OSFreeBSD,
}

// Triple describes a compilation target
type Triple struct {
	Architecture    Architecture
	OperatingSystem OperatingSystem

	// raw is the text the triple was parsed from
	raw string
}

// ParseTriple parses a target triple such as `x86_64-unknown-linux-gnu`.  The
// vendor and environment components are accepted but ignored.
func ParseTriple(s string) (Triple, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return Triple{}, fmt.Errorf("malformed target triple `%s`", s)
	}

	arch, ok := archNames[parts[0]]
	if !ok {
		return Triple{}, fmt.Errorf("unknown architecture `%s` in triple `%s`", parts[0], s)
	}

	t := Triple{Architecture: arch, raw: s}
	for _, part := range parts[1:] {
		if os, ok := osNames[part]; ok {
			t.OperatingSystem = os
			break
		}
	}

	if t.OperatingSystem == OSUnknown {
		return Triple{}, fmt.Errorf("unknown operating system in triple `%s`", s)
	}

	return t, nil
}

// HostTriple returns the triple of the running process
func HostTriple() Triple {
	t := Triple{
		Architecture:    archNames[runtime.GOARCH],
		OperatingSystem: osNames[runtime.GOOS],
	}

	t.raw = t.canonicalName()
	if t.raw == "" {
		t.raw = runtime.GOARCH + "-" + runtime.GOOS
	}

	return t
}

// canonicalName spells the triple the way LLVM and GNU tools expect, or
// returns the empty string if either component is unknown
func (t Triple) canonicalName() string {
	var arch string
	switch t.Architecture {
	case ArchX86_64:
		arch = "x86_64"
	case ArchAarch64:
		arch = "aarch64"
	default:
		return ""
	}

	switch t.OperatingSystem {
	case OSLinux:
		return arch + "-unknown-linux-gnu"
	case OSDarwin:
		return arch + "-apple-darwin"
	case OSWindows:
		return arch + "-pc-windows-msvc"
	case OSFreeBSD:
		return arch + "-unknown-freebsd"
	}

	return ""
}

// BinaryFormat returns the object format the operating system links
func (t Triple) BinaryFormat() BinaryFormat {
	switch t.OperatingSystem {
	case OSLinux, OSFreeBSD:
		return FormatELF
	case OSDarwin:
		return FormatMachO
	case OSWindows:
		return FormatCOFF
	}

	return FormatUnknown
}

func (t Triple) String() string {
	if t.raw != "" {
		return t.raw
	}

	return "unknown"
}
