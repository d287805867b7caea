package isa

import (
	"errors"
	"testing"

	"lathe/ir"
	"lathe/settings"
)

func TestParseTriple(t *testing.T) {
	tests := []struct {
		s      string
		arch   Architecture
		os     OperatingSystem
		format BinaryFormat
	}{
		{"x86_64-unknown-linux-gnu", ArchX86_64, OSLinux, FormatELF},
		{"x86_64-linux", ArchX86_64, OSLinux, FormatELF},
		{"amd64-freebsd", ArchX86_64, OSFreeBSD, FormatELF},
		{"x86_64-apple-darwin", ArchX86_64, OSDarwin, FormatMachO},
		{"x86_64-pc-windows-msvc", ArchX86_64, OSWindows, FormatCOFF},
		{"aarch64-unknown-linux-gnu", ArchAarch64, OSLinux, FormatELF},
	}

	for _, tc := range tests {
		triple, err := ParseTriple(tc.s)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tc.s, err)
			continue
		}

		if triple.Architecture != tc.arch || triple.OperatingSystem != tc.os || triple.BinaryFormat() != tc.format {
			t.Errorf("%s: got %+v (%s)", tc.s, triple, triple.BinaryFormat())
		}

		if triple.String() != tc.s {
			t.Errorf("%s: printed as %s", tc.s, triple)
		}
	}

	for _, bad := range []string{"", "x86_64", "riscv64-unknown-linux", "x86_64-unknown-plan9"} {
		if _, err := ParseTriple(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestLookup(t *testing.T) {
	ib, err := LookupByName("x86_64-unknown-linux-gnu")
	if err != nil {
		t.Fatal(err)
	}

	target, err := ib.Finish(settings.NewFlags(settings.NewBuilder()))
	if err != nil {
		t.Fatal(err)
	}

	if target.Triple().Architecture != ArchX86_64 || target.DefaultCallConv() != ir.SystemV {
		t.Errorf("got target %s with calling convention %s", target.Triple(), target.DefaultCallConv())
	}

	var le *LookupError
	if _, err := LookupByName("aarch64-apple-darwin"); !errors.As(err, &le) || le.Triple.Architecture != ArchAarch64 {
		t.Errorf("expected a LookupError for aarch64, got %v", err)
	}
}

func TestHostTripleIsCanonical(t *testing.T) {
	host := HostTriple()
	if host.Architecture == ArchUnknown || host.OperatingSystem == OSUnknown {
		t.Skipf("host %s is not a known target", host)
	}

	// the host must print as a full triple that parses back to itself
	parsed, err := ParseTriple(host.String())
	if err != nil {
		t.Fatalf("host triple %s does not parse: %s", host, err)
	}

	if parsed.Architecture != host.Architecture || parsed.OperatingSystem != host.OperatingSystem {
		t.Errorf("host triple %s parsed as %+v", host, parsed)
	}

	want := map[Triple]string{
		{Architecture: ArchX86_64, OperatingSystem: OSLinux}:  "x86_64-unknown-linux-gnu",
		{Architecture: ArchX86_64, OperatingSystem: OSDarwin}: "x86_64-apple-darwin",
		{Architecture: ArchAarch64, OperatingSystem: OSLinux}: "aarch64-unknown-linux-gnu",
	}

	for triple, name := range want {
		if got := triple.canonicalName(); got != name {
			t.Errorf("canonical name of %+v = %q; want %q", triple, got, name)
		}
	}

	if name := host.canonicalName(); host.String() != name {
		t.Errorf("host printed as %s; want %s", host, name)
	}
}
