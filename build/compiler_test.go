package build

import (
	"bytes"
	"debug/elf"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lathe/common"
	"lathe/logging"
	"lathe/project"
	"lathe/settings"
)

func newTestCompiler(t *testing.T, format project.OutputFormat, output string) *Compiler {
	t.Helper()
	logging.Initialize("silent")

	proj := &project.Project{
		Name: "counter",
		Root: t.TempDir(),
		Runtime: project.Runtime{
			Initial:      common.DefaultInitial,
			Increment:    common.DefaultIncrement,
			ImportSymbol: common.DefaultImportSymbol,
		},
	}

	prof := &project.Profile{
		Name:     "test",
		Target:   "x86_64-unknown-linux-gnu",
		PIC:      true,
		OptLevel: settings.OptNone,
		Format:   format,
	}

	if output != "" {
		prof.OutputPath = filepath.Join(proj.Root, output)
	}

	return NewCompiler(proj, prof)
}

func TestBuildObject(t *testing.T) {
	c := newTestCompiler(t, project.FormatObject, "")

	product, err := c.BuildObject()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	data, _ := product.Emit()
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("object does not parse: %s", err)
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatal(err)
	}

	found := make(map[string]elf.Symbol)
	for _, sym := range syms {
		found[sym.Name] = sym
	}

	if sym, ok := found["main"]; !ok || elf.ST_BIND(sym.Info) != elf.STB_GLOBAL {
		t.Errorf("expected a global main symbol, got %+v", sym)
	}

	if sym, ok := found["increment_runtime"]; !ok || elf.ST_BIND(sym.Info) != elf.STB_LOCAL {
		t.Errorf("expected a local increment_runtime symbol, got %+v", sym)
	}

	if sym, ok := found["increment_number_c"]; !ok || sym.Section != elf.SHN_UNDEF {
		t.Errorf("expected an undefined increment_number_c symbol, got %+v", sym)
	}
}

func TestBuildLLVM(t *testing.T) {
	c := newTestCompiler(t, project.FormatLLVM, "")

	mod, err := c.BuildLLVM()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	text := mod.String()
	for _, want := range []string{
		"define internal i32 @increment_runtime(",
		"define i32 @main()",
		"call i32 @increment_number_c(i32 10)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestBuildUsesRuntimeConstants(t *testing.T) {
	c := newTestCompiler(t, project.FormatLLVM, "")
	c.proj.Runtime = project.Runtime{Initial: 41, Increment: 5, ImportSymbol: "bump"}

	mod, err := c.BuildLLVM()
	if err != nil {
		t.Fatal(err)
	}

	text := mod.String()
	for _, want := range []string{"add i32 %0, 5", "call i32 @bump(i32 41)", "declare i32 @bump("} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestBuildRejectsUnsupportedTarget(t *testing.T) {
	c := newTestCompiler(t, project.FormatObject, "")
	c.profile.Target = "aarch64-unknown-linux-gnu"

	if _, err := c.BuildObject(); err == nil {
		t.Errorf("expected an error building for aarch64")
	}

	if logging.ShouldProceed() {
		t.Errorf("a failed phase should be logged as an error")
	}
}

func TestCompileWritesArtifact(t *testing.T) {
	tests := []struct {
		format project.OutputFormat
		output string
		check  func(data []byte) bool
	}{
		{project.FormatLLVM, filepath.Join("bin", "counter.ll"), func(data []byte) bool {
			return bytes.Contains(data, []byte("define i32 @main()"))
		}},
		{project.FormatObject, filepath.Join("bin", "counter.o"), func(data []byte) bool {
			return bytes.HasPrefix(data, []byte(elf.ELFMAG))
		}},
	}

	for _, tc := range tests {
		c := newTestCompiler(t, tc.format, tc.output)
		if !c.Compile() {
			t.Errorf("%s: compilation failed", tc.format)
			continue
		}

		data, err := os.ReadFile(c.profile.OutputPath)
		if err != nil {
			t.Errorf("%s: artifact was not written: %s", tc.format, err)
			continue
		}

		if !tc.check(data) {
			t.Errorf("%s: unexpected artifact contents", tc.format)
		}
	}
}

func TestWriteArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")

	err := writeArtifact(path, func(w io.Writer) error {
		_, err := w.Write([]byte("lathe"))
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if data, _ := os.ReadFile(path); string(data) != "lathe" {
		t.Errorf("got %q; want %q", data, "lathe")
	}

	failed := errors.New("write failed")
	if err := writeArtifact(path, func(io.Writer) error { return failed }); !errors.Is(err, failed) {
		t.Errorf("expected the write error, got %v", err)
	}
}
