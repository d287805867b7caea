package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lathe/common"
	"lathe/logging"
	"lathe/settings"
)

func writeProjectFile(t *testing.T, text string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, common.ProjectFileName), []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	return dir
}

func TestInitThenLoad(t *testing.T) {
	logging.Initialize("silent")
	dir := t.TempDir()

	if err := Init("counter", dir, false); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	proj, prof, err := Load(dir, "")
	if err != nil {
		t.Fatalf("unexpected error loading: %s", err)
	}

	if proj.Name != "counter" || proj.Root != dir {
		t.Errorf("got project %s at %s", proj.Name, proj.Root)
	}

	wantRuntime := Runtime{Initial: 10, Increment: 1, ImportSymbol: "increment_number_c"}
	if proj.Runtime != wantRuntime {
		t.Errorf("got runtime %+v; want %+v", proj.Runtime, wantRuntime)
	}

	// debug is the default profile
	if prof.Name != "debug" || prof.Format != FormatObject || !prof.PIC || prof.OptLevel != settings.OptNone || prof.Target != "host" {
		t.Errorf("got default profile %+v", prof)
	}

	if want := filepath.Join(dir, "bin", "counter.o"); prof.OutputPath != want {
		t.Errorf("output path = %s; want %s", prof.OutputPath, want)
	}

	_, prof, err = Load(dir, "release")
	if err != nil {
		t.Fatal(err)
	}

	if prof.Format != FormatLLVM || prof.PIC || prof.OptLevel != settings.OptSpeed {
		t.Errorf("got release profile %+v", prof)
	}

	if err := Init("counter", dir, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected an error initializing over an existing project, got %v", err)
	}
}

func TestInitWithoutProfiles(t *testing.T) {
	logging.Initialize("silent")
	dir := t.TempDir()

	if err := Init("counter", dir, true); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(dir, ""); err == nil || !strings.Contains(err.Error(), "at least one build profile") {
		t.Errorf("expected a missing profile error, got %v", err)
	}
}

func TestInitRejectsInvalidName(t *testing.T) {
	if err := Init("2fast", t.TempDir(), false); err == nil {
		t.Errorf("expected an error for an invalid project name")
	}
}

func TestLoad(t *testing.T) {
	logging.Initialize("silent")

	tests := []struct {
		name    string
		text    string
		profile string
		wantErr string
		check   func(t *testing.T, proj *Project, prof *Profile)
	}{
		{
			name: "jit profile needs no output",
			text: `
[project]
name = "counter"
lathe-version = "0.1.0"

[[project.profiles]]
name = "run"
format = "jit"
opt-level = "speed_and_size"
default = true
`,
			check: func(t *testing.T, proj *Project, prof *Profile) {
				if prof.Format != FormatJIT || prof.OutputPath != "" || prof.OptLevel != settings.OptSpeedAndSize {
					t.Errorf("got profile %+v", prof)
				}

				if proj.Runtime.ImportSymbol != common.DefaultImportSymbol {
					t.Errorf("missing runtime table should give defaults, got %+v", proj.Runtime)
				}
			},
		},
		{
			name: "runtime overrides",
			text: `
[project]
name = "counter"
lathe-version = "0.1.0"

[project.runtime]
initial = 41
increment = 2
import-symbol = "bump"

[[project.profiles]]
name = "obj"
format = "obj"
target = "x86_64-unknown-linux-gnu"
output = "/tmp/counter.o"
default = true
`,
			check: func(t *testing.T, proj *Project, prof *Profile) {
				want := Runtime{Initial: 41, Increment: 2, ImportSymbol: "bump"}
				if proj.Runtime != want {
					t.Errorf("got runtime %+v; want %+v", proj.Runtime, want)
				}

				if prof.Target != "x86_64-unknown-linux-gnu" || prof.OutputPath != "/tmp/counter.o" {
					t.Errorf("got profile %+v", prof)
				}
			},
		},
		{
			name: "no project table",
			text: `name = "counter"`,
			wantErr: "no [project] table",
		},
		{
			name: "missing name",
			text: `
[project]
lathe-version = "0.1.0"
`,
			wantErr: "missing project name",
		},
		{
			name: "no default profile",
			text: `
[project]
name = "counter"

[[project.profiles]]
name = "run"
format = "jit"
`,
			wantErr: "does not specify a default profile",
		},
		{
			name: "unknown selected profile",
			text: `
[project]
name = "counter"

[[project.profiles]]
name = "run"
format = "jit"
default = true
`,
			profile: "release",
			wantErr: "has no profile `release`",
		},
		{
			name: "missing output",
			text: `
[project]
name = "counter"

[[project.profiles]]
name = "obj"
format = "obj"
default = true
`,
			wantErr: "must specify an output path",
		},
		{
			name: "bad format",
			text: `
[project]
name = "counter"

[[project.profiles]]
name = "obj"
format = "exe"
default = true
`,
			wantErr: "not a valid output format",
		},
		{
			name: "constant out of range",
			text: `
[project]
name = "counter"

[project.runtime]
initial = 4294967296

[[project.profiles]]
name = "run"
format = "jit"
default = true
`,
			wantErr: "fit in a 32-bit integer",
		},
		{
			name: "bad import symbol",
			text: `
[project]
name = "counter"

[project.runtime]
import-symbol = "not a symbol"

[[project.profiles]]
name = "run"
format = "jit"
default = true
`,
			wantErr: "must be a valid identifier",
		},
	}

	for _, tc := range tests {
		proj, prof, err := Load(writeProjectFile(t, tc.text), tc.profile)

		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("%s: expected an error containing %q, got %v", tc.name, tc.wantErr, err)
			}

			continue
		}

		if err != nil {
			t.Errorf("%s: unexpected error: %s", tc.name, err)
			continue
		}

		tc.check(t, proj, prof)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"counter", true},
		{"_private", true},
		{"increment_number_c", true},
		{"Abc123", true},
		{"", false},
		{"9lives", false},
		{"has-dash", false},
		{"has space", false},
	}

	for _, tc := range tests {
		if got := IsValidIdentifier(tc.s); got != tc.want {
			t.Errorf("IsValidIdentifier(%q) = %v; want %v", tc.s, got, tc.want)
		}
	}
}
