//go:build amd64 && (linux || darwin)

package build

import (
	"testing"

	"lathe/project"
)

func TestRunRuntime(t *testing.T) {
	tests := []struct {
		increment, arg, want int32
	}{
		{1, 1, 2},
		{1, 41, 42},
		{5, -5, 0},
	}

	for _, tc := range tests {
		c := newTestCompiler(t, project.FormatJIT, "")
		c.proj.Runtime.Increment = tc.increment

		got, err := c.RunRuntime(tc.arg)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if got != tc.want {
			t.Errorf("increment_runtime(%d) with increment %d = %d; want %d", tc.arg, tc.increment, got, tc.want)
		}
	}
}

func TestCompileJIT(t *testing.T) {
	if !newTestCompiler(t, project.FormatJIT, "").Compile() {
		t.Errorf("compilation failed")
	}
}
