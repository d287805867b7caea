//go:build linux || darwin

package jit

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// hostSymbol looks a symbol up in the global symbol table of the process
func hostSymbol(name string) (uintptr, bool) {
	addr, err := purego.Dlsym(purego.RTLD_DEFAULT, name)
	if err != nil || addr == 0 {
		return 0, false
	}

	return addr, true
}

// registerFunc points the Go function variable at fptr to native code using
// the C calling convention
func registerFunc(fptr any, addr uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("registering native function: %v", r)
		}
	}()

	purego.RegisterFunc(fptr, addr)
	return nil
}
