//go:build !(linux || darwin)

package jit

type codeRegion struct{}

func allocCode(size int) (*codeRegion, error) {
	return nil, ErrUnsupportedPlatform
}

func (cr *codeRegion) bytes() []byte            { return nil }
func (cr *codeRegion) base() uintptr            { return 0 }
func (cr *codeRegion) makeExecutable() error    { return ErrUnsupportedPlatform }
func (cr *codeRegion) release() error           { return nil }
func hostSymbol(name string) (uintptr, bool)    { return 0, false }
func registerFunc(fptr any, addr uintptr) error { return ErrUnsupportedPlatform }
