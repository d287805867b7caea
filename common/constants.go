package common

const (
	ProjectFileName = "lathe.toml"
	LatheVersion    = "0.1.0"

	// DefaultImportSymbol is the externally linked increment routine called by
	// the generated `main`
	DefaultImportSymbol = "increment_number_c"

	// DefaultInitial is the value `main` passes to the imported routine
	DefaultInitial = 10

	// DefaultIncrement is the amount `increment_runtime` adds to its argument
	DefaultIncrement = 1
)
