package module

// Linkage is the visibility and resolution policy of a declared function
type Linkage int

// Enumeration of linkages
const (
	// Import functions are defined elsewhere and resolved at link time
	Import Linkage = iota

	// Local functions are defined in the module and not visible outside it
	Local

	// Preemptible functions are defined in the module but may be overridden
	// by a definition from another unit at link time
	Preemptible

	// Export functions are defined in the module and visible outside it
	Export
)

func (l Linkage) String() string {
	switch l {
	case Import:
		return "import"
	case Local:
		return "local"
	case Preemptible:
		return "preemptible"
	case Export:
		return "export"
	}

	return "unknown"
}

// IsDefinable indicates whether a function with this linkage may be given a
// body in the declaring module
func (l Linkage) IsDefinable() bool {
	return l != Import
}

// IsFinal indicates whether the definition cannot be replaced at link time
func (l Linkage) IsFinal() bool {
	return l == Local || l == Export
}

// IsGlobal indicates whether the symbol is visible outside the module
func (l Linkage) IsGlobal() bool {
	return l != Local
}

// merge combines the linkage of an existing declaration with that of a new
// declaration of the same name.  The result is the more visible of the two.
// Local linkage cannot be combined with any other linkage.
func merge(prev, next Linkage) (Linkage, bool) {
	if prev == next {
		return prev, true
	}

	if prev == Local || next == Local {
		return prev, false
	}

	if next > prev {
		return next, true
	}

	return prev, true
}
