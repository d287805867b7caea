// Package project loads and creates `lathe.toml` project files and selects the
// build profile a project is built with.
package project

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"lathe/common"
	"lathe/logging"
	"lathe/settings"
)

// tomlProjectFile represents the project file as it is encoded in TOML
type tomlProjectFile struct {
	Project *tomlProject `toml:"project"`
}

// tomlProject represents a project as it is encoded in TOML
type tomlProject struct {
	Name     string         `toml:"name"`
	Version  string         `toml:"lathe-version"`
	Runtime  *tomlRuntime   `toml:"runtime"`
	Profiles []*tomlProfile `toml:"profiles"`
}

// tomlRuntime represents the constants of the generated program as they are
// encoded in TOML
type tomlRuntime struct {
	Initial      int64  `toml:"initial" default:"10"`
	Increment    int64  `toml:"increment" default:"1"`
	ImportSymbol string `toml:"import-symbol"`
}

// tomlProfile represents a profile as it is encoded in TOML
type tomlProfile struct {
	Name     string `toml:"name"`
	Target   string `toml:"target"`
	PIC      bool   `toml:"pic"`
	OptLevel string `toml:"opt-level"`
	Format   string `toml:"format"`
	Output   string `toml:"output,omitempty"`
	Default  bool   `toml:"default"`
}

// Project is a loaded project file
type Project struct {
	// Name is the name of the project.  It is also the name of emitted
	// objects.
	Name string

	// Root is the directory containing the project file
	Root string

	Runtime Runtime
}

// Runtime holds the constants baked into the generated program
type Runtime struct {
	// Initial is the value `main` passes to the imported function
	Initial int32

	// Increment is the amount `increment_runtime` adds to its argument
	Increment int32

	// ImportSymbol is the name of the function `main` imports
	ImportSymbol string
}

// OutputFormat is the kind of artifact a profile produces
type OutputFormat int

// Enumeration of output formats
const (
	FormatObject OutputFormat = iota // Relocatable object file
	FormatLLVM                       // LLVM IR source text
	FormatJIT                        // Run in process; no artifact
)

// formatNames maps TOML format strings to enumerated format values
var formatNames = map[string]OutputFormat{
	"obj":  FormatObject,
	"llvm": FormatLLVM,
	"jit":  FormatJIT,
}

func (f OutputFormat) String() string {
	for name, format := range formatNames {
		if format == f {
			return name
		}
	}

	return "unknown"
}

// Profile is the configuration a project is built with
type Profile struct {
	Name string

	// Target is either `host` or a target triple
	Target string

	// PIC indicates whether position independent code is generated for
	// emitted artifacts.  The JIT never uses it.
	PIC bool

	OptLevel settings.OptLevel
	Format   OutputFormat

	// OutputPath is the absolute path of the artifact.  It is empty for JIT
	// profiles.
	OutputPath string
}

// Load loads the project in dir and selects a profile.  If selectedProfile is
// empty, the profile marked as default is used.
func Load(dir, selectedProfile string) (*Project, *Profile, error) {
	f, err := os.Open(filepath.Join(dir, common.ProjectFileName))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	buff, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}

	tpf := &tomlProjectFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return nil, nil, err
	}

	if tpf.Project == nil {
		return nil, nil, fmt.Errorf("project file in %s has no [project] table", dir)
	}

	proj := &Project{Root: dir}
	if err := validateProject(proj, tpf.Project); err != nil {
		return nil, nil, err
	}

	prof, err := selectProfile(proj, tpf.Project, selectedProfile)
	if err != nil {
		return nil, nil, err
	}

	return proj, prof, nil
}

// validateProject checks the top level project contents and moves them into
// the loaded project
func validateProject(proj *Project, tp *tomlProject) error {
	if tp.Name == "" {
		return fmt.Errorf("missing project name for project at %s", proj.Root)
	}

	if !IsValidIdentifier(tp.Name) {
		return errors.New("project name must be a valid identifier")
	}

	if tp.Version != common.LatheVersion {
		logging.LogBuildWarning(
			"project",
			fmt.Sprintf("version of project `%s` (v%s) does not match current lathe version (v%s)", tp.Name, tp.Version, common.LatheVersion),
		)
	}

	proj.Name = tp.Name
	proj.Runtime = Runtime{
		Initial:      common.DefaultInitial,
		Increment:    common.DefaultIncrement,
		ImportSymbol: common.DefaultImportSymbol,
	}

	if rt := tp.Runtime; rt != nil {
		if rt.Initial != int64(int32(rt.Initial)) || rt.Increment != int64(int32(rt.Increment)) {
			return errors.New("runtime constants must fit in a 32-bit integer")
		}

		proj.Runtime.Initial = int32(rt.Initial)
		proj.Runtime.Increment = int32(rt.Increment)

		if rt.ImportSymbol != "" {
			if !IsValidIdentifier(rt.ImportSymbol) {
				return fmt.Errorf("import symbol `%s` must be a valid identifier", rt.ImportSymbol)
			}

			proj.Runtime.ImportSymbol = rt.ImportSymbol
		}
	}

	return nil
}

// selectProfile finds the named profile or the default profile and converts
// it
func selectProfile(proj *Project, tp *tomlProject, selectedProfile string) (*Profile, error) {
	if len(tp.Profiles) == 0 {
		return nil, fmt.Errorf("project `%s` must provide at least one build profile", tp.Name)
	}

	for _, prof := range tp.Profiles {
		if (selectedProfile != "" && prof.Name == selectedProfile) || (selectedProfile == "" && prof.Default) {
			convProf, err := convertProfile(proj, prof)
			if err != nil {
				return nil, fmt.Errorf("%s in project `%s`", err.Error(), tp.Name)
			}

			return convProf, nil
		}
	}

	if selectedProfile != "" {
		return nil, fmt.Errorf("project `%s` has no profile `%s`", tp.Name, selectedProfile)
	}

	return nil, fmt.Errorf("project `%s` does not specify a default profile; `--profile` argument is required", tp.Name)
}

// convertProfile converts a TOML build profile into a `*Profile`
func convertProfile(proj *Project, tprof *tomlProfile) (*Profile, error) {
	if tprof.Name == "" {
		return nil, errors.New("profile must specify a name")
	}

	if tprof.Format == "" {
		return nil, fmt.Errorf("profile `%s` must specify an output format", tprof.Name)
	}

	newProfile := &Profile{Name: tprof.Name, Target: tprof.Target, PIC: tprof.PIC}
	if newProfile.Target == "" {
		newProfile.Target = "host"
	}

	if formatVal, ok := formatNames[tprof.Format]; ok {
		newProfile.Format = formatVal
	} else {
		return nil, fmt.Errorf("%s is not a valid output format", tprof.Format)
	}

	if tprof.OptLevel != "" {
		lvl, err := settings.ParseOptLevel(tprof.OptLevel)
		if err != nil {
			return nil, err
		}

		newProfile.OptLevel = lvl
	}

	if newProfile.Format != FormatJIT {
		if tprof.Output == "" {
			return nil, fmt.Errorf("profile `%s` must specify an output path", tprof.Name)
		}

		newProfile.OutputPath = tprof.Output
		if !filepath.IsAbs(newProfile.OutputPath) {
			newProfile.OutputPath = filepath.Join(proj.Root, newProfile.OutputPath)
		}
	}

	return newProfile, nil
}

// IsValidIdentifier returns whether or not a given string would be a valid
// identifier (project name, symbol name, etc.)
func IsValidIdentifier(idstr string) bool {
	if idstr == "" {
		return false
	}

	if idstr[0] == '_' || ('a' <= idstr[0] && idstr[0] <= 'z') || ('A' <= idstr[0] && idstr[0] <= 'Z') {
		for _, c := range idstr[1:] {
			if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
				continue
			}

			return false
		}

		return true
	}

	return false
}
