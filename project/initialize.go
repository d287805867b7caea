package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"lathe/common"
)

// Init creates a new project file with the given name in dir.  Unless
// noProfiles is set, a `debug` profile emitting a position independent object
// and a `release` profile emitting optimized LLVM IR are generated.
func Init(name, dir string, noProfiles bool) error {
	// convert the project directory to the path to project file
	projFilePath := filepath.Join(dir, common.ProjectFileName)

	// check to see if a project already exists
	_, err := os.Stat(projFilePath)
	if err == nil {
		return errors.New("project file already exists")
	}

	if !os.IsNotExist(err) {
		return fmt.Errorf("project file error: %s", err.Error())
	}

	// validate project name
	if !IsValidIdentifier(name) {
		return errors.New("project name must be a valid identifier")
	}

	proj := &tomlProject{
		Name:    name,
		Version: common.LatheVersion,
		Runtime: &tomlRuntime{
			Initial:      common.DefaultInitial,
			Increment:    common.DefaultIncrement,
			ImportSymbol: common.DefaultImportSymbol,
		},
	}

	if !noProfiles {
		proj.Profiles = []*tomlProfile{newInitProfile(name, true), newInitProfile(name, false)}
	}

	// encode and save project to file
	f, err := os.Create(projFilePath)
	if err != nil {
		return fmt.Errorf("error creating project file: %s", err.Error())
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(&tomlProjectFile{Project: proj}); err != nil {
		return fmt.Errorf("error encoding TOML %s", err.Error())
	}

	return nil
}

// newInitProfile creates a new initial profile for a project
func newInitProfile(projName string, debug bool) *tomlProfile {
	prof := &tomlProfile{
		Target:  "host",
		Default: debug, // debug profile is the default
	}

	if debug {
		prof.Name = "debug"
		prof.PIC = true
		prof.OptLevel = "none"
		prof.Format = "obj"
		prof.Output = filepath.Join("bin", projName+".o")
	} else {
		prof.Name = "release"
		prof.OptLevel = "speed"
		prof.Format = "llvm"
		prof.Output = filepath.Join("bin", projName+".ll")
	}

	return prof
}
