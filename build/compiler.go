// Package build drives the compilation of a project: it builds the program's
// functions, compiles them for the profile's target and writes the artifact.
package build

import (
	"fmt"
	"io"

	"lathe/frontend"
	"lathe/isa"
	"lathe/logging"
	"lathe/project"
	"lathe/settings"
)

// Compiler is the data structure responsible for maintaining all high-level
// state of a build
type Compiler struct {
	// proj is the project being built
	proj *project.Project

	// profile is the profile that is being used to build the project
	profile *project.Profile

	// fctx is the builder context shared by every function the compiler builds
	fctx *frontend.FunctionBuilderContext
}

// NewCompiler creates a new compiler for a given project and build profile
func NewCompiler(proj *project.Project, profile *project.Profile) *Compiler {
	return &Compiler{
		proj:    proj,
		profile: profile,
		fctx:    frontend.NewFunctionBuilderContext(),
	}
}

// Compile runs the build selected by the profile and writes its artifact.  It
// handles all errors appropriately and returns whether the build succeeded.
func (c *Compiler) Compile() bool {
	logging.LogCompileHeader(c.profile.Target, c.profile.Format.String())
	defer logging.LogFinished()

	switch c.profile.Format {
	case project.FormatJIT:
		_, err := c.RunRuntime(1)
		return err == nil
	case project.FormatObject:
		product, err := c.BuildObject()
		if err != nil {
			return false
		}

		c.emit(product.WriteStream)
	case project.FormatLLVM:
		mod, err := c.BuildLLVM()
		if err != nil {
			return false
		}

		c.emit(func(w io.Writer) error {
			_, err := mod.WriteTo(w)
			return err
		})
	}

	return logging.ShouldProceed()
}

// emit writes the artifact to the profile's output path.  A failed write
// leaves a partial file behind so it is fatal.
func (c *Compiler) emit(write func(w io.Writer) error) {
	logging.LogBeginPhase("Emitting")
	if err := writeArtifact(c.profile.OutputPath, write); err != nil {
		logging.LogFatal(fmt.Sprintf("failed to write %s: %s", c.profile.OutputPath, err.Error()))
	}
	logging.LogEndPhase()
}

// phase runs one step of the build between a phase banner and logs the error
// it returns, if any
func (c *Compiler) phase(name string, step func() error) error {
	logging.LogBeginPhase(name)
	if err := step(); err != nil {
		logging.LogBackendError(name, err)
		return err
	}

	logging.LogEndPhase()
	return nil
}

// -----------------------------------------------------------------------------

// artifactISA configures the target artifacts are compiled for
func (c *Compiler) artifactISA() (isa.TargetISA, error) {
	ib, err := isa.LookupByName(c.profile.Target)
	if err != nil {
		return nil, err
	}

	sb := settings.NewBuilder()
	if c.profile.PIC {
		if err := sb.Enable("is_pic"); err != nil {
			return nil, err
		}
	}

	if err := sb.Set("opt_level", c.profile.OptLevel.String()); err != nil {
		return nil, err
	}

	return ib.Finish(settings.NewFlags(sb))
}

// jitISA configures the host target for code run in process
func (c *Compiler) jitISA() (isa.TargetISA, error) {
	ib, err := isa.Host()
	if err != nil {
		return nil, err
	}

	sb := settings.NewBuilder()
	if err := sb.Set("opt_level", c.profile.OptLevel.String()); err != nil {
		return nil, err
	}

	return ib.Finish(settings.NewFlags(sb))
}
