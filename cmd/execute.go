package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ComedicChimera/olive"

	"lathe/build"
	"lathe/common"
	"lathe/logging"
	"lathe/project"
)

// Execute runs the main `lathe` application
func Execute() {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("lathe", "lathe builds and runs lathe projects", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warning", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	buildCmd := cli.AddSubcommand("build", "compile a project into its profile's artifact", true)
	buildCmd.AddPrimaryArg("project-path", "the path to the project to build", true)
	buildCmd.AddStringArg("profile", "p", "the name of the profile to build (-p=name)", false)

	runCmd := cli.AddSubcommand("run", "compile the project's runtime in process and call it", true)
	runCmd.AddPrimaryArg("project-path", "the path to the project to run", true)
	runCmd.AddStringArg("profile", "p", "the name of the profile to run with (-p=name)", false)
	runCmd.AddStringArg("arg", "a", "the 32-bit integer argument passed to the runtime (-a=value)", false)

	initCmd := cli.AddSubcommand("init", "initialize a project", true)
	initCmd.AddFlag("no-profiles", "np", "indicates whether lathe should generate default profiles for this project")
	initCmd.AddPrimaryArg("project-path", "the path to the project directory", true)

	cli.AddSubcommand("version", "print the lathe version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	loglevel := result.Arguments["loglevel"].(string)

	// process the inputed command line
	ok := true
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		ok = execBuildCommand(subResult, loglevel)
	case "run":
		ok = execRunCommand(subResult, loglevel)
	case "init":
		ok = execInitCommand(subResult)
	case "version":
		logging.PrintInfoMessage("Lathe Version", common.LatheVersion)
	}

	if !ok {
		os.Exit(1)
	}
}

// execBuildCommand executes the build subcommand and handles all errors
func execBuildCommand(result *olive.ArgParseResult, loglevel string) bool {
	c, ok := loadCompiler(result, loglevel)
	if !ok {
		return false
	}

	return c.Compile()
}

// execRunCommand executes the run subcommand and handles all errors
func execRunCommand(result *olive.ArgParseResult, loglevel string) bool {
	arg := int64(1)
	if argVal, ok := result.Arguments["arg"]; ok {
		var err error
		arg, err = strconv.ParseInt(argVal.(string), 10, 32)
		if err != nil {
			logging.PrintErrorMessage("CLI Usage Error", fmt.Errorf("invalid runtime argument: %s", err.Error()))
			return false
		}
	}

	c, ok := loadCompiler(result, loglevel)
	if !ok {
		return false
	}

	value, err := c.RunRuntime(int32(arg))
	logging.LogFinished()
	if err != nil {
		return false
	}

	// the result is the command's output so it is printed at every log level
	fmt.Println(value)
	return true
}

// execInitCommand executes the init subcommand.  The project is named after
// the directory it is created in.
func execInitCommand(result *olive.ArgParseResult) bool {
	projRelPath, _ := result.PrimaryArg()

	projPath, err := filepath.Abs(projRelPath)
	if err != nil {
		logging.PrintErrorMessage("Path Error", err)
		return false
	}

	if err := os.MkdirAll(projPath, os.ModePerm); err != nil {
		logging.PrintErrorMessage("Path Error", err)
		return false
	}

	if err := project.Init(filepath.Base(projPath), projPath, result.HasFlag("no-profiles")); err != nil {
		logging.PrintErrorMessage("Project Init Error", err)
		return false
	}

	return true
}

// -----------------------------------------------------------------------------

// loadCompiler loads the project named by the command's primary argument and
// creates a compiler for the selected profile
func loadCompiler(result *olive.ArgParseResult, loglevel string) (*build.Compiler, bool) {
	projRelPath, _ := result.PrimaryArg()

	projPath, err := filepath.Abs(projRelPath)
	if err != nil {
		logging.PrintErrorMessage("Path Error", err)
		return nil, false
	}

	selectedProfile := ""
	if profArgVal, ok := result.Arguments["profile"]; ok {
		selectedProfile = profArgVal.(string)
	}

	// initialize the logger before loading so that warnings about the
	// project file respect the log level
	logging.Initialize(loglevel)

	proj, profile, err := project.Load(projPath, selectedProfile)
	if err != nil {
		logging.PrintErrorMessage("Project Load Error", err)
		return nil, false
	}

	return build.NewCompiler(proj, profile), true
}
