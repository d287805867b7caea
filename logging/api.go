// Package logging prints the progress and diagnostics of the compiler to the
// console.
package logging

import "os"

// logger is a global reference to a shared Logger.  It logs verbosely until
// Initialize is called so that problems found while loading the project file
// are still reported.
var logger = newLogger(LogLevelVerbose)

// Initialize initializes the global logger with the provided log level
func Initialize(loglevelname string) {
	var loglevel int
	switch loglevelname {
	case "silent":
		loglevel = LogLevelSilent
	case "error":
		loglevel = LogLevelError
	case "warning", "warn":
		loglevel = LogLevelWarning
	// everything else (including invalid log levels) should default to verbose
	default:
		loglevel = LogLevelVerbose
	}

	logger = newLogger(loglevel)
}

// ShouldProceed indicates whether or not the log module has encountered an errors
func ShouldProceed() bool {
	return logger.errorCount == 0
}

// -----------------------------------------------------------------------------
// NOTE: All log functions will only display if the appropriate log level is
// set.  Most log functions will simply fail silently if below their appropriate
// log level.

// LogConfigError logs an error related to project or compiler configuration
func LogConfigError(kind, message string) {
	logger.handleMsg(&ConfigError{Kind: kind, Message: message})
}

// LogBackendError logs an error returned by one of the compilation phases
func LogBackendError(phase string, err error) {
	logger.handleMsg(&BackendError{Phase: phase, Err: err})
}

// LogBuildWarning logs a warning in the build process
func LogBuildWarning(kind, warning string) {
	logger.handleMsg(&BuildWarning{Kind: kind, Message: warning})
}

// LogFatal logs a fatal error from which the compiler cannot continue, such as
// an artifact that could only be partially written, and exits the process.
func LogFatal(message string) {
	displayEndPhase(false)
	if logger.LogLevel > LogLevelSilent {
		displayFatalError(message)
	}

	os.Exit(1)
}

// LogCompileHeader displays the target and output format of the build
func LogCompileHeader(target, format string) {
	if logger.LogLevel == LogLevelVerbose {
		displayCompileHeader(target, format)
	}
}

// LogBeginPhase marks the start of a compilation phase
func LogBeginPhase(phase string) {
	if logger.LogLevel == LogLevelVerbose {
		displayBeginPhase(phase)
	}
}

// LogEndPhase marks the end of the current compilation phase
func LogEndPhase() {
	if logger.LogLevel == LogLevelVerbose {
		displayEndPhase(ShouldProceed())
	}
}

// LogIR displays the textual IR of a built function
func LogIR(name, text string) {
	if logger.LogLevel == LogLevelVerbose {
		displayIR(name, text)
	}
}

// LogResult displays a value produced by running compiled code
func LogResult(name string, value interface{}) {
	if logger.LogLevel == LogLevelVerbose {
		displayResult(name, value)
	}
}

// LogFinished displays the buffered warnings and the closing message
func LogFinished() {
	logger.flushWarnings()

	if logger.LogLevel > LogLevelSilent {
		displayCompilationFinished(ShouldProceed(), logger.errorCount, len(logger.warnings))
	}
}
