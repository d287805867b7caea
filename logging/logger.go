package logging

import (
	"sync"
)

// Logger is a type that is responsible for storing and logging output from the
// compiler as necessary
type Logger struct {
	errorCount int // Total encountered errors
	LogLevel   int

	// warnings is a list of all warnings to be logged at the end of compilation
	warnings []LogMessage

	// m is the mutex used to synchonize the printing of error messages
	m *sync.Mutex
}

// Enumeration of the different log levels
const (
	LogLevelSilent  = iota // no output at all
	LogLevelError          // only errors and closing compilation notification (success/fail)
	LogLevelWarning        // errors, warnings, and closing message
	LogLevelVerbose        // errors, warnings, compiler version, progress summary, IR listings, closing message (DEFAULT)
)

// LogMessage is a message that is buffered or displayed by the logger
type LogMessage interface {
	isError() bool
	display()
}

// newLogger creates a new logger struct
func newLogger(loglevel int) *Logger {
	return &Logger{
		LogLevel: loglevel,
		m:        &sync.Mutex{},
	}
}

// handleMsg prompts to logger to process a message.  Errors are displayed
// immediately; warnings are held until the end of compilation.
func (l *Logger) handleMsg(lm LogMessage) {
	l.m.Lock()
	defer l.m.Unlock()

	if lm.isError() {
		l.errorCount++

		if l.LogLevel > LogLevelSilent {
			displayEndPhase(false)
			lm.display()
		}
	} else {
		l.warnings = append(l.warnings, lm)
	}
}

// flushWarnings displays all buffered warnings
func (l *Logger) flushWarnings() {
	l.m.Lock()
	defer l.m.Unlock()

	if l.LogLevel >= LogLevelWarning {
		for _, w := range l.warnings {
			w.display()
		}
	}
}

// -----------------------------------------------------------------------------

// ConfigError is an error related to project or compiler configuration
type ConfigError struct {
	Kind    string
	Message string
}

func (ce *ConfigError) isError() bool { return true }

// BackendError is a failure of one of the compilation phases: a malformed
// function, a rejected declaration or an artifact that could not be produced
type BackendError struct {
	Phase string
	Err   error
}

func (be *BackendError) isError() bool { return true }

// BuildWarning is a non-fatal problem encountered while building
type BuildWarning struct {
	Kind    string
	Message string
}

func (bw *BuildWarning) isError() bool { return false }
