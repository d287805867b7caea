package logging

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"lathe/common"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints a standard Go error to the console
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintWarningMessage prints a warning message to the console
func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// -----------------------------------------------------------------------------
// This section contains all the display functions for the different kinds of
// messages that can be logged -- these functions are called to print the
// message to the screen.

func (ce *ConfigError) display() {
	PrintErrorMessage(ce.Kind+" Error", errors.New(ce.Message))
}

func (be *BackendError) display() {
	displayBanner(be.Phase+" Error", true)

	// verifier listings span several lines
	for _, line := range strings.Split(be.Err.Error(), "\n") {
		fmt.Println(strings.TrimRight(line, " "))
	}
}

func (bw *BuildWarning) display() {
	kind := bw.Kind
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}

	PrintWarningMessage(kind+" Warning", bw.Message)
}

// displayBanner displays the banner on top of multi-line messages
func displayBanner(title string, isError bool) {
	fmt.Print("\n\n-- ")
	if isError {
		ErrorStyleBG.Print(title)
	} else {
		InfoStyleBG.Print(title)
	}

	bannerLen := pterm.GetTerminalWidth() / 2
	if bannerLen > 50 {
		bannerLen = 50
	}

	dashCount := bannerLen - len(title) - 1
	if dashCount < 3 {
		dashCount = 3
	}

	fmt.Println(" " + strings.Repeat("-", dashCount))
}

const fatalErrorPostlude = `
The build was aborted and any artifact it was writing should be discarded.`

func displayFatalError(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Fatal Error ")
	ErrorColorFG.Println(msg)
	InfoColorFG.Println(fatalErrorPostlude)
}

// displayIR displays the textual IR of a function
func displayIR(name, text string) {
	displayBanner(name, false)
	fmt.Println(strings.TrimRight(text, "\n"))
}

// displayResult displays the value returned by a function run in process
func displayResult(name string, value interface{}) {
	fmt.Print(name + " = ")
	InfoColorFG.Println(value)
}

// -----------------------------------------------------------------------------

// displayCompileHeader displays all the compiler information before starting compilation
func displayCompileHeader(target, format string) {
	fmt.Print("lathe ")
	InfoColorFG.Print("v" + common.LatheVersion)
	fmt.Print(" -- target: ")
	InfoColorFG.Print(target)
	fmt.Print(" -- format: ")
	InfoColorFG.Println(format)
}

// the spinner of the phase currently running, if any
var (
	phaseSpinner   *pterm.SpinnerPrinter
	currentPhase   string
	phaseStartTime time.Time
)

const maxPhaseLength = len("Finalizing")

// phaseLabel pads a phase name so that phase timings line up
func phaseLabel(phase, suffix string) string {
	return phase + suffix + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
}

// outcomePrinter prints the closing line of a phase spinner
func outcomePrinter(text string, style *pterm.Style) *pterm.PrefixPrinter {
	return &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix:       pterm.Prefix{Style: style, Text: text},
	}
}

// displayBeginPhase starts the spinner of a compilation phase
func displayBeginPhase(phase string) {
	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))
	spinner.SuccessPrinter = outcomePrinter("Done", SuccessStyleBG)
	spinner.FailPrinter = outcomePrinter("Fail", ErrorStyleBG)

	currentPhase = phase
	phaseSpinner, _ = spinner.Start(phaseLabel(phase, "..."))
	phaseStartTime = time.Now()
}

// displayEndPhase stops the spinner of the current phase, if there is one
func displayEndPhase(success bool) {
	if phaseSpinner == nil {
		return
	}

	if success {
		phaseSpinner.Success(phaseLabel(currentPhase, ""), fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()))
	} else {
		phaseSpinner.Fail(phaseLabel(currentPhase, ""))
	}

	phaseSpinner = nil
}

// displayCount prints a count of errors or warnings, coloured when nonzero
func displayCount(n int, noun string, color pterm.Color) {
	if n == 0 {
		SuccessColorFG.Print(0)
	} else {
		color.Print(n)
	}

	if n == 1 {
		fmt.Print(" " + noun)
	} else {
		fmt.Print(" " + noun + "s")
	}
}

// displayCompilationFinished displays the closing summary of a build
func displayCompilationFinished(success bool, errorCount, warningCount int) {
	fmt.Print("\n")

	if success {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")
	displayCount(errorCount, "error", ErrorColorFG)
	fmt.Print(", ")
	displayCount(warningCount, "warning", WarnColorFG)
	fmt.Println(")")
}
