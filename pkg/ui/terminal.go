package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Banner printed at the start of a build
const Banner = `
  ┌─┐┌┬┐┌─┐  ┌┬┐┌─┐┌┬┐┌─┐┌─┐┌─┐┌┬┐
  │ ││││ ┬   ││├─┤ │ ├─┤└─┐├┤  │
  ┴ ┴┴ ┴└─┘  ─┴┘┴ ┴ ┴ ┴ ┴└─┘└─┘ ┴  image dataset builder
`

var (
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D7FF"))
	yellowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FFF87"))
	magentaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5FD7"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

var (
	mu           sync.RWMutex
	output       io.Writer = os.Stdout
	quiet        bool
	colorEnabled = true
)

// Color functions for terminal output
var (
	Cyan    = colorize(cyanStyle)
	Yellow  = colorize(yellowStyle)
	Red     = colorize(redStyle)
	Green   = colorize(greenStyle)
	Magenta = colorize(magentaStyle)
	Dim     = colorize(dimStyle)
)

// colorize returns a function that renders text with style unless colors are disabled
func colorize(style lipgloss.Style) func(string) string {
	return func(text string) string {
		mu.RLock()
		enabled := colorEnabled
		mu.RUnlock()
		if !enabled {
			return text
		}
		return style.Render(text)
	}
}

// SetOutput redirects all terminal output
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Output returns the current terminal writer
func Output() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return quiet
}

// SetColorEnabled toggles styled output
func SetColorEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colorEnabled = enabled
}

// IsInteractive reports whether the output is a terminal
func IsInteractive() bool {
	f, ok := Output().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of the output terminal, or fallback
func TerminalWidth(fallback int) int {
	f, ok := Output().(*os.File)
	if !ok {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

func printf(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Output(), format, args...)
}

// PrintBanner prints the banner
func PrintBanner() {
	printf("%s\n", Cyan(Banner))
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output(), Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printf("%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}
