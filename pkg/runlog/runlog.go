// Package runlog provides timestamped run logging to file and stdout with
// per-phase color coding. The log file is itself a run artifact: it lands in
// the same directory as the screenshots so a failed run can be diagnosed from
// artifacts alone.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Phase represents the current step phase for color coding.
type Phase string

// Phase constants for scenario execution stages.
const (
	PhaseAction  Phase = "action"  // navigation, clicks, typing (green)
	PhaseWait    Phase = "wait"    // polled waits (cyan)
	PhaseAssert  Phase = "assert"  // assertions (magenta)
	PhaseCapture Phase = "capture" // artifact capture (blue)
)

var (
	actionColor    = color.New(color.FgGreen)
	waitColor      = color.New(color.FgCyan)
	assertColor    = color.New(color.FgMagenta)
	captureColor   = color.New(color.FgBlue)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	timestampColor = color.New(color.FgWhite)
)

var phaseColors = map[Phase]*color.Color{
	PhaseAction:  actionColor,
	PhaseWait:    waitColor,
	PhaseAssert:  assertColor,
	PhaseCapture: captureColor,
}

// Logger writes timestamped output to both the run log file and stdout.
type Logger struct {
	file      *os.File
	stdout    io.Writer
	startTime time.Time
	phase     Phase
}

// Config holds logger configuration.
type Config struct {
	Dir      string // directory for the run log file (the artifact dir)
	Scenario string // scenario name, written to the header
	BaseURL  string // target URL, written to the header
	RunID    string // run identifier, written to the header
	NoColor  bool   // disable color output (sets color.NoColor globally)
}

// New creates a logger writing to <dir>/run.log and stdout.
func New(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}

	f, err := os.Create(filepath.Join(cfg.Dir, "run.log"))
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	l := &Logger{
		file:      f,
		stdout:    os.Stdout,
		startTime: time.Now(),
		phase:     PhaseAction,
	}

	l.writeFile("# Verification Run Log\n")
	l.writeFile("Scenario: %s\n", cfg.Scenario)
	l.writeFile("Target: %s\n", cfg.BaseURL)
	if cfg.RunID != "" {
		l.writeFile("Run: %s\n", cfg.RunID)
	}
	l.writeFile("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// Path returns the run log file path.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// SetPhase sets the current phase for color coding.
func (l *Logger) SetPhase(phase Phase) {
	l.phase = phase
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] %s\n", timestamp, msg)

	phaseColor := phaseColors[l.phase]
	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	msgStr := phaseColor.Sprint(msg)
	l.writeStdout("%s %s\n", tsStr, msgStr)
}

// PrintAligned writes text with a timestamp on the first line and aligned
// indentation for continuation lines, wrapping to terminal width. Used for
// multi-line diagnostics like last-observed wait state.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	phaseColor := phaseColors[l.phase]
	tsPrefix := timestampColor.Sprintf("[%s]", timestamp)
	indent := "                    " // 20 chars to align with "[YY-MM-DD HH:MM:SS] "

	width := getTerminalWidth()

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if len(line) > width {
			for _, wrapped := range strings.Split(wrapText(line, width), "\n") {
				lines = append(lines, wrapped)
			}
		} else {
			lines = append(lines, line)
		}
	}

	for i, line := range lines {
		if i == 0 {
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", tsPrefix, phaseColor.Sprint(line))
			continue
		}
		l.writeFile("%s%s\n", indent, line)
		l.writeStdout("%s%s\n", indent, phaseColor.Sprint(line))
	}
}

// Warn writes a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] WARN: %s\n", timestamp, msg)

	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	warnStr := warnColor.Sprintf("WARN: %s", msg)
	l.writeStdout("%s %s\n", tsStr, warnStr)
}

// Error writes an error message in red.
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] ERROR: %s\n", timestamp, msg)

	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	errStr := errorColor.Sprintf("ERROR: %s", msg)
	l.writeStdout("%s %s\n", tsStr, errStr)
}

// Elapsed returns formatted elapsed time since the logger was created.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Close writes the footer and closes the run log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return nil
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}

// getTerminalWidth returns content width (total minus timestamp prefix),
// using COLUMNS env var first, then the terminal syscall, defaulting to 80.
func getTerminalWidth() int {
	const minWidth = 40

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			if contentWidth := w - 20; contentWidth >= minWidth {
				return contentWidth
			}
			return minWidth
		}
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		if contentWidth := w - 20; contentWidth >= minWidth {
			return contentWidth
		}
		return minWidth
	}

	return 80 - 20
}

// wrapText wraps text to the given width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wordLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wordLen
			continue
		}

		if lineLen+1+wordLen <= width {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wordLen
		} else {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wordLen
		}
	}

	return result.String()
}
