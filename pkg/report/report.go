// Package report aggregates per-step outcomes into a scenario pass/fail
// summary with evidence paths, printable for humans and writable as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Status is the outcome of a single step or of the whole scenario.
type Status string

// Step and scenario statuses.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"  // assertion or wait did not hold
	StatusErrored Status = "errored" // step could not complete
	StatusSkipped Status = "skipped" // not attempted after an earlier failure
)

// StepResult records the outcome of one scenario step. Immutable once added.
type StepResult struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Status     Status   `json:"status"`
	Message    string   `json:"message,omitempty"`
	Evidence   []string `json:"evidence,omitempty"` // artifact file paths, in capture order
	DurationMs int64    `json:"duration_ms"`
}

// Report is the terminal artifact of a scenario run.
type Report struct {
	Scenario  string       `json:"scenario"`
	RunID     string       `json:"run_id,omitempty"`
	Started   time.Time    `json:"started"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Overall   Status       `json:"overall"`
	Steps     []StepResult `json:"steps"`
}

// New creates an empty report for a scenario run.
func New(scenario, runID string) *Report {
	return &Report{Scenario: scenario, RunID: runID, Started: time.Now(), Overall: StatusPassed}
}

// Add appends a step result in step order.
func (r *Report) Add(res StepResult) {
	r.Steps = append(r.Steps, res)
}

// Finish computes the overall status and elapsed time. Overall is Passed iff
// every step passed; an empty scenario passes vacuously.
func (r *Report) Finish() {
	r.ElapsedMs = time.Since(r.Started).Milliseconds()
	r.Overall = StatusPassed
	for _, s := range r.Steps {
		if s.Status != StatusPassed {
			r.Overall = StatusFailed
			return
		}
	}
}

// Passed reports whether the scenario passed overall.
func (r *Report) Passed() bool { return r.Overall == StatusPassed }

// status glyphs and colors for the printed summary.
var (
	passColor = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	skipColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func statusMark(s Status) string {
	switch s {
	case StatusPassed:
		return passColor.Sprint("✓ passed")
	case StatusFailed:
		return failColor.Sprint("✗ failed")
	case StatusErrored:
		return failColor.Sprint("! errored")
	case StatusSkipped:
		return skipColor.Sprint("- skipped")
	default:
		return string(s)
	}
}

// PrintSummary writes the human-readable run summary: one line per step with
// status and message, evidence paths indented below, then the overall verdict.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\nscenario %q (%d steps, %s)\n", r.Scenario, len(r.Steps), time.Duration(r.ElapsedMs)*time.Millisecond)
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  %2d. %-40s %s", s.Index+1, s.Name, statusMark(s.Status))
		if s.Message != "" {
			fmt.Fprintf(w, "  %s", dimColor.Sprint(s.Message))
		}
		fmt.Fprintln(w)
		for _, ev := range s.Evidence {
			fmt.Fprintf(w, "      %s\n", dimColor.Sprint(ev))
		}
	}
	if r.Passed() {
		fmt.Fprintf(w, "\n%s\n", passColor.Sprintf("PASSED: %s", r.Scenario))
	} else {
		fmt.Fprintf(w, "\n%s\n", failColor.Sprintf("FAILED: %s", r.Scenario))
	}
}

// WriteJSON writes the machine-readable report next to the run artifacts.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
