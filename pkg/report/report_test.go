package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_FinishAllPassed(t *testing.T) {
	r := New("menu", "ab12cd34")
	r.Add(StepResult{Index: 0, Name: "open page", Status: StatusPassed})
	r.Add(StepResult{Index: 1, Name: "click help", Status: StatusPassed})
	r.Finish()

	assert.Equal(t, StatusPassed, r.Overall)
	assert.True(t, r.Passed())
	assert.GreaterOrEqual(t, r.ElapsedMs, int64(0))
}

func TestReport_FinishOverall(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty passes vacuously", nil, StatusPassed},
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"one failed", []Status{StatusPassed, StatusFailed}, StatusFailed},
		{"one errored", []Status{StatusErrored, StatusPassed}, StatusFailed},
		{"skipped counts against", []Status{StatusPassed, StatusSkipped}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("s", "")
			for i, st := range tt.statuses {
				r.Add(StepResult{Index: i, Status: st})
			}
			r.Finish()
			assert.Equal(t, tt.want, r.Overall)
		})
	}
}

func TestReport_PrintSummary(t *testing.T) {
	r := New("links", "run1")
	r.Add(StepResult{Index: 0, Name: "open docs popup", Status: StatusPassed})
	r.Add(StepResult{Index: 1, Name: "check title", Status: StatusFailed,
		Message:  `title "Home" does not contain "Docs"`,
		Evidence: []string{"out/run1/links_1_failure.png"}})
	r.Add(StepResult{Index: 2, Name: "capture toolbar", Status: StatusSkipped})
	r.Finish()

	buf := &bytes.Buffer{}
	r.PrintSummary(buf)
	out := buf.String()

	assert.Contains(t, out, `scenario "links" (3 steps`)
	assert.Contains(t, out, "open docs popup")
	assert.Contains(t, out, "passed")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, `title "Home" does not contain "Docs"`)
	assert.Contains(t, out, "out/run1/links_1_failure.png")
	assert.Contains(t, out, "FAILED: links")
	assert.NotContains(t, out, "PASSED:")
}

func TestReport_WriteJSON(t *testing.T) {
	r := New("menu", "ab12cd34")
	r.Add(StepResult{Index: 0, Name: "open page", Status: StatusPassed, DurationMs: 120})
	r.Finish()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "menu", got.Scenario)
	assert.Equal(t, "ab12cd34", got.RunID)
	assert.Equal(t, StatusPassed, got.Overall)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, int64(120), got.Steps[0].DurationMs)
}

func TestReport_WriteJSONBadPath(t *testing.T) {
	r := New("menu", "")
	err := r.WriteJSON(filepath.Join(t.TempDir(), "missing", "report.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}
