//go:build e2e

// Package e2e runs full verification scenarios against a real chromium
// instance and a local test application. Requires playwright browsers;
// the first run downloads chromium.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeeperirl-design/verifyui/pkg/report"
	"github.com/vaultkeeperirl-design/verifyui/pkg/runlog"
	"github.com/vaultkeeperirl-design/verifyui/pkg/scenario"
)

// appHTML is a small menu-driven page exercising every step kind: a Help
// menu revealed on click, an About panel that appears after a delay, a
// documentation link opening a popup and a search input.
const appHTML = `<!DOCTYPE html>
<html>
<head><title>Demo App</title></head>
<body>
<nav>
  <button id="help" onclick="document.getElementById('menu').style.display='block'">Help</button>
  <div id="menu" style="display:none">
    <button role="menuitem" onclick="showAbout()">About</button>
    <a href="/docs" target="_blank">Documentation</a>
  </div>
</nav>
<input id="search" aria-label="Search">
<div id="about" style="display:none">
  <h2>About Demo App</h2>
  <p>version 1.2.3</p>
</div>
<script>
function showAbout() {
  setTimeout(function() {
    document.getElementById('about').style.display = 'block';
    document.title = 'About - Demo App';
  }, 300);
}
</script>
</body>
</html>`

const docsHTML = `<!DOCTYPE html>
<html><head><title>Documentation</title></head><body><h1>Docs</h1></body></html>`

func startApp(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, appHTML)
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, docsHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(t *testing.T, baseURL, outDir string) (*scenario.Runner, *runlog.Logger) {
	t.Helper()
	log, err := runlog.New(runlog.Config{Dir: outDir, Scenario: "e2e", BaseURL: baseURL, NoColor: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	r := scenario.New(scenario.RunnerConfig{
		BaseURL:          baseURL,
		OutDir:           outDir,
		Headless:         true,
		DefaultTimeoutMs: 15000,
		PollIntervalMs:   100,
	}, log)
	return r, log
}

func TestScenario_FullFlow(t *testing.T) {
	srv := startApp(t)
	outDir := t.TempDir()

	yml := fmt.Sprintf(`
name: menu-flow
steps:
  - kind: navigate
  - kind: assert
    check: title_contains
    value: Demo
  - kind: click
    target:
      text: Help
  - kind: wait
    until: visible
    target:
      role: menuitem
      name: About
    timeout_ms: 5000
  - kind: click
    target:
      role: menuitem
      name: About
  - kind: wait
    until: text
    text: version 1.2.3
    timeout_ms: 5000
  - kind: assert
    check: text_equals
    target:
      css: "#about h2"
    text: About Demo App
  - kind: type
    target:
      css: "#search"
    text: hello
  - kind: assert
    check: attribute_equals
    target:
      css: "#search"
    attribute: aria-label
    value: Search
  - kind: wait
    until: title
    value: About
    timeout_ms: 5000
  - kind: click_popup
    target:
      text: Documentation
    expect_url: %s/docs
  - kind: capture
    scope: page
    label: final
`, srv.URL)

	path := filepath.Join(t.TempDir(), "menu-flow.yml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	sc, err := scenario.Load(path)
	require.NoError(t, err)

	r, _ := newRunner(t, srv.URL, outDir)
	rep, err := r.Run(context.Background(), sc)
	require.NoError(t, err)

	for _, s := range rep.Steps {
		assert.Equal(t, report.StatusPassed, s.Status, "step %d (%s): %s", s.Index+1, s.Name, s.Message)
	}
	assert.True(t, rep.Passed())

	// popup note and final screenshot landed in the artifact dir
	assert.FileExists(t, filepath.Join(outDir, "menu-flow_10_popup.txt"))
	assert.FileExists(t, filepath.Join(outDir, "menu-flow_11_final.png"))
}

func TestScenario_FailureCapturesEvidence(t *testing.T) {
	srv := startApp(t)
	outDir := t.TempDir()

	yml := `
name: missing-element
steps:
  - kind: navigate
  - kind: wait
    until: visible
    target:
      text: No Such Element
    timeout_ms: 1500
  - kind: assert
    check: title_contains
    value: Demo
`
	path := filepath.Join(t.TempDir(), "missing-element.yml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	sc, err := scenario.Load(path)
	require.NoError(t, err)

	r, _ := newRunner(t, srv.URL, outDir)
	rep, runErr := r.Run(context.Background(), sc)
	require.NoError(t, runErr)

	assert.False(t, rep.Passed())
	require.Len(t, rep.Steps, 3)
	assert.Equal(t, report.StatusPassed, rep.Steps[0].Status)
	assert.Equal(t, report.StatusFailed, rep.Steps[1].Status, "wait timeout is a failure, not an error")
	assert.Contains(t, rep.Steps[1].Message, "timed out")
	assert.Equal(t, report.StatusSkipped, rep.Steps[2].Status)

	// failure screenshot recorded as evidence
	assert.FileExists(t, filepath.Join(outDir, "missing-element_1_failure.png"))
}
