// Package artifact captures diagnostic files for scenario steps: screenshots,
// popup targets and console dumps. Capture failures degrade to a recorded note
// instead of propagating, so evidence collection never aborts a run.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/playwright-community/playwright-go"
)

// Artifact is a file reference produced by the capturer. Files are never
// mutated after write.
type Artifact struct {
	Name string `json:"name"` // logical name: <scenario>_<step>_<kind>
	Path string `json:"path"` // file path under the output directory
	Kind string `json:"kind"` // screenshot, note or unavailable
}

// Capturer writes artifacts for one scenario run. RunID, when set, namespaces
// the files in a per-run subdirectory so concurrent runs never collide.
type Capturer struct {
	OutDir   string
	RunID    string
	Scenario string
}

// pageShooter is the slice of playwright.Page the capturer needs.
type pageShooter interface {
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
}

// elementShooter is the slice of playwright.Locator the capturer needs.
type elementShooter interface {
	Screenshot(options ...playwright.LocatorScreenshotOptions) ([]byte, error)
}

// Dir returns the directory artifacts are written to.
func (c *Capturer) Dir() string {
	if c.RunID == "" {
		return c.OutDir
	}
	return filepath.Join(c.OutDir, c.RunID)
}

func (c *Capturer) ensureDir() error {
	if err := os.MkdirAll(c.Dir(), 0o750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	return nil
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// logicalName builds <scenario>_<step>_<kind> with unsafe characters stripped.
func (c *Capturer) logicalName(stepIndex int, kind string) string {
	scenario := unsafeNameRe.ReplaceAllString(c.Scenario, "-")
	if scenario == "" {
		scenario = "scenario"
	}
	kind = unsafeNameRe.ReplaceAllString(kind, "-")
	if kind == "" {
		kind = "capture"
	}
	return fmt.Sprintf("%s_%d_%s", scenario, stepIndex, kind)
}

func (c *Capturer) filePath(stepIndex int, kind, ext string) string {
	return filepath.Join(c.Dir(), c.logicalName(stepIndex, kind)+ext)
}

// CapturePage takes a full-page screenshot. On failure the artifact degrades
// to a "capture unavailable" note; the returned error is informational only
// and safe to record without aborting the step.
func (c *Capturer) CapturePage(page pageShooter, stepIndex int, kind string) (Artifact, error) {
	if err := c.ensureDir(); err != nil {
		return Artifact{Name: c.logicalName(stepIndex, kind), Kind: "unavailable"}, err
	}
	path := c.filePath(stepIndex, kind, ".png")
	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return c.degrade(stepIndex, kind, err)
	}
	return Artifact{Name: c.logicalName(stepIndex, kind), Path: path, Kind: "screenshot"}, nil
}

// CaptureElement takes a screenshot scoped to a single element.
func (c *Capturer) CaptureElement(el elementShooter, stepIndex int, kind string) (Artifact, error) {
	if err := c.ensureDir(); err != nil {
		return Artifact{Name: c.logicalName(stepIndex, kind), Kind: "unavailable"}, err
	}
	path := c.filePath(stepIndex, kind, ".png")
	_, err := el.Screenshot(playwright.LocatorScreenshotOptions{
		Path: playwright.String(path),
	})
	if err != nil {
		return c.degrade(stepIndex, kind, err)
	}
	return Artifact{Name: c.logicalName(stepIndex, kind), Path: path, Kind: "screenshot"}, nil
}

// Note writes a text artifact, e.g. a popup target URL or a console dump.
func (c *Capturer) Note(stepIndex int, kind, text string) (Artifact, error) {
	if err := c.ensureDir(); err != nil {
		return Artifact{Name: c.logicalName(stepIndex, kind), Kind: "unavailable"}, err
	}
	path := c.filePath(stepIndex, kind, ".txt")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return Artifact{Name: c.logicalName(stepIndex, kind), Kind: "unavailable"},
			fmt.Errorf("write note: %w", err)
	}
	return Artifact{Name: c.logicalName(stepIndex, kind), Path: path, Kind: "note"}, nil
}

// degrade records a capture failure as a note so the run still carries
// evidence of what went wrong.
func (c *Capturer) degrade(stepIndex int, kind string, cause error) (Artifact, error) {
	note, noteErr := c.Note(stepIndex, kind+"-unavailable", fmt.Sprintf("capture unavailable: %v\n", cause))
	if noteErr != nil {
		return Artifact{Name: c.logicalName(stepIndex, kind), Kind: "unavailable"},
			fmt.Errorf("capture failed (%v) and note failed: %w", cause, noteErr)
	}
	return note, fmt.Errorf("capture unavailable: %w", cause)
}
