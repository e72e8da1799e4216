// Package scenario loads declarative verification scenarios and runs them
// against a browser session: open session, execute steps sequentially, capture
// evidence on failure, close the session exactly once, report results.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vaultkeeperirl-design/verifyui/pkg/step"
)

// Viewport holds browser window dimensions.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultViewport matches the original verification flows.
var DefaultViewport = Viewport{Width: 1280, Height: 800}

// Scenario is one ordered sequence of verification steps. Loaded from YAML;
// immutable once loaded.
type Scenario struct {
	Name              string      `yaml:"name"`
	BaseURL           string      `yaml:"base_url,omitempty"` // overridable by CLI flag
	Viewport          Viewport    `yaml:"viewport,omitempty"`
	ContinueOnFailure bool        `yaml:"continue_on_failure,omitempty"`
	Steps             []step.Step `yaml:"steps"`
}

// Load reads and validates a scenario file. Unknown YAML fields are rejected
// so typos in step definitions fail at load time, not mid-run.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the CLI invocation
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the scenario has steps and that every step is executable.
func (s Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}
	if s.Viewport.Width < 0 || s.Viewport.Height < 0 {
		return fmt.Errorf("negative viewport dimensions")
	}
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
