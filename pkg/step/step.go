// Package step defines the scenario step vocabulary and executes steps
// against a live browser page: actions mutate page state, assertions are pure
// reads, waits poll until page state settles, captures record evidence.
package step

import (
	"errors"
	"fmt"

	"github.com/vaultkeeperirl-design/verifyui/pkg/locator"
)

// Kind identifies a step operation.
type Kind string

// Step kinds.
const (
	KindNavigate   Kind = "navigate"    // load a URL (absolute or relative to base)
	KindReload     Kind = "reload"      // reload the current page to reset state
	KindClick      Kind = "click"       // click the target element
	KindClickPopup Kind = "click_popup" // arm popup capture, click, resolve popup URL
	KindType       Kind = "type"        // fill the target element with text
	KindWait       Kind = "wait"        // poll a condition until satisfied or timeout
	KindAssert     Kind = "assert"      // evaluate a read-only check
	KindCapture    Kind = "capture"     // screenshot full page or target element
)

// Wait condition names for KindWait.
const (
	UntilVisible     = "visible"
	UntilText        = "text"
	UntilNetworkIdle = "network_idle"
	UntilTitle       = "title"
)

// Assertion check names for KindAssert.
const (
	CheckVisible       = "visible"
	CheckTextEquals    = "text_equals"
	CheckAttrEquals    = "attribute_equals"
	CheckURLEquals     = "url_equals"
	CheckTitleContains = "title_contains"
)

// Capture scopes for KindCapture.
const (
	ScopePage    = "page"
	ScopeElement = "element"
)

// ErrPopupNotOpened reports that a click expected to open a new browsing
// context did not produce one within the wait timeout.
var ErrPopupNotOpened = errors.New("expected popup did not open")

// AssertionError reports an assertion that evaluated false. It marks the step
// failed without aborting the scenario's teardown path.
type AssertionError struct {
	Check  string
	Detail string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: %s", e.Check, e.Detail)
}

// Step is one declarative operation in a scenario. Which fields apply depends
// on Kind; Validate rejects combinations the executor cannot act on.
type Step struct {
	Kind      Kind          `yaml:"kind"`
	Name      string        `yaml:"name,omitempty"`      // optional human label for the report
	URL       string        `yaml:"url,omitempty"`       // navigate target, absolute or path
	Target    *locator.Spec `yaml:"target,omitempty"`    // element spec for element-scoped kinds
	Text      string        `yaml:"text,omitempty"`      // text to type, or expected text
	Until     string        `yaml:"until,omitempty"`     // wait condition name
	Check     string        `yaml:"check,omitempty"`     // assertion name
	Attribute string        `yaml:"attribute,omitempty"` // attribute name for attribute_equals
	Value     string        `yaml:"value,omitempty"`     // expected value for assertions
	Scope     string        `yaml:"scope,omitempty"`     // capture scope: page or element
	Label     string        `yaml:"label,omitempty"`     // artifact kind label for captures
	ExpectURL string        `yaml:"expect_url,omitempty"` // expected popup URL for click_popup
	TimeoutMs int           `yaml:"timeout_ms,omitempty"` // overrides the default step timeout
	IdleMs    int           `yaml:"idle_ms,omitempty"`    // quiet window for network_idle
}

// Validate checks the step is executable: known kind, required fields present
// and any target spec well formed.
func (s Step) Validate() error {
	if s.Target != nil {
		if err := s.Target.Validate(); err != nil {
			return err
		}
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("%s: negative timeout", s.Kind)
	}

	switch s.Kind {
	case KindNavigate:
		return nil // empty URL navigates to the base URL
	case KindReload:
		return nil
	case KindClick, KindClickPopup, KindType:
		if s.Target == nil {
			return fmt.Errorf("%s: target required", s.Kind)
		}
		if s.Kind == KindType && s.Text == "" {
			return errors.New("type: text required")
		}
		return nil
	case KindWait:
		return s.validateWait()
	case KindAssert:
		return s.validateAssert()
	case KindCapture:
		switch s.Scope {
		case ScopePage, "":
			return nil
		case ScopeElement:
			if s.Target == nil {
				return errors.New("capture: element scope requires target")
			}
			return nil
		default:
			return fmt.Errorf("capture: unknown scope %q", s.Scope)
		}
	case "":
		return errors.New("step kind required")
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
}

func (s Step) validateWait() error {
	switch s.Until {
	case UntilVisible:
		if s.Target == nil {
			return errors.New("wait visible: target required")
		}
	case UntilText:
		if s.Text == "" {
			return errors.New("wait text: text required")
		}
	case UntilNetworkIdle:
	case UntilTitle:
		if s.Value == "" {
			return errors.New("wait title: value required")
		}
	case "":
		return errors.New("wait: until required")
	default:
		return fmt.Errorf("wait: unknown condition %q", s.Until)
	}
	return nil
}

func (s Step) validateAssert() error {
	switch s.Check {
	case CheckVisible:
		if s.Target == nil {
			return errors.New("assert visible: target required")
		}
	case CheckTextEquals:
		if s.Target == nil || s.Text == "" {
			return errors.New("assert text_equals: target and text required")
		}
	case CheckAttrEquals:
		if s.Target == nil || s.Attribute == "" {
			return errors.New("assert attribute_equals: target and attribute required")
		}
	case CheckURLEquals:
		if s.Value == "" {
			return errors.New("assert url_equals: value required")
		}
	case CheckTitleContains:
		if s.Value == "" {
			return errors.New("assert title_contains: value required")
		}
	case "":
		return errors.New("assert: check required")
	default:
		return fmt.Errorf("assert: unknown check %q", s.Check)
	}
	return nil
}

// Describe returns the step's display name for the report: the explicit Name
// if set, otherwise a short derived description.
func (s Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindNavigate:
		if s.URL == "" {
			return "navigate to base url"
		}
		return "navigate to " + s.URL
	case KindReload:
		return "reload page"
	case KindClick:
		return "click " + s.Target.String()
	case KindClickPopup:
		return "click " + s.Target.String() + " expecting popup"
	case KindType:
		return fmt.Sprintf("type %q into %s", s.Text, s.Target)
	case KindWait:
		switch s.Until {
		case UntilText:
			return fmt.Sprintf("wait for text %q", s.Text)
		case UntilNetworkIdle:
			return "wait for network idle"
		case UntilTitle:
			return fmt.Sprintf("wait for title %q", s.Value)
		default:
			return "wait for " + s.Target.String()
		}
	case KindAssert:
		return fmt.Sprintf("assert %s", s.Check)
	case KindCapture:
		if s.Scope == ScopeElement {
			return "capture element screenshot"
		}
		return "capture page screenshot"
	default:
		return string(s.Kind)
	}
}
