// Package locator resolves declarative element specs into live playwright locators.
// A Spec is an immutable value describing target elements by exactly one strategy:
// text content, a CSS path, a role with accessible name, or an attribute equality.
package locator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Pick selects which of the matched elements to use.
const (
	PickAll   = ""      // all matches, document order
	PickFirst = "first" // first match only
	PickLast  = "last"  // last match only
)

// Spec describes target element(s). Exactly one of Text, CSS, Role or Attr
// must be set. Ancestors walks the containment chain outward from the matched
// anchor, one level per step, stopping at the resulting element.
type Spec struct {
	Text      string `yaml:"text,omitempty"`      // match by visible text content
	Exact     bool   `yaml:"exact,omitempty"`     // exact text match instead of substring
	CSS       string `yaml:"css,omitempty"`       // CSS structural path
	Role      string `yaml:"role,omitempty"`      // ARIA role, paired with Name
	Name      string `yaml:"name,omitempty"`      // accessible name for Role
	Attr      string `yaml:"attr,omitempty"`      // attribute name for equality match
	Value     string `yaml:"value,omitempty"`     // expected attribute value
	Ancestors int    `yaml:"ancestors,omitempty"` // containment levels to walk outward
	Pick      string `yaml:"pick,omitempty"`      // "", "first" or "last"
}

// ResolutionError reports a malformed spec. Zero matches is not a resolution
// error; it is a normal empty result for the caller to interpret.
type ResolutionError struct {
	Spec   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %s", e.Spec, e.Reason)
}

// knownRoles covers the ARIA roles the harness accepts. Kept to the roles that
// actually appear in UI verification flows; unknown roles fail validation
// instead of silently matching nothing.
var knownRoles = map[string]playwright.AriaRole{
	"alert":      *playwright.AriaRoleAlert,
	"banner":     *playwright.AriaRoleBanner,
	"button":     *playwright.AriaRoleButton,
	"checkbox":   *playwright.AriaRoleCheckbox,
	"dialog":     *playwright.AriaRoleDialog,
	"heading":    *playwright.AriaRoleHeading,
	"img":        *playwright.AriaRoleImg,
	"link":       *playwright.AriaRoleLink,
	"list":       *playwright.AriaRoleList,
	"listitem":   *playwright.AriaRoleListitem,
	"menu":       *playwright.AriaRoleMenu,
	"menuitem":   *playwright.AriaRoleMenuitem,
	"navigation": *playwright.AriaRoleNavigation,
	"tab":        *playwright.AriaRoleTab,
	"tabpanel":   *playwright.AriaRoleTabpanel,
	"textbox":    *playwright.AriaRoleTextbox,
}

var attrNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_:.-]*$`)

// Validate checks the spec is well formed: exactly one strategy, a known role,
// a legal attribute name and non-negative ancestor depth.
func (s Spec) Validate() error {
	strategies := 0
	if s.Text != "" {
		strategies++
	}
	if s.CSS != "" {
		strategies++
	}
	if s.Role != "" {
		strategies++
	}
	if s.Attr != "" {
		strategies++
	}

	switch {
	case strategies == 0:
		return &ResolutionError{Spec: s.String(), Reason: "no strategy set (need text, css, role or attr)"}
	case strategies > 1:
		return &ResolutionError{Spec: s.String(), Reason: "multiple strategies set, exactly one allowed"}
	}

	if s.Role != "" {
		if _, ok := knownRoles[strings.ToLower(s.Role)]; !ok {
			return &ResolutionError{Spec: s.String(), Reason: fmt.Sprintf("unknown role %q", s.Role)}
		}
	}
	if s.Attr != "" && !attrNameRe.MatchString(s.Attr) {
		return &ResolutionError{Spec: s.String(), Reason: fmt.Sprintf("invalid attribute name %q", s.Attr)}
	}
	if s.Name != "" && s.Role == "" {
		return &ResolutionError{Spec: s.String(), Reason: "name requires role"}
	}
	if s.Ancestors < 0 {
		return &ResolutionError{Spec: s.String(), Reason: "negative ancestor depth"}
	}
	switch s.Pick {
	case PickAll, PickFirst, PickLast:
	default:
		return &ResolutionError{Spec: s.String(), Reason: fmt.Sprintf("invalid pick %q", s.Pick)}
	}

	return nil
}

// Build returns a lazy locator for the spec on the given page. The locator is
// not evaluated here; use Resolve for a point-in-time snapshot of matches.
func (s Spec) Build(page playwright.Page) (playwright.Locator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var loc playwright.Locator
	switch {
	case s.Text != "":
		loc = page.GetByText(s.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(s.Exact)})
	case s.CSS != "":
		loc = page.Locator(s.CSS)
	case s.Role != "":
		role := knownRoles[strings.ToLower(s.Role)]
		opts := playwright.PageGetByRoleOptions{}
		if s.Name != "" {
			opts.Name = s.Name
		}
		loc = page.GetByRole(role, opts)
	case s.Attr != "":
		loc = page.Locator(fmt.Sprintf("[%s=%q]", s.Attr, s.Value))
	}

	switch s.Pick {
	case PickFirst:
		loc = loc.First()
	case PickLast:
		loc = loc.Last()
	}

	// walk the containment chain outward from the anchor, one level per step
	for i := 0; i < s.Ancestors; i++ {
		loc = loc.Locator("xpath=..")
	}

	return loc, nil
}

// Resolve snapshots the elements matching the spec at call time, in document
// order. It never blocks and returns an empty slice on zero matches.
func Resolve(page playwright.Page, s Spec) ([]playwright.Locator, error) {
	loc, err := s.Build(page)
	if err != nil {
		return nil, err
	}
	all, err := loc.All()
	if err != nil {
		return nil, fmt.Errorf("enumerate matches for %s: %w", s, err)
	}
	return all, nil
}

// String renders the spec for diagnostics and log lines.
func (s Spec) String() string {
	var b strings.Builder
	switch {
	case s.Text != "":
		fmt.Fprintf(&b, "text=%q", s.Text)
		if s.Exact {
			b.WriteString(" (exact)")
		}
	case s.CSS != "":
		fmt.Fprintf(&b, "css=%q", s.CSS)
	case s.Role != "":
		fmt.Fprintf(&b, "role=%s", s.Role)
		if s.Name != "" {
			fmt.Fprintf(&b, " name=%q", s.Name)
		}
	case s.Attr != "":
		fmt.Fprintf(&b, "[%s=%q]", s.Attr, s.Value)
	default:
		b.WriteString("(empty spec)")
	}
	if s.Pick != PickAll {
		fmt.Fprintf(&b, " pick=%s", s.Pick)
	}
	if s.Ancestors > 0 {
		fmt.Fprintf(&b, " ancestors=%d", s.Ancestors)
	}
	return b.String()
}
