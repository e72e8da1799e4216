package step

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/vaultkeeperirl-design/verifyui/pkg/artifact"
	"github.com/vaultkeeperirl-design/verifyui/pkg/locator"
	"github.com/vaultkeeperirl-design/verifyui/pkg/wait"
)

// Outcome carries step evidence and diagnostic detail back to the runner.
type Outcome struct {
	Detail   string   // short observation, e.g. popup URL or wait state
	Evidence []string // artifact paths captured during the step
}

// Executor performs actions and evaluates assertions against one page.
// Assertions are pure reads; actions may mutate page state. Sequencing an
// action with a wait for its asynchronous effects is the scenario author's
// responsibility, not implicit here.
type Executor struct {
	Page           playwright.Page
	Activity       wait.Activity      // network tracker for network_idle waits
	Capturer       *artifact.Capturer // evidence sink for capture steps
	BaseURL        string
	DefaultTimeout time.Duration
	PollInterval   time.Duration // zero means wait.DefaultInterval
}

// Execute runs one step. Assertion failures, wait timeouts and missing popups
// come back as their typed errors so the runner can classify the step as
// Failed rather than Errored.
func (e *Executor) Execute(ctx context.Context, stepIndex int, st Step) (Outcome, error) {
	if err := st.Validate(); err != nil {
		return Outcome{}, err
	}

	switch st.Kind {
	case KindNavigate:
		return e.navigate(st)
	case KindReload:
		return e.reload(st)
	case KindClick:
		return e.click(st)
	case KindClickPopup:
		return e.clickPopup(stepIndex, st)
	case KindType:
		return e.typeText(st)
	case KindWait:
		return e.waitFor(ctx, st)
	case KindAssert:
		return e.assert(st)
	case KindCapture:
		return e.capture(stepIndex, st)
	default:
		return Outcome{}, fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

// timeout resolves the step timeout: explicit override, then the default.
func (e *Executor) timeout(st Step) time.Duration {
	if st.TimeoutMs > 0 {
		return time.Duration(st.TimeoutMs) * time.Millisecond
	}
	if e.DefaultTimeout > 0 {
		return e.DefaultTimeout
	}
	return 30 * time.Second
}

func (e *Executor) timeoutMs(st Step) float64 {
	return float64(e.timeout(st) / time.Millisecond)
}

// resolveURL joins a step URL with the base URL. Absolute URLs pass through;
// an empty URL targets the base itself.
func (e *Executor) resolveURL(raw string) (string, error) {
	if raw == "" {
		return e.BaseURL, nil
	}
	if strings.Contains(raw, "://") {
		return raw, nil
	}
	joined, err := url.JoinPath(e.BaseURL, raw)
	if err != nil {
		return "", fmt.Errorf("join %q with base %q: %w", raw, e.BaseURL, err)
	}
	return joined, nil
}

func (e *Executor) navigate(st Step) (Outcome, error) {
	target, err := e.resolveURL(st.URL)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := e.Page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(e.timeoutMs(st)),
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return Outcome{}, fmt.Errorf("navigate to %s: %w", target, err)
	}
	return Outcome{Detail: target}, nil
}

func (e *Executor) reload(st Step) (Outcome, error) {
	if _, err := e.Page.Reload(playwright.PageReloadOptions{
		Timeout: playwright.Float(e.timeoutMs(st)),
	}); err != nil {
		return Outcome{}, fmt.Errorf("reload: %w", err)
	}
	return Outcome{}, nil
}

func (e *Executor) click(st Step) (Outcome, error) {
	loc, err := st.Target.Build(e.Page)
	if err != nil {
		return Outcome{}, err
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(e.timeoutMs(st))}); err != nil {
		return Outcome{}, fmt.Errorf("click %s: %w", st.Target, err)
	}
	return Outcome{}, nil
}

// clickPopup arms capture of the next opened browsing context, performs the
// click, then resolves the popup's target URL. The two-phase arm-then-act
// ordering makes the dependency on the popup event explicit.
func (e *Executor) clickPopup(stepIndex int, st Step) (Outcome, error) {
	loc, err := st.Target.Build(e.Page)
	if err != nil {
		return Outcome{}, err
	}

	var clickErr error
	popup, err := e.Page.ExpectPopup(func() error {
		clickErr = loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(e.timeoutMs(st))})
		return clickErr
	}, playwright.PageExpectPopupOptions{Timeout: playwright.Float(e.timeoutMs(st))})
	if clickErr != nil {
		return Outcome{}, fmt.Errorf("click %s: %w", st.Target, clickErr)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w within %s: %v", ErrPopupNotOpened, e.timeout(st), err)
	}

	popupURL := popup.URL()
	out := Outcome{Detail: "popup " + popupURL}
	if e.Capturer != nil {
		if art, noteErr := e.Capturer.Note(stepIndex, "popup", popupURL+"\n"); noteErr == nil {
			out.Evidence = append(out.Evidence, art.Path)
		}
	}
	if closeErr := popup.Close(); closeErr != nil {
		out.Detail += " (popup close failed)"
	}

	if st.ExpectURL != "" && !urlEqual(popupURL, st.ExpectURL) {
		return out, &AssertionError{
			Check:  "popup url",
			Detail: fmt.Sprintf("want %q, got %q", st.ExpectURL, popupURL),
		}
	}
	return out, nil
}

func (e *Executor) typeText(st Step) (Outcome, error) {
	loc, err := st.Target.Build(e.Page)
	if err != nil {
		return Outcome{}, err
	}
	if err := loc.Fill(st.Text, playwright.LocatorFillOptions{Timeout: playwright.Float(e.timeoutMs(st))}); err != nil {
		return Outcome{}, fmt.Errorf("type into %s: %w", st.Target, err)
	}
	return Outcome{}, nil
}

func (e *Executor) waitFor(ctx context.Context, st Step) (Outcome, error) {
	cond, err := e.buildCondition(st)
	if err != nil {
		return Outcome{}, err
	}

	res, err := wait.Until(ctx, cond, e.timeout(st), e.PollInterval)
	out := Outcome{Detail: res.Observed}
	if err != nil {
		return out, err
	}
	out.Detail = fmt.Sprintf("%s after %s", res.Observed, res.Elapsed.Round(time.Millisecond))
	return out, nil
}

func (e *Executor) buildCondition(st Step) (wait.Condition, error) {
	switch st.Until {
	case UntilVisible:
		loc, err := st.Target.Build(e.Page)
		if err != nil {
			return nil, err
		}
		return wait.Visible(loc, st.Target.String()), nil
	case UntilText:
		// with a target, wait for that element to carry the text; without one,
		// wait for the text to show up anywhere on the page
		if st.Target != nil {
			loc, err := st.Target.Build(e.Page)
			if err != nil {
				return nil, err
			}
			return wait.HasText(loc, st.Target.String(), st.Text), nil
		}
		spec := locator.Spec{Text: st.Text}
		loc, err := spec.Build(e.Page)
		if err != nil {
			return nil, err
		}
		return wait.Visible(loc, fmt.Sprintf("text %q", st.Text)), nil
	case UntilNetworkIdle:
		idleFor := time.Duration(st.IdleMs) * time.Millisecond
		return wait.NetworkIdle(e.Activity, idleFor), nil
	case UntilTitle:
		return wait.TitleContains(e.Page, st.Value), nil
	default:
		return nil, fmt.Errorf("wait: unknown condition %q", st.Until)
	}
}

func (e *Executor) assert(st Step) (Outcome, error) {
	switch st.Check {
	case CheckVisible:
		return e.assertVisible(st)
	case CheckTextEquals:
		return e.assertTextEquals(st)
	case CheckAttrEquals:
		return e.assertAttrEquals(st)
	case CheckURLEquals:
		return e.assertURLEquals(st)
	case CheckTitleContains:
		return e.assertTitleContains(st)
	default:
		return Outcome{}, fmt.Errorf("assert: unknown check %q", st.Check)
	}
}

func (e *Executor) assertVisible(st Step) (Outcome, error) {
	matches, err := locator.Resolve(e.Page, *st.Target)
	if err != nil {
		return Outcome{}, err
	}
	if len(matches) == 0 {
		return Outcome{}, &AssertionError{Check: CheckVisible, Detail: fmt.Sprintf("no element matches %s", st.Target)}
	}
	visible, err := matches[0].IsVisible()
	if err != nil {
		return Outcome{}, fmt.Errorf("check visibility of %s: %w", st.Target, err)
	}
	if !visible {
		return Outcome{}, &AssertionError{Check: CheckVisible, Detail: fmt.Sprintf("%s matched but not visible", st.Target)}
	}
	return Outcome{Detail: "visible"}, nil
}

func (e *Executor) assertTextEquals(st Step) (Outcome, error) {
	matches, err := locator.Resolve(e.Page, *st.Target)
	if err != nil {
		return Outcome{}, err
	}
	if len(matches) == 0 {
		return Outcome{}, &AssertionError{Check: CheckTextEquals, Detail: fmt.Sprintf("no element matches %s", st.Target)}
	}
	text, err := matches[0].TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(e.timeoutMs(st))})
	if err != nil {
		return Outcome{}, fmt.Errorf("read text of %s: %w", st.Target, err)
	}
	text = strings.TrimSpace(text)
	if text != st.Text {
		return Outcome{}, &AssertionError{Check: CheckTextEquals, Detail: fmt.Sprintf("want %q, got %q", st.Text, text)}
	}
	return Outcome{Detail: fmt.Sprintf("text %q", text)}, nil
}

func (e *Executor) assertAttrEquals(st Step) (Outcome, error) {
	matches, err := locator.Resolve(e.Page, *st.Target)
	if err != nil {
		return Outcome{}, err
	}
	if len(matches) == 0 {
		return Outcome{}, &AssertionError{Check: CheckAttrEquals, Detail: fmt.Sprintf("no element matches %s", st.Target)}
	}
	got, err := matches[0].GetAttribute(st.Attribute)
	if err != nil {
		return Outcome{}, fmt.Errorf("read attribute %s of %s: %w", st.Attribute, st.Target, err)
	}
	if got != st.Value {
		return Outcome{}, &AssertionError{
			Check:  CheckAttrEquals,
			Detail: fmt.Sprintf("%s: want %q, got %q", st.Attribute, st.Value, got),
		}
	}
	return Outcome{Detail: fmt.Sprintf("%s=%q", st.Attribute, got)}, nil
}

func (e *Executor) assertURLEquals(st Step) (Outcome, error) {
	want, err := e.resolveURL(st.Value)
	if err != nil {
		return Outcome{}, err
	}
	got := e.Page.URL()
	if !urlEqual(got, want) {
		return Outcome{}, &AssertionError{Check: CheckURLEquals, Detail: fmt.Sprintf("want %q, got %q", want, got)}
	}
	return Outcome{Detail: got}, nil
}

func (e *Executor) assertTitleContains(st Step) (Outcome, error) {
	title, err := e.Page.Title()
	if err != nil {
		return Outcome{}, fmt.Errorf("read title: %w", err)
	}
	if !strings.Contains(title, st.Value) {
		return Outcome{}, &AssertionError{Check: CheckTitleContains, Detail: fmt.Sprintf("want %q in title %q", st.Value, title)}
	}
	return Outcome{Detail: fmt.Sprintf("title %q", title)}, nil
}

// capture records a screenshot. Capture failure never fails the step: the
// degraded note artifact is attached and the cause surfaces in the detail.
func (e *Executor) capture(stepIndex int, st Step) (Outcome, error) {
	kind := st.Label
	if kind == "" {
		kind = st.Scope
		if kind == "" {
			kind = ScopePage
		}
	}

	var art artifact.Artifact
	var err error
	if st.Scope == ScopeElement {
		var loc playwright.Locator
		loc, err = st.Target.Build(e.Page)
		if err != nil {
			return Outcome{}, err
		}
		art, err = e.Capturer.CaptureElement(loc.First(), stepIndex, kind)
	} else {
		art, err = e.Capturer.CapturePage(e.Page, stepIndex, kind)
	}

	out := Outcome{}
	if art.Path != "" {
		out.Evidence = append(out.Evidence, art.Path)
	}
	if err != nil {
		out.Detail = err.Error() // degraded, recorded but not fatal
	}
	return out, nil
}

// urlEqual compares URLs ignoring a trailing slash difference.
func urlEqual(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
