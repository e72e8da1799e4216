package wait

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Activity exposes network request tracking for idle detection. Implemented by
// the scenario session, which counts in-flight requests via page hooks.
type Activity interface {
	InFlight() int
	LastActivity() time.Time
}

// visibleCond holds when the first element matched by the locator is visible.
type visibleCond struct {
	loc  playwright.Locator
	desc string
}

// Visible returns a condition satisfied when loc's first match is visible.
// desc names the target element in diagnostics.
func Visible(loc playwright.Locator, desc string) Condition {
	return &visibleCond{loc: loc, desc: desc}
}

func (c *visibleCond) Describe() string { return c.desc + " to be visible" }

func (c *visibleCond) Probe(_ context.Context) (bool, string, error) {
	count, err := c.loc.Count()
	if err != nil {
		return false, "count unavailable", err
	}
	if count == 0 {
		return false, "no matching element", nil
	}
	visible, err := c.loc.First().IsVisible()
	if err != nil {
		return false, "visibility unavailable", err
	}
	if visible {
		return true, "visible", nil
	}
	return false, fmt.Sprintf("%d matching, none visible", count), nil
}

// hasTextCond holds when the element's text content equals want after trimming.
type hasTextCond struct {
	loc  playwright.Locator
	desc string
	want string
}

// HasText returns a condition satisfied when loc's first match carries the
// expected text content.
func HasText(loc playwright.Locator, desc, want string) Condition {
	return &hasTextCond{loc: loc, desc: desc, want: want}
}

func (c *hasTextCond) Describe() string { return fmt.Sprintf("%s to have text %q", c.desc, c.want) }

func (c *hasTextCond) Probe(_ context.Context) (bool, string, error) {
	count, err := c.loc.Count()
	if err != nil {
		return false, "count unavailable", err
	}
	if count == 0 {
		return false, "no matching element", nil
	}
	text, err := c.loc.First().TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(1000)})
	if err != nil {
		return false, "text unavailable", nil // element may be mid-update, keep polling
	}
	text = strings.TrimSpace(text)
	if text == c.want {
		return true, fmt.Sprintf("text %q", text), nil
	}
	return false, fmt.Sprintf("text %q", text), nil
}

// networkIdleCond holds when no requests are in flight and none finished
// within the idle window.
type networkIdleCond struct {
	act     Activity
	idleFor time.Duration
}

// NetworkIdle returns a condition satisfied once the tracked network activity
// has been quiet for idleFor.
func NetworkIdle(act Activity, idleFor time.Duration) Condition {
	if idleFor <= 0 {
		idleFor = 500 * time.Millisecond
	}
	return &networkIdleCond{act: act, idleFor: idleFor}
}

func (c *networkIdleCond) Describe() string {
	return fmt.Sprintf("network idle for %s", c.idleFor)
}

func (c *networkIdleCond) Probe(_ context.Context) (bool, string, error) {
	inflight := c.act.InFlight()
	quiet := time.Since(c.act.LastActivity())
	if inflight == 0 && quiet >= c.idleFor {
		return true, "idle", nil
	}
	return false, fmt.Sprintf("%d in flight, last activity %s ago", inflight, quiet.Round(time.Millisecond)), nil
}

// titleCond holds when the page title contains want.
type titleCond struct {
	page playwright.Page
	want string
}

// TitleContains returns a condition satisfied when the page title contains want.
func TitleContains(page playwright.Page, want string) Condition {
	return &titleCond{page: page, want: want}
}

func (c *titleCond) Describe() string { return fmt.Sprintf("title to contain %q", c.want) }

func (c *titleCond) Probe(_ context.Context) (bool, string, error) {
	title, err := c.page.Title()
	if err != nil {
		return false, "title unavailable", err
	}
	if strings.Contains(title, c.want) {
		return true, fmt.Sprintf("title %q", title), nil
	}
	return false, fmt.Sprintf("title %q", title), nil
}

// probeCond wraps a caller-supplied boolean probe.
type probeCond struct {
	desc string
	fn   func(ctx context.Context) (bool, string, error)
}

// Probe returns a condition backed by a caller-supplied function.
func Probe(desc string, fn func(ctx context.Context) (bool, string, error)) Condition {
	return &probeCond{desc: desc, fn: fn}
}

func (c *probeCond) Describe() string { return c.desc }

func (c *probeCond) Probe(ctx context.Context) (bool, string, error) { return c.fn(ctx) }
