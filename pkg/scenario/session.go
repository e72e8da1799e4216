package scenario

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// State is the session lifecycle state.
type State int

// Session lifecycle: created, active after Open succeeds, closed after Close.
const (
	StateCreated State = iota
	StateActive
	StateClosed
)

// SessionError reports a browser process or context failure. It aborts the
// remaining steps of its scenario but never crashes concurrent scenarios.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("session %s: %v", e.Op, e.Err) }

func (e *SessionError) Unwrap() error { return e.Err }

// SessionConfig holds browser launch parameters.
type SessionConfig struct {
	Headless    bool
	Viewport    Viewport
	SkipInstall bool // skip the browser provisioning check (already installed)
}

// consoleLimit caps recorded console messages per session.
const consoleLimit = 500

// install the playwright driver and chromium at most once per process,
// shared across concurrently running sessions.
var (
	installOnce sync.Once
	installErr  error
)

// Session is one browser process/context pairing, owned by exactly one
// scenario run, never reused. It tracks network activity and console messages
// through page hooks so waits and failure artifacts can use them.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	mu    sync.Mutex
	state State

	netMu        sync.Mutex
	inflight     int
	lastActivity time.Time

	consoleMu sync.Mutex
	console   []string
}

// OpenSession launches a browser and creates an isolated context and page.
// Every successful open must be paired with exactly one Close.
func OpenSession(cfg SessionConfig) (*Session, error) {
	if !cfg.SkipInstall {
		installOnce.Do(func() {
			installErr = playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
		})
		if installErr != nil {
			return nil, &SessionError{Op: "install", Err: installErr}
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, &SessionError{Op: "start driver", Err: err}
	}

	s := &Session{pw: pw, state: StateCreated, lastActivity: time.Now()}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, &SessionError{Op: "launch", Err: err}
	}
	s.browser = browser

	viewport := cfg.Viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = DefaultViewport
	}
	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewport.Width, Height: viewport.Height},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, &SessionError{Op: "new context", Err: err}
	}
	s.context = context

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, &SessionError{Op: "new page", Err: err}
	}
	s.page = page
	s.hookPage(page)

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()
	return s, nil
}

// hookPage registers network and console tracking on the page.
func (s *Session) hookPage(page playwright.Page) {
	page.OnRequest(func(playwright.Request) {
		s.netMu.Lock()
		s.inflight++
		s.lastActivity = time.Now()
		s.netMu.Unlock()
	})
	requestDone := func(playwright.Request) {
		s.netMu.Lock()
		if s.inflight > 0 {
			s.inflight--
		}
		s.lastActivity = time.Now()
		s.netMu.Unlock()
	}
	page.OnRequestFinished(requestDone)
	page.OnRequestFailed(requestDone)

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.consoleMu.Lock()
		defer s.consoleMu.Unlock()
		if len(s.console) >= consoleLimit {
			return
		}
		s.console = append(s.console, fmt.Sprintf("[%s] %s", msg.Type(), msg.Text()))
	})
}

// Page returns the session's page.
func (s *Session) Page() playwright.Page { return s.page }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports the number of network requests currently in flight.
func (s *Session) InFlight() int {
	s.netMu.Lock()
	defer s.netMu.Unlock()
	return s.inflight
}

// LastActivity reports when network activity last changed.
func (s *Session) LastActivity() time.Time {
	s.netMu.Lock()
	defer s.netMu.Unlock()
	return s.lastActivity
}

// ConsoleDump returns the recorded console messages, one per line. Empty when
// the page logged nothing.
func (s *Session) ConsoleDump() string {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	if len(s.console) == 0 {
		return ""
	}
	return strings.Join(s.console, "\n") + "\n"
}

// Close tears down page, context, browser and driver. Idempotent; the first
// error encountered is returned but teardown continues through all layers.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	var firstErr error
	keep := func(op string, err error) {
		if err != nil && firstErr == nil {
			firstErr = &SessionError{Op: op, Err: err}
		}
	}

	if s.page != nil {
		keep("close page", s.page.Close())
	}
	if s.context != nil {
		keep("close context", s.context.Close())
	}
	if s.browser != nil {
		keep("close browser", s.browser.Close())
	}
	if s.pw != nil {
		keep("stop driver", s.pw.Stop())
	}
	return firstErr
}
