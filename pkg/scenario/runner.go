package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/vaultkeeperirl-design/verifyui/pkg/artifact"
	"github.com/vaultkeeperirl-design/verifyui/pkg/locator"
	"github.com/vaultkeeperirl-design/verifyui/pkg/report"
	"github.com/vaultkeeperirl-design/verifyui/pkg/runlog"
	"github.com/vaultkeeperirl-design/verifyui/pkg/step"
	"github.com/vaultkeeperirl-design/verifyui/pkg/wait"
)

// RunnerConfig holds runner configuration. BaseURL is the fully resolved
// target URL (flag/scenario/config precedence is the caller's concern).
type RunnerConfig struct {
	BaseURL          string
	OutDir           string
	RunID            string // namespaces artifacts of this run
	Headless         bool
	DefaultTimeoutMs int
	PollIntervalMs   int
	SkipInstall      bool
}

// Logger provides run logging. Implemented by runlog.Logger.
type Logger interface {
	SetPhase(phase runlog.Phase)
	Print(format string, args ...any)
	PrintAligned(text string)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// BrowserSession is the session surface the runner drives and tears down.
// A nil Page means failure screenshots are unavailable (used by test fakes).
type BrowserSession interface {
	Page() playwright.Page
	ConsoleDump() string
	Close() error
}

// Executor performs one scenario step.
type Executor interface {
	Execute(ctx context.Context, stepIndex int, st step.Step) (step.Outcome, error)
}

// OpenFunc opens a browser session and its step executor for one scenario run.
type OpenFunc func(ctx context.Context, sc Scenario, cap *artifact.Capturer) (BrowserSession, Executor, error)

// Runner executes scenarios: one session per run, steps strictly sequential,
// teardown unconditional.
type Runner struct {
	cfg  RunnerConfig
	log  Logger
	open OpenFunc
}

// New creates a Runner backed by a real playwright session.
func New(cfg RunnerConfig, log Logger) *Runner {
	open := func(_ context.Context, sc Scenario, cap *artifact.Capturer) (BrowserSession, Executor, error) {
		sess, err := OpenSession(SessionConfig{
			Headless:    cfg.Headless,
			Viewport:    sc.Viewport,
			SkipInstall: cfg.SkipInstall,
		})
		if err != nil {
			return nil, nil, err
		}
		exec := &step.Executor{
			Page:           sess.Page(),
			Activity:       sess,
			Capturer:       cap,
			BaseURL:        cfg.BaseURL,
			DefaultTimeout: time.Duration(cfg.DefaultTimeoutMs) * time.Millisecond,
			PollInterval:   time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		}
		return sess, exec, nil
	}
	return NewWithOpener(cfg, log, open)
}

// NewWithOpener creates a Runner with a custom session opener (for testing).
func NewWithOpener(cfg RunnerConfig, log Logger, open OpenFunc) *Runner {
	return &Runner{cfg: cfg, log: log, open: open}
}

// Run executes one scenario end to end and returns its report. The session is
// closed exactly once on every exit path; a returned error means the session
// itself failed (open or teardown), not that an assertion failed — assertion
// and wait failures are reported through the step results.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*report.Report, error) {
	rep := report.New(sc.Name, r.cfg.RunID)
	capt := &artifact.Capturer{OutDir: r.cfg.OutDir, RunID: r.cfg.RunID, Scenario: sc.Name}

	sess, exec, err := r.open(ctx, sc, capt)
	if err != nil {
		rep.Finish()
		rep.Overall = report.StatusFailed
		return rep, fmt.Errorf("open session: %w", err)
	}

	closed := false
	closeSession := func() {
		if closed {
			return
		}
		closed = true
		if cerr := sess.Close(); cerr != nil {
			// secondary teardown errors are logged, never propagated, so they
			// cannot mask the primary failure
			r.log.Warn("session close: %v", cerr)
		}
	}
	defer closeSession()

	failed := false
	aborted := false
	for i, st := range sc.Steps {
		if aborted || (failed && !sc.ContinueOnFailure) {
			rep.Add(report.StepResult{Index: i, Name: st.Describe(), Status: report.StatusSkipped})
			continue
		}

		res := r.runStep(ctx, exec, i, st)
		if res.Status != report.StatusPassed {
			failed = true
			r.captureFailure(sess, capt, i, &res)
		}
		rep.Add(res)

		if ctx.Err() != nil {
			aborted = true
		}
	}

	closeSession()
	rep.Finish()
	return rep, nil
}

// runStep executes one step and converts any error into a step result; no
// step-local error escapes the runner boundary.
func (r *Runner) runStep(ctx context.Context, exec Executor, i int, st step.Step) (res report.StepResult) {
	started := time.Now()
	res = report.StepResult{Index: i, Name: st.Describe()}
	defer func() {
		if p := recover(); p != nil {
			res.Status = report.StatusErrored
			res.Message = fmt.Sprintf("panic: %v", p)
		}
		res.DurationMs = time.Since(started).Milliseconds()
	}()

	r.log.SetPhase(phaseFor(st.Kind))
	r.log.Print("step %d: %s", i+1, st.Describe())

	out, err := exec.Execute(ctx, i, st)
	res.Evidence = append(res.Evidence, out.Evidence...)

	if err == nil {
		res.Status = report.StatusPassed
		res.Message = out.Detail
		if out.Detail != "" {
			r.log.PrintAligned(out.Detail)
		}
		return res
	}

	res.Status = classify(err)
	res.Message = err.Error()
	r.log.Error("step %d %s: %v", i+1, res.Status, err)
	return res
}

// captureFailure records best-effort failure evidence: a full-page screenshot
// and the console dump. Capture problems degrade, they never abort the run.
func (r *Runner) captureFailure(sess BrowserSession, capt *artifact.Capturer, i int, res *report.StepResult) {
	r.log.SetPhase(runlog.PhaseCapture)

	if page := sess.Page(); page != nil {
		art, err := capt.CapturePage(page, i, "failure")
		if art.Path != "" {
			res.Evidence = append(res.Evidence, art.Path)
		}
		if err != nil {
			r.log.Warn("failure capture: %v", err)
		}
	}

	if dump := sess.ConsoleDump(); dump != "" {
		art, err := capt.Note(i, "console", dump)
		if err != nil {
			r.log.Warn("console dump: %v", err)
			return
		}
		res.Evidence = append(res.Evidence, art.Path)
	}
}

// classify maps a step error to its result status: assertion failures, wait
// timeouts and missing popups are Failed; everything else is Errored.
func classify(err error) report.Status {
	var timeoutErr *wait.TimeoutError
	var assertErr *step.AssertionError
	var resolutionErr *locator.ResolutionError
	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &assertErr), errors.Is(err, step.ErrPopupNotOpened):
		return report.StatusFailed
	case errors.As(err, &resolutionErr):
		return report.StatusErrored // malformed spec, an authoring bug
	default:
		return report.StatusErrored
	}
}

func phaseFor(k step.Kind) runlog.Phase {
	switch k {
	case step.KindWait:
		return runlog.PhaseWait
	case step.KindAssert:
		return runlog.PhaseAssert
	case step.KindCapture:
		return runlog.PhaseCapture
	default:
		return runlog.PhaseAction
	}
}
