// Package main provides verifyui - headless-browser UI verification of a
// running web application from declarative scenario files.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-pkgz/repeater"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"github.com/vaultkeeperirl-design/verifyui/pkg/config"
	"github.com/vaultkeeperirl-design/verifyui/pkg/notify"
	"github.com/vaultkeeperirl-design/verifyui/pkg/runlog"
	"github.com/vaultkeeperirl-design/verifyui/pkg/scenario"
)

// opts holds all command-line options.
type opts struct {
	BaseURL string `short:"u" long:"base-url" description:"target application URL (overrides scenario and config)"`
	Out     string `short:"o" long:"out" description:"artifact output directory"`
	Config  string `long:"config" description:"path to config file"`
	Timeout int    `short:"t" long:"timeout" description:"default step timeout in milliseconds"`
	Width   int    `long:"width" description:"viewport width"`
	Height  int    `long:"height" description:"viewport height"`
	Headed  bool   `long:"headed" description:"run the browser with a visible window"`
	NoProbe bool   `long:"no-probe" description:"skip the target readiness probe"`
	Watch   bool   `short:"w" long:"watch" description:"re-run the scenario when its file changes"`
	NoColor bool   `long:"no-color" description:"disable color output"`
	Version bool   `short:"v" long:"version" description:"print version and exit"`

	ScenarioFile string `positional-arg-name:"scenario-file" description:"path to scenario yaml file"`
}

var revision = "unknown"

// errRunFailed marks a completed run whose scenario did not pass; it carries
// no extra message because the summary was already printed.
var errRunFailed = errors.New("scenario failed")

func main() {
	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS] scenario-file"

	args, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		fmt.Printf("verifyui %s\n", revision)
		os.Exit(0)
	}

	if len(args) > 0 {
		o.ScenarioFile = args[0]
	}
	if o.ScenarioFile == "" {
		fmt.Fprintln(os.Stderr, "error: scenario file required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, o)

	if o.Watch {
		return watchAndRun(ctx, cfg, o)
	}
	return runOnce(ctx, cfg, o)
}

// applyFlags overlays CLI flags onto loaded config; flags win.
func applyFlags(cfg *config.Config, o opts) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Out != "" {
		cfg.OutDir = o.Out
	}
	if o.Timeout > 0 {
		cfg.DefaultTimeoutMs = o.Timeout
	}
	if o.Width > 0 {
		cfg.ViewportWidth = o.Width
	}
	if o.Height > 0 {
		cfg.ViewportHeight = o.Height
	}
	if o.Headed {
		cfg.Headless = false
	}
}

// runOnce executes the scenario file a single time and prints the summary.
func runOnce(ctx context.Context, cfg *config.Config, o opts) error {
	sc, err := scenario.Load(o.ScenarioFile)
	if err != nil {
		return err
	}

	// precedence: flag > scenario > config file
	baseURL := cfg.BaseURL
	if sc.BaseURL != "" && o.BaseURL == "" {
		baseURL = sc.BaseURL
	}
	if sc.Viewport.Width == 0 && sc.Viewport.Height == 0 {
		sc.Viewport = scenario.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight}
	}

	runID := uuid.NewString()[:8]
	rcfg := scenario.RunnerConfig{
		BaseURL:          baseURL,
		OutDir:           cfg.OutDir,
		RunID:            runID,
		Headless:         cfg.Headless,
		DefaultTimeoutMs: cfg.DefaultTimeoutMs,
		PollIntervalMs:   cfg.PollIntervalMs,
	}

	log, err := runlog.New(runlog.Config{
		Dir:      filepath.Join(cfg.OutDir, runID),
		Scenario: sc.Name,
		BaseURL:  baseURL,
		RunID:    runID,
		NoColor:  o.NoColor,
	})
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	defer func() {
		if cerr := log.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", cerr)
		}
	}()

	notifier, err := notify.New(notify.Params{
		Channels:      cfg.NotifyChannels,
		OnFailure:     cfg.NotifyOnFailure,
		OnComplete:    cfg.NotifyOnComplete,
		TimeoutMs:     cfg.NotifyTimeoutMs,
		WebhookURLs:   cfg.NotifyWebhookURLs,
		SlackToken:    cfg.NotifySlackToken,
		SlackChannel:  cfg.NotifySlackChannel,
		TelegramToken: cfg.NotifyTelegramToken,
		TelegramChat:  cfg.NotifyTelegramChat,
		ScriptPath:    cfg.NotifyScriptPath,
	}, log)
	if err != nil {
		return fmt.Errorf("setup notifications: %w", err)
	}

	if !o.NoProbe {
		log.Print("probing target %s", baseURL)
		if err := waitForTarget(ctx, baseURL); err != nil {
			return fmt.Errorf("target %s not reachable: %w", baseURL, err)
		}
	}

	log.Print("running scenario %q (%d steps)", sc.Name, len(sc.Steps))

	runner := scenario.New(rcfg, log)
	rep, runErr := runner.Run(ctx, sc)

	rep.PrintSummary(os.Stdout)

	reportPath := filepath.Join(cfg.OutDir, runID, "report.json")
	if werr := rep.WriteJSON(reportPath); werr != nil {
		log.Warn("write report: %v", werr)
		reportPath = ""
	}

	notifier.Send(ctx, notify.Result{
		Scenario: sc.Name,
		Status:   string(rep.Overall),
		Steps:    len(rep.Steps),
		Duration: log.Elapsed(),
		Report:   reportPath,
		Error:    errString(runErr),
	})

	if runErr != nil {
		return fmt.Errorf("run scenario: %w", runErr)
	}
	if !rep.Passed() {
		return errRunFailed
	}
	return nil
}

// watchAndRun runs the scenario, then re-runs it on every change to its file
// until the context is canceled. Run failures do not stop the watch loop.
func watchAndRun(ctx context.Context, cfg *config.Config, o opts) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory, not the file: editors replace files on save and
	// the watch on the old inode would go stale
	dir := filepath.Dir(o.ScenarioFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(o.ScenarioFile)

	runAndReport := func() {
		if err := runOnce(ctx, cfg, o); err != nil && !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	runAndReport()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(300 * time.Millisecond) // coalesce editor write bursts
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		case <-debounce:
			debounce = nil
			fmt.Printf("\nscenario file changed, re-running\n")
			runAndReport()
		}
	}
}

// waitForTarget probes the base URL until it answers, retrying with a fixed
// delay. Retries live here at the invocation boundary; the scenario core
// stays single-attempt by contract.
func waitForTarget(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	rp := repeater.NewDefault(10, 500*time.Millisecond)
	return rp.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, http.NoBody)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
