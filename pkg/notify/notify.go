// Package notify sends best-effort run completion notifications through
// configured channels. A nil Service is valid and sends nothing, so callers
// skip nil checks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnFailure     bool
	OnComplete    bool
	TimeoutMs     int
	WebhookURLs   []string
	SlackToken    string
	SlackChannel  string
	TelegramToken string
	TelegramChat  string
	ScriptPath    string
}

// Result holds run data for notifications.
type Result struct {
	Scenario string `json:"scenario"`
	Status   string `json:"status"` // "passed" or "failed"
	Steps    int    `json:"steps"`
	Duration string `json:"duration"`
	Report   string `json:"report,omitempty"` // report json path
	Error    string `json:"error,omitempty"`
}

// logger interface for dependency injection.
type logger interface {
	Print(format string, args ...any)
	Warn(format string, args ...any)
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier ntfy.Notifier
	dest     string
}

// Service sends notifications through configured channels.
type Service struct {
	channels   []channel
	scripts    []*scriptChannel
	onFailure  bool
	onComplete bool
	timeoutMs  int
	hostname   string
	log        logger
}

// New creates a Service from Params. Returns nil, nil when no channels are
// configured; the nil Service's Send is a no-op.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "no channels configured", Send is nil-safe
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onFailure:  p.OnFailure,
		onComplete: p.OnComplete,
		timeoutMs:  p.TimeoutMs,
		hostname:   hostname,
		log:        log,
	}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 10000
	}

	for _, ch := range p.Channels {
		switch strings.TrimSpace(strings.ToLower(ch)) {
		case "webhook":
			if len(p.WebhookURLs) == 0 {
				return nil, errors.New("webhook channel: webhook_urls is required")
			}
			wh := ntfy.NewWebhook(ntfy.WebhookParams{})
			for _, u := range p.WebhookURLs {
				svc.channels = append(svc.channels, channel{notifier: wh, dest: u})
			}
		case "slack":
			if p.SlackToken == "" || p.SlackChannel == "" {
				return nil, errors.New("slack channel: slack_token and slack_channel are required")
			}
			sl := ntfy.NewSlack(p.SlackToken)
			svc.channels = append(svc.channels, channel{notifier: sl, dest: "slack:" + p.SlackChannel})
		case "telegram":
			if p.TelegramToken == "" || p.TelegramChat == "" {
				return nil, errors.New("telegram channel: telegram_token and telegram_chat are required")
			}
			tg, tgErr := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
			if tgErr != nil {
				// telegram init verifies the token against the live API; when
				// unreachable, skip the channel instead of blocking the run
				errMsg := strings.ReplaceAll(tgErr.Error(), p.TelegramToken, "[REDACTED]")
				log.Warn("telegram channel disabled: %s", errMsg)
				continue
			}
			svc.channels = append(svc.channels, channel{notifier: tg, dest: "telegram:" + p.TelegramChat})
		case "script":
			if p.ScriptPath == "" {
				return nil, errors.New("script channel: script_path is required")
			}
			svc.scripts = append(svc.scripts, &scriptChannel{path: p.ScriptPath})
		default:
			return nil, fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	return svc, nil
}

// Send notifies configured channels about a run result, respecting the
// on_failure/on_complete gates. Safe on a nil Service. Channel errors are
// logged and swallowed; notifications are best-effort by contract.
func (s *Service) Send(ctx context.Context, res Result) {
	if s == nil {
		return
	}
	passed := res.Status == "passed"
	if passed && !s.onComplete {
		return
	}
	if !passed && !s.onFailure && !s.onComplete {
		return
	}

	subject := fmt.Sprintf("verifyui %s: %s on %s", res.Status, res.Scenario, s.hostname)
	body := s.formatBody(res)

	sendCtx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutMs)*time.Millisecond)
	defer cancel()

	for _, ch := range s.channels {
		if err := ch.notifier.Send(sendCtx, ch.dest, subject+"\n\n"+body); err != nil {
			s.log.Warn("notification to %s failed: %v", ch.notifier, err)
			continue
		}
		s.log.Print("notification sent via %s", ch.notifier)
	}

	for _, sc := range s.scripts {
		if err := sc.send(sendCtx, res); err != nil {
			s.log.Warn("notification script failed: %v", err)
			continue
		}
		s.log.Print("notification script %s done", sc.path)
	}
}

func (s *Service) formatBody(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", res.Scenario)
	fmt.Fprintf(&b, "status: %s\n", res.Status)
	fmt.Fprintf(&b, "steps: %d\n", res.Steps)
	fmt.Fprintf(&b, "duration: %s\n", res.Duration)
	if res.Report != "" {
		fmt.Fprintf(&b, "report: %s\n", res.Report)
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", res.Error)
	}
	return b.String()
}
