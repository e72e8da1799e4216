package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotifier implements ntfy.Notifier for testing.
type mockNotifier struct {
	schema string
	mu     sync.Mutex
	calls  []sendCall
	err    error
}

type sendCall struct {
	dest string
	text string
}

func (m *mockNotifier) Send(_ context.Context, dest, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, sendCall{dest: dest, text: text})
	return nil
}

func (m *mockNotifier) Schema() string { return m.schema }
func (m *mockNotifier) String() string { return m.schema + " notifier" }

func (m *mockNotifier) sent() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testLogger struct {
	prints   []string
	warnings []string
}

func (l *testLogger) Print(format string, args ...any) {
	l.prints = append(l.prints, fmt.Sprintf(format, args...))
}

func (l *testLogger) Warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func newTestService(onFailure, onComplete bool, ch ...channel) (*Service, *testLogger) {
	log := &testLogger{}
	return &Service{
		channels:   ch,
		onFailure:  onFailure,
		onComplete: onComplete,
		timeoutMs:  1000,
		hostname:   "testhost",
		log:        log,
	}, log
}

func TestNew_NoChannels(t *testing.T) {
	svc, err := New(Params{}, &testLogger{})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestNew_Webhook(t *testing.T) {
	svc, err := New(Params{
		Channels:    []string{"webhook"},
		WebhookURLs: []string{"https://hooks.example.com/a", "https://hooks.example.com/b"},
	}, &testLogger{})
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Len(t, svc.channels, 2)
	assert.Equal(t, 10000, svc.timeoutMs, "default timeout applied")
}

func TestNew_Slack(t *testing.T) {
	svc, err := New(Params{
		Channels:     []string{"slack"},
		SlackToken:   "xoxb-test",
		SlackChannel: "qa-runs",
	}, &testLogger{})
	require.NoError(t, err)
	require.Len(t, svc.channels, 1)
	assert.Equal(t, "slack:qa-runs", svc.channels[0].dest)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		errMsg string
	}{
		{"webhook without urls", Params{Channels: []string{"webhook"}}, "webhook_urls is required"},
		{"slack without token", Params{Channels: []string{"slack"}, SlackChannel: "c"}, "slack_token"},
		{"telegram without chat", Params{Channels: []string{"telegram"}, TelegramToken: "t"}, "telegram_chat"},
		{"script without path", Params{Channels: []string{"script"}}, "script_path is required"},
		{"unknown channel", Params{Channels: []string{"pager"}}, `unknown notification channel "pager"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, &testLogger{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestService_SendNilSafe(t *testing.T) {
	var svc *Service
	svc.Send(context.Background(), Result{Scenario: "s", Status: "failed"}) // must not panic
}

func TestService_SendGating(t *testing.T) {
	tests := []struct {
		name       string
		onFailure  bool
		onComplete bool
		status     string
		wantSent   bool
	}{
		{"failure with on_failure", true, false, "failed", true},
		{"pass with on_failure only", true, false, "passed", false},
		{"pass with on_complete", false, true, "passed", true},
		{"failure with on_complete", false, true, "failed", true},
		{"both gates off", false, false, "failed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNotifier{schema: "webhook"}
			svc, _ := newTestService(tt.onFailure, tt.onComplete, channel{notifier: mock, dest: "https://hooks.example.com/a"})

			svc.Send(context.Background(), Result{Scenario: "menu", Status: tt.status, Steps: 3, Duration: "4s"})

			if tt.wantSent {
				assert.Len(t, mock.sent(), 1)
			} else {
				assert.Empty(t, mock.sent())
			}
		})
	}
}

func TestService_SendContent(t *testing.T) {
	mock := &mockNotifier{schema: "webhook"}
	svc, log := newTestService(true, false, channel{notifier: mock, dest: "https://hooks.example.com/a"})

	svc.Send(context.Background(), Result{
		Scenario: "menu-check",
		Status:   "failed",
		Steps:    5,
		Duration: "12s",
		Report:   "out/ab12cd34/report.json",
		Error:    "step 3 failed: 0 matches",
	})

	calls := mock.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://hooks.example.com/a", calls[0].dest)
	assert.Contains(t, calls[0].text, "verifyui failed: menu-check on testhost")
	assert.Contains(t, calls[0].text, "scenario: menu-check")
	assert.Contains(t, calls[0].text, "steps: 5")
	assert.Contains(t, calls[0].text, "duration: 12s")
	assert.Contains(t, calls[0].text, "report: out/ab12cd34/report.json")
	assert.Contains(t, calls[0].text, "error: step 3 failed: 0 matches")

	require.Len(t, log.prints, 1)
	assert.Contains(t, log.prints[0], "notification sent")
}

func TestService_SendScript(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "payload.json")
	script := filepath.Join(dir, "notify.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > "+outFile+"\n"), 0o700)) //nolint:gosec // executable test script

	svc, err := New(Params{Channels: []string{"script"}, OnFailure: true, ScriptPath: script}, &testLogger{})
	require.NoError(t, err)

	svc.Send(context.Background(), Result{Scenario: "menu", Status: "failed", Steps: 2, Duration: "3s"})

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var got Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "menu", got.Scenario)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, 2, got.Steps)
}

func TestService_SendScriptFailureLogged(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "notify.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho broken >&2\nexit 3\n"), 0o700)) //nolint:gosec // executable test script

	svc, err := New(Params{Channels: []string{"script"}, OnFailure: true, ScriptPath: script}, &testLogger{})
	require.NoError(t, err)
	log := svc.log.(*testLogger)

	svc.Send(context.Background(), Result{Scenario: "s", Status: "failed"})

	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "broken")
}

func TestService_SendChannelErrorSwallowed(t *testing.T) {
	bad := &mockNotifier{schema: "webhook", err: errors.New("connection refused")}
	good := &mockNotifier{schema: "slack"}
	svc, log := newTestService(true, false,
		channel{notifier: bad, dest: "https://hooks.example.com/a"},
		channel{notifier: good, dest: "slack:qa-runs"},
	)

	svc.Send(context.Background(), Result{Scenario: "s", Status: "failed"})

	assert.Len(t, good.sent(), 1, "later channels still notified")
	require.Len(t, log.warnings, 1)
	assert.True(t, strings.Contains(log.warnings[0], "connection refused"))
}
