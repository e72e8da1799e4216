// Package config handles harness configuration loading from ini files with
// embedded defaults. Fallback chain: embedded defaults → global config
// (~/.config/verifyui/config) → local config (.verifyui) — local wins.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

//go:embed defaults/config
var defaultsFS embed.FS

// Config holds all harness settings. Fields ending in *Set track whether a
// boolean was explicitly written in config, so a local file can override a
// global true with an explicit false.
type Config struct {
	BaseURL          string
	OutDir           string
	Headless         bool
	HeadlessSet      bool
	DefaultTimeoutMs int
	PollIntervalMs   int
	ViewportWidth    int
	ViewportHeight   int

	// notification settings, passed through to the notify service
	NotifyChannels      []string
	NotifyOnFailure     bool
	NotifyOnComplete    bool
	NotifyTimeoutMs     int
	NotifyWebhookURLs   []string
	NotifySlackToken    string
	NotifySlackChannel  string
	NotifyTelegramToken string
	NotifyTelegramChat  string
	NotifyScriptPath    string
}

// Load loads configuration using the fallback chain. configPath overrides the
// local config location when non-empty; pass "" for defaults.
func Load(configPath string) (*Config, error) {
	embedded, err := parseEmbedded()
	if err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	global, err := parseFile(globalConfigPath())
	if err != nil {
		return nil, fmt.Errorf("parse global config: %w", err)
	}

	localPath := configPath
	if localPath == "" {
		localPath = ".verifyui"
	}
	local, err := parseFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)
	return &result, nil
}

// globalConfigPath returns ~/.config/verifyui/config, or "" when the home
// directory cannot be resolved.
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "verifyui", "config")
}

// parseFile reads a config file. A missing file is not an error; it returns
// an empty Config so the chain falls through.
func parseFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally or CLI-provided
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return parseBytes(data)
}

func parseEmbedded() (Config, error) {
	data, err := defaultsFS.ReadFile("defaults/config")
	if err != nil {
		return Config{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return parseBytes(data)
}

func parseBytes(data []byte) (Config, error) {
	// ignoreInlineComment: # inside values (e.g. URLs with fragments) is data
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	section := f.Section("") // default section, no header

	if key, err := section.GetKey("base_url"); err == nil {
		cfg.BaseURL = key.String()
	}
	if key, err := section.GetKey("out_dir"); err == nil {
		cfg.OutDir = key.String()
	}
	if key, err := section.GetKey("headless"); err == nil {
		if v, err := key.Bool(); err == nil {
			cfg.Headless = v
			cfg.HeadlessSet = true
		}
	}
	if key, err := section.GetKey("default_timeout_ms"); err == nil {
		cfg.DefaultTimeoutMs, _ = key.Int()
	}
	if key, err := section.GetKey("poll_interval_ms"); err == nil {
		cfg.PollIntervalMs, _ = key.Int()
	}
	if key, err := section.GetKey("viewport_width"); err == nil {
		cfg.ViewportWidth, _ = key.Int()
	}
	if key, err := section.GetKey("viewport_height"); err == nil {
		cfg.ViewportHeight, _ = key.Int()
	}

	notify := f.Section("notify")
	if key, err := notify.GetKey("channels"); err == nil {
		cfg.NotifyChannels = splitList(key.String())
	}
	if key, err := notify.GetKey("on_failure"); err == nil {
		cfg.NotifyOnFailure, _ = key.Bool()
	}
	if key, err := notify.GetKey("on_complete"); err == nil {
		cfg.NotifyOnComplete, _ = key.Bool()
	}
	if key, err := notify.GetKey("timeout_ms"); err == nil {
		cfg.NotifyTimeoutMs, _ = key.Int()
	}
	if key, err := notify.GetKey("webhook_urls"); err == nil {
		cfg.NotifyWebhookURLs = splitList(key.String())
	}
	if key, err := notify.GetKey("slack_token"); err == nil {
		cfg.NotifySlackToken = key.String()
	}
	if key, err := notify.GetKey("slack_channel"); err == nil {
		cfg.NotifySlackChannel = key.String()
	}
	if key, err := notify.GetKey("telegram_token"); err == nil {
		cfg.NotifyTelegramToken = key.String()
	}
	if key, err := notify.GetKey("telegram_chat"); err == nil {
		cfg.NotifyTelegramChat = key.String()
	}
	if key, err := notify.GetKey("script_path"); err == nil {
		cfg.NotifyScriptPath = key.String()
	}

	return cfg, nil
}

// mergeFrom overlays non-zero values from other onto c.
func (c *Config) mergeFrom(other *Config) {
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.OutDir != "" {
		c.OutDir = other.OutDir
	}
	if other.HeadlessSet {
		c.Headless = other.Headless
		c.HeadlessSet = true
	}
	if other.DefaultTimeoutMs > 0 {
		c.DefaultTimeoutMs = other.DefaultTimeoutMs
	}
	if other.PollIntervalMs > 0 {
		c.PollIntervalMs = other.PollIntervalMs
	}
	if other.ViewportWidth > 0 {
		c.ViewportWidth = other.ViewportWidth
	}
	if other.ViewportHeight > 0 {
		c.ViewportHeight = other.ViewportHeight
	}
	if len(other.NotifyChannels) > 0 {
		c.NotifyChannels = other.NotifyChannels
	}
	if other.NotifyOnFailure {
		c.NotifyOnFailure = true
	}
	if other.NotifyOnComplete {
		c.NotifyOnComplete = true
	}
	if other.NotifyTimeoutMs > 0 {
		c.NotifyTimeoutMs = other.NotifyTimeoutMs
	}
	if len(other.NotifyWebhookURLs) > 0 {
		c.NotifyWebhookURLs = other.NotifyWebhookURLs
	}
	if other.NotifySlackToken != "" {
		c.NotifySlackToken = other.NotifySlackToken
	}
	if other.NotifySlackChannel != "" {
		c.NotifySlackChannel = other.NotifySlackChannel
	}
	if other.NotifyTelegramToken != "" {
		c.NotifyTelegramToken = other.NotifyTelegramToken
	}
	if other.NotifyTelegramChat != "" {
		c.NotifyTelegramChat = other.NotifyTelegramChat
	}
	if other.NotifyScriptPath != "" {
		c.NotifyScriptPath = other.NotifyScriptPath
	}
}

// splitList splits a comma-separated config value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
