package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bmhenry/classy-slack-notifier/internal/filter"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

func parse(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	return Parse([]byte(yaml), logx.Nop())
}

func mustParse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := parse(t, yaml)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return cfg
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg := mustParse(t, "")

	if cfg.Model != "llama3.2:3b" {
		t.Fatalf("Model = %q", cfg.Model)
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Fatalf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.OllamaTimeout != 3*time.Second {
		t.Fatalf("OllamaTimeout = %v", cfg.OllamaTimeout)
	}
	if cfg.UrgencyThreshold != 3 {
		t.Fatalf("UrgencyThreshold = %d", cfg.UrgencyThreshold)
	}
	if cfg.NotificationTimeout != 10 {
		t.Fatalf("NotificationTimeout = %d", cfg.NotificationTimeout)
	}
	if cfg.Rules != filter.DefaultRuleActions() {
		t.Fatalf("Rules = %+v", cfg.Rules)
	}
	if !strings.Contains(cfg.SystemPrompt, "scale of 1-5") {
		t.Fatal("SystemPrompt lost the rubric")
	}
	if len(cfg.Channels) != 0 || len(cfg.Keywords) != 0 {
		t.Fatal("expected empty channels and keywords")
	}
}

func TestParseFullConfig(t *testing.T) {
	t.Parallel()
	cfg := mustParse(t, `
model: qwen2.5:7b
ollama_url: http://llm-box:11434
ollama_timeout: 5s
urgency_threshold: 4
system_prompt: custom rubric
notification_timeout: 30
notify_rate_per_sec: 2
rules:
  bots: classify
  dms: classify
channels:
  incidents: force_notify
  watercooler: skip
keywords:
  - pattern: production down
    action: force_notify
  - pattern: "regex:page(r|d)"
    action: force_notify
logging:
  level: DEBUG
  console: false
  file:
    enabled: true
    path: /tmp/notifier.log
`)

	if cfg.Model != "qwen2.5:7b" {
		t.Fatalf("Model = %q", cfg.Model)
	}
	if cfg.OllamaTimeout != 5*time.Second {
		t.Fatalf("OllamaTimeout = %v", cfg.OllamaTimeout)
	}
	if cfg.UrgencyThreshold != 4 {
		t.Fatalf("UrgencyThreshold = %d", cfg.UrgencyThreshold)
	}
	if cfg.NotifyRatePerSec != 2 {
		t.Fatalf("NotifyRatePerSec = %d", cfg.NotifyRatePerSec)
	}

	// Overridden rules applied, untouched ones keep defaults.
	if cfg.Rules.Bots != filter.ActionClassify || cfg.Rules.DMs != filter.ActionClassify {
		t.Fatalf("Rules = %+v", cfg.Rules)
	}
	if cfg.Rules.Self != filter.ActionSkip || cfg.Rules.Mentions != filter.ActionForceNotify {
		t.Fatalf("defaults clobbered: %+v", cfg.Rules)
	}

	if cfg.Channels["incidents"] != filter.ActionForceNotify || cfg.Channels["watercooler"] != filter.ActionSkip {
		t.Fatalf("Channels = %+v", cfg.Channels)
	}

	if len(cfg.Keywords) != 2 {
		t.Fatalf("len(Keywords) = %d", len(cfg.Keywords))
	}
	if cfg.Keywords[0].Pattern != "production down" || cfg.Keywords[0].Action != filter.ActionForceNotify {
		t.Fatalf("Keywords[0] = %+v", cfg.Keywords[0])
	}
	if !cfg.Keywords[1].Matches("PAGED at 3am") {
		t.Fatal("regex keyword did not compile case-insensitively")
	}

	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Console || !cfg.Logging.File.Enabled {
		t.Fatalf("Logging = %+v", cfg.Logging)
	}
}

func TestParseUnknownKeysTolerated(t *testing.T) {
	t.Parallel()
	// Unknown keys warn but never fail.
	if _, err := parse(t, "model: m\nfuture_feature: true\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := parse(t, "rules:\n  self: skip\n  someday: classify\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseValidationErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "non-mapping document", yaml: "- a\n- b\n", want: "mapping"},
		{name: "invalid rule action", yaml: "rules:\n  bots: shout\n", want: "invalid action"},
		{name: "invalid channel action", yaml: "channels:\n  ops: loud\n", want: "invalid action"},
		{name: "threshold too low", yaml: "urgency_threshold: 0\n", want: "urgency_threshold"},
		{name: "threshold too high", yaml: "urgency_threshold: 6\n", want: "urgency_threshold"},
		{name: "zero timeout", yaml: "ollama_timeout: 0s\n", want: "ollama_timeout"},
		{name: "negative timeout", yaml: "ollama_timeout: -3s\n", want: "ollama_timeout"},
		{name: "garbage timeout", yaml: "ollama_timeout: soon\n", want: "invalid duration"},
		{name: "zero notification timeout", yaml: "notification_timeout: 0\n", want: "notification_timeout"},
		{name: "negative notify rate", yaml: "notify_rate_per_sec: -1\n", want: "notify_rate_per_sec"},
		{name: "keyword missing pattern", yaml: "keywords:\n  - action: skip\n", want: "pattern"},
		{name: "keyword missing action", yaml: "keywords:\n  - pattern: x\n", want: "action"},
		{name: "keyword bad action", yaml: "keywords:\n  - pattern: x\n    action: yell\n", want: "invalid action"},
		{name: "keyword bad regex", yaml: "keywords:\n  - pattern: \"regex:(oops\"\n    action: skip\n", want: "regex"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parse(t, tt.yaml)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), logx.Nop())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("urgency_threshold: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, logx.Nop())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.UrgencyThreshold != 5 {
		t.Fatalf("UrgencyThreshold = %d", cfg.UrgencyThreshold)
	}
}

func TestResolvePath(t *testing.T) {
	if p, err := ResolvePath("/explicit/path.yaml"); err != nil || p != "/explicit/path.yaml" {
		t.Fatalf("explicit path: %q, %v", p, err)
	}

	t.Setenv(EnvConfigPath, "/from/env.yaml")
	if p, err := ResolvePath(""); err != nil || p != "/from/env.yaml" {
		t.Fatalf("env path: %q, %v", p, err)
	}

	t.Setenv(EnvConfigPath, "")
	p, err := ResolvePath("")
	if err != nil {
		t.Fatalf("default path error: %v", err)
	}
	if !strings.HasSuffix(p, filepath.Join(".config", "classy-slack-notifier", "config.yaml")) {
		t.Fatalf("default path = %q", p)
	}
}
