package config

import (
	"time"

	"github.com/bmhenry/classy-slack-notifier/internal/filter"
)

// DefaultSystemPrompt is the urgency rubric sent as the LLM system turn.
const DefaultSystemPrompt = `You are a Slack notification triage assistant. Classify the urgency of the
following message on a scale of 1-5:

1 - Noise: automated messages, routine updates, social chatter
2 - Low: informational, no action needed soon
3 - Medium: relevant to your work, may need attention within hours
4 - High: needs your attention soon, action required
5 - Critical: immediate action required, outage, security incident, or direct request for urgent help

Respond with a JSON object containing "urgency" (integer 1-5) and "reason" (brief explanation).
`

// Config is the full application configuration. Loaded once at startup and
// treated as read-only afterwards; the rule set is static for the process
// lifetime.
type Config struct {
	Model         string
	OllamaURL     string
	OllamaTimeout time.Duration
	SystemPrompt  string

	// UrgencyThreshold is the minimum classifier urgency (1-5) that
	// triggers a notification. The comparison is inclusive.
	UrgencyThreshold int

	Rules    filter.RuleActions
	Channels map[string]filter.Action
	Keywords []filter.KeywordRule

	// NotificationTimeout is the desktop notification expiry in seconds.
	NotificationTimeout int

	// NotifyRatePerSec smooths notification bursts; 0 disables.
	NotifyRatePerSec int

	Logging LoggingConfig
}

type LoggingConfig struct {
	Level   string
	Console bool
	File    LoggingFile
}

type LoggingFile struct {
	Enabled bool
	Path    string
}

// Default returns the built-in configuration, valid without any file.
func Default() Config {
	return Config{
		Model:               "llama3.2:3b",
		OllamaURL:           "http://localhost:11434",
		OllamaTimeout:       3 * time.Second,
		SystemPrompt:        DefaultSystemPrompt,
		UrgencyThreshold:    3,
		Rules:               filter.DefaultRuleActions(),
		Channels:            map[string]filter.Action{},
		NotificationTimeout: 10,
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
		},
	}
}
