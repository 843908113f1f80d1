// Package config loads and validates the YAML configuration.
//
// Config errors are fatal at startup. Unknown keys are the one exception;
// they are warned about and ignored so newer configs keep working on older
// builds.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"

	"github.com/bmhenry/classy-slack-notifier/internal/filter"
	logx "github.com/bmhenry/classy-slack-notifier/pkg/logx"
)

// EnvConfigPath overrides the default config location when set.
const EnvConfigPath = "CLASSY_CONFIG_PATH"

var knownKeys = map[string]struct{}{
	"model":                {},
	"ollama_url":           {},
	"ollama_timeout":       {},
	"urgency_threshold":    {},
	"system_prompt":        {},
	"rules":                {},
	"channels":             {},
	"keywords":             {},
	"notification_timeout": {},
	"notify_rate_per_sec":  {},
	"logging":              {},
}

type rawKeyword struct {
	Pattern *string `yaml:"pattern"`
	Action  *string `yaml:"action"`
}

type rawLoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type rawLogging struct {
	Level   string          `yaml:"level"`
	Console *bool           `yaml:"console"`
	File    *rawLoggingFile `yaml:"file"`
}

type rawConfig struct {
	Model               string            `yaml:"model"`
	OllamaURL           string            `yaml:"ollama_url"`
	OllamaTimeout       string            `yaml:"ollama_timeout"`
	UrgencyThreshold    *int              `yaml:"urgency_threshold"`
	SystemPrompt        string            `yaml:"system_prompt"`
	Rules               map[string]string `yaml:"rules"`
	Channels            map[string]string `yaml:"channels"`
	Keywords            []rawKeyword      `yaml:"keywords"`
	NotificationTimeout *int              `yaml:"notification_timeout"`
	NotifyRatePerSec    *int              `yaml:"notify_rate_per_sec"`
	Logging             *rawLogging       `yaml:"logging"`
}

// ResolvePath picks the config file location: explicit path, then the
// CLASSY_CONFIG_PATH environment variable, then the XDG-style default.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "classy-slack-notifier", "config.yaml"), nil
}

// Load reads, parses, and validates the config file at path.
func Load(path string, log logx.Logger) (*Config, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, log)
}

// Parse builds a Config from raw YAML bytes. Split from Load for tests.
func Parse(data []byte, log logx.Logger) (*Config, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	// First pass: top-level key survey for unknown-key warnings. This also
	// rejects non-mapping documents early with a decent error.
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("config must be a YAML mapping: %w", err)
	}
	for key := range top {
		if _, ok := knownKeys[key]; !ok {
			log.Warn("unknown config key ignored", logx.String("key", key))
		}
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()

	if raw.Model != "" {
		cfg.Model = raw.Model
	}
	if raw.OllamaURL != "" {
		cfg.OllamaURL = raw.OllamaURL
	}
	if raw.OllamaTimeout != "" {
		d, err := ParseDurationField("ollama_timeout", raw.OllamaTimeout)
		if err != nil {
			return nil, err
		}
		cfg.OllamaTimeout = d
	}
	if cfg.OllamaTimeout <= 0 {
		return nil, fmt.Errorf("ollama_timeout must be positive, got %v", cfg.OllamaTimeout)
	}

	if raw.SystemPrompt != "" {
		cfg.SystemPrompt = raw.SystemPrompt
	}

	if raw.UrgencyThreshold != nil {
		cfg.UrgencyThreshold = *raw.UrgencyThreshold
	}
	if cfg.UrgencyThreshold < 1 || cfg.UrgencyThreshold > 5 {
		return nil, fmt.Errorf("urgency_threshold must be between 1 and 5, got %d", cfg.UrgencyThreshold)
	}

	if raw.NotificationTimeout != nil {
		cfg.NotificationTimeout = *raw.NotificationTimeout
	}
	if cfg.NotificationTimeout <= 0 {
		return nil, fmt.Errorf("notification_timeout must be positive, got %d", cfg.NotificationTimeout)
	}

	if raw.NotifyRatePerSec != nil {
		if *raw.NotifyRatePerSec < 0 {
			return nil, fmt.Errorf("notify_rate_per_sec must be >= 0, got %d", *raw.NotifyRatePerSec)
		}
		cfg.NotifyRatePerSec = *raw.NotifyRatePerSec
	}

	if err := mergeRules(&cfg.Rules, raw.Rules, log); err != nil {
		return nil, err
	}

	for name, value := range raw.Channels {
		action, err := filter.ParseAction(value)
		if err != nil {
			return nil, fmt.Errorf("channels.%s: %w", name, err)
		}
		cfg.Channels[name] = action
	}

	for i, kw := range raw.Keywords {
		if kw.Pattern == nil {
			return nil, fmt.Errorf("keywords[%d] is missing required field 'pattern'", i)
		}
		if kw.Action == nil {
			return nil, fmt.Errorf("keywords[%d] is missing required field 'action'", i)
		}
		action, err := filter.ParseAction(*kw.Action)
		if err != nil {
			return nil, fmt.Errorf("keywords[%d].action: %w", i, err)
		}
		rule, err := filter.NewKeywordRule(*kw.Pattern, action)
		if err != nil {
			return nil, fmt.Errorf("keywords[%d]: %w", i, err)
		}
		cfg.Keywords = append(cfg.Keywords, rule)
	}

	if raw.Logging != nil {
		if raw.Logging.Level != "" {
			cfg.Logging.Level = raw.Logging.Level
		}
		if raw.Logging.Console != nil {
			cfg.Logging.Console = *raw.Logging.Console
		}
		if raw.Logging.File != nil {
			cfg.Logging.File = LoggingFile{
				Enabled: raw.Logging.File.Enabled,
				Path:    raw.Logging.File.Path,
			}
		}
	}

	return &cfg, nil
}

// mergeRules overlays user-supplied named rules on the defaults. Unknown
// rule names are warned about, not fatal, matching the top-level key policy.
func mergeRules(dst *filter.RuleActions, raw map[string]string, log logx.Logger) error {
	for name, value := range raw {
		action, err := filter.ParseAction(value)
		if err != nil {
			return fmt.Errorf("rules.%s: %w", name, err)
		}
		switch name {
		case "self":
			dst.Self = action
		case "bots":
			dst.Bots = action
		case "mentions":
			dst.Mentions = action
		case "dms":
			dst.DMs = action
		case "default":
			dst.Default = action
		default:
			log.Warn("unknown rule key ignored", logx.String("rule", name))
		}
	}
	return nil
}
