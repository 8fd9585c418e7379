// Package config loads termwatch application settings from
// ~/.termwatch/config.yaml, ./config.yaml and TERMWATCH_* environment
// variables. Command-line flags are applied on top by the cli package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/termwatch/internal/alert"
	"github.com/ppiankov/termwatch/internal/policy"
)

// EnvPrefix prefixes every environment override (TERMWATCH_MODE,
// TERMWATCH_WATCH_INBOX, ...).
const EnvPrefix = "TERMWATCH"

// Segmenter names accepted by the segmenter key.
const (
	SegmenterDictionary = "dictionary"
	SegmenterWhitespace = "whitespace"
)

// Config represents the termwatch configuration.
type Config struct {
	// Taxonomy YAML; a missing file selects the built-in taxonomy.
	Taxonomy string `mapstructure:"taxonomy"`

	// Extra lexicon merged into the built-in dictionary.
	Dictionary string `mapstructure:"dictionary"`

	Segmenter string `mapstructure:"segmenter"`
	Mode      string `mapstructure:"mode"`

	AuditLog  string `mapstructure:"audit_log"`
	HistoryDB string `mapstructure:"history_db"`

	Watch WatchConfig `mapstructure:"watch"`

	// Webhooks notified after each evaluation.
	Alerts []alert.AlertConfig `mapstructure:"alerts"`
}

// WatchConfig contains inbox daemon settings.
type WatchConfig struct {
	Inbox        string        `mapstructure:"inbox"`
	Outbox       string        `mapstructure:"outbox"`
	State        string        `mapstructure:"state"`
	Poll         bool          `mapstructure:"poll"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Workers      int           `mapstructure:"workers"`
}

// GetConfigDir returns the termwatch home directory. TERMWATCH_CONFIG_DIR
// overrides it.
func GetConfigDir() string {
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termwatch"
	}
	return filepath.Join(home, ".termwatch")
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// DefaultConfig returns configuration with defaults rooted at dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Taxonomy:  filepath.Join(dir, "taxonomy.yaml"),
		Segmenter: SegmenterDictionary,
		Mode:      string(policy.Accumulate),
		Watch: WatchConfig{
			Inbox:        filepath.Join(dir, "inbox"),
			Outbox:       filepath.Join(dir, "outbox"),
			State:        filepath.Join(dir, "state"),
			PollInterval: 2 * time.Second,
			Workers:      4,
		},
	}
}

// Load reads configuration from cfgFile, or from the default locations
// when cfgFile is empty. A missing default config file is not an error.
func Load(cfgFile string) (*Config, error) {
	dir := GetConfigDir()
	cfg := DefaultConfig(dir)
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("taxonomy", cfg.Taxonomy)
	v.SetDefault("dictionary", cfg.Dictionary)
	v.SetDefault("segmenter", cfg.Segmenter)
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("audit_log", cfg.AuditLog)
	v.SetDefault("history_db", cfg.HistoryDB)
	v.SetDefault("watch.inbox", cfg.Watch.Inbox)
	v.SetDefault("watch.outbox", cfg.Watch.Outbox)
	v.SetDefault("watch.state", cfg.Watch.State)
	v.SetDefault("watch.poll", cfg.Watch.Poll)
	v.SetDefault("watch.poll_interval", cfg.Watch.PollInterval)
	v.SetDefault("watch.workers", cfg.Watch.Workers)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg.Taxonomy = expandHome(cfg.Taxonomy)
	cfg.Dictionary = expandHome(cfg.Dictionary)
	cfg.AuditLog = expandHome(cfg.AuditLog)
	cfg.HistoryDB = expandHome(cfg.HistoryDB)
	cfg.Watch.Inbox = expandHome(cfg.Watch.Inbox)
	cfg.Watch.Outbox = expandHome(cfg.Watch.Outbox)
	cfg.Watch.State = expandHome(cfg.Watch.State)

	return cfg, cfg.Validate()
}

// Validate checks enumerated values and watch settings.
func (c *Config) Validate() error {
	switch c.Segmenter {
	case SegmenterDictionary, SegmenterWhitespace:
	default:
		return fmt.Errorf("config: unknown segmenter %q (want %s or %s)", c.Segmenter, SegmenterDictionary, SegmenterWhitespace)
	}
	if _, err := policy.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("config: alerts[%d]: url is required", i)
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("config: alerts[%d]: at least one event is required", i)
		}
	}
	if c.Watch.Workers < 1 {
		return fmt.Errorf("config: watch.workers must be at least 1, got %d", c.Watch.Workers)
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("config: watch.poll_interval must be positive, got %s", c.Watch.PollInterval)
	}
	return nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// Sample is a commented config file written by `termwatch init --config`.
const Sample = `# termwatch configuration
# ~/.termwatch/config.yaml

# Taxonomy YAML (missing file: built-in terms)
taxonomy: ~/.termwatch/taxonomy.yaml

# Extra word list merged into the built-in Thai dictionary (word<TAB>tag)
dictionary: ""

# dictionary | whitespace
segmenter: dictionary

# accumulate: every caller disclosure stays in force
# latest: only the most recent disclosure unlocks terms
mode: accumulate

# Hash-chained JSONL audit log (empty: disabled)
audit_log: ""

# SQLite run history (empty: disabled)
history_db: ""

# Webhooks. events: PASS, FAIL, forbidden-term, disallowed-term
# format: generic | slack | pagerduty
# alerts:
#   - url: https://hooks.slack.com/services/XXX
#     format: slack
#     events: [forbidden-term]

watch:
  inbox: ~/.termwatch/inbox
  outbox: ~/.termwatch/outbox
  state: ~/.termwatch/state
  poll: false
  poll_interval: 2s
  workers: 4
`
