// Package config handles configuration loading and management for the
// sync daemon and CLI.
//
// Directly generalized from the teacher's internal/config/config.go:
// the env-var expansion, default-location search, Validate-at-load, and
// Save machinery are kept; the Notion-flavored fields (token, database
// mappings, transform rules) are replaced with Confluence-flavored ones
// (space key, scope, base URL, webhook settings, deletion/conflict
// strategy, audit thresholds) per SPEC_FULL.md §11.3.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the sync daemon and CLI.
type Config struct {
	// WorkDir is the local directory mirroring the remote page tree.
	WorkDir string `yaml:"work_dir"`

	Remote RemoteConfig `yaml:"remote"`
	Scope  ScopeConfig  `yaml:"scope"`
	Sync   SyncConfig   `yaml:"sync"`
	Watch  WatchConfig  `yaml:"watch"`
	Audit  AuditConfig  `yaml:"audit"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RemoteConfig holds remote API credentials and connection settings.
type RemoteConfig struct {
	// BaseURL is the remote document space's API base, e.g.
	// https://example.atlassian.net/wiki.
	BaseURL string `yaml:"base_url"`

	// Token is the API credential. Can be a literal value or a
	// ${ENV_VAR} reference.
	Token string `yaml:"token"`
}

// ScopeConfig restricts which pages the daemon and CLI operate on.
type ScopeConfig struct {
	// SpaceKey is the remote space to sync.
	SpaceKey string `yaml:"space_key"`

	// RootPageID restricts sync to a subtree; empty means the whole space.
	RootPageID string `yaml:"root_page_id"`
}

// SyncConfig holds reconciliation behavior settings.
type SyncConfig struct {
	// ConflictStrategy: "ours", "theirs", "manual", or "newer".
	ConflictStrategy string `yaml:"conflict_strategy"`

	// DeletionStrategy selects what the explicit delete command does to the
	// remote page: "surface" (default) archives it, "mirror" deletes it
	// outright. Local file deletions are never propagated under either.
	DeletionStrategy string `yaml:"deletion_strategy"`

	// Ignore patterns for files to skip, beyond ignore.AlwaysIgnored.
	Ignore []string `yaml:"ignore"`

	// PollInterval is how often the remote poller checks for changes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// WatchConfig configures the long-lived daemon's event sources.
type WatchConfig struct {
	// WebhookEnabled turns on the embedded HTTP receiver.
	WebhookEnabled bool `yaml:"webhook_enabled"`

	// WebhookPort is the port the receiver listens on.
	WebhookPort int `yaml:"webhook_port"`

	// WebhookPath is the HTTP path events are posted to (default /webhook).
	WebhookPath string `yaml:"webhook_path"`

	// DebounceMillis is read from the config file but not used; the local
	// watcher's coalescing window is a fixed 500ms.
	DebounceMillis int `yaml:"debounce_millis"`
}

// AuditConfig holds thresholds for the read-only audit subsystem.
type AuditConfig struct {
	// RequiredLabel, if set, is flagged as missing on pages that lack it.
	RequiredLabel string `yaml:"required_label"`

	// StaleAfter flags pages with no remote edit within this window.
	StaleAfter time.Duration `yaml:"stale_after"`

	// ChurnThreshold flags pages whose version count is at least this
	// value as high-churn. ChurnWindow is parsed but not applied; the
	// count covers the page's whole history.
	ChurnThreshold int           `yaml:"churn_threshold"`
	ChurnWindow    time.Duration `yaml:"churn_window"`
}

// RateLimitConfig holds rate limiting settings for the remote API client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			ConflictStrategy: "manual",
			DeletionStrategy: "surface",
			Ignore: []string{
				"templates/**",
			},
			PollInterval: 2 * time.Minute,
		},
		Watch: WatchConfig{
			WebhookPath:    "/webhook",
			WebhookPort:    8787,
			DebounceMillis: 500,
		},
		Audit: AuditConfig{
			StaleAfter:     90 * 24 * time.Hour,
			ChurnThreshold: 10,
			ChurnWindow:    7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 3,
		},
	}
}

// Load loads configuration from path, or from default locations if path
// is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFromFile(path)
	}

	locations := []string{
		".confluence-sync.yaml",
		".confluence-sync.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "confluence-sync", "config.yaml"),
			filepath.Join(home, ".config", "confluence-sync", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loadFromFile(loc)
		}
	}

	return nil, fmt.Errorf("no configuration file found (tried: %s)", strings.Join(locations, ", "))
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandEnvVars()

	if strings.HasPrefix(cfg.WorkDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.WorkDir = filepath.Join(home, cfg.WorkDir[1:])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) expandEnvVars() {
	c.Remote.Token = expandEnv(c.Remote.Token)
	c.Remote.BaseURL = expandEnv(c.Remote.BaseURL)
	c.WorkDir = expandEnv(c.WorkDir)
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return os.ExpandEnv(s)
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}
	if _, err := os.Stat(c.WorkDir); os.IsNotExist(err) {
		return fmt.Errorf("work_dir does not exist: %s", c.WorkDir)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Remote.Token == "" {
		return fmt.Errorf("remote.token is required")
	}
	if c.Scope.SpaceKey == "" {
		return fmt.Errorf("scope.space_key is required")
	}

	switch c.Sync.ConflictStrategy {
	case "ours", "theirs", "manual", "newer":
	default:
		return fmt.Errorf("sync.conflict_strategy must be one of ours, theirs, manual, newer; got %q", c.Sync.ConflictStrategy)
	}

	switch c.Sync.DeletionStrategy {
	case "surface", "mirror":
	default:
		return fmt.Errorf("sync.deletion_strategy must be one of surface, mirror; got %q", c.Sync.DeletionStrategy)
	}

	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
