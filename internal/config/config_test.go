package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "manual", cfg.Sync.ConflictStrategy)
	assert.Equal(t, "surface", cfg.Sync.DeletionStrategy)
	assert.Equal(t, "/webhook", cfg.Watch.WebhookPath)
	assert.Equal(t, 500, cfg.Watch.DebounceMillis)
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_CONFIG_VAR", "test_value")
	defer os.Unsetenv("TEST_CONFIG_VAR")

	cases := map[string]string{
		"${TEST_CONFIG_VAR}":               "test_value",
		"$TEST_CONFIG_VAR":                 "test_value",
		"prefix_${TEST_CONFIG_VAR}_suffix": "prefix_test_value_suffix",
		"literal_value":                    "literal_value",
		"${UNSET_VAR}":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, expandEnv(in), "input %q", in)
	}
}

func TestLoadFromFile(t *testing.T) {
	workDir := t.TempDir()
	configDir := t.TempDir()
	configPath := filepath.Join(configDir, "config.yaml")

	os.Setenv("TEST_REMOTE_TOKEN", "secret_token_123")
	defer os.Unsetenv("TEST_REMOTE_TOKEN")

	content := `
work_dir: ` + workDir + `
remote:
  base_url: https://example.atlassian.net/wiki
  token: ${TEST_REMOTE_TOKEN}
scope:
  space_key: ENG
sync:
  conflict_strategy: newer
  ignore:
    - "*.tmp"
rate_limit:
  requests_per_second: 2.5
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, workDir, cfg.WorkDir)
	assert.Equal(t, "secret_token_123", cfg.Remote.Token)
	assert.Equal(t, "ENG", cfg.Scope.SpaceKey)
	assert.Equal(t, "newer", cfg.Sync.ConflictStrategy)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
}

func TestValidate(t *testing.T) {
	workDir := t.TempDir()

	valid := func() *Config {
		return &Config{
			WorkDir: workDir,
			Remote:  RemoteConfig{BaseURL: "https://x.atlassian.net/wiki", Token: "t"},
			Scope:   ScopeConfig{SpaceKey: "ENG"},
			Sync:    SyncConfig{ConflictStrategy: "manual", DeletionStrategy: "surface"},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing work_dir", func(t *testing.T) {
		cfg := valid()
		cfg.WorkDir = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "work_dir is required")
	})

	t.Run("work_dir does not exist", func(t *testing.T) {
		cfg := valid()
		cfg.WorkDir = "/nonexistent/path"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "work_dir does not exist")
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := valid()
		cfg.Remote.Token = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.token is required")
	})

	t.Run("missing space key", func(t *testing.T) {
		cfg := valid()
		cfg.Scope.SpaceKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scope.space_key is required")
	})

	t.Run("invalid conflict strategy", func(t *testing.T) {
		cfg := valid()
		cfg.Sync.ConflictStrategy = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.conflict_strategy")
	})

	t.Run("invalid deletion strategy", func(t *testing.T) {
		cfg := valid()
		cfg.Sync.DeletionStrategy = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.deletion_strategy")
	})
}

func TestSaveAndLoad(t *testing.T) {
	workDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "subdir", "config.yaml")

	original := &Config{
		WorkDir: workDir,
		Remote:  RemoteConfig{BaseURL: "https://x.atlassian.net/wiki", Token: "test_token"},
		Scope:   ScopeConfig{SpaceKey: "ENG"},
		Sync:    SyncConfig{ConflictStrategy: "newer", DeletionStrategy: "surface", Ignore: []string{"*.tmp"}},
		Watch:   WatchConfig{WebhookPath: "/webhook", DebounceMillis: 500},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2.5,
		},
	}

	require.NoError(t, original.Save(configPath))

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, original.WorkDir, loaded.WorkDir)
	assert.Equal(t, original.Remote.Token, loaded.Remote.Token)
	assert.Equal(t, original.Sync.ConflictStrategy, loaded.Sync.ConflictStrategy)
}

func TestLoadNoConfigFile(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	tmpDir := t.TempDir()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(cwd)

	_, err = Load("")
	assert.Error(t, err)
}

func TestTildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("skipping tilde test: %v", err)
	}

	testWorkDir := filepath.Join(home, ".test-workdir-tilde")
	require.NoError(t, os.MkdirAll(testWorkDir, 0o755))
	defer os.RemoveAll(testWorkDir)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
work_dir: ~/.test-workdir-tilde
remote:
  base_url: https://x.atlassian.net/wiki
  token: test_token
scope:
  space_key: ENG
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, testWorkDir, cfg.WorkDir)
}

func TestPollIntervalRoundTripsAsDuration(t *testing.T) {
	workDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
work_dir: ` + workDir + `
remote:
  base_url: https://x.atlassian.net/wiki
  token: t
scope:
  space_key: ENG
sync:
  conflict_strategy: manual
  deletion_strategy: surface
  poll_interval: 30s
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
}
