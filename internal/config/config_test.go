package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "PILOT_MODEL", "PILOT_SESSION", "PILOT_DB",
		"PILOT_POSITION", "PILOT_SCREENSHOT", "PILOT_COMMANDS", "PILOT_LOG_LEVEL", "PILOT_THINKING",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model)
	require.Equal(t, 1024, cfg.MaxTokens)
	require.Equal(t, 2*time.Second, cfg.Cadence)
	require.Equal(t, 60*time.Second, cfg.RequestTimeout)
	require.Equal(t, "B", cfg.Fallback)
	require.Equal(t, 50*time.Millisecond, cfg.TapGap)
	require.Empty(t, cfg.APIKey)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
api_key: ${PILOT_TEST_KEY}
model: from-yaml
max_tokens: 2048
temperature: 0.5
cadence: 3s
hold_per_step: 200ms
tap_gap: 80ms
fallback: a
retry:
  base_backoff: 1s
  ceiling: 10s
  max_consecutive: 5
paths:
  session: yaml/session.json
`)
	t.Setenv("PILOT_TEST_KEY", "sk-yaml")
	t.Setenv("PILOT_MODEL", "from-env")
	t.Setenv("PILOT_DB", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-yaml", cfg.APIKey)
	require.Equal(t, "from-env", cfg.Model)
	require.Equal(t, 2048, cfg.MaxTokens)
	require.Equal(t, 3*time.Second, cfg.Cadence)
	require.Equal(t, 200*time.Millisecond, cfg.HoldPerStep)
	require.Equal(t, 120*time.Millisecond, cfg.TapInterval)
	require.Equal(t, "yaml/session.json", cfg.Paths.Session)
	require.Equal(t, "env.db", cfg.Paths.Journal)
	require.Equal(t, 5, cfg.Retry.MaxConsecutive)

	oc := cfg.Orchestrator("be brief")
	require.Equal(t, directive.ButtonA, oc.Fallback)
	require.Equal(t, "be brief", oc.SystemPrompt)
	require.Equal(t, 10*time.Second, oc.Retry.Ceiling)
	require.Equal(t, 16, oc.Retry.MaxMultiplier)
	require.Equal(t, 200*time.Millisecond, oc.Pacing.HoldPerStep)
	require.Equal(t, 80*time.Millisecond, oc.Pacing.TapGap)
}

func TestLoad_EnvAPIKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	cfg, err := Load(writeYAML(t, "api_key: sk-file\n"))
	require.NoError(t, err)
	require.Equal(t, "sk-env", cfg.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeYAML(t, "model: [unterminated\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"temperature too high", func(c *Config) { c.Temperature = 1.5 }},
		{"thinking budget too large", func(c *Config) { c.Thinking = true; c.ThinkingBudget = c.MaxTokens }},
		{"unknown fallback", func(c *Config) { c.Fallback = "Z" }},
		{"zero cadence", func(c *Config) { c.Cadence = 0 }},
		{"no retries", func(c *Config) { c.Retry.MaxConsecutive = 0 }},
		{"negative tap gap", func(c *Config) { c.TapGap = -time.Millisecond }},
		{"no session path", func(c *Config) { c.Paths.Session = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestSystemPrompt(t *testing.T) {
	cfg := DefaultConfig()
	got, err := cfg.SystemPrompt()
	require.NoError(t, err)
	require.Empty(t, got)

	cfg.SystemPromptFile = filepath.Join(t.TempDir(), "system.txt")
	require.NoError(t, os.WriteFile(cfg.SystemPromptFile, []byte("You play Pokemon."), 0o644))
	got, err = cfg.SystemPrompt()
	require.NoError(t, err)
	require.Equal(t, "You play Pokemon.", got)
}
