// Package config loads run settings from a YAML file, a .env file and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/orchestrator"
	"github.com/danielpatrickdp/turnpilot/internal/pacing"
)

// #region types

// Config holds every setting of a run.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`

	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	Thinking       bool    `yaml:"thinking"`
	ThinkingBudget int     `yaml:"thinking_budget"`
	Screenshot     bool    `yaml:"screenshot"`

	SystemPromptFile string `yaml:"system_prompt_file,omitempty"`
	Instruction      string `yaml:"instruction,omitempty"`
	Fallback         string `yaml:"fallback"`

	Cadence        time.Duration `yaml:"cadence"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	HoldPerStep    time.Duration `yaml:"hold_per_step"`
	TapInterval    time.Duration `yaml:"tap_interval"`
	TapGap         time.Duration `yaml:"tap_gap"`

	Retry RetryConfig `yaml:"retry"`
	Paths PathConfig  `yaml:"paths"`

	LogLevel string `yaml:"log_level"`
	LogDev   bool   `yaml:"log_dev"`
}

// RetryConfig is the backoff policy after recoverable failures.
type RetryConfig struct {
	BaseBackoff    time.Duration `yaml:"base_backoff"`
	Ceiling        time.Duration `yaml:"ceiling"`
	MaxConsecutive int           `yaml:"max_consecutive"`
}

// PathConfig locates the files shared with the emulator and the local stores.
type PathConfig struct {
	Session    string `yaml:"session"`
	Journal    string `yaml:"journal"`
	Position   string `yaml:"position"`
	Screenshot string `yaml:"screenshot"`
	Commands   string `yaml:"commands"`
}

// #endregion types

// #region defaults

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	oc := orchestrator.DefaultConfig()
	pc := pacing.DefaultConfig()
	return &Config{
		Model:          oc.Model,
		MaxTokens:      oc.MaxTokens,
		Temperature:    oc.Temperature,
		ThinkingBudget: oc.ThinkingBudget,
		Screenshot:     oc.Screenshot,
		Fallback:       string(oc.Fallback),
		Cadence:        oc.Cadence,
		RequestTimeout: oc.RequestTimeout,
		HoldPerStep:    pc.HoldPerStep,
		TapInterval:    pc.TapInterval,
		TapGap:         pc.TapGap,
		Retry: RetryConfig{
			BaseBackoff:    oc.Retry.BaseBackoff,
			Ceiling:        oc.Retry.Ceiling,
			MaxConsecutive: oc.Retry.MaxConsecutive,
		},
		Paths: PathConfig{
			Session:    "sessions/claude.json",
			Journal:    "turnpilot.db",
			Position:   "emulator/position.json",
			Screenshot: "emulator/screen.png",
			Commands:   "emulator/commands.jsonl",
		},
		LogLevel: "info",
	}
}

// #endregion defaults

// #region load

// Load builds the config: defaults, then the YAML file at path (skipped when
// path is empty), then .env, then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.APIKey = os.ExpandEnv(cfg.APIKey)

	// a missing .env is normal
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIKey = envOr("ANTHROPIC_API_KEY", c.APIKey)
	c.BaseURL = envOr("ANTHROPIC_BASE_URL", c.BaseURL)
	c.Model = envOr("PILOT_MODEL", c.Model)
	c.Paths.Session = envOr("PILOT_SESSION", c.Paths.Session)
	c.Paths.Journal = envOr("PILOT_DB", c.Paths.Journal)
	c.Paths.Position = envOr("PILOT_POSITION", c.Paths.Position)
	c.Paths.Screenshot = envOr("PILOT_SCREENSHOT", c.Paths.Screenshot)
	c.Paths.Commands = envOr("PILOT_COMMANDS", c.Paths.Commands)
	c.LogLevel = envOr("PILOT_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("PILOT_THINKING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Thinking = b
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate

// Validate reports every invalid setting at once. A missing API key is not
// an error here; starting a run checks for it.
func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is empty"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature must be in [0,1], got %g", c.Temperature))
	}
	if c.Thinking && c.ThinkingBudget >= c.MaxTokens {
		errs = append(errs, fmt.Errorf("thinking_budget %d must be below max_tokens %d", c.ThinkingBudget, c.MaxTokens))
	}
	if _, ok := directive.ParseButton(c.Fallback); !ok {
		errs = append(errs, fmt.Errorf("fallback %q is not a button", c.Fallback))
	}
	for name, d := range map[string]time.Duration{
		"cadence":         c.Cadence,
		"request_timeout": c.RequestTimeout,
		"hold_per_step":   c.HoldPerStep,
		"tap_interval":    c.TapInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.TapGap < 0 {
		errs = append(errs, fmt.Errorf("tap_gap must not be negative, got %s", c.TapGap))
	}
	if c.Retry.MaxConsecutive < 1 {
		errs = append(errs, fmt.Errorf("retry.max_consecutive must be at least 1, got %d", c.Retry.MaxConsecutive))
	}
	if c.Paths.Session == "" || c.Paths.Position == "" {
		errs = append(errs, errors.New("paths.session and paths.position are required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// #endregion validate

// #region convert

// Orchestrator maps the config onto the orchestrator's settings.
func (c *Config) Orchestrator(systemPrompt string) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	fallback, _ := directive.ParseButton(c.Fallback)

	oc.APIKey = c.APIKey
	oc.Model = c.Model
	oc.MaxTokens = c.MaxTokens
	oc.Temperature = c.Temperature
	oc.Thinking = c.Thinking
	oc.ThinkingBudget = c.ThinkingBudget
	oc.Screenshot = c.Screenshot
	oc.SystemPrompt = systemPrompt
	if c.Instruction != "" {
		oc.Instruction = c.Instruction
	}
	oc.Fallback = fallback
	oc.Cadence = c.Cadence
	oc.RequestTimeout = c.RequestTimeout
	oc.Retry.BaseBackoff = c.Retry.BaseBackoff
	oc.Retry.Ceiling = c.Retry.Ceiling
	oc.Retry.MaxConsecutive = c.Retry.MaxConsecutive
	oc.Pacing = pacing.Config{HoldPerStep: c.HoldPerStep, TapInterval: c.TapInterval, TapGap: c.TapGap}
	return oc
}

// SystemPrompt reads the configured system prompt file, if any.
func (c *Config) SystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(data), nil
}

// #endregion convert
