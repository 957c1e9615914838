// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	// Auth gets its marching orders from CLI flags, not the config file.
	Auth AuthConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	Args           []string `mapstructure:"args" yaml:"args"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserDataDir    string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
}

// NetworkConfig tunes navigation and settling behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleDelay is the extra pause inserted after a navigation changed the
	// URL; load-state alone does not cover client-side re-render lag.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ConsentWait time.Duration `mapstructure:"consent_wait" yaml:"consent_wait"`
}

// ModelConfig describes the OpenAI-compatible inference endpoint.
type ModelConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	Name         string        `mapstructure:"name" yaml:"name"`
	FallbackName string        `mapstructure:"fallback_name" yaml:"fallback_name"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature" yaml:"temperature"`
	APITimeout   time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// RequestsPerSecond caps the model call rate. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// AgentConfig tunes the perception-action loop.
type AgentConfig struct {
	MaxSteps        int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxContextChars int           `mapstructure:"max_context_chars" yaml:"max_context_chars"`
	TurnPause       time.Duration `mapstructure:"turn_pause" yaml:"turn_pause"`

	// Observation encoding.
	MaxTreeLines int `mapstructure:"max_tree_lines" yaml:"max_tree_lines"`
	// SkipRoles are structural/text-duplication roles never surfaced to the
	// model; NoiseRoles are additionally suppressed when the node has an
	// empty display name. Both lists are heuristics tuned against real
	// sites, hence configuration rather than code.
	SkipRoles  []string `mapstructure:"skip_roles" yaml:"skip_roles"`
	NoiseRoles []string `mapstructure:"noise_roles" yaml:"noise_roles"`

	// Stall detection thresholds.
	StallHintAfter  int `mapstructure:"stall_hint_after" yaml:"stall_hint_after"`
	StallAbortAfter int `mapstructure:"stall_abort_after" yaml:"stall_abort_after"`
}

// OutputConfig controls where extracted artifacts land.
type OutputConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	CSVName string `mapstructure:"csv_name" yaml:"csv_name"`
}

// AuthMode selects how the browser session is bootstrapped before the agent
// takes over.
type AuthMode string

const (
	AuthNone        AuthMode = "none"
	AuthCredentials AuthMode = "credentials"
	AuthToken       AuthMode = "token"
	AuthSession     AuthMode = "session"
)

// AuthConfig holds the per-run authentication bootstrap settings, populated
// from CLI flags or interactive prompts.
type AuthConfig struct {
	Mode AuthMode
	URL  string

	// Credential form fill (mode credentials).
	Username         string
	Password         string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	// Token injection (mode token).
	Token      string
	TokenType  string // "cookie" or "header"
	CookieName string

	// Session takeover (mode session).
	ProfileDir string
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfarer-cli")
	v.SetDefault("logger.log_file", "wayfarer.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "15s")
	v.SetDefault("network.settle_delay", "1500ms")
	v.SetDefault("network.consent_wait", "2s")

	// -- Model --
	v.SetDefault("model.endpoint", "http://localhost:5001/v1")
	v.SetDefault("model.fallback_name", "qwen2.5-7b")
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.api_timeout", "120s")
	v.SetDefault("model.requests_per_second", 2.0)

	// -- Agent --
	v.SetDefault("agent.max_steps", 50)
	// ~20K tokens at ~4 chars/token; keeps the prompt inside a 32K context
	// window with room for the completion.
	v.SetDefault("agent.max_context_chars", 80000)
	v.SetDefault("agent.turn_pause", "1500ms")
	v.SetDefault("agent.max_tree_lines", 600)
	v.SetDefault("agent.skip_roles", []string{
		"none", "generic", "Ignored", "ignored", "InlineTextBox", "StaticText",
	})
	v.SetDefault("agent.noise_roles", []string{
		"img", "list", "strong", "paragraph",
		"banner", "navigation", "Section", "LabelText", "Legend", "listitem",
	})
	v.SetDefault("agent.stall_hint_after", 3)
	v.SetDefault("agent.stall_abort_after", 6)

	// -- Output --
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.csv_name", "collected_data.csv")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.MaxContextChars < 1000 {
		return fmt.Errorf("agent.max_context_chars must be at least 1000")
	}
	if c.Agent.MaxTreeLines <= 0 {
		return fmt.Errorf("agent.max_tree_lines must be a positive integer")
	}
	if c.Agent.StallHintAfter <= 0 || c.Agent.StallAbortAfter <= c.Agent.StallHintAfter {
		return fmt.Errorf("agent.stall_abort_after must be greater than agent.stall_hint_after (both positive)")
	}
	if c.Model.Endpoint == "" {
		return fmt.Errorf("model.endpoint is a required configuration field")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be a positive integer")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is a required configuration field")
	}
	return nil
}
