// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	Storage() StorageConfig
	Server() ServerConfig
	Metrics() MetricsConfig

	// Setters used by CLI flag overrides.
	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(string)
	SetAgentStepBudget(int)
	SetServerAddr(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	StorageCfg StorageConfig `mapstructure:"storage" yaml:"storage"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }
func (c *Config) Storage() StorageConfig { return c.StorageCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserRemoteURL(u string) { c.BrowserCfg.RemoteURL = u }
func (c *Config) SetAgentStepBudget(n int)     { c.AgentCfg.StepBudget = n }
func (c *Config) SetServerAddr(addr string)    { c.ServerCfg.Addr = addr }

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

// ViewportConfig is the fixed page size every screenshot is taken at.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the shared browser page.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	// RemoteURL, when set, attaches to a running Chrome (ws:// devtools URL)
	// instead of launching one.
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	StartURL          string         `mapstructure:"start_url" yaml:"start_url"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
	HealthTimeout     time.Duration  `mapstructure:"health_timeout" yaml:"health_timeout"`
}

// AgentConfig holds settings related to the agent run loop and its oracle.
type AgentConfig struct {
	StepBudget int             `mapstructure:"step_budget" yaml:"step_budget"`
	// HardDedupe makes the selector skip ranked actions that already
	// succeeded in the current run, on top of the prompt instruction.
	HardDedupe bool            `mapstructure:"hard_dedupe" yaml:"hard_dedupe"`
	LLM        LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	RequestsPerMinute    int                       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// APIKey is used by any model entry that does not carry its own key.
	APIKey               string                    `mapstructure:"api_key" yaml:"-"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// StorageBackend selects where screenshots are kept.
type StorageBackend string

const (
	StorageFS       StorageBackend = "fs"
	StoragePostgres StorageBackend = "postgres"
)

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// StorageConfig configures durable image storage.
type StorageConfig struct {
	Backend  StorageBackend `mapstructure:"backend" yaml:"backend"`
	ImageDir string         `mapstructure:"image_dir" yaml:"image_dir"`
	// BaseURL prefixes image references handed to stream consumers.
	BaseURL  string         `mapstructure:"base_url" yaml:"base_url"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr             string        `mapstructure:"addr" yaml:"addr"`
	// RejectConcurrent answers 409 instead of queueing when a run already
	// holds the browser.
	RejectConcurrent bool          `mapstructure:"reject_concurrent" yaml:"reject_concurrent"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxConnections caps simultaneously accepted connections. Zero disables
	// the cap.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections"`
}

// MetricsConfig configures the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// DefaultUserAgent is a desktop Chrome fingerprint; several sites serve a
// reduced page to HeadlessChrome.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uxpilot")
	v.SetDefault("logger.log_file", "uxpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.start_url", "https://www.google.com")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.args", []string{
		"enable-webgl",
		"use-gl=swiftshader",
		"enable-accelerated-2d-canvas",
		"disable-blink-features=AutomationControlled",
		"disable-web-security",
	})
	v.SetDefault("browser.viewport.width", 1250)
	v.SetDefault("browser.viewport.height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.health_timeout", "5s")

	// -- Agent --
	v.SetDefault("agent.step_budget", 150)
	v.SetDefault("agent.hard_dedupe", false)
	v.SetDefault("agent.llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.default_powerful_model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.requests_per_minute", 60)

	// -- Storage --
	v.SetDefault("storage.backend", string(StorageFS))
	v.SetDefault("storage.image_dir", "~/.uxpilot/images")
	v.SetDefault("storage.base_url", "/api/images")

	// -- Server --
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.reject_concurrent", false)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_connections", 256)

	// -- Metrics --
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "uxpilot")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("storage.database.url", "UXPILOT_DATABASE_URL")
	_ = v.BindEnv("agent.llm.api_key", "UXPILOT_GEMINI_API_KEY")

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
	if c.AgentCfg.StepBudget <= 0 {
		return fmt.Errorf("agent.step_budget must be a positive integer")
	}
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive integers")
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.ServerCfg.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if err := c.StorageCfg.Validate(); err != nil {
		return fmt.Errorf("storage configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the storage configuration.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case StorageFS:
		if s.ImageDir == "" {
			return fmt.Errorf("image_dir is required for the fs backend")
		}
	case StoragePostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres backend (hint: set UXPILOT_DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown backend '%s'. Supported: [%s, %s]", s.Backend, StorageFS, StoragePostgres)
	}
	return nil
}
