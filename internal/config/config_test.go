// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 1250, cfg.Browser().Viewport.Width)
	assert.Equal(t, 800, cfg.Browser().Viewport.Height)
	assert.Equal(t, 60*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, "https://www.google.com", cfg.Browser().StartURL)
	assert.Equal(t, DefaultUserAgent, cfg.Browser().UserAgent)
	assert.Contains(t, cfg.Browser().Args, "disable-blink-features=AutomationControlled")
	assert.Equal(t, 150, cfg.Agent().StepBudget)
	assert.False(t, cfg.Agent().HardDedupe)
	assert.Equal(t, "gemini-2.5-pro", cfg.Agent().LLM.DefaultPowerfulModel)
	assert.Equal(t, StorageFS, cfg.Storage().Backend)
	assert.Equal(t, ":8000", cfg.Server().Addr)
	assert.Equal(t, 256, cfg.Server().MaxConnections)
	assert.Equal(t, "uxpilot", cfg.Metrics().Namespace)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		invalidBudget := *cfg
		invalidBudget.AgentCfg.StepBudget = 0
		err := invalidBudget.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent.step_budget must be a positive integer")

		invalidViewport := *cfg
		invalidViewport.BrowserCfg.Viewport.Width = -1
		err = invalidViewport.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.viewport")

		invalidNav := *cfg
		invalidNav.BrowserCfg.NavigationTimeout = 0
		err = invalidNav.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.navigation_timeout")
	})

	t.Run("Storage Validation", func(t *testing.T) {
		fs := StorageConfig{Backend: StorageFS, ImageDir: "/tmp/images"}
		assert.NoError(t, fs.Validate())

		fs.ImageDir = ""
		err := fs.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image_dir is required")

		pg := StorageConfig{Backend: StoragePostgres}
		err = pg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UXPILOT_DATABASE_URL")

		pg.Database.URL = "postgres://localhost/uxpilot"
		assert.NoError(t, pg.Validate())

		unknown := StorageConfig{Backend: "s3"}
		err = unknown.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown backend 's3'")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("overrides from yaml", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
agent:
  step_budget: 40
  hard_dedupe: true
  llm:
    models:
      fast:
        provider: gemini
        model: gemini-2.5-flash
        temperature: 0.2
browser:
  headless: false
  viewport:
    width: 1024
server:
  addr: "127.0.0.1:9000"
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 40, cfg.Agent().StepBudget)
		assert.True(t, cfg.Agent().HardDedupe)
		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, 1024, cfg.Browser().Viewport.Width)
		assert.Equal(t, 800, cfg.Browser().Viewport.Height, "unset keys keep their defaults")
		assert.Equal(t, "127.0.0.1:9000", cfg.Server().Addr)

		model, ok := cfg.Agent().LLM.Models["fast"]
		require.True(t, ok)
		assert.Equal(t, ProviderGemini, model.Provider)
		assert.InDelta(t, 0.2, model.Temperature, 1e-6)
	})

	t.Run("secrets come from the environment", func(t *testing.T) {
		t.Setenv("UXPILOT_GEMINI_API_KEY", "test-key")
		t.Setenv("UXPILOT_DATABASE_URL", "postgres://u:p@localhost/db")

		v := viper.New()
		SetDefaults(v)
		v.Set("storage.backend", "postgres")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "test-key", cfg.Agent().LLM.APIKey)
		assert.Equal(t, "postgres://u:p@localhost/db", cfg.Storage().Database.URL)
	})

	t.Run("validation failures are wrapped", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.step_budget", -3)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserRemoteURL("ws://127.0.0.1:9222/devtools/browser/abc")
	cfg.SetAgentStepBudget(12)
	cfg.SetServerAddr(":9999")

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser().RemoteURL)
	assert.Equal(t, 12, cfg.Agent().StepBudget)
	assert.Equal(t, ":9999", cfg.Server().Addr)
}
