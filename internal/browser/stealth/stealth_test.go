package stealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestApply(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	tasks := Apply(DefaultProfile, zap.New(core))

	// user agent, evasions, timezone, locale, headers
	assert.Len(t, tasks, 5)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Applying browser stealth profile", entry.Message)
	assert.Equal(t, DefaultProfile.UserAgent, entry.ContextMap()["userAgent"])
}

func TestEvasionsScriptEmbedded(t *testing.T) {
	assert.Contains(t, evasionsScript, "'webdriver'")
	assert.Contains(t, evasionsScript, "permissions.query")
}

func TestProfile_WithUserAgent(t *testing.T) {
	p := DefaultProfile.WithUserAgent("custom/1.0")
	assert.Equal(t, "custom/1.0", p.UserAgent)
	assert.NotEqual(t, "custom/1.0", DefaultProfile.UserAgent)

	assert.Equal(t, DefaultProfile.UserAgent, DefaultProfile.WithUserAgent("").UserAgent)
}

func TestProfile_AcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", DefaultProfile.AcceptLanguage())
	assert.Equal(t, "de-DE", Profile{Locale: "de-DE"}.AcceptLanguage())
	assert.Equal(t, "fr-FR,fr;q=0.9,en;q=0.8", Profile{Languages: []string{"fr-FR", "fr", "en"}}.AcceptLanguage())
}
