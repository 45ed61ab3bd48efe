// internal/browser/options_test.go
package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uxpilot/internal/config"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg       string
		wantName  string
		wantValue interface{}
	}{
		{"enable-webgl", "enable-webgl", true},
		{"--enable-webgl", "enable-webgl", true},
		{"use-gl=swiftshader", "use-gl", "swiftshader"},
		{"--disable-blink-features=AutomationControlled", "disable-blink-features", "AutomationControlled"},
		{"  ", "", nil},
		{"--", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, value := parseFlag(tt.arg)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:  true,
		UserAgent: config.DefaultUserAgent,
		Args:      []string{"enable-webgl", "use-gl=swiftshader", ""},
		Viewport:  config.ViewportConfig{Width: 1250, Height: 800},
	}

	opts := allocatorOptions(cfg)

	// defaults + sandbox, shm, headless, window + user agent + two args
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+4+1+2)

	cfg.UserAgent = ""
	assert.Len(t, allocatorOptions(cfg), len(chromedp.DefaultExecAllocatorOptions)+4+2)
}
