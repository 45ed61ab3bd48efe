// Package stealth makes an automated Chrome tab look like a desktop browser
// driven by a person.
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Profile defines the browser characteristics to emulate.
type Profile struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultProfile is a US desktop Chrome on macOS.
var DefaultProfile = Profile{
	UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	Platform:  "MacIntel",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/New_York",
	Locale:    "en-US",
}

// WithUserAgent returns a copy of p using ua, keeping the default when ua is
// empty.
func (p Profile) WithUserAgent(ua string) Profile {
	if ua != "" {
		p.UserAgent = ua
	}
	return p
}

// AcceptLanguage renders the languages as an Accept-Language header value.
func (p Profile) AcceptLanguage() string {
	if len(p.Languages) == 0 {
		return p.Locale
	}
	parts := make([]string, len(p.Languages))
	for i, lang := range p.Languages {
		if i == 0 {
			parts[i] = lang
			continue
		}
		parts[i] = fmt.Sprintf("%s;q=0.%d", lang, 10-i)
	}
	return strings.Join(parts, ",")
}

// Apply builds the CDP actions that install the profile on the current tab.
// They must run before the first navigation so the evasion script is
// registered for every new document.
func Apply(p Profile, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth profile",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
		zap.String("timezone", p.Timezone),
	)

	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithPlatform(p.Platform).
			WithAcceptLanguage(p.AcceptLanguage()),

		// AddScriptToEvaluateOnNewDocument returns an identifier as well as
		// an error, so it does not satisfy chromedp.Action on its own.
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": p.AcceptLanguage(),
		}),
	}
}
