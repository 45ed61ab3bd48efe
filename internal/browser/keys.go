// internal/browser/keys.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
)

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"backspace":  kb.Backspace,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"delete":     kb.Delete,
	"arrowdown":  kb.ArrowDown,
	"arrowup":    kb.ArrowUp,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pagedown":   kb.PageDown,
	"pageup":     kb.PageUp,
	"space":      " ",
}

var modifierKeys = map[string]input.Modifier{
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"meta":    input.ModifierMeta,
	"command": input.ModifierMeta,
	"alt":     input.ModifierAlt,
	"shift":   input.ModifierShift,
}

// parseChord splits "Control+A" into the key to send and its modifiers.
// Letters under a modifier are sent lowercase so that the browser sees the
// same key code a keyboard produces.
func parseChord(chord string) (string, []input.Modifier, error) {
	parts := strings.Split(chord, "+")
	key := parts[len(parts)-1]
	if key == "" {
		return "", nil, fmt.Errorf("empty key in %q", chord)
	}

	var mods []input.Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierKeys[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return "", nil, fmt.Errorf("unknown modifier %q in %q", p, chord)
		}
		mods = append(mods, m)
	}

	if named, ok := namedKeys[strings.ToLower(key)]; ok {
		return named, mods, nil
	}
	if len([]rune(key)) != 1 {
		return "", nil, fmt.Errorf("unknown key %q", key)
	}
	if len(mods) > 0 {
		key = strings.ToLower(key)
	}
	return key, mods, nil
}
