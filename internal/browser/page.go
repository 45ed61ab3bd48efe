// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/uxpilot/internal/tools"
)

var _ tools.Page = (*Page)(nil)

// Page drives one Chrome tab through the DevTools protocol. Every call runs
// against the tab context combined with the caller's context and bounded by a
// per-operation timeout.
type Page struct {
	tab               context.Context
	actionTimeout     time.Duration
	navigationTimeout time.Duration
}

func newPage(tab context.Context, actionTimeout, navigationTimeout time.Duration) *Page {
	return &Page{tab: tab, actionTimeout: actionTimeout, navigationTimeout: navigationTimeout}
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.tab == nil {
		return errors.New("browser page is not connected")
	}
	opCtx, cancel := combineContext(p.tab, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(opCtx, actions...)
}

// Evaluate runs script in the page and decodes its result into res, which
// may be nil.
func (p *Page) Evaluate(ctx context.Context, script string, res interface{}) error {
	return p.run(ctx, p.actionTimeout, chromedp.Evaluate(script, res))
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.actionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Sleep waits for d unless ctx ends first.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	return p.run(ctx, p.actionTimeout, chromedp.MouseClickXY(x, y))
}

func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	return p.run(ctx, p.actionTimeout, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (p *Page) Wheel(ctx context.Context, x, y, deltaX, deltaY float64) error {
	return p.run(ctx, p.actionTimeout,
		input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(deltaX).WithDeltaY(deltaY))
}

// selectorTimeout bounds one selector attempt: a quarter of the action
// timeout, at least a second, at most the action timeout. Zero means
// unbounded.
func selectorTimeout(action time.Duration) time.Duration {
	if action <= 0 {
		return action
	}
	t := action / 4
	if t < time.Second {
		t = time.Second
	}
	if t > action {
		t = action
	}
	return t
}

// requireNode fails with tools.ErrElementGone when selector matches nothing.
// The lookup does not wait for the node to appear.
func (p *Page) requireNode(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := p.run(ctx, p.actionTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", tools.ErrElementGone, selector)
	}
	return nil
}

// HoverSelector scrolls the element into view and moves the mouse to the
// centre of its content box.
func (p *Page) HoverSelector(ctx context.Context, selector string) error {
	if err := p.requireNode(ctx, selector); err != nil {
		return err
	}
	var box *dom.BoxModel
	err := p.run(ctx, selectorTimeout(p.actionTimeout),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Dimensions(selector, &box, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			x, y, err := quadCenter(box)
			if err != nil {
				return fmt.Errorf("hover %s: %w", selector, err)
			}
			return chromedp.MouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
	return err
}

func (p *Page) ClickSelector(ctx context.Context, selector string) error {
	if err := p.requireNode(ctx, selector); err != nil {
		return err
	}
	return p.run(ctx, selectorTimeout(p.actionTimeout), chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Press sends a single key or a chord such as "Control+A".
func (p *Page) Press(ctx context.Context, key string) error {
	k, mods, err := parseChord(key)
	if err != nil {
		return err
	}
	return p.run(ctx, p.actionTimeout, chromedp.KeyEvent(k, chromedp.KeyModifiers(mods...)))
}

// TypeText types into whatever element has focus.
func (p *Page) TypeText(ctx context.Context, text string) error {
	return p.run(ctx, p.actionTimeout, chromedp.KeyEvent(text))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.navigationTimeout, chromedp.Navigate(url))
}

func (p *Page) GoBack(ctx context.Context) error {
	return p.run(ctx, p.navigationTimeout, chromedp.NavigateBack())
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.actionTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// quadCenter averages the four corners of the content quad.
func quadCenter(box *dom.BoxModel) (float64, float64, error) {
	if box == nil || len(box.Content) < 8 {
		return 0, 0, errors.New("element has no layout box")
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += box.Content[i]
		y += box.Content[i+1]
	}
	return x / 4, y / 4, nil
}
