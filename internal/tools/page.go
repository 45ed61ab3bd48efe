package tools

import (
	"context"
	"errors"

	"github.com/xkilldash9x/uxpilot/internal/perception"
)

// ErrElementGone is returned by selector operations when the selector no
// longer matches anything. Tools do not retry it.
var ErrElementGone = errors.New("element is no longer on the page")

// Page is the browser surface the tools drive. Coordinates are CSS pixels
// relative to the viewport.
type Page interface {
	perception.Page

	ClickAt(ctx context.Context, x, y float64) error
	MoveMouse(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, x, y, deltaX, deltaY float64) error
	HoverSelector(ctx context.Context, selector string) error
	ClickSelector(ctx context.Context, selector string) error
	// Press sends a key or a chord such as "Control+A".
	Press(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	URL(ctx context.Context) (string, error)
}

// Refresher re-perceives the page after a tool changed it.
type Refresher interface {
	Perceive(ctx context.Context, page perception.Page, runID string) (*perception.Snapshot, error)
}
