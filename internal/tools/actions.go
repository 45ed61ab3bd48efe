package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/perception"
)

// resolveBox parses a label argument and looks it up in the current snapshot.
func resolveBox(snap *perception.Snapshot, arg string) (perception.BoundingBox, *Result) {
	label := strings.Trim(strings.TrimSpace(arg), "[]")
	idx, err := strconv.Atoi(label)
	if err != nil {
		r := failure("%s: %q is not a bounding box label", ErrorMarker, arg)
		return perception.BoundingBox{}, &r
	}
	box, ok := snap.Box(idx)
	if !ok {
		count := 0
		if snap != nil {
			count = len(snap.Boxes)
		}
		r := failure("%s: no bbox for label %d (%d boxes visible)", ErrorMarker, idx, count)
		return perception.BoundingBox{}, &r
	}
	return box, nil
}

// transient retries op with a fixed backoff for errors such as an element
// that is not interactable yet. A vanished element fails at once.
func (d *Dispatcher) transient(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryBackoff), d.retries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, ErrElementGone) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// refresh re-perceives the page. A failed refresh keeps the tool's
// observation and drops the stale boxes.
func (d *Dispatcher) refresh(ctx context.Context, page Page, req Request, obs string) Result {
	if d.refresher == nil {
		return observation("%s", obs)
	}
	snap, err := d.refresher.Perceive(ctx, page, req.RunID)
	if err != nil {
		observability.ForRun(d.logger, req.RunID).Warn("Failed to refresh perception after tool.", zap.String(observability.FieldTool, req.Action), zap.Error(err))
		return Result{
			Observation: fmt.Sprintf("%s (%s: the page could not be re-read: %v)", obs, ErrorMarker, err),
			Snapshot:    &perception.Snapshot{},
			Failed:      true,
		}
	}
	return Result{Observation: obs, Snapshot: snap}
}

func click(ctx context.Context, _ *Dispatcher, page Page, req Request) Result {
	if len(req.Args) != 1 {
		return failure("%s: failed to click bounding box labeled as number %v", ErrorMarker, req.Args)
	}
	box, bad := resolveBox(req.Snapshot, req.Args[0])
	if bad != nil {
		return *bad
	}
	if err := page.ClickAt(ctx, box.X, box.Y); err != nil {
		return failure("%s: clicking %d on %s failed: %v", ErrorMarker, box.Index, box.Text, err)
	}
	return observation("I am clicking %d on %s", box.Index, box.Text)
}

func clickAnywhere(ctx context.Context, _ *Dispatcher, page Page, req Request) Result {
	if len(req.Args) != 1 {
		return failure("%s: failed to click bounding box labeled as number %v", ErrorMarker, req.Args)
	}
	box, bad := resolveBox(req.Snapshot, req.Args[0])
	if bad != nil {
		return *bad
	}
	// 50px below the element's bottom edge, offset by one more element height.
	farY := box.Y + box.Height + box.Height + 50
	if err := page.ClickAt(ctx, box.X, farY); err != nil {
		return failure("%s: clicking below %s (%d) failed: %v", ErrorMarker, box.Text, box.Index, err)
	}
	return observation("I have clicked on %s (%d) to close any open dropdowns/modals", box.Text, box.Index)
}

func typeText(ctx context.Context, d *Dispatcher, page Page, req Request) Result {
	if len(req.Args) != 2 {
		return failure("%s: failed to type in element from bounding box labeled as number %v", ErrorMarker, req.Args)
	}
	box, bad := resolveBox(req.Snapshot, req.Args[0])
	if bad != nil {
		return *bad
	}
	text := req.Args[1]

	steps := []func() error{
		func() error { return page.ClickAt(ctx, box.X, box.Y) },
		func() error { return page.Press(ctx, d.selectAllChord()) },
		func() error { return page.Press(ctx, "Backspace") },
		func() error { return page.TypeText(ctx, text) },
		func() error { return page.Press(ctx, "Enter") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return failure("%s: typing into %s failed: %v", ErrorMarker, box.Text, err)
		}
	}
	return observation("I am typing %s and submitting into %s", text, box.Text)
}

func scroll(ctx context.Context, _ *Dispatcher, page Page, req Request) Result {
	if len(req.Args) != 2 {
		return failure("%s: failed to scroll due to incorrect arguments.", ErrorMarker)
	}
	target, direction := strings.TrimSpace(req.Args[0]), strings.TrimSpace(req.Args[1])
	up := strings.EqualFold(direction, "up")

	if strings.EqualFold(target, "WINDOW") {
		amount := windowScrollAmount
		if up {
			amount = -amount
		}
		if err := page.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d)", amount), nil); err != nil {
			return failure("%s: scrolling %s in window failed: %v", ErrorMarker, direction, err)
		}
		return observation("I am scrolling %s in window", direction)
	}

	box, bad := resolveBox(req.Snapshot, target)
	if bad != nil {
		return *bad
	}
	amount := float64(elementScrollAmount)
	if up {
		amount = -amount
	}
	if err := page.MoveMouse(ctx, box.X, box.Y); err != nil {
		return failure("%s: scrolling %s in %s failed: %v", ErrorMarker, direction, box.Text, err)
	}
	if err := page.Wheel(ctx, box.X, box.Y, 0, amount); err != nil {
		return failure("%s: scrolling %s in %s failed: %v", ErrorMarker, direction, box.Text, err)
	}
	return observation("I am scrolling %s in %s", direction, box.Text)
}

func hover(ctx context.Context, d *Dispatcher, page Page, req Request) Result {
	if len(req.Args) < 1 {
		return failure("%s: failed to hover on bounding box labeled as number %v", ErrorMarker, req.Args)
	}
	box, bad := resolveBox(req.Snapshot, req.Args[0])
	if bad != nil {
		return *bad
	}
	if err := d.transient(ctx, func() error { return page.HoverSelector(ctx, box.Selector) }); err != nil {
		return failure("%s: hovering on %s (%d) failed: %v", ErrorMarker, box.Text, box.Index, err)
	}
	if err := page.Sleep(ctx, d.settle); err != nil {
		return failure("%s: interrupted while waiting after hover: %v", ErrorMarker, err)
	}
	return d.refresh(ctx, page, req, fmt.Sprintf("I have hovered on %s (%d)", box.Text, box.Index))
}

func selectText(ctx context.Context, d *Dispatcher, page Page, req Request) Result {
	if len(req.Args) < 1 {
		return failure("%s: failed to select text from bounding box labeled as number %v", ErrorMarker, req.Args)
	}
	box, bad := resolveBox(req.Snapshot, req.Args[0])
	if bad != nil {
		return *bad
	}
	if err := d.transient(ctx, func() error { return page.ClickSelector(ctx, box.Selector) }); err != nil {
		return failure("%s: selecting text in %s failed: %v", ErrorMarker, box.Text, err)
	}
	if err := page.Press(ctx, d.selectAllChord()); err != nil {
		return failure("%s: selecting text in %s failed: %v", ErrorMarker, box.Text, err)
	}
	if err := page.Sleep(ctx, d.settle); err != nil {
		return failure("%s: interrupted while waiting after selection: %v", ErrorMarker, err)
	}
	return d.refresh(ctx, page, req, fmt.Sprintf("I have selected %s", box.Text))
}

func goBack(ctx context.Context, _ *Dispatcher, page Page, _ Request) Result {
	if err := page.GoBack(ctx); err != nil {
		return failure("%s: navigating back failed: %v", ErrorMarker, err)
	}
	url, err := page.URL(ctx)
	if err != nil {
		return failure("%s: navigated back but the current URL is unknown: %v", ErrorMarker, err)
	}
	return observation("I navigated back a page to %s.", url)
}

func toGoogle(ctx context.Context, _ *Dispatcher, page Page, _ Request) Result {
	if err := page.Navigate(ctx, GoogleURL); err != nil {
		return failure("%s: navigating to google.com failed: %v", ErrorMarker, err)
	}
	return observation("I have navigated to google.com.")
}

func wait(ctx context.Context, d *Dispatcher, page Page, _ Request) Result {
	if err := page.Sleep(ctx, d.wait); err != nil {
		return failure("%s: waiting was interrupted: %v", ErrorMarker, err)
	}
	return observation("I have waited for %ds.", int(d.wait.Seconds()))
}
