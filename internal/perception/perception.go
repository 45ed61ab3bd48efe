// File: internal/perception/perception.go
package perception

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/observability"
)

//go:embed mark_page.js
var markPageScript string

const (
	defaultMarkAttempts = 10
	defaultMarkInterval = 3 * time.Second

	// Image prefixes used for stored screenshots.
	PrefixBefore  = "before_annotated_img"
	PrefixCurrent = "img"
)

// Page is the slice of the browser surface perception needs.
type Page interface {
	Evaluate(ctx context.Context, script string, res interface{}) error
	Screenshot(ctx context.Context) ([]byte, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// ImageSaver persists a screenshot and returns a reference the caller can
// resolve later.
type ImageSaver interface {
	Save(ctx context.Context, runID, prefix string, data []byte) (string, error)
}

// Perceiver annotates the live page and captures it.
type Perceiver struct {
	saver    ImageSaver
	logger   *zap.Logger
	attempts int
	interval time.Duration
}

// Option configures a Perceiver.
type Option func(*Perceiver)

// WithMarkRetry overrides the bounded polling used while the page is still
// loading and markPage() fails.
func WithMarkRetry(attempts int, interval time.Duration) Option {
	return func(p *Perceiver) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if interval >= 0 {
			p.interval = interval
		}
	}
}

// New creates a Perceiver. A nil saver leaves image references empty.
func New(saver ImageSaver, logger *zap.Logger, opts ...Option) *Perceiver {
	p := &Perceiver{
		saver:    saver,
		logger:   logger.Named("perception"),
		attempts: defaultMarkAttempts,
		interval: defaultMarkInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Perceive injects the annotation script, captures the page before and after
// labeling, removes the labels again and stores both images. The returned
// snapshot always replaces the previous one.
//
// Screenshot and storage failures are returned. A page that never becomes
// markable within the retry window yields a snapshot with no boxes.
func (p *Perceiver) Perceive(ctx context.Context, page Page, runID string) (*Snapshot, error) {
	if err := page.Evaluate(ctx, markPageScript, nil); err != nil {
		return nil, fmt.Errorf("failed to inject annotation script: %w", err)
	}

	before, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture page before annotation: %w", err)
	}

	boxes, err := p.mark(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("Page could not be annotated; continuing without bounding boxes.",
			zap.Int("attempts", p.attempts), zap.Error(err))
	}

	current, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture annotated page: %w", err)
	}

	if err := page.Evaluate(ctx, "window.unmarkPage && window.unmarkPage()", nil); err != nil {
		p.logger.Debug("Failed to remove annotation overlay.", zap.Error(err))
	}

	snap := &Snapshot{
		Before:  Image{Data: before},
		Current: Image{Data: current},
		Boxes:   boxes,
	}
	for i := range snap.Boxes {
		snap.Boxes[i].Index = i
	}

	if p.saver != nil {
		if snap.Before.Ref, err = p.saver.Save(ctx, runID, PrefixBefore, before); err != nil {
			return nil, fmt.Errorf("failed to store screenshot: %w", err)
		}
		if snap.Current.Ref, err = p.saver.Save(ctx, runID, PrefixCurrent, current); err != nil {
			return nil, fmt.Errorf("failed to store annotated screenshot: %w", err)
		}
	}

	p.logger.Debug("Page perceived.", zap.String(observability.FieldRunID, runID), zap.Int("boxes", len(snap.Boxes)))
	return snap, nil
}

func (p *Perceiver) mark(ctx context.Context, page Page) ([]BoundingBox, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var boxes []BoundingBox
		err := page.Evaluate(ctx, "window.markPage()", &boxes)
		if err == nil {
			return boxes, nil
		}
		lastErr = err
		p.logger.Debug("markPage failed, page may still be loading.", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == p.attempts {
			break
		}
		if err := page.Sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("markPage did not succeed after %d attempts: %w", p.attempts, lastErr)
}

// Descriptions renders the boxes as the numbered element list the oracle
// reads next to the annotated screenshot.
func Descriptions(boxes []BoundingBox) string {
	lines := make([]string, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, b.Describe())
	}
	return "\nValid Bounding Boxes:\n" + strings.Join(lines, "\n")
}
