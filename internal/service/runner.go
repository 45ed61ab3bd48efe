// File: internal/service/runner.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/browser"
	"github.com/xkilldash9x/uxpilot/internal/graph"
	"github.com/xkilldash9x/uxpilot/internal/observability"
)

// ErrInvalidRequest marks run requests rejected before the browser is
// touched.
var ErrInvalidRequest = errors.New("invalid run request")

// PageSource hands out the shared browser page.
type PageSource interface {
	Acquire(ctx context.Context) (*browser.Page, func(), error)
}

// RunExecutor drives a prepared run to its end.
type RunExecutor interface {
	Run(ctx context.Context, rc *graph.RunContext, emit graph.EmitFunc) (*graph.Outcome, error)
}

// Runner turns run requests into executions on the shared page.
type Runner struct {
	pages        PageSource
	executor     RunExecutor
	defaultSteps int
	logger       *zap.Logger
}

// NewRunner creates a runner. defaultSteps applies to requests that carry no
// max_steps of their own.
func NewRunner(pages PageSource, executor RunExecutor, defaultSteps int, logger *zap.Logger) *Runner {
	return &Runner{
		pages:        pages,
		executor:     executor,
		defaultSteps: defaultSteps,
		logger:       logger.Named("runner"),
	}
}

// Run is a validated request holding the browser page.
type Run struct {
	ctx      *graph.RunContext
	executor RunExecutor
	release  func()
	once     sync.Once
	logger   *zap.Logger
}

// Prepare validates req, waits for the page and opens the starting URL.
// On success the caller owns the page until Release.
func (r *Runner) Prepare(ctx context.Context, req schemas.RunRequest) (*Run, error) {
	if req.MaxSteps == 0 && r.defaultSteps > 0 {
		req.MaxSteps = r.defaultSteps
	}
	rc, err := graph.NewRunContext(req, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	page, release, err := r.pages.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser: %w", err)
	}
	rc.Page = page

	logger := observability.ForRun(r.logger, rc.RunID)
	if req.URL != "" {
		if err := page.Navigate(ctx, req.URL); err != nil {
			release()
			return nil, fmt.Errorf("failed to open starting URL %s: %w", req.URL, err)
		}
		logger.Debug("Opened starting URL.", zap.String("url", req.URL))
	}

	return &Run{ctx: rc, executor: r.executor, release: release, logger: logger}, nil
}

// ID is the run identifier used in image keys and logs.
func (run *Run) ID() string { return run.ctx.RunID }

// Execute drives the run and releases the page when it returns.
func (run *Run) Execute(ctx context.Context, emit graph.EmitFunc) (*graph.Outcome, error) {
	defer run.Release()
	return run.executor.Run(ctx, run.ctx, emit)
}

// Release gives the page back. It may be called more than once.
func (run *Run) Release() {
	run.once.Do(func() {
		run.release()
		run.logger.Debug("Browser page released.")
	})
}
