// Package tools maps the agent's action identifiers onto browser operations.
// A tool never fails with an error: every problem is reported back as an
// observation so the agent can reason about it on the next cycle.
package tools

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/perception"
)

// Action identifiers understood by the dispatcher.
const (
	ActionClick         = "Click"
	ActionClickAnywhere = "ClickAnywhere"
	ActionType          = "Type"
	ActionScroll        = "Scroll"
	ActionHover         = "Hover"
	ActionSelectText    = "SelectText"
	ActionGoBack        = "GoBack"
	ActionGoogle        = "Google"
	ActionWait          = "Wait"

	// ActionRetry asks for a fresh prediction instead of a browser action.
	ActionRetry = "retry"
)

// ErrorMarker prefixes every observation that reports a failure.
const ErrorMarker = "Error"

const (
	GoogleURL = "https://www.google.com/"

	windowScrollAmount  = 500
	elementScrollAmount = 200
	defaultSettle       = 2 * time.Second
	defaultWait         = 10 * time.Second
	defaultRetries      = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// Definition documents one tool for the prompts.
type Definition struct {
	Name        string
	Args        string
	Description string
}

// Catalog lists the tools in the order they are offered to the oracle.
var Catalog = []Definition{
	{ActionClick, "[Numerical_Label]", "Click the labeled element."},
	{ActionClickAnywhere, "[Numerical_Label]", "Click below the labeled element to close open dropdowns or modals."},
	{ActionType, "[Numerical_Label, Content]", "Clear the labeled field, type the content and submit."},
	{ActionScroll, "[Numerical_Label or WINDOW, up or down]", "Scroll the window or the labeled element."},
	{ActionHover, "[Numerical_Label]", "Hover over the labeled element to reveal tooltips or menus."},
	{ActionSelectText, "[Numerical_Label]", "Select all text inside the labeled element."},
	{ActionGoBack, "", "Navigate back one page."},
	{ActionGoogle, "", "Navigate to google.com."},
	{ActionWait, "", "Wait for the page to finish loading."},
}

// Request is one tool invocation.
type Request struct {
	RunID    string
	Action   string
	Args     []string
	Snapshot *perception.Snapshot
}

// Result is what a tool reports back. Snapshot is set only when the tool
// re-perceived the page.
type Result struct {
	Observation string
	Snapshot    *perception.Snapshot
	Failed      bool
}

// Recorder receives one sample per dispatch.
type Recorder interface {
	ObserveToolDispatch(tool string, failed bool)
}

type toolFunc func(ctx context.Context, d *Dispatcher, page Page, req Request) Result

// Dispatcher owns the tool table. It holds no per-run state.
type Dispatcher struct {
	table     map[string]toolFunc
	refresher Refresher
	recorder  Recorder
	logger    *zap.Logger

	platform     string
	settle       time.Duration
	wait         time.Duration
	retries      uint64
	retryBackoff time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPlatform overrides runtime.GOOS for the select-all chord.
func WithPlatform(goos string) Option {
	return func(d *Dispatcher) { d.platform = goos }
}

// WithDurations overrides the settle delay after hover/select and the fixed
// Wait duration.
func WithDurations(settle, wait time.Duration) Option {
	return func(d *Dispatcher) {
		d.settle = settle
		d.wait = wait
	}
}

// WithTransientRetry overrides how often selector operations are retried
// before they degrade to an observation.
func WithTransientRetry(retries uint64, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		d.retries = retries
		d.retryBackoff = backoff
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher builds the fixed tool table. refresher is used by the tools
// that re-perceive the page.
func NewDispatcher(refresher Refresher, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		refresher:    refresher,
		logger:       logger.Named("tools"),
		platform:     runtime.GOOS,
		settle:       defaultSettle,
		wait:         defaultWait,
		retries:      defaultRetries,
		retryBackoff: defaultRetryBackoff,
	}
	d.table = map[string]toolFunc{
		ActionClick:         click,
		ActionClickAnywhere: clickAnywhere,
		ActionType:          typeText,
		ActionScroll:        scroll,
		ActionHover:         hover,
		ActionSelectText:    selectText,
		ActionGoBack:        goBack,
		ActionGoogle:        toGoogle,
		ActionWait:          wait,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Known reports whether action has a registered tool. The retry sentinel is
// never a tool.
func (d *Dispatcher) Known(action string) bool {
	if action == ActionRetry {
		return false
	}
	_, ok := d.table[action]
	return ok
}

// Dispatch runs the tool for req.Action. It never panics and never returns an
// error; failures come back as an observation containing ErrorMarker.
func (d *Dispatcher) Dispatch(ctx context.Context, page Page, req Request) (res Result) {
	logger := observability.ForRun(d.logger, req.RunID).With(zap.String(observability.FieldTool, req.Action), zap.Strings("args", req.Args))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in tool.", zap.Any("panic", r), zap.Stack("stack"))
			res = failure("%s: %s failed unexpectedly: %v", ErrorMarker, req.Action, r)
		}
		if d.recorder != nil {
			d.recorder.ObserveToolDispatch(req.Action, res.Failed)
		}
	}()

	fn, ok := d.table[req.Action]
	if !ok {
		return failure("%s: unknown action %q", ErrorMarker, req.Action)
	}

	res = fn(ctx, d, page, req)
	logger.Debug("Tool finished.", zap.String("observation", res.Observation), zap.Bool("failed", res.Failed))
	return res
}

func (d *Dispatcher) selectAllChord() string {
	if d.platform == "darwin" {
		return "Meta+A"
	}
	return "Control+A"
}

func observation(format string, args ...interface{}) Result {
	return Result{Observation: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...interface{}) Result {
	return Result{Observation: fmt.Sprintf(format, args...), Failed: true}
}
