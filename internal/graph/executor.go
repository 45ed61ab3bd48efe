// Package graph runs the agent's state machine: perceive, propose, rank,
// select, act, verify and finally report.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/oracle"
	"github.com/xkilldash9x/uxpilot/internal/perception"
	"github.com/xkilldash9x/uxpilot/internal/tools"
)

// Run outcomes reported to the Recorder.
const (
	OutcomeAchieved    = "achieved"
	OutcomeNotAchieved = "not_achieved"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

// Perceiver captures the page state.
type Perceiver interface {
	Perceive(ctx context.Context, page perception.Page, runID string) (*perception.Snapshot, error)
}

// ToolDispatcher executes browser actions.
type ToolDispatcher interface {
	Known(action string) bool
	Dispatch(ctx context.Context, page tools.Page, req tools.Request) tools.Result
}

// Recorder receives executor metrics.
type Recorder interface {
	ObserveNode(node string)
	ObserveRun(outcome string)
}

// EventKind distinguishes the events an executor emits.
type EventKind int

const (
	// EventNodeCompleted follows every node execution.
	EventNodeCompleted EventKind = iota
	// EventSummaryStarted precedes the summarize node.
	EventSummaryStarted
)

// Event is emitted synchronously by the executor. Step is set only when an
// execute-tool node completes.
type Event struct {
	Kind  EventKind
	Node  NodeID
	Steps int
	Step  *schemas.StepEvent
}

// EmitFunc consumes events. It must not block for long; the executor waits
// for it.
type EmitFunc func(Event)

// Outcome is the result of a run that reached the terminal node.
type Outcome struct {
	RunID    string
	Answer   string
	Achieved bool
	Steps    int
	Retries  int
}

// Options tunes an Executor.
type Options struct {
	// ViewportWidth and ViewportHeight size the density metric.
	ViewportWidth  int
	ViewportHeight int
	// HardDedupe drops ranked actions that already succeeded in the run.
	HardDedupe bool
}

// Executor walks the run graph. It is safe to share between runs; all run
// state lives in the RunContext.
type Executor struct {
	oracle     oracle.Oracle
	perceiver  Perceiver
	dispatcher ToolDispatcher
	recorder   Recorder
	opts       Options
	logger     *zap.Logger
}

// NewExecutor wires the collaborators of a run.
func NewExecutor(o oracle.Oracle, p Perceiver, d ToolDispatcher, logger *zap.Logger, opts Options) *Executor {
	return &Executor{
		oracle:     o,
		perceiver:  p,
		dispatcher: d,
		opts:       opts,
		logger:     logger.Named("graph"),
	}
}

// SetRecorder attaches a metrics recorder.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// Run drives rc from the entry node to the terminal node. Any returned
// error is fatal for the run.
func (e *Executor) Run(ctx context.Context, rc *RunContext, emit EmitFunc) (*Outcome, error) {
	if rc.Page == nil {
		e.observeRun(OutcomeFailed)
		return nil, ErrBrowserUnavailable
	}
	if emit == nil {
		emit = func(Event) {}
	}
	budget := rc.MaxSteps
	if budget <= 0 {
		budget = schemas.DefaultMaxSteps
	}

	logger := observability.ForRun(e.logger, rc.RunID)
	logger.Info("Starting run.",
		zap.String("goal", rc.Goal),
		zap.Int("step_budget", budget),
		zap.Int("max_retries", rc.Retry.Max()))

	node := NodeEntry
	for node != NodeTerminal {
		if err := ctx.Err(); err != nil {
			e.observeRun(OutcomeCancelled)
			return nil, err
		}
		if rc.Steps >= budget {
			logger.Warn("Step budget exhausted.", zap.Int("steps", rc.Steps), zap.String("next_node", string(node)))
			e.observeRun(OutcomeFailed)
			return nil, fmt.Errorf("%w: %d node executions", ErrStepBudgetExceeded, budget)
		}

		if node == NodeSummarize {
			emit(Event{Kind: EventSummaryStarted, Node: node, Steps: rc.Steps})
		}

		start := time.Now()
		next, step, err := e.execute(ctx, rc, node)
		rc.Steps++
		if err != nil {
			logger.Error("Node execution failed.",
				zap.String(observability.FieldNode, string(node)),
				zap.Int(observability.FieldStep, rc.Steps),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.observeRun(OutcomeCancelled)
			} else {
				e.observeRun(OutcomeFailed)
			}
			return nil, fmt.Errorf("node %s failed: %w", node, err)
		}
		logger.Debug("Node execution completed.",
			zap.String(observability.FieldNode, string(node)),
			zap.Int(observability.FieldStep, rc.Steps),
			zap.String("next", string(next)),
			zap.Duration("duration", time.Since(start)))

		if e.recorder != nil {
			e.recorder.ObserveNode(string(node))
		}
		emit(Event{Kind: EventNodeCompleted, Node: node, Steps: rc.Steps, Step: step})
		node = next
	}

	outcome := &Outcome{
		RunID:    rc.RunID,
		Answer:   rc.Summary,
		Achieved: rc.Verification.IsAchieved,
		Steps:    rc.Steps,
		Retries:  rc.Retry.Count(),
	}
	if outcome.Achieved {
		e.observeRun(OutcomeAchieved)
	} else {
		e.observeRun(OutcomeNotAchieved)
	}
	logger.Info("Run finished.",
		zap.Bool("achieved", outcome.Achieved),
		zap.Int("steps", outcome.Steps),
		zap.Int("retries", outcome.Retries))
	return outcome, nil
}

// execute runs one node and resolves its successor.
func (e *Executor) execute(ctx context.Context, rc *RunContext, node NodeID) (NodeID, *schemas.StepEvent, error) {
	var (
		step *schemas.StepEvent
		err  error
	)

	switch node {
	case NodeEntry:
		err = e.perceive(ctx, rc)
	case NodeGenerateCandidates:
		err = e.generateCandidates(ctx, rc, "")
	case NodeScoreDensity:
		e.scoreDensity(rc)
	case NodeRank, NodeReRank:
		err = e.rank(ctx, rc)
	case NodeSelect, NodeReSelect:
		err = e.selectAction(rc)
	case NodeExecuteSubgoal:
		err = e.predict(ctx, rc)
	case NodeProbe:
		err = e.probe(ctx, rc)
	case NodeRegenerateCandidates:
		err = e.generateCandidates(ctx, rc, rc.ProbeObservation)
	case NodeDispatch:
		if err = e.predict(ctx, rc); err != nil {
			return "", nil, err
		}
		next, berr := dispatchTarget(e.dispatchBranch(rc))
		return next, nil, berr
	case NodeExecuteTool:
		step = e.executeTool(ctx, rc)
	case NodeAppendObservation:
		e.appendObservation(rc)
	case NodeVerifyGoal:
		if err = e.verify(ctx, rc); err != nil {
			return "", nil, err
		}
		next, berr := verifyTarget(verifyBranch(rc))
		return next, nil, berr
	case NodeRetry:
		rc.Retry.Increment()
	case NodeSummarize:
		err = e.summarize(ctx, rc)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownNode, node)
	}
	if err != nil {
		return "", nil, err
	}

	next, ok := edges[node]
	if !ok {
		return "", nil, fmt.Errorf("%w: no transition from %q", ErrUnknownNode, node)
	}
	return next, step, nil
}

// dispatchBranch is branch 1: only an action with a registered tool goes on
// to execution.
func (e *Executor) dispatchBranch(rc *RunContext) dispatchRoute {
	action := rc.Prediction.Action
	if action == tools.ActionRetry || !e.dispatcher.Known(action) {
		return routeRepredict
	}
	return routeExecute
}

// verifyBranch is branch 2.
func verifyBranch(rc *RunContext) verifyRoute {
	switch {
	case rc.Verification.IsAchieved:
		return routeAchieved
	case rc.Retry.CanRetry():
		return routeRetry
	default:
		return routeExhausted
	}
}

func (e *Executor) observeRun(outcome string) {
	if e.recorder != nil {
		e.recorder.ObserveRun(outcome)
	}
}
