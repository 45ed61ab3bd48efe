package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/oracle"
	"github.com/xkilldash9x/uxpilot/internal/tools"
)

const (
	densityArea  = 100_000.0
	noRationale  = "No rationale provided"
	probeSkipped = "Nothing to hover over; the predicted action has no target label."
)

func (e *Executor) perceive(ctx context.Context, rc *RunContext) error {
	snap, err := e.perceiver.Perceive(ctx, rc.Page, rc.RunID)
	if err != nil {
		return fmt.Errorf("perception failed: %w", err)
	}
	rc.Snapshot = snap
	return nil
}

func (e *Executor) generateCandidates(ctx context.Context, rc *RunContext, probe string) error {
	candidates, err := e.oracle.GenerateCandidates(ctx, rc.oracleInput(), probe)
	if err != nil {
		return err
	}
	rc.Candidates = candidates
	return nil
}

// scoreDensity counts candidates and labeled boxes per 100k px of viewport.
func (e *Executor) scoreDensity(rc *RunContext) {
	area := float64(e.opts.ViewportWidth) * float64(e.opts.ViewportHeight)
	if area <= 0 {
		rc.Density = oracle.Density{}
		return
	}
	boxes := 0
	if rc.Snapshot != nil {
		boxes = len(rc.Snapshot.Boxes)
	}
	units := area / densityArea
	rc.Density = oracle.Density{
		CandidatesPer100kPx: float64(len(rc.Candidates.Actions)) / units,
		BoxesPer100kPx:      float64(boxes) / units,
	}
}

func (e *Executor) rank(ctx context.Context, rc *RunContext) error {
	ranking, err := e.oracle.Rank(ctx, rc.oracleInput(), rc.Candidates, rc.Density)
	if err != nil {
		return err
	}
	rc.Ranking = ranking
	return nil
}

// selectAction takes the head of the ranking. With hard dedupe enabled,
// actions that already succeeded in this run are skipped first.
func (e *Executor) selectAction(rc *RunContext) error {
	for _, ranked := range rc.Ranking.Rankings {
		if e.opts.HardDedupe && rc.hasSucceeded(ranked.Action) {
			e.logger.Debug("Skipping action that already succeeded.", zap.String("action", ranked.Action))
			continue
		}
		rc.SelectedAction = ranked.Action
		return nil
	}
	return ErrEmptyRanking
}

func (e *Executor) predict(ctx context.Context, rc *RunContext) error {
	prediction, err := e.oracle.PredictAction(ctx, rc.oracleInput(), rc.SelectedAction)
	if err != nil {
		return err
	}
	rc.Prediction = prediction
	return nil
}

// probe hovers over the predicted target so that tooltips and menus show up
// in a fresh snapshot before the candidates are regenerated.
func (e *Executor) probe(ctx context.Context, rc *RunContext) error {
	if len(rc.Prediction.Args) == 0 {
		rc.ProbeObservation = probeSkipped
		return e.perceive(ctx, rc)
	}

	res := e.dispatcher.Dispatch(ctx, rc.Page, tools.Request{
		RunID:    rc.RunID,
		Action:   tools.ActionHover,
		Args:     rc.Prediction.Args[:1],
		Snapshot: rc.Snapshot,
	})
	rc.ProbeObservation = res.Observation
	if res.Snapshot != nil {
		rc.Snapshot = res.Snapshot
		return nil
	}
	return e.perceive(ctx, rc)
}

// executeTool runs the predicted action and describes it as a step event.
// The event carries the images the prediction was made on.
func (e *Executor) executeTool(ctx context.Context, rc *RunContext) *schemas.StepEvent {
	var beforeRef, imageRef string
	if rc.Snapshot != nil {
		beforeRef, imageRef = rc.Snapshot.Before.Ref, rc.Snapshot.Current.Ref
	}

	res := e.dispatcher.Dispatch(ctx, rc.Page, tools.Request{
		RunID:    rc.RunID,
		Action:   rc.Prediction.Action,
		Args:     rc.Prediction.Args,
		Snapshot: rc.Snapshot,
	})
	rc.Observation = res.Observation
	rc.LastToolFailed = res.Failed
	if res.Snapshot != nil {
		rc.Snapshot = res.Snapshot
	}

	rationale := rc.Prediction.Rationale
	if rationale == "" {
		rationale = noRationale
	}
	args := rc.Prediction.Args
	if args == nil {
		args = []string{}
	}
	return &schemas.StepEvent{
		Step:           rc.Log.NextStep(),
		Action:         rc.Prediction.Action,
		ActionInput:    args,
		Rationale:      rationale,
		BeforeImageRef: beforeRef,
		ImageRef:       imageRef,
		UXSummary:      rc.Candidates.UXNotes,
	}
}

func (e *Executor) appendObservation(rc *RunContext) {
	entry := rc.Log.Append(rc.Observation)
	if !rc.LastToolFailed {
		rc.markSucceeded(rc.SelectedAction)
	}
	observability.ForRun(e.logger, rc.RunID).Debug("Observation recorded.", zap.String("entry", entry.Line()))
}

// verify looks at a fresh snapshot; most tools do not re-perceive.
func (e *Executor) verify(ctx context.Context, rc *RunContext) error {
	if err := e.perceive(ctx, rc); err != nil {
		return err
	}
	verification, err := e.oracle.Verify(ctx, rc.oracleInput())
	if err != nil {
		return err
	}
	rc.Verification = verification
	return nil
}

func (e *Executor) summarize(ctx context.Context, rc *RunContext) error {
	summary, err := e.oracle.Summarize(ctx, rc.oracleInput())
	if err != nil {
		return err
	}
	rc.Summary = summary
	return nil
}
