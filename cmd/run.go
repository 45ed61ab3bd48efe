// File: cmd/run.go
package cmd

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/graph"
	"github.com/xkilldash9x/uxpilot/internal/observability"
	"github.com/xkilldash9x/uxpilot/internal/service"
)

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		req         schemas.RunRequest
		attrs       schemas.Attributes
		groundTruth schemas.GroundTruth
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one goal against the browser and print events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-steps") {
				cfg.SetAgentStepBudget(req.MaxSteps)
			}

			req.Attributes = &attrs
			if groundTruth.Description != "" || groundTruth.Image != "" {
				req.GroundTruth = &groundTruth
			}

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			run, err := components.Runner.Prepare(ctx, req)
			if err != nil {
				return err
			}
			logger.Info("Run started", zap.String(observability.FieldRunID, run.ID()), zap.String("goal", req.GoalText()))

			out := newJSONLines(cmd.OutOrStdout())
			outcome, err := run.Execute(ctx, out.emit)
			if err != nil {
				out.write(schemas.ErrorEvent{Error: err.Error()})
				return err
			}
			achieved := outcome.Achieved
			out.write(schemas.StatusEvent{Type: schemas.EventFinal, Answer: outcome.Answer, Achieved: &achieved})
			return out.err
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&req.Query, "goal", "g", "", "the goal the simulated user pursues (required)")
	f.StringVar(&req.URL, "url", "", "page to open before the run")
	f.StringVar(&req.Title, "title", "", "persona title, e.g. \"first-time shopper\"")
	f.IntVar(&req.MaxSteps, "max-steps", 0, "node execution budget (default agent.step_budget)")
	f.Float64Var(&attrs.Patience, "patience", 0, "persona patience: 0, 0.5 or 1")
	f.Float64Var(&attrs.ProductFamiliarity, "familiarity", 0, "persona product familiarity in [0,1]")
	f.Float64Var(&attrs.TechSavviness, "savviness", 0, "persona technical savviness in [0,1]")
	f.StringVar(&groundTruth.Description, "expect", "", "description of the page once the goal is reached")
	f.StringVar(&groundTruth.Image, "expect-image", "", "URL or data URI of the expected end state")
	_ = runCmd.MarkFlagRequired("goal")
	return runCmd
}

// jsonLines prints one JSON document per event.
type jsonLines struct {
	mu  sync.Mutex
	enc *jsoniter.Encoder
	err error
}

func newJSONLines(w io.Writer) *jsonLines {
	return &jsonLines{enc: jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)}
}

func (j *jsonLines) emit(ev graph.Event) {
	switch {
	case ev.Step != nil:
		j.write(ev.Step)
	case ev.Kind == graph.EventSummaryStarted:
		j.write(schemas.StatusEvent{Type: schemas.EventGeneratingSummary})
	}
}

func (j *jsonLines) write(v interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	if err := j.enc.Encode(v); err != nil {
		j.err = fmt.Errorf("failed to write event: %w", err)
	}
}
