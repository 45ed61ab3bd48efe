package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/oracle"
	"github.com/xkilldash9x/uxpilot/internal/perception"
	"github.com/xkilldash9x/uxpilot/internal/retry"
	"github.com/xkilldash9x/uxpilot/internal/runlog"
	"github.com/xkilldash9x/uxpilot/internal/tools"
)

// RunContext is the state of one run. It is owned by a single executor
// invocation and discarded when the run ends.
type RunContext struct {
	RunID       string
	Goal        string
	Persona     oracle.Persona
	GroundTruth *schemas.GroundTruth
	MaxSteps    int
	Page        tools.Page

	Snapshot         *perception.Snapshot
	Candidates       oracle.Candidates
	Density          oracle.Density
	Ranking          oracle.Ranking
	SelectedAction   string
	Prediction       oracle.Prediction
	ProbeObservation string
	Observation      string
	LastToolFailed   bool
	Verification     oracle.Verification
	Log              *runlog.Log
	Retry            *retry.Controller
	Steps            int
	Summary          string

	// succeeded holds the normalized selected actions whose tool call did
	// not fail.
	succeeded map[string]bool
}

// NewRunContext validates a normalized request and prepares the state of a
// run on page. An unsupported patience is rejected here, before anything
// touches the browser.
func NewRunContext(req schemas.RunRequest, page tools.Page) (*RunContext, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	ctrl, err := retry.NewController(req.Attributes.Patience)
	if err != nil {
		return nil, fmt.Errorf("cannot start run: %w", err)
	}

	return &RunContext{
		RunID:       uuid.NewString(),
		Goal:        req.GoalText(),
		Persona:     oracle.Persona{Title: req.Title, Attributes: *req.Attributes},
		GroundTruth: req.GroundTruth,
		MaxSteps:    req.MaxSteps,
		Page:        page,
		Log:         runlog.New(),
		Retry:       ctrl,
		succeeded:   make(map[string]bool),
	}, nil
}

// oracleInput captures what the oracle sees right now.
func (rc *RunContext) oracleInput() oracle.Input {
	return oracle.Input{
		Goal:         rc.Goal,
		Persona:      rc.Persona,
		Snapshot:     rc.Snapshot,
		Observations: rc.Log.String(),
		GroundTruth:  rc.GroundTruth,
	}
}

func (rc *RunContext) markSucceeded(action string) {
	if key := normalizeAction(action); key != "" {
		rc.succeeded[key] = true
	}
}

func (rc *RunContext) hasSucceeded(action string) bool {
	return rc.succeeded[normalizeAction(action)]
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.Join(strings.Fields(action), " "))
}
