// Package oracle defines the decision-making collaborator of a run and an
// implementation backed by a language model.
package oracle

import (
	"context"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/perception"
)

// Oracle answers the questions the graph executor asks on every cycle. The
// methods never fail on malformed model output; such output degrades to the
// zero value of the result. Returned errors are transport or context
// failures and end the run.
type Oracle interface {
	// GenerateCandidates proposes the next possible actions. probe carries
	// what was learned by hovering over the intended target, or is empty.
	GenerateCandidates(ctx context.Context, in Input, probe string) (Candidates, error)
	// Rank orders the candidates by how well they serve the goal.
	Rank(ctx context.Context, in Input, candidates Candidates, density Density) (Ranking, error)
	// PredictAction chooses one concrete tool call that carries out subgoal.
	PredictAction(ctx context.Context, in Input, subgoal string) (Prediction, error)
	// Verify decides whether the goal has been reached.
	Verify(ctx context.Context, in Input) (Verification, error)
	// Summarize writes the UX heuristic report of the run.
	Summarize(ctx context.Context, in Input) (string, error)
}

// Persona shapes how the oracle behaves.
type Persona struct {
	Title      string
	Attributes schemas.Attributes
}

// Input is the shared context of every oracle call.
type Input struct {
	Goal         string
	Persona      Persona
	Snapshot     *perception.Snapshot
	Observations string
	GroundTruth  *schemas.GroundTruth
}

// Candidate is one proposed next step, described in plain language.
type Candidate struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// Candidates is the output of candidate generation. UXNotes holds the
// oracle's remarks on the usability of the current page.
type Candidates struct {
	Actions []Candidate `json:"actions"`
	UXNotes string      `json:"ux_notes"`
}

// Density is the deterministic metadata the ranker receives about how
// crowded the page and the candidate list are.
type Density struct {
	CandidatesPer100kPx float64 `json:"candidates_per_100k_px"`
	BoxesPer100kPx      float64 `json:"boxes_per_100k_px"`
}

// RankedAction pairs a candidate description with its alignment to the goal.
type RankedAction struct {
	Action        string  `json:"action"`
	GoalAlignment float64 `json:"goal_alignment"`
}

// Ranking orders candidates. Only the head is consumed; ties keep the
// order the oracle produced. Confidence labels such as "high" are mapped
// onto [0, 1].
type Ranking struct {
	Rankings   []RankedAction `json:"rankings"`
	Confidence float64        `json:"confidence"`
}

// Prediction is a concrete tool call.
type Prediction struct {
	Action    string   `json:"action"`
	Args      []string `json:"args"`
	Rationale string   `json:"rationale"`
}

// Verification is the verdict on the goal.
type Verification struct {
	IsAchieved     bool   `json:"is_achieved"`
	CurrentState   string `json:"current_state"`
	VisualEvidence string `json:"visual_evidence"`
	Notes          string `json:"notes"`
}
