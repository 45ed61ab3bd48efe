package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/uxpilot/internal/oracle"
	"github.com/xkilldash9x/uxpilot/internal/perception"
	"github.com/xkilldash9x/uxpilot/internal/tools"
)

// scriptedOracle plays back verdicts and predictions in call order.
type scriptedOracle struct {
	verdicts    []bool
	predictions []oracle.Prediction
	rankings    []oracle.Ranking
	uxNotes     string

	verifyCalls  int
	predictCalls int
	rankCalls    int
	summaryCalls int

	subgoals     []string
	probes       []string
	densities    []oracle.Density
	verifyInputs []oracle.Input

	verifyErr error
}

func (o *scriptedOracle) GenerateCandidates(_ context.Context, _ oracle.Input, probe string) (oracle.Candidates, error) {
	o.probes = append(o.probes, probe)
	return oracle.Candidates{
		Actions: []oracle.Candidate{{Action: "Click element 0, Settings"}, {Action: "Click element 1, Appearance"}},
		UXNotes: o.uxNotes,
	}, nil
}

func (o *scriptedOracle) Rank(_ context.Context, _ oracle.Input, c oracle.Candidates, d oracle.Density) (oracle.Ranking, error) {
	o.densities = append(o.densities, d)
	i := o.rankCalls
	o.rankCalls++
	if len(o.rankings) > 0 {
		if i >= len(o.rankings) {
			i = len(o.rankings) - 1
		}
		return o.rankings[i], nil
	}
	r := oracle.Ranking{Confidence: 0.9}
	for _, a := range c.Actions {
		r.Rankings = append(r.Rankings, oracle.RankedAction{Action: a.Action, GoalAlignment: 0.5})
	}
	return r, nil
}

func (o *scriptedOracle) PredictAction(_ context.Context, _ oracle.Input, subgoal string) (oracle.Prediction, error) {
	o.subgoals = append(o.subgoals, subgoal)
	i := o.predictCalls
	o.predictCalls++
	if i < len(o.predictions) {
		return o.predictions[i], nil
	}
	return oracle.Prediction{Action: tools.ActionClick, Args: []string{"0"}, Rationale: "I am clicking settings"}, nil
}

func (o *scriptedOracle) Verify(_ context.Context, in oracle.Input) (oracle.Verification, error) {
	o.verifyInputs = append(o.verifyInputs, in)
	if o.verifyErr != nil {
		return oracle.Verification{}, o.verifyErr
	}
	i := o.verifyCalls
	o.verifyCalls++
	if i < len(o.verdicts) {
		return oracle.Verification{IsAchieved: o.verdicts[i]}, nil
	}
	return oracle.Verification{}, nil
}

func (o *scriptedOracle) Summarize(context.Context, oracle.Input) (string, error) {
	o.summaryCalls++
	return "Rating: 4/5", nil
}

// countingPerceiver hands out numbered snapshots.
type countingPerceiver struct {
	calls int
	err   error
}

func (p *countingPerceiver) Perceive(context.Context, perception.Page, string) (*perception.Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.calls++
	return &perception.Snapshot{
		Before:  perception.Image{Ref: fmt.Sprintf("http://img/run/before_%d.png", p.calls)},
		Current: perception.Image{Data: []byte("png"), Ref: fmt.Sprintf("http://img/run/img_%d.png", p.calls)},
		Boxes: []perception.BoundingBox{
			{Index: 0, Kind: "button", Text: "Settings"},
			{Index: 1, Kind: "a", Text: "Appearance"},
		},
	}, nil
}

// recordingDispatcher knows the real tool table and reports every call as a
// success.
type recordingDispatcher struct {
	requests []tools.Request
	failing  map[string]bool
}

func (d *recordingDispatcher) Known(action string) bool {
	for _, def := range tools.Catalog {
		if def.Name == action {
			return true
		}
	}
	return false
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ tools.Page, req tools.Request) tools.Result {
	d.requests = append(d.requests, req)
	if d.failing[req.Action] {
		return tools.Result{Observation: tools.ErrorMarker + ": element is gone", Failed: true}
	}
	return tools.Result{Observation: fmt.Sprintf("%s %s", req.Action, strings.Join(req.Args, " "))}
}

func (d *recordingDispatcher) actions() []string {
	var out []string
	for _, r := range d.requests {
		if r.Action != tools.ActionHover {
			out = append(out, r.Action)
		}
	}
	return out
}

type countingRecorder struct {
	nodes    map[string]int
	outcomes []string
}

func (r *countingRecorder) ObserveNode(node string) {
	if r.nodes == nil {
		r.nodes = make(map[string]int)
	}
	r.nodes[node]++
}

func (r *countingRecorder) ObserveRun(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

// nopPage satisfies tools.Page; the fakes above never touch it.
type nopPage struct{}

func (nopPage) Evaluate(context.Context, string, interface{}) error             { return nil }
func (nopPage) Screenshot(context.Context) ([]byte, error)                      { return nil, nil }
func (nopPage) Sleep(context.Context, time.Duration) error                      { return nil }
func (nopPage) ClickAt(context.Context, float64, float64) error                 { return nil }
func (nopPage) MoveMouse(context.Context, float64, float64) error               { return nil }
func (nopPage) Wheel(context.Context, float64, float64, float64, float64) error { return nil }
func (nopPage) HoverSelector(context.Context, string) error                     { return nil }
func (nopPage) ClickSelector(context.Context, string) error                     { return nil }
func (nopPage) Press(context.Context, string) error                             { return nil }
func (nopPage) TypeText(context.Context, string) error                          { return nil }
func (nopPage) Navigate(context.Context, string) error                          { return nil }
func (nopPage) GoBack(context.Context) error                                    { return nil }
func (nopPage) URL(context.Context) (string, error)                             { return "about:blank", nil }
