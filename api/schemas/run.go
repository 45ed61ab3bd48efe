package schemas

import (
	"fmt"
	"strings"
)

// DefaultMaxSteps bounds the number of node executions of a single run when
// the caller does not supply a budget.
const DefaultMaxSteps = 150

// Attributes are the persona traits a caller can attach to a run. All values
// are fractions in [0, 1]; patience is restricted further by the retry
// controller.
type Attributes struct {
	ProductFamiliarity float64 `json:"productFamiliarity"`
	Patience           float64 `json:"patience"`
	TechSavviness      float64 `json:"techSavviness"`
	DomainFamiliarity  float64 `json:"domainFamiliarity,omitempty"`
	IndustryExpertise  float64 `json:"industryExpertise,omitempty"`
}

// GroundTruth optionally describes what the page should look like once the
// goal is reached. Image is a reference (URL or data URI) as supplied by the
// caller.
type GroundTruth struct {
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// RunRequest is the body of POST /api/browser.
type RunRequest struct {
	Query       string       `json:"query"`
	Goal        string       `json:"goal,omitempty"` // Alias for Query.
	MaxSteps    int          `json:"max_steps,omitempty"`
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	GroundTruth *GroundTruth `json:"ground_truth,omitempty"`
	Attributes  *Attributes  `json:"attributes,omitempty"`
}

// GoalText returns the goal, preferring Query over its alias.
func (r RunRequest) GoalText() string {
	if q := strings.TrimSpace(r.Query); q != "" {
		return q
	}
	return strings.TrimSpace(r.Goal)
}

// Normalize fills defaults and rejects requests that cannot start a run.
func (r *RunRequest) Normalize() error {
	if r.GoalText() == "" {
		return fmt.Errorf("query is required")
	}
	if r.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	if r.MaxSteps == 0 {
		r.MaxSteps = DefaultMaxSteps
	}
	if r.Attributes == nil {
		r.Attributes = &Attributes{}
	}
	return nil
}

// SetURLRequest is the body of POST /api/browser/url.
type SetURLRequest struct {
	URL string `json:"url"`
}
