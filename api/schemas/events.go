package schemas

// EventType tags the non-step events on the progress stream.
type EventType string

const (
	EventGeneratingSummary EventType = "generating_summary"
	EventFinal             EventType = "final"
)

// StepEvent is emitted after every executed browser action.
type StepEvent struct {
	Step           int      `json:"step"`
	Action         string   `json:"action"`
	ActionInput    []string `json:"action_input"`
	Rationale      string   `json:"rationale"`
	BeforeImageRef string   `json:"before_image_ref"`
	ImageRef       string   `json:"image_ref"`
	UXSummary      string   `json:"ux_summary,omitempty"`
}

// StatusEvent carries the typed, non-step events.
type StatusEvent struct {
	Type     EventType `json:"type"`
	Answer   string    `json:"answer,omitempty"`
	Achieved *bool     `json:"achieved,omitempty"`
}

// ErrorEvent terminates a stream.
type ErrorEvent struct {
	Error string `json:"error"`
}
