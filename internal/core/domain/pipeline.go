package domain

// StageStatus is Stage 1's self-reported completion status.
type StageStatus string

const (
	StageStatusInProgress        StageStatus = "in_progress"
	StageStatusDone              StageStatus = "done"
	StageStatusNeedsClarify      StageStatus = "needs_clarification"
	StageStatusNewRequest        StageStatus = "new_request_detected"
)

// StateSelectorOutput is the result of Stage 1 (event/intent detection),
// after the pipeline has applied acceptance gating on top of the LLM's
// raw answer.
type StateSelectorOutput struct {
	SelectedState    FSMState    `json:"selected_state"`
	Confidence       float64     `json:"confidence"`
	Status           StageStatus `json:"status"`
	OpenItems        []string    `json:"open_items"`
	FulfilledItems   []string    `json:"fulfilled_items"`
	DetectedRequests []string    `json:"detected_requests"`
	ResponseHint     string      `json:"response_hint,omitempty"`

	// Accepted and NextState are derived by the pipeline, not by the LLM:
	// Accepted = Confidence >= threshold && Status in {in_progress, done}.
	Accepted  bool     `json:"accepted"`
	NextState FSMState `json:"next_state"`
}

// ResponseOption is one candidate reply of Stage 2's output.
type ResponseOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ResponseGeneratorOutput is the result of Stage 2 (response generation).
type ResponseGeneratorOutput struct {
	TextContent        string           `json:"text_content"`
	Options            []ResponseOption `json:"options"`
	SuggestedNextState FSMState         `json:"suggested_next_state,omitempty"`
	RequiresHuman      bool             `json:"requires_human_review"`
	Confidence         float64          `json:"confidence"`
	Rationale          string           `json:"rationale"`
}

// DeciderOutput is the master decider's (optional) final arbitration
// between Stage 1 and Stage 2.
type DeciderOutput struct {
	ResponseIndex int     `json:"response_index"`
	ApplyState    bool    `json:"apply_state"`
	Confidence    float64 `json:"confidence"`
}
