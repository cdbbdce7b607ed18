package harness

// TraceEvent is one committed event of a run.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Name  string `json:"name"`
	Actor string `json:"actor"`
	// Violations lists "CODE entity" for each violation the event recorded.
	Violations []string `json:"violations,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step and assertion met its expectation.
	Pass bool `json:"pass"`

	// Head is the last committed seq.
	Head int64 `json:"head"`

	// Trace is the committed log in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Cells and Queue are the final rows, rendered for golden comparison.
	Cells []string `json:"cells"`
	Queue []string `json:"queue"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
