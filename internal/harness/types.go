package harness

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step         int               `json:"step"`
	Name         string            `json:"name,omitempty"`
	Op           string            `json:"op,omitempty"`
	Query        string            `json:"query"`
	SQL          map[string]string `json:"sql,omitempty"` // keyed by dialect
	Params       []string          `json:"params,omitempty"`
	Data         any               `json:"data,omitempty"`
	Count        *int64            `json:"count,omitempty"`
	RowsAffected int64             `json:"rows_affected,omitempty"`
	LastInsertID int64             `json:"last_insert_id,omitempty"` // add steps only
	Error        string            `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
