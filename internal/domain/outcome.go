package domain

// OutcomeStatus is the terminal disposition of one submitted question.
type OutcomeStatus string

const (
	// OutcomeCompletedWithData means the answer carries at least one table row.
	OutcomeCompletedWithData OutcomeStatus = "completed-with-data"
	// OutcomeCompletedEmpty means the answer carried no table, narrative, or query text.
	OutcomeCompletedEmpty OutcomeStatus = "completed-empty"
	// OutcomeCompletedNarrativeOnly means the answer carried narrative text but no table rows.
	OutcomeCompletedNarrativeOnly OutcomeStatus = "completed-narrative-only"
	// OutcomeFailed means the question could not be answered.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeTimedOut means the polling budget was exhausted before a terminal status.
	OutcomeTimedOut OutcomeStatus = "timed-out"
)

// Column describes one column of a tabular answer.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryOutcome is the normalized terminal result of a submitted question.
// Rows, Columns, Narrative, and GeneratedQueryText hold display-ready values:
// cells are stringified (null becomes the literal "NULL" marker) and all text
// is HTML-escaped, since it originates from a only-partially-trusted remote
// service.
type QueryOutcome struct {
	Status             OutcomeStatus `json:"status"`
	Rows               [][]string    `json:"rows,omitempty"`
	Columns            []Column      `json:"columns,omitempty"`
	Narrative          string        `json:"narrative,omitempty"`
	GeneratedQueryText string        `json:"generated_query_text,omitempty"`
	Truncated          bool          `json:"truncated,omitempty"`
	ErrorKind          ErrorKind     `json:"error_kind,omitempty"`
	ErrorDetail        string        `json:"error_detail,omitempty"`
}

// Completed reports whether the outcome represents a successful terminal state.
func (o *QueryOutcome) Completed() bool {
	switch o.Status {
	case OutcomeCompletedWithData, OutcomeCompletedEmpty, OutcomeCompletedNarrativeOnly:
		return true
	default:
		return false
	}
}
