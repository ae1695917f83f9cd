package models

import "time"

// MergeSubmission is enqueued by the controller when a worker finishes,
// and dequeued by the GreenBranchManager in submission order.
type MergeSubmission struct {
	UnitID        string         `json:"unit_id"`
	WorkerBranchRef string       `json:"worker_branch_ref"`
	Result        ResultEnvelope `json:"result"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

// ErrorKind classifies why a worker failed, mirroring the error
// taxonomy the controller branches on.
type ErrorKind string

const (
	ErrorNone      ErrorKind = ""
	ErrorTransient ErrorKind = "transient"
	ErrorContent   ErrorKind = "content"
	ErrorIntegrity ErrorKind = "integrity"
	ErrorBudget    ErrorKind = "budget"
	ErrorParse     ErrorKind = "parse"
)

// ResultEnvelope is the worker's structured output, parsed from the
// MC_RESULT block in its stdout.
type ResultEnvelope struct {
	ExitStatus     int               `json:"exit_status"`
	FilesChanged   []string          `json:"files_changed,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	CostUSD        float64           `json:"cost_usd"`
	Tokens         int64             `json:"tokens"`
	MCResultRaw    string            `json:"mc_result_raw,omitempty"`
	MCResultFields map[string]string `json:"mc_result_fields,omitempty"`
	Discoveries    []string          `json:"discoveries,omitempty"`
	ContextItems   []string          `json:"context_items,omitempty"`
	ErrorKind      ErrorKind         `json:"error_kind,omitempty"`
	WorkerDuration time.Duration     `json:"worker_duration"`
}

// Succeeded reports whether the worker considers its own run successful.
func (r ResultEnvelope) Succeeded() bool {
	return r.ExitStatus == 0 && r.ErrorKind == ErrorNone
}

// ReviewRecord is the outcome of an asynchronous, best-effort diff
// review. Its absence never blocks progress.
type ReviewRecord struct {
	UnitID    string    `json:"unit_id"`
	Alignment int       `json:"alignment"`
	Approach  int       `json:"approach"`
	Tests     int       `json:"tests"`
	Notes     string    `json:"notes,omitempty"`
	Parsed    bool      `json:"parsed"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the 1-10 score fields are in range. A record
// with Parsed=false is exempt since its scores are meaningless.
func (r ReviewRecord) Valid() bool {
	if !r.Parsed {
		return true
	}
	inRange := func(v int) bool { return v >= 1 && v <= 10 }
	return inRange(r.Alignment) && inRange(r.Approach) && inRange(r.Tests)
}
