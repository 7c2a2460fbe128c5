package models

import "time"

// Outcome classifies the terminal state of a consultation attempt.
type Outcome string

const (
	// OutcomeSuccess means the portal answered and at least one record or
	// field set was extracted and persisted.
	OutcomeSuccess Outcome = "success"

	// OutcomeNotFound means the portal answered authoritatively that the
	// identity has no records. Not an error.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeBlocked means an anti-bot challenge was never cleared within
	// the monitoring window.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeError covers session, network, parse and unexpected failures.
	OutcomeError Outcome = "error"
)

// Method reports which strategy produced the result.
type Method string

const (
	MethodLightweight Method = "http"
	MethodHeavyweight Method = "browser"
	MethodNone        Method = ""
)

// Record is a single extracted row keyed by field name.
type Record map[string]string

// Extraction is what a strategy hands back to the executor: zero or more
// row records plus optional scalar fields (snapshot style sources).
type Extraction struct {
	Records []Record `json:"records,omitempty"`
	Fields  Record   `json:"fields,omitempty"`
	Method  Method   `json:"method"`
}

// Empty reports whether the extraction carries no data at all.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Records) == 0 && len(e.Fields) == 0)
}

// Result is the classified outcome of one consultation.
type Result struct {
	Source    string    `json:"source"`
	Identity  string    `json:"identity"`
	Outcome   Outcome   `json:"outcome"`
	Method    Method    `json:"method,omitempty"`
	Records   []Record  `json:"records,omitempty"`
	Fields    Record    `json:"fields,omitempty"`
	Message   string    `json:"message,omitempty"`
	QueriedAt time.Time `json:"queried_at"`
}
