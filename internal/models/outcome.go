package models

// ItemFailure identifies one failed item within a best-effort fan-out.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PartialOutcome reports the result of a settle-all fan-out. Failures are
// recorded instead of aborting the surrounding operation.
type PartialOutcome struct {
	Total    int           `json:"total"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// Ok reports whether every item succeeded.
func (o PartialOutcome) Ok() bool {
	return len(o.Failures) == 0
}
