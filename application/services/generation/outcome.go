package generation

// OutcomeKind classifies how a generation run ended
type OutcomeKind string

const (
	OutcomeSucceeded           OutcomeKind = "succeeded"
	OutcomeConnectionsRequired OutcomeKind = "connections_required"
	OutcomeContentRequired     OutcomeKind = "content_required"
	OutcomeQuotaExceeded       OutcomeKind = "quota_exceeded"
	OutcomeFailed              OutcomeKind = "failed"
)

// Outcome is the result of a generation, regeneration or image edit.
// Exactly one kind is reported; quota exhaustion is never also a failure.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	OutputIDs []string    `json:"outputIds,omitempty"`
	// Completed counts finished iterations, including ones that yielded no content
	Completed int    `json:"completed"`
	Requested int    `json:"requested"`
	Message   string `json:"message,omitempty"`
	Err       error  `json:"-"`
}

// Succeeded reports whether the run produced its outputs
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSucceeded
}
