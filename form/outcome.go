package form

// OutcomeStatus tags an Outcome.
type OutcomeStatus int

const (
	OutcomePending OutcomeStatus = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of one submission: Pending, Succeeded(Bio) or Failed(Err).
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Bio    *GeneratedBio `json:"bio,omitempty"`
	Err    *SubmitError  `json:"error,omitempty"`
}

func Pending() Outcome { return Outcome{Status: OutcomePending} }

func Succeeded(bio GeneratedBio) Outcome {
	return Outcome{Status: OutcomeSucceeded, Bio: &bio}
}

func Failed(err *SubmitError) Outcome {
	return Outcome{Status: OutcomeFailed, Err: err}
}

// Terminal reports whether the outcome is Succeeded or Failed.
func (o Outcome) Terminal() bool {
	return o.Status == OutcomeSucceeded || o.Status == OutcomeFailed
}
