package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSubmitInFlight is returned when a submit arrives while another one is outstanding.
	ErrSubmitInFlight = errors.New("form: submission already in flight")

	// ErrNotTerminal is returned by Retry outside the Succeeded and Failed states.
	ErrNotTerminal = errors.New("form: no finished submission to retry")

	// ErrUnknownField indicates a field name outside the schema.
	ErrUnknownField = errors.New("form: unknown field")

	// ErrFieldType indicates a value of the wrong Go type for a field.
	ErrFieldType = errors.New("form: wrong value type")
)

// ValidationErrors maps each violated field to one human-readable message.
// An empty map means the draft can be promoted to a GenerationRequest.
type ValidationErrors map[Field]string

func (e ValidationErrors) Error() string {
	fields := e.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "form: invalid draft: " + strings.Join(parts, "; ")
}

// Fields returns the violated fields in schema order, with unknown names sorted last.
func (e ValidationErrors) Fields() []Field {
	order := make(map[Field]int, len(e))
	for i, f := range DefaultSchema().Fields() {
		order[f] = i
	}
	out := make([]Field, 0, len(e))
	for f := range e {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func (e ValidationErrors) clone() ValidationErrors {
	out := make(ValidationErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ErrorKind classifies a failed submission.
type ErrorKind int

const (
	ErrorTransport ErrorKind = iota + 1
	ErrorTimeout
	ErrorUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransport:
		return "transport"
	case ErrorTimeout:
		return "timeout"
	case ErrorUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UpstreamReason is the cause reported by a Generation Service that rejected a request.
type UpstreamReason string

const (
	ReasonRateLimited     UpstreamReason = "rate_limited"
	ReasonInvalidRequest  UpstreamReason = "invalid_request"
	ReasonUpstreamFailure UpstreamReason = "upstream_failure"
)

// UpstreamError is returned by a GenerationService that explicitly rejected the request.
type UpstreamError struct {
	Reason     UpstreamReason
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (status %d): %s", e.Reason, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Reason, e.Message)
}

// ReasonForStatus maps an HTTP status code from a Generation Service to an UpstreamReason.
func ReasonForStatus(code int) UpstreamReason {
	switch {
	case code == 429:
		return ReasonRateLimited
	case code == 400 || code == 404 || code == 413 || code == 422:
		return ReasonInvalidRequest
	default:
		return ReasonUpstreamFailure
	}
}

// SubmitError is the inspectable reason carried by every Failed outcome.
type SubmitError struct {
	Kind   ErrorKind      `json:"kind"`
	Reason UpstreamReason `json:"reason,omitempty"`
	Detail string         `json:"detail"`
	Err    error          `json:"-"`
}

func (e *SubmitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// classify turns a service or context error into a SubmitError.
// deadline is true when the pipeline's own timeout expired.
func classify(err error, deadline bool) *SubmitError {
	var up *UpstreamError
	switch {
	case deadline || errors.Is(err, context.DeadlineExceeded):
		return &SubmitError{Kind: ErrorTimeout, Detail: "generation service did not respond in time", Err: err}
	case errors.As(err, &up):
		return &SubmitError{Kind: ErrorUpstream, Reason: up.Reason, Detail: up.Message, Err: err}
	default:
		return &SubmitError{Kind: ErrorTransport, Detail: err.Error(), Err: err}
	}
}
