package generator

import (
	"net/http"

	"bio_generator/form"
)

// upstreamError converts a provider status code into the rejection reported to the form pipeline.
func upstreamError(provider string, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &form.UpstreamError{
		Reason:     form.ReasonForStatus(status),
		StatusCode: status,
		Message:    provider + ": " + msg,
	}
}
