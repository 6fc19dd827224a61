package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bio_generator/form"
)

var _ form.GenerationService = (*HTTPService)(nil)

// HTTPService calls a remote Generation Service that accepts the flat request payload
// and answers {"text": "..."}.
type HTTPService struct {
	url    string
	client *http.Client
}

// ErrorBody is the JSON error shape of a Generation Service.
type ErrorBody struct {
	Error  string                `json:"error"`
	Reason form.UpstreamReason   `json:"reason,omitempty"`
	Fields form.ValidationErrors `json:"errors,omitempty"`
}

// NewHTTPService returns a client for the service at url. The pipeline owns deadlines,
// so client should not set its own Timeout; nil uses a plain http.Client.
func NewHTTPService(url string, client *http.Client) (*HTTPService, error) {
	if url == "" {
		return nil, errors.New("generation service url is required")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPService{url: url, client: client}, nil
}

func (s *HTTPService) Generate(ctx context.Context, req form.GenerationRequest) (form.GeneratedBio, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return form.GeneratedBio{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return form.GeneratedBio{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return form.GeneratedBio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return form.GeneratedBio{}, fmt.Errorf("generation service: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb ErrorBody
		_ = json.Unmarshal(data, &eb)
		reason := eb.Reason
		if reason == "" {
			reason = form.ReasonForStatus(resp.StatusCode)
		}
		msg := eb.Error
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return form.GeneratedBio{}, &form.UpstreamError{Reason: reason, StatusCode: resp.StatusCode, Message: msg}
	}

	var bio form.GeneratedBio
	if err := json.Unmarshal(data, &bio); err != nil {
		return form.GeneratedBio{}, fmt.Errorf("generation service: malformed response: %w", err)
	}
	if strings.TrimSpace(bio.Text) == "" {
		return form.GeneratedBio{}, errors.New("generation service: malformed response: missing text")
	}
	return bio, nil
}
