package form_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bio_generator/form"
)

// service is a test double for form.GenerationService.
type service struct {
	calls   atomic.Int32
	release chan struct{}
	bio     form.GeneratedBio
	err     error
	last    atomic.Pointer[form.GenerationRequest]
}

func newService(bio string, err error) *service {
	return &service{bio: form.GeneratedBio{Text: bio}, err: err}
}

// blocking makes Generate wait for release or ctx.
func (s *service) blocking() *service {
	s.release = make(chan struct{})
	return s
}

func (s *service) Generate(ctx context.Context, req form.GenerationRequest) (form.GeneratedBio, error) {
	s.calls.Add(1)
	s.last.Store(&req)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return form.GeneratedBio{}, ctx.Err()
		}
	}
	if s.err != nil {
		return form.GeneratedBio{}, s.err
	}
	return s.bio, nil
}

func mustRequest(t *testing.T) form.GenerationRequest {
	t.Helper()
	req, err := form.Validate(validDraft())
	require.NoError(t, err)
	return req
}

func recv(t *testing.T, ch <-chan form.Outcome) form.Outcome {
	t.Helper()
	select {
	case o, ok := <-ch:
		require.True(t, ok, "channel closed without outcome")
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return form.Outcome{}
	}
}

func TestNewPipeline_RequiresService(t *testing.T) {
	t.Parallel()
	_, err := form.NewPipeline(nil)
	assert.Error(t, err)
}

func TestPipeline_DefaultTimeoutIsFinite(t *testing.T) {
	t.Parallel()
	p, err := form.NewPipeline(newService("bio", nil), form.WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, form.DefaultTimeout, p.Timeout())

	p, err = form.NewPipeline(newService("bio", nil), form.WithTimeout(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, form.DefaultTimeout, p.Timeout())
}

func TestPipeline_Succeeded(t *testing.T) {
	t.Parallel()
	svc := newService("Coffee-fuelled engineer.", nil)
	p, err := form.NewPipeline(svc)
	require.NoError(t, err)

	req := mustRequest(t)
	o := recv(t, p.Submit(context.Background(), req))
	assert.Equal(t, form.OutcomeSucceeded, o.Status)
	require.NotNil(t, o.Bio)
	assert.Equal(t, "Coffee-fuelled engineer.", o.Bio.Text)
	assert.Nil(t, o.Err)
	assert.Equal(t, req, *svc.last.Load())
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestPipeline_FailureKinds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		err        error
		bio        string
		wantKind   form.ErrorKind
		wantReason form.UpstreamReason
	}{
		{"transport", errors.New("dial tcp: connection refused"), "", form.ErrorTransport, ""},
		{"empty bio", nil, "   ", form.ErrorTransport, ""},
		{"rate limited", &form.UpstreamError{Reason: form.ReasonRateLimited, StatusCode: 429, Message: "slow down"}, "", form.ErrorUpstream, form.ReasonRateLimited},
		{"wrapped upstream", errorsJoin(&form.UpstreamError{Reason: form.ReasonInvalidRequest, Message: "bad model"}), "", form.ErrorUpstream, form.ReasonInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := form.NewPipeline(newService(tc.bio, tc.err))
			require.NoError(t, err)

			o := recv(t, p.Submit(context.Background(), mustRequest(t)))
			assert.Equal(t, form.OutcomeFailed, o.Status)
			require.NotNil(t, o.Err)
			assert.Equal(t, tc.wantKind, o.Err.Kind)
			assert.Equal(t, tc.wantReason, o.Err.Reason)
			assert.NotEmpty(t, o.Err.Detail)
		})
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("generator"), err)
}

func TestPipeline_Timeout(t *testing.T) {
	t.Parallel()
	svc := newService("never", nil).blocking()
	p, err := form.NewPipeline(svc, form.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	o := recv(t, p.Submit(context.Background(), mustRequest(t)))
	assert.Equal(t, form.OutcomeFailed, o.Status)
	require.NotNil(t, o.Err)
	assert.Equal(t, form.ErrorTimeout, o.Err.Kind)
	assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
}

func TestPipeline_TimeoutWithServiceIgnoringContext(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)
	svc := form.GenerationServiceFunc(func(context.Context, form.GenerationRequest) (form.GeneratedBio, error) {
		<-release
		return form.GeneratedBio{Text: "too late"}, nil
	})
	p, err := form.NewPipeline(svc, form.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	o := recv(t, p.Submit(context.Background(), mustRequest(t)))
	assert.Equal(t, form.OutcomeFailed, o.Status)
	require.NotNil(t, o.Err)
	assert.Equal(t, form.ErrorTimeout, o.Err.Kind)
	assert.Nil(t, o.Bio)
}

func TestPipeline_ChannelClosesAfterOutcome(t *testing.T) {
	t.Parallel()
	p, err := form.NewPipeline(newService("ok bio", nil))
	require.NoError(t, err)

	ch := p.Submit(context.Background(), mustRequest(t))
	recv(t, ch)
	_, ok := <-ch
	assert.False(t, ok)
}
