package form_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bio_generator/form"
)

func newState(t *testing.T, svc form.GenerationService, opts ...form.PipelineOption) *form.State {
	t.Helper()
	p, err := form.NewPipeline(svc, opts...)
	require.NoError(t, err)
	s, err := form.NewState(form.NewValidator(form.DefaultSchema()), p)
	require.NoError(t, err)
	return s
}

func await(t *testing.T, s *form.State) form.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := s.Await(ctx)
	require.NoError(t, err)
	return o
}

func fillValid(t *testing.T, s *form.State) {
	t.Helper()
	require.NoError(t, s.Edit(form.FieldContent, strings.Repeat("a", 52)))
}

func TestNewState_Defaults(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("bio", nil))
	snap := s.Snapshot()

	assert.Equal(t, form.StatusEditing, snap.Status)
	assert.Equal(t, form.DefaultSchema().Defaults(), snap.Draft)
	assert.Empty(t, snap.Errors)
	assert.Empty(t, snap.Touched)
	assert.Nil(t, snap.Outcome)
	assert.Nil(t, snap.Request)
}

func TestNewState_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	p, err := form.NewPipeline(newService("bio", nil))
	require.NoError(t, err)
	_, err = form.NewState(nil, p)
	assert.Error(t, err)
	_, err = form.NewState(form.NewValidator(form.DefaultSchema()), nil)
	assert.Error(t, err)
}

func TestState_EditValidatesOnlyThatField(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("bio", nil))

	require.NoError(t, s.Edit(form.FieldTemperature, 5.0))
	snap := s.Snapshot()
	assert.Equal(t, form.ValidationErrors{form.FieldTemperature: "Temperature must be at most 2"}, snap.Errors,
		"content is still invalid but was not touched")
	assert.Equal(t, map[form.Field]bool{form.FieldTemperature: true}, snap.Touched)

	require.NoError(t, s.Edit(form.FieldTemperature, 1.5))
	assert.Empty(t, s.Snapshot().Errors)
}

func TestState_EditRejectsBadValue(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("bio", nil))
	before := s.Snapshot()

	assert.ErrorIs(t, s.Edit(form.FieldEmojis, "true"), form.ErrFieldType)
	assert.ErrorIs(t, s.Edit(form.Field("avatar"), "x"), form.ErrUnknownField)
	assert.Equal(t, before, s.Snapshot())
}

func TestState_Blur(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("bio", nil))
	require.NoError(t, s.Blur(form.FieldContent))

	snap := s.Snapshot()
	assert.Equal(t, "Content must be at least 50 characters", snap.Errors[form.FieldContent])
	assert.True(t, snap.Touched[form.FieldContent])
	assert.ErrorIs(t, s.Blur(form.Field("nope")), form.ErrUnknownField)
}

func TestState_SubmitInvalidSurfacesAllErrors(t *testing.T) {
	t.Parallel()
	svc := newService("bio", nil)
	s := newState(t, svc)
	require.NoError(t, s.Edit(form.FieldTone, ""))
	require.NoError(t, s.Edit(form.FieldModel, nil))

	err := s.Submit(context.Background())
	var verrs form.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	snap := s.Snapshot()
	assert.Equal(t, form.StatusEditing, snap.Status)
	assert.Equal(t, form.ValidationErrors{
		form.FieldModel:   "Model is required",
		form.FieldContent: "Content must be at least 50 characters",
		form.FieldTone:    "Tone is required",
	}, snap.Errors)
	assert.Len(t, snap.Touched, 6)
	assert.Zero(t, svc.calls.Load())
}

func TestState_SubmitSucceeded(t *testing.T) {
	t.Parallel()
	svc := newService("Builder of small, sharp tools.", nil)
	s := newState(t, svc)
	fillValid(t, s)

	require.NoError(t, s.Submit(context.Background()))
	o := await(t, s)
	assert.Equal(t, form.OutcomeSucceeded, o.Status)
	assert.Equal(t, "Builder of small, sharp tools.", o.Bio.Text)

	snap := s.Snapshot()
	assert.Equal(t, form.StatusSucceeded, snap.Status)
	require.NotNil(t, snap.Request)
	assert.Equal(t, strings.Repeat("a", 52), snap.Request.Content())
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, o, *snap.Outcome)
}

func TestState_SubmitFailedCarriesReason(t *testing.T) {
	t.Parallel()
	svc := newService("", &form.UpstreamError{Reason: form.ReasonRateLimited, StatusCode: 429, Message: "quota"})
	s := newState(t, svc)
	fillValid(t, s)

	require.NoError(t, s.Submit(context.Background()))
	o := await(t, s)
	assert.Equal(t, form.OutcomeFailed, o.Status)
	require.NotNil(t, o.Err)
	assert.Equal(t, form.ErrorUpstream, o.Err.Kind)
	assert.Equal(t, form.ReasonRateLimited, o.Err.Reason)
	assert.Equal(t, form.StatusFailed, s.Snapshot().Status)
}

func TestState_SingleFlight(t *testing.T) {
	t.Parallel()
	svc := newService("one bio", nil).blocking()
	s := newState(t, svc)
	fillValid(t, s)

	require.NoError(t, s.Submit(context.Background()))
	before := s.Snapshot()
	assert.Equal(t, form.StatusSubmitting, before.Status)
	assert.Equal(t, form.OutcomePending, before.Outcome.Status)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, s.Submit(context.Background()), form.ErrSubmitInFlight)
	}
	assert.ErrorIs(t, s.Retry(context.Background()), form.ErrSubmitInFlight)
	assert.Equal(t, before, s.Snapshot(), "rejected submits must not change state")

	close(svc.release)
	await(t, s)
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestState_EditDuringSubmitKeepsFrozenRequest(t *testing.T) {
	t.Parallel()
	svc := newService("bio text", nil).blocking()
	s := newState(t, svc)
	fillValid(t, s)
	require.NoError(t, s.Submit(context.Background()))

	require.NoError(t, s.Edit(form.FieldContent, strings.Repeat("b", 80)))
	snap := s.Snapshot()
	assert.Equal(t, form.StatusSubmitting, snap.Status)
	assert.Equal(t, strings.Repeat("a", 52), snap.Request.Content())
	assert.Equal(t, strings.Repeat("b", 80), *snap.Draft.Content)

	close(svc.release)
	await(t, s)
	assert.Equal(t, strings.Repeat("a", 52), svc.last.Load().Content())
}

func TestState_EditAfterOutcomeReturnsToEditing(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("bio text", nil))
	fillValid(t, s)
	require.NoError(t, s.Submit(context.Background()))
	await(t, s)

	require.NoError(t, s.Edit(form.FieldEmojis, true))
	snap := s.Snapshot()
	assert.Equal(t, form.StatusEditing, snap.Status)
	assert.Nil(t, snap.Outcome)
	assert.Nil(t, snap.Request)

	_, err := s.Await(context.Background())
	assert.ErrorIs(t, err, form.ErrNoSubmission)
}

func TestState_Retry(t *testing.T) {
	t.Parallel()
	svc := newService("", &form.UpstreamError{Reason: form.ReasonUpstreamFailure, StatusCode: 503, Message: "down"})
	s := newState(t, svc)

	assert.ErrorIs(t, s.Retry(context.Background()), form.ErrNotTerminal)

	fillValid(t, s)
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, form.OutcomeFailed, await(t, s).Status)

	require.NoError(t, s.Retry(context.Background()))
	assert.Equal(t, form.OutcomeFailed, await(t, s).Status)
	assert.EqualValues(t, 2, svc.calls.Load())
}

func TestState_ResetDiscardsInFlightResult(t *testing.T) {
	t.Parallel()
	svc := newService("late bio", nil).blocking()
	s := newState(t, svc)
	fillValid(t, s)
	require.NoError(t, s.Submit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	awaited := make(chan error, 1)
	go func() {
		_, err := s.Await(ctx)
		awaited <- err
	}()

	require.Eventually(t, func() bool { return svc.calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Reset()

	snap := s.Snapshot()
	assert.Equal(t, form.StatusEditing, snap.Status)
	assert.Equal(t, form.DefaultSchema().Defaults(), snap.Draft)
	assert.Nil(t, snap.Outcome)

	select {
	case err := <-awaited:
		// Depending on scheduling Await either saw the abandoned submission or none at all.
		assert.True(t, errors.Is(err, form.ErrSubmissionDiscarded) || errors.Is(err, form.ErrNoSubmission), "got %v", err)
	case <-ctx.Done():
		t.Fatal("Await did not return after Reset")
	}

	assert.Never(t, func() bool {
		return s.Snapshot().Status != form.StatusEditing
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestState_SubmitIsDetachedFromCallerContext(t *testing.T) {
	t.Parallel()
	svc := newService("still here", nil).blocking()
	s := newState(t, svc)
	fillValid(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(ctx))
	cancel()
	close(svc.release)

	assert.Equal(t, form.OutcomeSucceeded, await(t, s).Status)
}

func TestState_TimeoutTransition(t *testing.T) {
	t.Parallel()
	svc := newService("never", nil).blocking()
	s := newState(t, svc, form.WithTimeout(20*time.Millisecond))
	fillValid(t, s)

	require.NoError(t, s.Submit(context.Background()))
	o := await(t, s)
	require.NotNil(t, o.Err)
	assert.Equal(t, form.ErrorTimeout, o.Err.Kind)
	assert.Equal(t, form.StatusFailed, s.Snapshot().Status)
}

func TestState_HungServiceDoesNotBlockResubmit(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	svc := form.GenerationServiceFunc(func(context.Context, form.GenerationRequest) (form.GeneratedBio, error) {
		calls.Add(1)
		<-release
		return form.GeneratedBio{Text: "late"}, nil
	})
	s := newState(t, svc, form.WithTimeout(20*time.Millisecond))
	fillValid(t, s)

	require.NoError(t, s.Submit(context.Background()))
	o := await(t, s)
	require.NotNil(t, o.Err)
	assert.Equal(t, form.ErrorTimeout, o.Err.Kind)
	assert.Equal(t, form.StatusFailed, s.Snapshot().Status)

	require.NoError(t, s.Retry(context.Background()))
	assert.Equal(t, form.ErrorTimeout, await(t, s).Err.Kind)
	assert.EqualValues(t, 2, calls.Load())
}

func TestState_Subscribe(t *testing.T) {
	t.Parallel()
	s := newState(t, newService("observed bio", nil))

	var mu sync.Mutex
	var statuses []form.Status
	var versions []uint64
	unsubscribe := s.Subscribe(func(snap form.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, snap.Status)
		versions = append(versions, snap.Version)
	})

	fillValid(t, s)
	require.NoError(t, s.Submit(context.Background()))
	await(t, s)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []form.Status{form.StatusEditing, form.StatusSubmitting, form.StatusSucceeded}, statuses)
	assert.Equal(t, []uint64{1, 2, 3}, versions)
	mu.Unlock()

	unsubscribe()
	s.Reset()
	mu.Lock()
	assert.Len(t, statuses, 3)
	mu.Unlock()
}
