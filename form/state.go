package form

import (
	"context"
	"errors"
	"log"
	"sync"
)

var (
	// ErrNoSubmission is returned by Await when nothing has been submitted since the last edit.
	ErrNoSubmission = errors.New("form: nothing submitted")

	// ErrSubmissionDiscarded is returned by Await when the awaited submission was abandoned by Reset.
	ErrSubmissionDiscarded = errors.New("form: submission discarded")
)

// Status is the FormState machine state.
type Status int

const (
	StatusEditing Status = iota
	StatusSubmitting
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEditing:
		return "editing"
	case StatusSubmitting:
		return "submitting"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only copy of a State. Version increases with every transition.
type Snapshot struct {
	Version uint64             `json:"version"`
	Status  Status             `json:"status"`
	Draft   Draft              `json:"draft"`
	Errors  ValidationErrors   `json:"errors"`
	Touched map[Field]bool     `json:"touched"`
	Request *GenerationRequest `json:"request,omitempty"`
	Outcome *Outcome           `json:"outcome,omitempty"`
}

// State owns one in-progress draft and drives validation and submission for it.
// Events are serialized; at most one submission is outstanding at a time.
type State struct {
	validator *Validator
	pipeline  *Pipeline
	verbose   bool
	logger    *log.Logger

	mu        sync.Mutex
	version   uint64
	status    Status
	draft     Draft
	errs      ValidationErrors
	touched   map[Field]bool
	request   GenerationRequest
	outcome   Outcome
	seq       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	observers map[int]func(Snapshot)
	nextObs   int
}

// StateOption configures a State.
type StateOption func(*State)

// StateLogger sets the logger and whether transitions are logged.
func StateLogger(logger *log.Logger, verbose bool) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
		s.verbose = verbose
	}
}

// NewState returns a State in Editing holding the schema defaults.
func NewState(v *Validator, p *Pipeline, opts ...StateOption) (*State, error) {
	if v == nil {
		return nil, errors.New("form: validator is required")
	}
	if p == nil {
		return nil, errors.New("form: pipeline is required")
	}
	s := &State{
		validator: v,
		pipeline:  p,
		logger:    log.Default(),
		draft:     v.Schema().Defaults(),
		errs:      ValidationErrors{},
		touched:   map[Field]bool{},
		observers: map[int]func(Snapshot){},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *State) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] "+format, args...)
}

// Validator returns the validator the state uses.
func (s *State) Validator() *Validator { return s.validator }

// Edit sets one field, re-validates only that field and, from Succeeded or Failed,
// returns to Editing. Edits during Submitting change the draft but not the frozen request.
func (s *State) Edit(field Field, value any) error {
	s.mu.Lock()
	if err := s.draft.Set(field, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.touched[field] = true
	s.checkFieldLocked(field)
	if s.status == StatusSucceeded || s.status == StatusFailed {
		s.infof("[form] %s -> %s on edit of %s", s.status, StatusEditing, field)
		s.status = StatusEditing
		s.outcome = Outcome{}
		s.request = GenerationRequest{}
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Blur marks field as touched and refreshes its error, as a control losing focus would.
func (s *State) Blur(field Field) error {
	if _, ok := s.validator.Schema().Lookup(field); !ok {
		return ErrUnknownField
	}
	s.mu.Lock()
	s.touched[field] = true
	s.checkFieldLocked(field)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *State) checkFieldLocked(field Field) {
	if msg, bad := s.validator.ValidateField(s.draft, field); bad {
		s.errs[field] = msg
	} else {
		delete(s.errs, field)
	}
}

// Submit validates the whole draft and, if it is valid, freezes the request and hands it
// to the pipeline. Invalid drafts stay in Editing with every field's error surfaced and
// the ValidationErrors returned. A submit while Submitting is a no-op returning
// ErrSubmitInFlight.
//
// The exchange is detached from ctx's cancellation; Reset abandons it.
func (s *State) Submit(ctx context.Context) error {
	s.mu.Lock()
	err := s.submitLocked(ctx)
	if errors.Is(err, ErrSubmitInFlight) {
		s.mu.Unlock()
		return err
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

// Retry discards a finished outcome and submits the current draft again.
func (s *State) Retry(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusSubmitting:
		s.mu.Unlock()
		return ErrSubmitInFlight
	case StatusEditing:
		s.mu.Unlock()
		return ErrNotTerminal
	}
	s.infof("[form] retry from %s", s.status)
	s.status = StatusEditing
	s.outcome = Outcome{}
	err := s.submitLocked(ctx)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

func (s *State) submitLocked(ctx context.Context) error {
	if s.status == StatusSubmitting {
		s.infof("[form] submit ignored: submission %d in flight", s.seq)
		return ErrSubmitInFlight
	}

	req, err := s.validator.Validate(s.draft)
	if err != nil {
		verrs, _ := err.(ValidationErrors)
		s.errs = verrs.clone()
		for _, f := range s.validator.Schema().Fields() {
			s.touched[f] = true
		}
		s.status = StatusEditing
		s.outcome = Outcome{}
		s.request = GenerationRequest{}
		s.infof("[form] submit rejected: %d invalid field(s)", len(verrs))
		return err
	}

	s.errs = ValidationErrors{}
	s.seq++
	seq := s.seq
	s.status = StatusSubmitting
	s.request = req
	s.outcome = Pending()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.infof("[form] submission %d started model=%s", seq, req.Model())

	results := s.pipeline.Submit(runCtx, req)
	go s.resolve(seq, results)
	return nil
}

func (s *State) resolve(seq uint64, results <-chan Outcome) {
	o, ok := <-results
	if !ok {
		o = Failed(&SubmitError{Kind: ErrorTransport, Detail: "pipeline closed without a result"})
	}

	s.mu.Lock()
	if s.seq != seq || s.status != StatusSubmitting {
		s.mu.Unlock()
		s.infof("[form] submission %d result discarded (stale)", seq)
		return
	}
	if o.Status == OutcomeSucceeded {
		s.status = StatusSucceeded
	} else {
		s.status = StatusFailed
	}
	s.outcome = o
	s.finishLocked()
	s.infof("[form] submission %d -> %s", seq, s.status)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *State) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// Reset replaces the draft with the schema defaults and returns to Editing.
// A submission still in flight is abandoned and its result ignored.
func (s *State) Reset() {
	s.mu.Lock()
	if s.status == StatusSubmitting {
		s.infof("[form] reset abandons submission %d", s.seq)
		s.seq++
		s.finishLocked()
	}
	s.status = StatusEditing
	s.draft = s.validator.Schema().Defaults()
	s.errs = ValidationErrors{}
	s.touched = map[Field]bool{}
	s.request = GenerationRequest{}
	s.outcome = Outcome{}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Await blocks until the current submission resolves and returns its outcome. In Succeeded
// or Failed it returns the held outcome immediately.
func (s *State) Await(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	switch s.status {
	case StatusSucceeded, StatusFailed:
		o := s.outcome
		s.mu.Unlock()
		return o, nil
	case StatusEditing:
		s.mu.Unlock()
		return Outcome{}, ErrNoSubmission
	}
	done, seq := s.done, s.seq
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq || !s.outcome.Terminal() {
		return Outcome{}, ErrSubmissionDiscarded
	}
	return s.outcome, nil
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every transition. Snapshots are
// delivered outside the state's lock, so fn may call back into the State; under
// concurrent events use Version to order them. The returned func unsubscribes.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *State) commitLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	touched := make(map[Field]bool, len(s.touched))
	for k, v := range s.touched {
		touched[k] = v
	}
	snap := Snapshot{
		Version: s.version,
		Status:  s.status,
		Draft:   s.draft.Clone(),
		Errors:  s.errs.clone(),
		Touched: touched,
	}
	if !s.request.IsZero() {
		req := s.request
		snap.Request = &req
	}
	if s.status != StatusEditing {
		o := s.outcome
		snap.Outcome = &o
	}
	return snap
}

func (s *State) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
