package form

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"
)

// DefaultTimeout bounds a single exchange with the Generation Service.
const DefaultTimeout = 30 * time.Second

// GenerationService turns a validated request into a biography.
// Implementations report explicit rejections as *UpstreamError.
type GenerationService interface {
	Generate(ctx context.Context, req GenerationRequest) (GeneratedBio, error)
}

// GenerationServiceFunc adapts a function to GenerationService.
type GenerationServiceFunc func(ctx context.Context, req GenerationRequest) (GeneratedBio, error)

func (f GenerationServiceFunc) Generate(ctx context.Context, req GenerationRequest) (GeneratedBio, error) {
	return f(ctx, req)
}

// Pipeline performs one exchange with a GenerationService per Submit call.
// It never retries; a retry is always a new, user-initiated submit.
type Pipeline struct {
	service GenerationService
	timeout time.Duration
	verbose bool
	logger  *log.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTimeout sets the per-exchange deadline. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger and whether info lines are written.
func WithLogger(logger *log.Logger, verbose bool) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
		p.verbose = verbose
	}
}

// NewPipeline returns a Pipeline bound to service.
func NewPipeline(service GenerationService, opts ...PipelineOption) (*Pipeline, error) {
	if service == nil {
		return nil, errors.New("form: generation service is required")
	}
	p := &Pipeline{
		service: service,
		timeout: DefaultTimeout,
		logger:  log.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Timeout returns the deadline applied to each exchange.
func (p *Pipeline) Timeout() time.Duration { return p.timeout }

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Submit starts an exchange for req and returns a channel that receives exactly one
// terminal Outcome (Succeeded or Failed) and is then closed.
func (p *Pipeline) Submit(ctx context.Context, req GenerationRequest) <-chan Outcome {
	out := make(chan Outcome, 1)
	if payload, err := json.Marshal(req); err == nil {
		p.infof("[submit] payload=%s", payload)
	}

	go func() {
		defer close(out)
		out <- p.exchange(ctx, req)
	}()
	return out
}

func (p *Pipeline) exchange(parent context.Context, req GenerationRequest) Outcome {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	start := time.Now()
	type result struct {
		bio GeneratedBio
		err error
	}
	// Buffered: the service may return after exchange has given up on it.
	results := make(chan result, 1)
	go func() {
		bio, err := p.service.Generate(ctx, req)
		results <- result{bio, err}
	}()

	var bio GeneratedBio
	var err error
	select {
	case r := <-results:
		bio, err = r.bio, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(bio.Text) == "" {
		err = errors.New("generation service returned an empty bio")
	}
	if err != nil {
		deadline := errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil
		serr := classify(err, deadline)
		p.infof("[submit] failed after %s: %v", elapsed.Round(time.Millisecond), serr)
		return Failed(serr)
	}
	p.infof("[submit] succeeded after %s (%d chars)", elapsed.Round(time.Millisecond), len([]rune(bio.Text)))
	return Succeeded(bio)
}
