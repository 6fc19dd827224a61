package server

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bio_generator/form"
)

type Server struct {
	validator *form.Validator
	pipeline  *form.Pipeline
	store     *formStore
	verbose   bool
	logger    *log.Logger
}

// Options tunes a Server. Zero values use the form package defaults.
type Options struct {
	Timeout time.Duration
	Verbose bool
	Logger  *log.Logger
}

type formStore struct {
	mu    sync.Mutex
	forms map[string]*form.State
}

func newStore() *formStore {
	return &formStore{forms: make(map[string]*form.State)}
}

func (s *formStore) set(id string, st *form.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[id] = st
}

func (s *formStore) get(id string) (*form.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.forms[id]
	return st, ok
}

func (s *formStore) remove(id string) (*form.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.forms[id]
	delete(s.forms, id)
	return st, ok
}

func New(validator *form.Validator, service form.GenerationService, opts Options) (*Server, error) {
	if validator == nil {
		return nil, errors.New("validator required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	pipeline, err := form.NewPipeline(service, form.WithTimeout(opts.Timeout), form.WithLogger(logger, opts.Verbose))
	if err != nil {
		return nil, err
	}
	return &Server{
		validator: validator,
		pipeline:  pipeline,
		store:     newStore(),
		verbose:   opts.Verbose,
		logger:    logger,
	}, nil
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] "+format, args...)
}

func (s *Server) Routes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.logMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.GET("/schema", s.handleSchema)
		api.POST("/validate", s.handleValidate)
		api.POST("/generate", s.handleGenerate)

		forms := api.Group("/forms")
		{
			forms.POST("", s.handleFormCreate)
			forms.GET("/:id", s.withForm(s.handleFormGet))
			forms.PATCH("/:id", s.withForm(s.handleFormEdit))
			forms.DELETE("/:id", s.handleFormDelete)
			forms.POST("/:id/blur/:field", s.withForm(s.handleFormBlur))
			forms.POST("/:id/submit", s.withForm(s.handleFormSubmit))
			forms.POST("/:id/retry", s.withForm(s.handleFormRetry))
			forms.POST("/:id/reset", s.withForm(s.handleFormReset))
			forms.GET("/:id/outcome", s.withForm(s.handleFormOutcome))
		}
	}
	return router
}

func (s *Server) newForm() (string, *form.State, error) {
	st, err := form.NewState(s.validator, s.pipeline, form.StateLogger(s.logger, s.verbose))
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	s.store.set(id, st)
	return id, st, nil
}

func (s *Server) withForm(h func(*gin.Context, *form.State)) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := s.store.get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
			return
		}
		h(c, st)
	}
}

const requestIDHeader = "X-Request-ID"

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
		s.infof("[http] %s %s %s %d %s", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
