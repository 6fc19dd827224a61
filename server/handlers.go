package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bio_generator/form"
	"bio_generator/generator"
)

// maxOutcomeWait caps how long GET /outcome may hold a request open.
const maxOutcomeWait = 60 * time.Second

func (s *Server) handleSchema(c *gin.Context) {
	schema := s.validator.Schema()
	c.JSON(http.StatusOK, gin.H{
		"fields":   schema.Descriptors(),
		"defaults": schema.Defaults(),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var draft form.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	req, err := s.validator.Validate(draft)
	if err != nil {
		var verrs form.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "errors": verrs})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "request": req})
}

// handleGenerate is the Generation Service endpoint: one flat request in, one bio out.
// Errors use generator.ErrorBody so an HTTPService client can classify them.
func (s *Server) handleGenerate(c *gin.Context) {
	var draft form.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, generator.ErrorBody{
			Error:  "invalid json: " + err.Error(),
			Reason: form.ReasonInvalidRequest,
		})
		return
	}
	req, err := s.validator.Validate(draft)
	if err != nil {
		var verrs form.ValidationErrors
		errors.As(err, &verrs)
		c.JSON(http.StatusUnprocessableEntity, generator.ErrorBody{
			Error:  "invalid request",
			Reason: form.ReasonInvalidRequest,
			Fields: verrs,
		})
		return
	}

	o := <-s.pipeline.Submit(c.Request.Context(), req)
	if o.Status == form.OutcomeSucceeded && o.Bio != nil {
		c.JSON(http.StatusOK, o.Bio)
		return
	}
	serr := o.Err
	if serr == nil {
		serr = &form.SubmitError{Kind: form.ErrorTransport, Detail: "no result"}
	}
	c.JSON(statusForSubmitError(serr), generator.ErrorBody{Error: serr.Detail, Reason: serr.Reason})
}

func statusForSubmitError(e *form.SubmitError) int {
	switch e.Kind {
	case form.ErrorTimeout:
		return http.StatusGatewayTimeout
	case form.ErrorUpstream:
		switch e.Reason {
		case form.ReasonRateLimited:
			return http.StatusTooManyRequests
		case form.ReasonInvalidRequest:
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}

func (s *Server) handleFormCreate(c *gin.Context) {
	id, st, err := s.newForm()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.infof("[form] created %s", id)
	c.JSON(http.StatusCreated, gin.H{"id": id, "form": st.Snapshot()})
}

func (s *Server) handleFormGet(c *gin.Context, st *form.State) {
	c.JSON(http.StatusOK, st.Snapshot())
}

// handleFormEdit applies a partial draft. Keys are field names; null clears a field.
// All values are type-checked before any edit is applied.
func (s *Server) handleFormEdit(c *gin.Context, st *form.State) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	schema := s.validator.Schema()
	fields := make([]form.Field, 0, len(body))
	for _, f := range schema.Fields() {
		v, ok := body[string(f)]
		if !ok {
			continue
		}
		var probe form.Draft
		if err := probe.Set(f, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fields = append(fields, f)
	}
	if len(fields) != len(body) {
		for k := range body {
			if _, ok := schema.Lookup(form.Field(k)); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown field " + k})
				return
			}
		}
	}
	for _, f := range fields {
		if err := st.Edit(f, body[string(f)]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (s *Server) handleFormBlur(c *gin.Context, st *form.State) {
	if err := st.Blur(form.Field(c.Param("field"))); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st.Snapshot())
}

func (s *Server) handleFormSubmit(c *gin.Context, st *form.State) {
	s.respondSubmit(c, st, st.Submit(c.Request.Context()))
}

func (s *Server) handleFormRetry(c *gin.Context, st *form.State) {
	s.respondSubmit(c, st, st.Retry(c.Request.Context()))
}

func (s *Server) respondSubmit(c *gin.Context, st *form.State, err error) {
	snap := st.Snapshot()
	var verrs form.ValidationErrors
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, snap)
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, snap)
	case errors.Is(err, form.ErrSubmitInFlight), errors.Is(err, form.ErrNotTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "form": snap})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleFormReset(c *gin.Context, st *form.State) {
	st.Reset()
	c.JSON(http.StatusOK, st.Snapshot())
}

// handleFormOutcome long-polls the current submission. ?wait=10s bounds the wait.
func (s *Server) handleFormOutcome(c *gin.Context, st *form.State) {
	wait := maxOutcomeWait
	if w := c.Query("wait"); w != "" {
		d, err := time.ParseDuration(w)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait duration"})
			return
		}
		if d < wait {
			wait = d
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	o, err := st.Await(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, o)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, form.Pending())
	case errors.Is(err, form.ErrNoSubmission), errors.Is(err, form.ErrSubmissionDiscarded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleFormDelete(c *gin.Context) {
	st, ok := s.store.remove(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
		return
	}
	st.Reset()
	c.Status(http.StatusNoContent)
}
