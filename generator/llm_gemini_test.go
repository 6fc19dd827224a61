package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bio_generator/form"
	"bio_generator/generator"
)

func TestNewGeminiLLMFromConfig_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := generator.NewGeminiLLMFromConfig(ctx, nil)
	assert.Error(t, err)
	_, err = generator.NewGeminiLLMFromConfig(ctx, &generator.LLMSettings{Model: "gemini-2.0-flash"})
	assert.Error(t, err)
	_, err = generator.NewGeminiLLMFromConfig(ctx, &generator.LLMSettings{APIKey: "k"})
	assert.Error(t, err)
}

func geminiStub(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestGeminiLLM_Complete(t *testing.T) {
	t.Parallel()
	var got map[string]any
	srv := geminiStub(t, http.StatusOK, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "Ships tools, runs far."}]}, "finishReason": "STOP"}]}`, &got)
	defer srv.Close()

	llm, err := generator.NewGeminiLLMFromConfig(context.Background(), &generator.LLMSettings{
		APIKey: "k", Model: "gemini-2.0-flash", BaseURL: srv.URL,
	})
	require.NoError(t, err)

	out, err := llm.Complete(context.Background(), generator.Prompt{System: "sys", User: "about me", Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Ships tools, runs far.", out)

	cfg, ok := got["generationConfig"].(map[string]any)
	require.True(t, ok, "%v", got)
	assert.Equal(t, 0.5, cfg["temperature"])
	assert.Contains(t, got, "systemInstruction")
}

func TestGeminiLLM_RateLimitIsUpstream(t *testing.T) {
	t.Parallel()
	srv := geminiStub(t, http.StatusTooManyRequests, `{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`, nil)
	defer srv.Close()

	llm, err := generator.NewGeminiLLMFromConfig(context.Background(), &generator.LLMSettings{
		APIKey: "k", Model: "gemini-2.0-flash", BaseURL: srv.URL,
	})
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), generator.Prompt{User: "hi", Temperature: 1})
	var up *form.UpstreamError
	require.True(t, errors.As(err, &up), "got %v", err)
	assert.Equal(t, form.ReasonRateLimited, up.Reason)
	assert.Equal(t, "gemini: Resource exhausted", up.Message)
}
