package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var _ LLMClient = (*GeminiLLM)(nil)

// GeminiLLM implements LLMClient with the Google Gemini API.
type GeminiLLM struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or llm.api_key_env")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GeminiLLM{client: gc, model: cfg.Model, maxTokens: maxTokens}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	model := prompt.Model
	if model == "" {
		model = g.model
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt.User), buildGeminiConfig(prompt, g.maxTokens))
	if err != nil {
		return "", geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func buildGeminiConfig(prompt Prompt, maxTokens int) *genai.GenerateContentConfig {
	temp := float32(prompt.Temperature)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     &temp,
	}
	if prompt.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}
	return config
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return upstreamError("gemini", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("gemini: %w", err)
}
