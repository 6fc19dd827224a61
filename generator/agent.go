package generator

import (
	"context"
	"errors"
	"fmt"

	"bio_generator/form"
)

var _ form.GenerationService = (*Agent)(nil)

// Agent 负责根据校验后的请求调用模型并整理输出，实现 form.GenerationService。
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Generate builds the bio prompt for req, calls the model once and returns plain text.
func (a *Agent) Generate(ctx context.Context, req form.GenerationRequest) (form.GeneratedBio, error) {
	if req.IsZero() {
		return form.GeneratedBio{}, &form.UpstreamError{Reason: form.ReasonInvalidRequest, Message: "generator: request was not validated"}
	}
	raw, err := a.llm.Complete(ctx, BuildBioPrompt(req))
	if err != nil {
		return form.GeneratedBio{}, err
	}
	text, err := PostProcess(raw)
	if err != nil {
		return form.GeneratedBio{}, fmt.Errorf("generator: %w", err)
	}
	return form.GeneratedBio{Text: text}, nil
}
