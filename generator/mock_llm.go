package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	// 取用户自述的第一句拼成简介。
	about := strings.TrimPrefix(prompt.User, "About me:\n")
	if i := strings.Index(about, "\n\nWrite the bio."); i >= 0 {
		about = about[:i]
	}
	first := about
	if i := strings.IndexAny(about, ".!?"); i >= 0 {
		first = about[:i+1]
	}
	first = strings.TrimSpace(first)
	if r := []rune(first); len(r) > BioCharLimit-2 {
		first = string(r[:BioCharLimit-2])
	}
	var sb strings.Builder
	sb.WriteString("**")
	sb.WriteString(first)
	sb.WriteString("**")
	if strings.Contains(prompt.System, "Include a few fitting emojis") {
		sb.WriteString(" ✨")
	}
	return sb.String(), nil
}
