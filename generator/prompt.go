package generator

import (
	"fmt"
	"strings"

	"bio_generator/form"
)

// Prompt 表示发送给 LLM 的消息集合，附带本次请求的模型与温度。
type Prompt struct {
	System      string
	User        string
	Model       string
	Temperature float64
}

// BioCharLimit is the length a Twitter bio must fit in.
const BioCharLimit = 160

var toneHints = map[string]string{
	"Professional": "polished and credible, no slang",
	"Casual":       "relaxed and conversational",
	"Sarcastic":    "dry, ironic and self-aware without being mean",
	"Funny":        "playful with a clear joke or twist",
	"Passionate":   "energetic and driven",
	"Thoughtful":   "reflective and sincere",
}

// BuildBioPrompt 根据校验后的请求生成提示词。
func BuildBioPrompt(req form.GenerationRequest) Prompt {
	var sb strings.Builder
	sb.WriteString("You write Twitter bios. Reply with the bio text only: no preamble, no quotes, no hashtags list, no markdown.\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- At most %d characters.\n", BioCharLimit))
	if req.Type() == "Brand" {
		sb.WriteString("- The bio is for a brand or business: speak as the brand, focus on what it offers.\n")
	} else {
		sb.WriteString("- The bio is personal: first person voice is fine, focus on who the person is.\n")
	}
	tone := req.Tone()
	if hint, ok := toneHints[tone]; ok {
		sb.WriteString(fmt.Sprintf("- Tone: %s (%s).\n", tone, hint))
	} else {
		sb.WriteString(fmt.Sprintf("- Tone: %s.\n", tone))
	}
	if req.Emojis() {
		sb.WriteString("- Include a few fitting emojis.\n")
	} else {
		sb.WriteString("- Do not use emojis.\n")
	}

	user := fmt.Sprintf("About me:\n%s\n\nWrite the bio.", req.Content())

	return Prompt{
		System:      sb.String(),
		User:        user,
		Model:       req.Model(),
		Temperature: req.Temperature(),
	}
}
