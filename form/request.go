package form

import "encoding/json"

// GenerationRequest is a validated bio request. Its fields are unexported so the only way to
// obtain one is Validator.Validate; a value is therefore never partially valid.
type GenerationRequest struct {
	model       string
	temperature float64
	content     string
	typ         string
	tone        string
	emojis      bool
}

func (r GenerationRequest) Model() string        { return r.model }
func (r GenerationRequest) Temperature() float64 { return r.temperature }
func (r GenerationRequest) Content() string      { return r.content }
func (r GenerationRequest) Type() string         { return r.typ }
func (r GenerationRequest) Tone() string         { return r.tone }
func (r GenerationRequest) Emojis() bool         { return r.emojis }

// IsZero reports whether r was never produced by a Validator.
func (r GenerationRequest) IsZero() bool { return r == GenerationRequest{} }

// Payload is the flat wire record sent to a Generation Service.
type Payload struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Content     string  `json:"content"`
	Type        string  `json:"type"`
	Tone        string  `json:"tone"`
	Emojis      bool    `json:"emojis"`
}

// Payload returns the wire form of r.
func (r GenerationRequest) Payload() Payload {
	return Payload{
		Model:       r.model,
		Temperature: r.temperature,
		Content:     r.content,
		Type:        r.typ,
		Tone:        r.tone,
		Emojis:      r.emojis,
	}
}

func (r GenerationRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload())
}

// Draft converts a received payload back into a draft so it can be validated again.
func (p Payload) Draft() Draft {
	return Draft{
		Model:       &p.Model,
		Temperature: &p.Temperature,
		Content:     &p.Content,
		Type:        &p.Type,
		Tone:        &p.Tone,
		Emojis:      &p.Emojis,
	}
}

// GeneratedBio is the text returned by a Generation Service.
type GeneratedBio struct {
	Text string `json:"text"`
}
