package form

import (
	"fmt"
	"strings"
)

// Field names a form field. The string value is the wire name.
type Field string

const (
	FieldModel       Field = "model"
	FieldTemperature Field = "temperature"
	FieldContent     Field = "content"
	FieldType        Field = "type"
	FieldTone        Field = "tone"
	FieldEmojis      Field = "emojis"
)

// Kind tags a Descriptor with the constraint family it declares.
type Kind int

const (
	KindEnum Kind = iota
	KindRange
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindRange:
		return "range"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Messages holds the error text emitted for each way a field can be violated.
// Unused entries stay empty.
type Messages struct {
	Required  string `json:"required,omitempty"`
	Invalid   string `json:"invalid,omitempty"`
	NotFinite string `json:"not_finite,omitempty"`
	TooLow    string `json:"too_low,omitempty"`
	TooHigh   string `json:"too_high,omitempty"`
}

// Descriptor declares one field: its kind, its bounds or allow-list and its messages.
// For KindText, Min and Max count trimmed codepoints.
type Descriptor struct {
	Field    Field    `json:"field"`
	Label    string   `json:"label"`
	Kind     Kind     `json:"kind"`
	Options  []string `json:"options,omitempty"`
	Min      float64  `json:"min,omitempty"`
	Max      float64  `json:"max,omitempty"`
	Step     float64  `json:"step,omitempty"`
	Messages Messages `json:"messages"`
}

// Allow-lists.
var (
	Models = []string{"llama-3.1-8b-instant", "mixtral-8x7b-32768", "llama-3.3-70b-versatile"}
	Types  = []string{"Personal", "Brand"}
	Tones  = []string{"Professional", "Casual", "Sarcastic", "Funny", "Passionate", "Thoughtful"}
)

const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 1.0
	MinContentLength   = 50
	MaxContentLength   = 500
)

// Schema is the static field table consulted by the Validator and by any control that needs an
// allow-list. The zero value has no fields; use DefaultSchema.
type Schema struct {
	fields []Descriptor
}

// DefaultSchema returns the bio request schema with the built-in model allow-list.
func DefaultSchema() Schema {
	return newSchema(Models)
}

func newSchema(models []string) Schema {
	return Schema{fields: []Descriptor{
		enumField(FieldModel, "Model", models),
		{
			Field: FieldTemperature,
			Label: "Temperature",
			Kind:  KindRange,
			Min:   MinTemperature,
			Max:   MaxTemperature,
			Step:  0.1,
			Messages: Messages{
				Required:  "Temperature is required",
				NotFinite: "Temperature must be a finite number",
				TooLow:    fmt.Sprintf("Temperature must be at least %g", MinTemperature),
				TooHigh:   fmt.Sprintf("Temperature must be at most %g", MaxTemperature),
			},
		},
		{
			Field: FieldContent,
			Label: "Content",
			Kind:  KindText,
			Min:   MinContentLength,
			Max:   MaxContentLength,
			Messages: Messages{
				TooLow:  fmt.Sprintf("Content must be at least %d characters", MinContentLength),
				TooHigh: fmt.Sprintf("Content must not exceed %d characters", MaxContentLength),
			},
		},
		enumField(FieldType, "Type", Types),
		enumField(FieldTone, "Tone", Tones),
		{
			Field:    FieldEmojis,
			Label:    "Emojis",
			Kind:     KindBool,
			Messages: Messages{Required: "Emojis is required"},
		},
	}}
}

func enumField(field Field, label string, options []string) Descriptor {
	return Descriptor{
		Field:   field,
		Label:   label,
		Kind:    KindEnum,
		Options: append([]string(nil), options...),
		Messages: Messages{
			Required: label + " is required",
			Invalid:  fmt.Sprintf("%s must be one of: %s", label, strings.Join(options, ", ")),
		},
	}
}

// WithModels returns a copy of s whose model allow-list is extended with extra.
// Empty and duplicate identifiers are skipped.
func (s Schema) WithModels(extra ...string) Schema {
	models := s.Options(FieldModel)
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		seen[m] = true
	}
	for _, m := range extra {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}

	out := Schema{fields: s.Descriptors()}
	for i, d := range out.fields {
		if d.Field == FieldModel {
			out.fields[i] = enumField(FieldModel, d.Label, models)
		}
	}
	return out
}

// Descriptors returns the field table in declaration order.
func (s Schema) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.fields))
	for i, d := range s.fields {
		d.Options = append([]string(nil), d.Options...)
		out[i] = d
	}
	return out
}

// Fields returns the field names in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, d := range s.fields {
		out[i] = d.Field
	}
	return out
}

// Lookup returns the descriptor for field.
func (s Schema) Lookup(field Field) (Descriptor, bool) {
	for _, d := range s.fields {
		if d.Field == field {
			d.Options = append([]string(nil), d.Options...)
			return d, true
		}
	}
	return Descriptor{}, false
}

// Options returns the allow-list of an enum field, or nil.
func (s Schema) Options(field Field) []string {
	d, ok := s.Lookup(field)
	if !ok {
		return nil
	}
	return d.Options
}

// Allows reports whether value is an exact, case-sensitive member of the field's allow-list.
func (s Schema) Allows(field Field, value string) bool {
	for _, d := range s.fields {
		if d.Field != field {
			continue
		}
		for _, o := range d.Options {
			if o == value {
				return true
			}
		}
	}
	return false
}

// Defaults returns a fresh draft with the documented initial values.
func (s Schema) Defaults() Draft {
	model := firstOption(s, FieldModel)
	temp := DefaultTemperature
	content := ""
	typ := firstOption(s, FieldType)
	tone := firstOption(s, FieldTone)
	emojis := false
	return Draft{
		Model:       &model,
		Temperature: &temp,
		Content:     &content,
		Type:        &typ,
		Tone:        &tone,
		Emojis:      &emojis,
	}
}

func firstOption(s Schema, field Field) string {
	if opts := s.Options(field); len(opts) > 0 {
		return opts[0]
	}
	return ""
}

// WithDefaultModel returns a copy of s whose model allow-list starts with model, so
// Defaults selects it. The model is added when it is not already allowed.
func (s Schema) WithDefaultModel(model string) Schema {
	if model == "" {
		return s
	}
	models := []string{model}
	for _, m := range s.Options(FieldModel) {
		if m != model {
			models = append(models, m)
		}
	}
	out := Schema{fields: s.Descriptors()}
	for i, d := range out.fields {
		if d.Field == FieldModel {
			out.fields[i] = enumField(FieldModel, d.Label, models)
		}
	}
	return out
}
