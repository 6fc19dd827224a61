package form

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Validator applies a Schema to drafts. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema Schema
}

// NewValidator returns a Validator for schema. An empty schema falls back to DefaultSchema.
func NewValidator(schema Schema) *Validator {
	if len(schema.fields) == 0 {
		schema = DefaultSchema()
	}
	return &Validator{schema: schema}
}

var defaultValidator = NewValidator(DefaultSchema())

// Validate checks d against the default schema.
func Validate(d Draft) (GenerationRequest, error) {
	return defaultValidator.Validate(d)
}

// Schema returns the schema the validator enforces.
func (v *Validator) Schema() Schema { return v.schema }

// Validate checks every field of d and returns either a normalized request or a
// ValidationErrors holding one message per violated field.
func (v *Validator) Validate(d Draft) (GenerationRequest, error) {
	errs := ValidationErrors{}
	for _, desc := range v.schema.fields {
		if msg, ok := v.check(desc, d); ok {
			errs[desc.Field] = msg
		}
	}
	if len(errs) > 0 {
		return GenerationRequest{}, errs
	}

	return GenerationRequest{
		model:       *d.Model,
		temperature: *d.Temperature,
		content:     strings.TrimSpace(*d.Content),
		typ:         *d.Type,
		tone:        *d.Tone,
		emojis:      *d.Emojis,
	}, nil
}

// ValidateField checks a single field of d. It reports the same verdict Validate would
// give for that field.
func (v *Validator) ValidateField(d Draft, field Field) (string, bool) {
	for _, desc := range v.schema.fields {
		if desc.Field == field {
			return v.check(desc, d)
		}
	}
	return "", false
}

func (v *Validator) check(desc Descriptor, d Draft) (string, bool) {
	switch desc.Kind {
	case KindEnum:
		s := d.stringValue(desc.Field)
		if s == nil || *s == "" {
			return desc.Messages.Required, true
		}
		for _, o := range desc.Options {
			if o == *s {
				return "", false
			}
		}
		return desc.Messages.Invalid, true

	case KindRange:
		t := d.Temperature
		switch {
		case t == nil:
			return desc.Messages.Required, true
		case math.IsNaN(*t) || math.IsInf(*t, 0):
			return desc.Messages.NotFinite, true
		case *t < desc.Min:
			return desc.Messages.TooLow, true
		case *t > desc.Max:
			return desc.Messages.TooHigh, true
		}
		return "", false

	case KindText:
		var s string
		if p := d.stringValue(desc.Field); p != nil {
			s = *p
		}
		n := utf8.RuneCountInString(strings.TrimSpace(s))
		switch {
		case float64(n) < desc.Min:
			return desc.Messages.TooLow, true
		case float64(n) > desc.Max:
			return desc.Messages.TooHigh, true
		}
		return "", false

	case KindBool:
		if d.Emojis == nil {
			return desc.Messages.Required, true
		}
		return "", false
	}
	return "", false
}
