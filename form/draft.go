package form

import (
	"encoding/json"
	"fmt"
)

// Draft is the mutable, possibly invalid working copy of a request. A nil field is absent.
type Draft struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Content     *string  `json:"content,omitempty"`
	Type        *string  `json:"type,omitempty"`
	Tone        *string  `json:"tone,omitempty"`
	Emojis      *bool    `json:"emojis,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with a FormState.
func (d Draft) Clone() Draft {
	return Draft{
		Model:       clonePtr(d.Model),
		Temperature: clonePtr(d.Temperature),
		Content:     clonePtr(d.Content),
		Type:        clonePtr(d.Type),
		Tone:        clonePtr(d.Tone),
		Emojis:      clonePtr(d.Emojis),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Set assigns value to field. Accepted Go types follow the field kind: string for model,
// content, type and tone; any float or int for temperature; bool for emojis. A nil value
// clears the field. JSON numbers decoded as float64 and json.Number are accepted.
func (d *Draft) Set(field Field, value any) error {
	if value == nil {
		return d.Clear(field)
	}
	switch field {
	case FieldModel, FieldContent, FieldType, FieldTone:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: want string, got %T: %w", field, value, ErrFieldType)
		}
		switch field {
		case FieldModel:
			d.Model = &s
		case FieldContent:
			d.Content = &s
		case FieldType:
			d.Type = &s
		case FieldTone:
			d.Tone = &s
		}
	case FieldTemperature:
		f, err := toFloat(value)
		if err != nil {
			return fmt.Errorf("%s: %v: %w", field, err, ErrFieldType)
		}
		d.Temperature = &f
	case FieldEmojis:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s: want bool, got %T: %w", field, value, ErrFieldType)
		}
		d.Emojis = &b
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return nil
}

// Clear marks field as absent.
func (d *Draft) Clear(field Field) error {
	switch field {
	case FieldModel:
		d.Model = nil
	case FieldTemperature:
		d.Temperature = nil
	case FieldContent:
		d.Content = nil
	case FieldType:
		d.Type = nil
	case FieldTone:
		d.Tone = nil
	case FieldEmojis:
		d.Emojis = nil
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("want number, got %T", value)
	}
}

func (d Draft) stringValue(field Field) *string {
	switch field {
	case FieldModel:
		return d.Model
	case FieldContent:
		return d.Content
	case FieldType:
		return d.Type
	case FieldTone:
		return d.Tone
	}
	return nil
}
