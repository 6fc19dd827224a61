// Package interactive walks a user through the bio form in a terminal and shows the result.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bio_generator/form"
)

// Session drives one form.State from terminal prompts.
type Session struct {
	state    *form.State
	prompter Prompter
}

func NewSession(st *form.State, p Prompter) (*Session, error) {
	if st == nil {
		return nil, errors.New("interactive: form state is required")
	}
	if p == nil {
		return nil, errors.New("interactive: prompter is required")
	}
	return &Session{state: st, prompter: p}, nil
}

// FieldValidator returns a check that parses raw for field, applies it to a copy of base
// and reports the field's validation message, if any.
func FieldValidator(v *form.Validator, base form.Draft, field form.Field) func(string) error {
	return func(raw string) error {
		val, err := parseAnswer(field, raw)
		if err != nil {
			return err
		}
		d := base.Clone()
		if err := d.Set(field, val); err != nil {
			return err
		}
		if msg, bad := v.ValidateField(d, field); bad {
			return errors.New(msg)
		}
		return nil
	}
}

func parseAnswer(field form.Field, raw string) (any, error) {
	if field != form.FieldTemperature {
		return raw, nil
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, errors.New("Temperature must be a number")
	}
	return t, nil
}

// Fill prompts for every field in schema order, starting from the current draft.
func (s *Session) Fill(ctx context.Context) error {
	for _, desc := range s.state.Validator().Schema().Descriptors() {
		if err := s.ask(ctx, desc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ask(ctx context.Context, desc form.Descriptor) error {
	v := s.state.Validator()
	draft := s.state.Snapshot().Draft

	var value any
	switch desc.Kind {
	case form.KindEnum:
		cur := ""
		if p := stringField(draft, desc.Field); p != nil {
			cur = *p
		}
		ans, err := s.prompter.Select(ctx, SelectConfig{Message: desc.Label, Options: desc.Options, Default: cur})
		if err != nil {
			return err
		}
		value = ans

	case form.KindRange:
		cur := ""
		if draft.Temperature != nil {
			cur = strconv.FormatFloat(*draft.Temperature, 'g', -1, 64)
		}
		ans, err := s.prompter.Input(ctx, InputConfig{
			Message:   desc.Label,
			Default:   cur,
			Help:      fmt.Sprintf("A number from %g to %g; higher is more inventive.", desc.Min, desc.Max),
			Validator: FieldValidator(v, draft, desc.Field),
		})
		if err != nil {
			return err
		}
		if value, err = parseAnswer(desc.Field, ans); err != nil {
			return err
		}

	case form.KindText:
		cur := ""
		if draft.Content != nil {
			cur = *draft.Content
		}
		ans, err := s.prompter.TextArea(ctx, InputConfig{
			Message:   "About you",
			Default:   cur,
			Help:      fmt.Sprintf("Between %g and %g characters about yourself or your brand.", desc.Min, desc.Max),
			Validator: FieldValidator(v, draft, desc.Field),
		})
		if err != nil {
			return err
		}
		value = ans

	case form.KindBool:
		cur := false
		if draft.Emojis != nil {
			cur = *draft.Emojis
		}
		ans, err := s.prompter.Confirm(ctx, ConfirmConfig{Message: "Include emojis?", Default: cur})
		if err != nil {
			return err
		}
		value = ans
	}
	return s.state.Edit(desc.Field, value)
}

func stringField(d form.Draft, field form.Field) *string {
	switch field {
	case form.FieldModel:
		return d.Model
	case form.FieldType:
		return d.Type
	case form.FieldTone:
		return d.Tone
	case form.FieldContent:
		return d.Content
	}
	return nil
}

// Run fills the form, submits it and waits for the bio. Invalid fields are asked again;
// failed submissions are retried while the user confirms.
func (s *Session) Run(ctx context.Context) (form.GeneratedBio, error) {
	if err := s.Fill(ctx); err != nil {
		return form.GeneratedBio{}, err
	}
	submit := s.state.Submit
	for {
		err := submit(ctx)
		var verrs form.ValidationErrors
		if errors.As(err, &verrs) {
			if err := s.fix(ctx, verrs); err != nil {
				return form.GeneratedBio{}, err
			}
			submit = s.state.Submit
			continue
		}
		if err != nil {
			return form.GeneratedBio{}, err
		}

		if err := s.prompter.Info(ctx, "Generating your bio..."); err != nil {
			return form.GeneratedBio{}, err
		}
		o, err := s.state.Await(ctx)
		if err != nil {
			return form.GeneratedBio{}, err
		}
		if o.Status == form.OutcomeSucceeded && o.Bio != nil {
			if err := s.prompter.Info(ctx, "\n"+o.Bio.Text+"\n"); err != nil {
				return form.GeneratedBio{}, err
			}
			return *o.Bio, nil
		}

		if err := s.prompter.Info(ctx, "Generation failed: "+describe(o.Err)); err != nil {
			return form.GeneratedBio{}, err
		}
		again, err := s.prompter.Confirm(ctx, ConfirmConfig{Message: "Try again?", Default: true})
		if err != nil {
			return form.GeneratedBio{}, err
		}
		if !again {
			return form.GeneratedBio{}, o.Err
		}
		submit = s.state.Retry
	}
}

func (s *Session) fix(ctx context.Context, verrs form.ValidationErrors) error {
	schema := s.state.Validator().Schema()
	for _, f := range verrs.Fields() {
		if err := s.prompter.Info(ctx, verrs[f]); err != nil {
			return err
		}
		desc, ok := schema.Lookup(f)
		if !ok {
			continue
		}
		if err := s.ask(ctx, desc); err != nil {
			return err
		}
	}
	return nil
}

func describe(e *form.SubmitError) string {
	if e == nil {
		return "unknown error"
	}
	switch {
	case e.Kind == form.ErrorTimeout:
		return "the service did not respond in time"
	case e.Reason == form.ReasonRateLimited:
		return "rate limited, wait a moment: " + e.Detail
	default:
		return e.Error()
	}
}
