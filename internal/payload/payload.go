// Package payload models an answer as a tagged value and converts it to and
// from the string form kept in storage and on the wire.
//
// Storage form per question type:
//
//	TEXT, TEXTAREA  raw text
//	SINGLE          option id
//	MULTIPLE        JSON array of option ids
//	SCALE           JSON number
//
// The empty string means "unanswered" for every type.
package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/errors"
)

type Kind string

const (
	KindText        Kind = "text"
	KindChoice      Kind = "choice"
	KindMultiChoice Kind = "multi_choice"
	KindScale       Kind = "scale"
)

// Value is one of Text, Choice, MultiChoice or Scale.
type Value interface {
	Kind() Kind
	sealed()
}

type Text string

type Choice string

type MultiChoice []string

type Scale int

func (Text) Kind() Kind        { return KindText }
func (Choice) Kind() Kind      { return KindChoice }
func (MultiChoice) Kind() Kind { return KindMultiChoice }
func (Scale) Kind() Kind       { return KindScale }

func (Text) sealed()        {}
func (Choice) sealed()      {}
func (MultiChoice) sealed() {}
func (Scale) sealed()       {}

// Decode parses raw according to the question's type. It does not check
// option ids or scale bounds; see Validate.
func Decode(q catalog.Question, raw string) (Value, error) {
	if raw == "" {
		return Text(""), nil
	}
	switch q.Type {
	case catalog.TypeText, catalog.TypeTextArea:
		return Text(raw), nil
	case catalog.TypeSingle:
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, `"`) {
			var id string
			if err := json.Unmarshal([]byte(trimmed), &id); err != nil {
				return nil, errors.NewValidationError("answer", "malformed choice")
			}
			return Choice(id), nil
		}
		return Choice(trimmed), nil
	case catalog.TypeMultiple:
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, errors.NewValidationError("answer", "expected a JSON array of option ids")
		}
		return dedupe(ids), nil
	case catalog.TypeScale:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, errors.NewValidationError("answer", "expected an integer scale value")
		}
		return Scale(int(f)), nil
	}
	return nil, errors.NewValidationError("question", fmt.Sprintf("unsupported type %q", q.Type))
}

// Encode returns the canonical storage string.
func Encode(v Value) string {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Choice:
		return string(val)
	case MultiChoice:
		ids := dedupe(val)
		if ids == nil {
			ids = MultiChoice{}
		}
		b, _ := json.Marshal([]string(ids))
		return string(b)
	case Scale:
		return strconv.Itoa(int(val))
	}
	return ""
}

// Validate checks v is a legal answer for q. Text("") is accepted everywhere.
func Validate(q catalog.Question, v Value) error {
	switch val := v.(type) {
	case Text:
		if val == "" || q.Type == catalog.TypeText || q.Type == catalog.TypeTextArea {
			return nil
		}
		return errors.NewValidationError("answer", fmt.Sprintf("text is not a valid answer for a %s question", q.Type))
	case Choice:
		if q.Type != catalog.TypeSingle {
			return errors.NewValidationError("answer", fmt.Sprintf("single choice is not valid for a %s question", q.Type))
		}
		if !q.HasOption(string(val)) {
			return errors.NewValidationError("answer", fmt.Sprintf("unknown option %q", string(val)))
		}
		return nil
	case MultiChoice:
		if q.Type != catalog.TypeMultiple {
			return errors.NewValidationError("answer", fmt.Sprintf("multiple choice is not valid for a %s question", q.Type))
		}
		for _, id := range val {
			if !q.HasOption(id) {
				return errors.NewValidationError("answer", fmt.Sprintf("unknown option %q", id))
			}
		}
		return nil
	case Scale:
		if q.Type != catalog.TypeScale || q.Scale == nil {
			return errors.NewValidationError("answer", fmt.Sprintf("scale value is not valid for a %s question", q.Type))
		}
		if int(val) < q.Scale.Min || int(val) > q.Scale.Max {
			return errors.NewValidationError("answer", fmt.Sprintf("scale value %d outside [%d, %d]", int(val), q.Scale.Min, q.Scale.Max))
		}
		return nil
	case nil:
		return errors.NewValidationError("answer", "missing")
	}
	return errors.NewValidationError("answer", "unsupported value")
}

// Parse decodes and validates in one step.
func Parse(q catalog.Question, raw string) (Value, error) {
	v, err := Decode(q, raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(q, v); err != nil {
		return nil, err
	}
	return v, nil
}

func dedupe(ids []string) MultiChoice {
	if ids == nil {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make(MultiChoice, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
