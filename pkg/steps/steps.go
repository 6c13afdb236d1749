// Package steps parses the free-text extraction instructions attached to
// property records ("1. Enter 12345 in Account Number  2. Click Search")
// into a structured sequence browser routines can execute. The phrasing was
// hand-written per property in the source spreadsheets, so the grammar is
// deliberately tiny; anything it does not recognize is an error rather than
// a silent no-op.
package steps

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Action is the kind of one parsed instruction.
type Action string

const (
	// ActionFill enters a value into a named field.
	ActionFill Action = "fill"
	// ActionClick activates a named control or link.
	ActionClick Action = "click"
	// ActionNavigate means the record's link already lands on the bill.
	ActionNavigate Action = "navigate"
	// ActionSearch describes a site-specific search flow; the details
	// text is interpreted by the jurisdiction routine.
	ActionSearch Action = "search"
	// ActionExtract names a labeled value to read off the final page.
	ActionExtract Action = "extract"
)

// Instruction is one parsed step.
type Instruction struct {
	Action Action
	// Field and Value are set for fill instructions.
	Field string
	Value string
	// Target is the control to click or the label to extract.
	Target string
	// Details preserves the raw step text for search instructions.
	Details string
}

// ErrUnrecognized marks phrasing outside the supported grammar. Routines
// fail the record with an explicit note instead of guessing.
var ErrUnrecognized = errors.New("unrecognized extraction step")

var stepSplitRe = regexp.MustCompile(`\d+\.\s*`)

// Parse tokenizes the raw instruction text. Empty input and the entity
// placeholders yield no instructions and no error.
func Parse(raw string) ([]Instruction, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "entity" || trimmed == "sub-entity" {
		return nil, nil
	}

	var instructions []Instruction
	for _, step := range stepSplitRe.Split(trimmed, -1) {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		inst, err := parseStep(step)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, inst)
	}
	return instructions, nil
}

func parseStep(step string) (Instruction, error) {
	switch {
	case strings.Contains(step, "Enter") && strings.Contains(step, " in "):
		value, field, _ := strings.Cut(step, " in ")
		value = strings.TrimSpace(strings.Replace(value, "Enter", "", 1))
		field = strings.TrimSpace(field)
		if value == "" || field == "" {
			return Instruction{}, fmt.Errorf("%w: %q", ErrUnrecognized, step)
		}
		return Instruction{Action: ActionFill, Field: field, Value: value}, nil

	case strings.Contains(step, "Click"):
		target := strings.TrimSpace(strings.Replace(step, "Click", "", 1))
		if target == "" {
			return Instruction{}, fmt.Errorf("%w: %q", ErrUnrecognized, step)
		}
		return Instruction{Action: ActionClick, Target: target}, nil

	case strings.Contains(step, "Direct Link"):
		return Instruction{Action: ActionNavigate}, nil

	case strings.Contains(strings.ToLower(step), "search"):
		return Instruction{Action: ActionSearch, Details: step}, nil

	// A quoted phrase names a labeled value to read off the page.
	case strings.HasPrefix(step, `"`) && strings.HasSuffix(step, `"`) && len(step) > 2:
		return Instruction{Action: ActionExtract, Target: strings.Trim(step, `"`)}, nil

	default:
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnrecognized, step)
	}
}

// FillValue returns the value of the first fill instruction whose field name
// contains the given substring (case-insensitive).
func FillValue(instructions []Instruction, fieldContains string) (string, bool) {
	needle := strings.ToLower(fieldContains)
	for _, inst := range instructions {
		if inst.Action == ActionFill && strings.Contains(strings.ToLower(inst.Field), needle) {
			return inst.Value, true
		}
	}
	return "", false
}

// SearchDetails returns the details of the first search instruction whose
// text contains the given substring (case-insensitive).
func SearchDetails(instructions []Instruction, contains string) (string, bool) {
	needle := strings.ToLower(contains)
	for _, inst := range instructions {
		if inst.Action == ActionSearch && strings.Contains(strings.ToLower(inst.Details), needle) {
			return inst.Details, true
		}
	}
	return "", false
}
