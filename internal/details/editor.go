package details

import (
	"image/color"

	"github.com/rs/zerolog"
)

// Editor is the value representation selected by a detail's ValueKind.
// Exactly one of the typed fields is set for non-text kinds; when a
// structured value does not parse, only Text is kept.
type Editor struct {
	Kind        ValueKind         `json:"kind"`
	Text        string            `json:"text"`
	Affordance  string            `json:"affordance,omitempty"`
	Color       *color.RGBA       `json:"color,omitempty"`
	Insets      *Insets           `json:"insets,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// Editor builds the value editor for d. Colour values never fail: an
// unparseable colour shows as black.
func (d Detail) Editor(log *zerolog.Logger) Editor {
	editor := Editor{
		Kind:       d.ValueKind,
		Text:       d.Value,
		Affordance: d.Affordance(),
	}

	switch d.ValueKind {
	case ValueColor:
		c := ColorOrBlack(d.Value, log)
		editor.Color = &c
	case ValueInsets:
		if insets, err := ParseInsets(d.Value); err == nil {
			editor.Insets = &insets
		}
	case ValueConstraints, ValueGridConstraints:
		if constraints, err := ParseConstraints(d.Value); err == nil {
			editor.Constraints = constraints
		}
	default:
		editor.Kind = ValueText
	}

	return editor
}
