package agent

import "errors"

var (
	// ErrUnknownStage is returned for a stage id the agent does not
	// know, or whose window went away.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrUnknownNode is returned when selecting a window that is neither
	// the stage window nor one of its popups.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoSelection is returned when editing a detail with no node
	// selected.
	ErrNoSelection = errors.New("no node selected")

	// ErrUnknownDetail is returned for a pane/id pair that names no
	// property.
	ErrUnknownDetail = errors.New("unknown detail")

	// ErrNotEditable is returned when writing a read-only or bound
	// property.
	ErrNotEditable = errors.New("property is not editable")

	// ErrInvalidValue is returned when an edit cannot be coerced to the
	// property type or is out of range.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNoAnimations is returned by toolkits without animation support.
	ErrNoAnimations = errors.New("animations not supported")
)
