package inspector

import "errors"

var (
	// ErrNoActiveStage is returned by stage operations before any stage
	// was activated.
	ErrNoActiveStage = errors.New("no active stage")

	// ErrUnknownStage is returned when activating a stage the inspector
	// does not track.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrUnknownDetail is returned when submitting a detail that is not
	// shown.
	ErrUnknownDetail = errors.New("unknown detail")

	// ErrEditRejected is returned when the target refused an edit. The
	// reason is shown as status text.
	ErrEditRejected = errors.New("edit rejected")
)
