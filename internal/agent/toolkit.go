package agent

import (
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/window"
)

// Toolkit is the inspected UI system as seen by an agent: a window
// source, window writes and the running animations.
type Toolkit interface {
	window.Backend
	window.Editor

	// Animations returns the running animations.
	Animations() ([]model.Animation, error)
	// SetAnimationsEnabled pauses or resumes every animation.
	SetAnimationsEnabled(enabled bool) error
	// PauseAnimation pauses one animation.
	PauseAnimation(id int) error
}

// X11Toolkit inspects X11 clients. X11 has no animations of its own.
type X11Toolkit struct {
	*window.X11Backend
}

var _ Toolkit = (*X11Toolkit)(nil)

// NewX11Toolkit connects to the X server named by $DISPLAY.
func NewX11Toolkit() (*X11Toolkit, error) {
	backend, err := window.NewX11Backend()
	if err != nil {
		return nil, err
	}
	return &X11Toolkit{X11Backend: backend}, nil
}

func (t *X11Toolkit) Animations() ([]model.Animation, error) {
	return nil, nil
}

func (t *X11Toolkit) SetAnimationsEnabled(bool) error {
	return nil
}

func (t *X11Toolkit) PauseAnimation(int) error {
	return ErrNoAnimations
}
