package window

import (
	"image/color"

	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Backend defines the interface for window discovery backends
type Backend interface {
	// ListWindows returns every live top-level window, popups included
	ListWindows() ([]*model.WindowInfo, error)

	// Close closes the connection to the display server
	Close() error

	// Name returns the backend name (e.g., "x11")
	Name() string
}

// Editor writes window properties back into the display server.
type Editor interface {
	SetTitle(window uint32, title string) error
	MoveResize(window uint32, geometry model.Geometry) error
	SetBorderWidth(window uint32, width int) error
	SetBorderColor(window uint32, c color.Color) error
}

// WindowsOf returns the top-level windows of a process that are not
// popups, in backend order.
func WindowsOf(windows []*model.WindowInfo, pid int) []*model.WindowInfo {
	stages := make([]*model.WindowInfo, 0)
	for _, w := range windows {
		if w.PID == pid && !IsPopup(w) {
			stages = append(stages, w)
		}
	}
	return stages
}
