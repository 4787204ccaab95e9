package model

// Window types reported through _NET_WM_WINDOW_TYPE, without the
// "_NET_WM_WINDOW_TYPE_" prefix.
const (
	WindowTypeNormal       = "NORMAL"
	WindowTypeDialog       = "DIALOG"
	WindowTypeMenu         = "MENU"
	WindowTypeDropdownMenu = "DROPDOWN_MENU"
	WindowTypePopupMenu    = "POPUP_MENU"
	WindowTypeTooltip      = "TOOLTIP"
	WindowTypeCombo        = "COMBO"
	WindowTypeDND          = "DND"
	WindowTypeNotification = "NOTIFICATION"
)

// WindowInfo represents information about a window
type WindowInfo struct {
	ID               uint32   `json:"id"`
	Owner            uint32   `json:"owner,omitempty"` // WM_TRANSIENT_FOR, 0 when unowned
	Title            string   `json:"title"`
	Class            string   `json:"class"`
	PID              int      `json:"pid"`
	Geometry         Geometry `json:"geometry"`
	BorderWidth      int      `json:"border_width"`
	BorderColor      string   `json:"border_color,omitempty"`
	OverrideRedirect bool     `json:"override_redirect"`
	Types            []string `json:"types,omitempty"`
	Mapped           bool     `json:"mapped"`

	// Decoration the window manager draws around the window
	// (_NET_FRAME_EXTENTS).
	FrameExtents Extents `json:"frame_extents"`
	// Client resize preferences (WM_NORMAL_HINTS).
	SizeHints SizeHints `json:"size_hints"`
}

// Extents are edge widths in pixels.
type Extents struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// SizeHints holds the ICCCM size hints a client set. Zero fields were
// not set.
type SizeHints struct {
	MinWidth   int `json:"min_width,omitempty"`
	MinHeight  int `json:"min_height,omitempty"`
	MaxWidth   int `json:"max_width,omitempty"`
	MaxHeight  int `json:"max_height,omitempty"`
	BaseWidth  int `json:"base_width,omitempty"`
	BaseHeight int `json:"base_height,omitempty"`
	WidthInc   int `json:"width_inc,omitempty"`
	HeightInc  int `json:"height_inc,omitempty"`
}

// HasType reports whether the window carries the given window type.
func (w *WindowInfo) HasType(t string) bool {
	for _, wt := range w.Types {
		if wt == t {
			return true
		}
	}
	return false
}

// Geometry represents window geometry
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PopupWindow is one entry of a flattened popup forest, in depth-first
// order. Owner is the stage window for roots.
type PopupWindow struct {
	ID    uint32 `json:"id"`
	Owner uint32 `json:"owner"`
	Depth int    `json:"depth"`
	Title string `json:"title,omitempty"`
}
