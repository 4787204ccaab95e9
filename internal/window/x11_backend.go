package window

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

const windowTypePrefix = "_NET_WM_WINDOW_TYPE_"

// X11Backend implements Backend and Editor using X11
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	mu    sync.Mutex
	atoms map[string]xproto.Atom
	names map[xproto.Atom]string
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
		names:  make(map[xproto.Atom]string),
	}, nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// ListWindows returns the managed windows from EWMH _NET_CLIENT_LIST
// merged with the direct children of the root window, which is where
// override-redirect popups live.
func (b *X11Backend) ListWindows() ([]*model.WindowInfo, error) {
	log := logger.WithComponent("x11-backend")

	ids, err := b.clientList()
	if err != nil {
		log.Debug().Err(err).Msg("ListWindows: EWMH failed, using QueryTree only")
	}

	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		if len(ids) == 0 {
			return nil, fmt.Errorf("failed to query window tree: %w", err)
		}
		log.Debug().Err(err).Msg("ListWindows: QueryTree failed, using EWMH only")
	} else {
		ids = append(ids, tree.Children...)
	}

	seen := make(map[xproto.Window]bool, len(ids))
	windows := make([]*model.WindowInfo, 0, len(ids))
	skipped := 0
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		info, err := b.getWindowInfo(id)
		if err != nil {
			skipped++
			continue
		}
		windows = append(windows, info)
	}

	log.Debug().
		Int("found", len(windows)).
		Int("skipped", skipped).
		Msg("ListWindows: summary")

	return windows, nil
}

// clientList reads _NET_CLIENT_LIST (EWMH standard)
func (b *X11Backend) clientList() ([]xproto.Window, error) {
	clientListAtom, err := b.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST atom: %w", err)
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		b.root,
		clientListAtom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}

	values := decodeUint32s(reply.Value)
	windows := make([]xproto.Window, len(values))
	for i, v := range values {
		windows[i] = xproto.Window(v)
	}
	return windows, nil
}

// GetWindowInfo returns the description of one window
func (b *X11Backend) GetWindowInfo(windowID uint32) (*model.WindowInfo, error) {
	return b.getWindowInfo(xproto.Window(windowID))
}

// getWindowInfo retrieves information about a window
func (b *X11Backend) getWindowInfo(win xproto.Window) (*model.WindowInfo, error) {
	attrs, err := xproto.GetWindowAttributes(b.conn, win).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window attributes: %w", err)
	}

	info := &model.WindowInfo{
		ID:               uint32(win),
		OverrideRedirect: attrs.OverrideRedirect,
		Mapped:           attrs.MapState == xproto.MapStateViewable,
	}

	// Get window geometry
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err == nil {
		info.Geometry = model.Geometry{
			X:      int(geom.X),
			Y:      int(geom.Y),
			Width:  int(geom.Width),
			Height: int(geom.Height),
		}
		info.BorderWidth = int(geom.BorderWidth)
	}

	// Get window title
	if atom, err := b.getAtom("_NET_WM_NAME"); err == nil {
		if title, err := b.getProperty(win, atom); err == nil {
			info.Title = title
		}
	}
	if info.Title == "" {
		if title, err := b.getProperty(win, xproto.AtomWmName); err == nil {
			info.Title = title
		}
	}

	// WM_CLASS format is: instance\0class\0 (two null-terminated strings)
	if classRaw, err := b.getProperty(win, xproto.AtomWmClass); err == nil {
		parts := strings.Split(classRaw, "\x00")
		if len(parts) >= 2 && parts[1] != "" {
			info.Class = parts[1]
		} else if len(parts) >= 1 && parts[0] != "" {
			info.Class = parts[0]
		}
	}

	if atom, err := b.getAtom("_NET_WM_PID"); err == nil {
		if values := b.getCardinals(win, atom, xproto.AtomCardinal); len(values) > 0 {
			info.PID = int(values[0])
		}
	}

	if values := b.getCardinals(win, xproto.AtomWmTransientFor, xproto.AtomWindow); len(values) > 0 {
		info.Owner = values[0]
	}

	if atom, err := b.getAtom("_NET_WM_WINDOW_TYPE"); err == nil {
		for _, v := range b.getCardinals(win, atom, xproto.AtomAtom) {
			name, err := b.atomName(xproto.Atom(v))
			if err != nil {
				continue
			}
			info.Types = append(info.Types, strings.TrimPrefix(name, windowTypePrefix))
		}
	}

	if atom, err := b.getAtom("_NET_FRAME_EXTENTS"); err == nil {
		if values := b.getCardinals(win, atom, xproto.AtomCardinal); len(values) >= 4 {
			info.FrameExtents = model.Extents{
				Left: int(values[0]), Right: int(values[1]), Top: int(values[2]), Bottom: int(values[3]),
			}
		}
	}

	info.SizeHints = decodeSizeHints(b.getCardinals(win, xproto.AtomWmNormalHints, xproto.AtomWmSizeHints))

	return info, nil
}

// WM_SIZE_HINTS flags.
const (
	sizeHintMin       = 1 << 4
	sizeHintMax       = 1 << 5
	sizeHintResizeInc = 1 << 6
	sizeHintBase      = 1 << 8
)

// decodeSizeHints reads the fields of a WM_SIZE_HINTS value whose flag
// is set. Short values decode as no hints.
func decodeSizeHints(values []uint32) model.SizeHints {
	var hints model.SizeHints
	if len(values) < 17 {
		return hints
	}
	flags := values[0]
	if flags&sizeHintMin != 0 {
		hints.MinWidth, hints.MinHeight = int(int32(values[5])), int(int32(values[6]))
	}
	if flags&sizeHintMax != 0 {
		hints.MaxWidth, hints.MaxHeight = int(int32(values[7])), int(int32(values[8]))
	}
	if flags&sizeHintResizeInc != 0 {
		hints.WidthInc, hints.HeightInc = int(int32(values[9])), int(int32(values[10]))
	}
	if flags&sizeHintBase != 0 {
		hints.BaseWidth, hints.BaseHeight = int(int32(values[15])), int(int32(values[16]))
	}
	return hints
}

// SetTitle writes both _NET_WM_NAME and WM_NAME.
func (b *X11Backend) SetTitle(window uint32, title string) error {
	utf8Atom, err := b.getAtom("UTF8_STRING")
	if err != nil {
		return fmt.Errorf("failed to get UTF8_STRING atom: %w", err)
	}
	netNameAtom, err := b.getAtom("_NET_WM_NAME")
	if err != nil {
		return fmt.Errorf("failed to get _NET_WM_NAME atom: %w", err)
	}

	data := []byte(title)
	if err := xproto.ChangePropertyChecked(b.conn, xproto.PropModeReplace, xproto.Window(window),
		netNameAtom, utf8Atom, 8, uint32(len(data)), data).Check(); err != nil {
		return fmt.Errorf("failed to set _NET_WM_NAME: %w", err)
	}
	if err := xproto.ChangePropertyChecked(b.conn, xproto.PropModeReplace, xproto.Window(window),
		xproto.AtomWmName, xproto.AtomString, 8, uint32(len(data)), data).Check(); err != nil {
		return fmt.Errorf("failed to set WM_NAME: %w", err)
	}
	return nil
}

// MoveResize moves and resizes a window.
func (b *X11Backend) MoveResize(window uint32, g model.Geometry) error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", g.Width, g.Height)
	}
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(int32(g.X)), uint32(int32(g.Y)), uint32(g.Width), uint32(g.Height)}
	if err := xproto.ConfigureWindowChecked(b.conn, xproto.Window(window), mask, values).Check(); err != nil {
		return fmt.Errorf("failed to configure window: %w", err)
	}
	return nil
}

// SetBorderWidth sets the X border width of a window.
func (b *X11Backend) SetBorderWidth(window uint32, width int) error {
	if width < 0 {
		return fmt.Errorf("invalid border width %d", width)
	}
	if err := xproto.ConfigureWindowChecked(b.conn, xproto.Window(window),
		xproto.ConfigWindowBorderWidth, []uint32{uint32(width)}).Check(); err != nil {
		return fmt.Errorf("failed to set border width: %w", err)
	}
	return nil
}

// SetBorderColor sets the border pixel of a window. The default screen
// is assumed to be TrueColor.
func (b *X11Backend) SetBorderColor(window uint32, c color.Color) error {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return fmt.Errorf("invalid border color %v", c)
	}
	r, g, bl := cf.RGB255()
	pixel := uint32(r)<<16 | uint32(g)<<8 | uint32(bl)
	if err := xproto.ChangeWindowAttributesChecked(b.conn, xproto.Window(window),
		xproto.CwBorderPixel, []uint32{pixel}).Check(); err != nil {
		return fmt.Errorf("failed to set border color: %w", err)
	}
	return nil
}

// getAtom gets an atom ID by name
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	b.mu.Lock()
	atom, ok := b.atoms[name]
	b.mu.Unlock()
	if ok {
		return atom, nil
	}

	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	b.atoms[name] = reply.Atom
	b.names[reply.Atom] = name
	b.mu.Unlock()
	return reply.Atom, nil
}

func (b *X11Backend) atomName(atom xproto.Atom) (string, error) {
	b.mu.Lock()
	name, ok := b.names[atom]
	b.mu.Unlock()
	if ok {
		return name, nil
	}

	reply, err := xproto.GetAtomName(b.conn, atom).Reply()
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.names[atom] = reply.Name
	b.atoms[reply.Name] = atom
	b.mu.Unlock()
	return reply.Name, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}

// getCardinals reads a 32-bit list property; errors read as empty.
func (b *X11Backend) getCardinals(win xproto.Window, atom, typ xproto.Atom) []uint32 {
	reply, err := xproto.GetProperty(b.conn, false, win, atom, typ, 0, (1<<32)-1).Reply()
	if err != nil || reply.Format != 32 {
		return nil
	}
	return decodeUint32s(reply.Value)
}

func decodeUint32s(data []byte) []uint32 {
	values := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		values = append(values, binary.LittleEndian.Uint32(data[i:i+4]))
	}
	return values
}
