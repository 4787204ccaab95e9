package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/mirror"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// nodeProperty describes how one property of a window node is shown
// and edited.
type nodeProperty struct {
	name      string
	label     string
	pane      details.PaneType
	id        int
	labelKind details.LabelKind
	kind      details.ValueKind
	writable  bool
	min, max  float64
	def       any
}

// nodeProperties lists the inspectable properties of a window node, in
// display order.
var nodeProperties = []nodeProperty{
	{name: "title", label: "Title", pane: details.PaneNode, id: 0, kind: details.ValueText, writable: true, def: ""},
	{name: "class", label: "Class", pane: details.PaneNode, id: 1, kind: details.ValueText, def: ""},
	{name: "pid", label: "PID", pane: details.PaneNode, id: 2, kind: details.ValueText},
	{name: "mapped", label: "Mapped", pane: details.PaneNode, id: 3, kind: details.ValueText, def: true},
	{name: "overrideRedirect", label: "Override Redirect", pane: details.PaneNode, id: 4, kind: details.ValueText, def: false},

	{name: "x", label: "Layout X", pane: details.PaneLayout, id: 0, labelKind: details.LabelBoundsParent, kind: details.ValueText, writable: true, min: -32768, max: 32767, def: 0},
	{name: "y", label: "Layout Y", pane: details.PaneLayout, id: 1, labelKind: details.LabelBoundsParent, kind: details.ValueText, writable: true, min: -32768, max: 32767, def: 0},
	{name: "width", label: "Width", pane: details.PaneLayout, id: 2, labelKind: details.LabelLayoutBounds, kind: details.ValueText, writable: true, min: 1, max: 65535},
	{name: "height", label: "Height", pane: details.PaneLayout, id: 3, labelKind: details.LabelLayoutBounds, kind: details.ValueText, writable: true, min: 1, max: 65535},
	{name: "area", label: "Area", pane: details.PaneLayout, id: 4, kind: details.ValueText, writable: true},

	{name: "borderWidth", label: "Border Width", pane: details.PaneWindow, id: 0, kind: details.ValueText, writable: true, min: 0, max: 1000, def: 0},
	{name: "borderColor", label: "Border Color", pane: details.PaneWindow, id: 1, kind: details.ValueColor, writable: true, def: ""},
	{name: "frameExtents", label: "Frame Extents", pane: details.PaneWindow, id: 2, kind: details.ValueInsets, def: details.Insets{}},
	{name: "sizeConstraints", label: "Size Constraints", pane: details.PaneWindow, id: 3, kind: details.ValueConstraints, def: ""},
	{name: "resizeGrid", label: "Resize Grid", pane: details.PaneWindow, id: 4, kind: details.ValueGridConstraints, def: ""},
}

func lookupProperty(pane details.PaneType, id int) (nodeProperty, bool) {
	for _, p := range nodeProperties {
		if p.pane == pane && p.id == id {
			return p, true
		}
	}
	return nodeProperty{}, false
}

func propertyNamed(name string) (nodeProperty, bool) {
	for _, p := range nodeProperties {
		if p.name == name {
			return p, true
		}
	}
	return nodeProperty{}, false
}

func init() {
	for _, p := range nodeProperties {
		name := p.name
		mirror.Register(name+mirror.PropertySuffix, func(n *Node) (mirror.Observable, error) {
			o, ok := n.props[name]
			if !ok {
				return nil, fmt.Errorf("node %d has no %s", n.Window, name)
			}
			return o, nil
		})
	}
}

// Node is the inspectable view of one window. Its properties follow the
// window through refresh.
type Node struct {
	Window uint32

	title            *mirror.Property[string]
	class            *mirror.Property[string]
	pid              *mirror.Property[int]
	mapped           *mirror.Property[bool]
	overrideRedirect *mirror.Property[bool]
	x                *mirror.Property[int]
	y                *mirror.Property[int]
	width            *mirror.Property[int]
	height           *mirror.Property[int]
	area             *mirror.Property[int]
	borderWidth      *mirror.Property[int]
	borderColor      *mirror.Property[string]
	frameExtents     *mirror.Property[details.Insets]
	sizeConstraints  *mirror.Property[string]
	resizeGrid       *mirror.Property[string]

	props map[string]mirror.Observable
}

func newNode(w *model.WindowInfo) *Node {
	n := &Node{
		Window:           w.ID,
		title:            mirror.NewProperty(w.Title),
		class:            mirror.NewProperty(w.Class),
		pid:              mirror.NewProperty(w.PID),
		mapped:           mirror.NewProperty(w.Mapped),
		overrideRedirect: mirror.NewProperty(w.OverrideRedirect),
		x:                mirror.NewProperty(w.Geometry.X),
		y:                mirror.NewProperty(w.Geometry.Y),
		width:            mirror.NewProperty(w.Geometry.Width),
		height:           mirror.NewProperty(w.Geometry.Height),
		area:             mirror.NewProperty(0),
		borderWidth:      mirror.NewProperty(w.BorderWidth),
		borderColor:      mirror.NewProperty(w.BorderColor),
		frameExtents:     mirror.NewProperty(extentsInsets(w.FrameExtents)),
		sizeConstraints:  mirror.NewProperty(sizeConstraints(w.SizeHints)),
		resizeGrid:       mirror.NewProperty(resizeGrid(w.SizeHints)),
	}
	n.area.Bind(func() int { return n.width.Get() * n.height.Get() }, n.width, n.height)

	n.props = map[string]mirror.Observable{
		"title":            n.title,
		"class":            n.class,
		"pid":              n.pid,
		"mapped":           n.mapped,
		"overrideRedirect": n.overrideRedirect,
		"x":                n.x,
		"y":                n.y,
		"width":            n.width,
		"height":           n.height,
		"area":             n.area,
		"borderWidth":      n.borderWidth,
		"borderColor":      n.borderColor,
		"frameExtents":     n.frameExtents,
		"sizeConstraints":  n.sizeConstraints,
		"resizeGrid":       n.resizeGrid,
	}
	return n
}

// Ref returns the reference the inspector uses for the node.
func (n *Node) Ref() model.NodeRef {
	return model.NodeRef{ID: n.Window, Name: n.title.Get()}
}

// Geometry returns the current geometry of the node.
func (n *Node) Geometry() model.Geometry {
	return model.Geometry{X: n.x.Get(), Y: n.y.Get(), Width: n.width.Get(), Height: n.height.Get()}
}

// apply copies a fresh window description into the properties. Changed
// properties notify their listeners. The border colour cannot be read
// back from every backend, so an empty one keeps the last known value.
func (n *Node) apply(w *model.WindowInfo) {
	_ = n.title.Set(w.Title)
	_ = n.class.Set(w.Class)
	_ = n.pid.Set(w.PID)
	_ = n.mapped.Set(w.Mapped)
	_ = n.overrideRedirect.Set(w.OverrideRedirect)
	_ = n.x.Set(w.Geometry.X)
	_ = n.y.Set(w.Geometry.Y)
	_ = n.width.Set(w.Geometry.Width)
	_ = n.height.Set(w.Geometry.Height)
	_ = n.borderWidth.Set(w.BorderWidth)
	if w.BorderColor != "" {
		_ = n.borderColor.Set(w.BorderColor)
	}
	_ = n.frameExtents.Set(extentsInsets(w.FrameExtents))
	_ = n.sizeConstraints.Set(sizeConstraints(w.SizeHints))
	_ = n.resizeGrid.Set(resizeGrid(w.SizeHints))
}

func extentsInsets(e model.Extents) details.Insets {
	return details.Insets{Top: float64(e.Top), Right: float64(e.Right), Bottom: float64(e.Bottom), Left: float64(e.Left)}
}

// sizeConstraints renders the min and max size hints in constraint form.
// Unset hints are left out.
func sizeConstraints(h model.SizeHints) string {
	return constraintText(
		"min_width", h.MinWidth, "min_height", h.MinHeight,
		"max_width", h.MaxWidth, "max_height", h.MaxHeight,
	)
}

// resizeGrid renders the base size and resize increments, the grid a
// window snaps to while resized.
func resizeGrid(h model.SizeHints) string {
	return constraintText(
		"base_width", h.BaseWidth, "base_height", h.BaseHeight,
		"width_inc", h.WidthInc, "height_inc", h.HeightInc,
	)
}

func constraintText(pairs ...any) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if v := pairs[i+1].(int); v != 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", pairs[i], v))
		}
	}
	return strings.Join(parts, "; ")
}

// detail builds the display record of property p.
func (n *Node) detail(p nodeProperty) details.Detail {
	o := n.props[p.name]
	value := o.Value()

	d := details.Detail{
		Pane:      p.pane,
		ID:        p.id,
		Property:  p.name,
		Label:     p.label,
		LabelKind: p.labelKind,
		Value:     details.Format(value),
		ValueKind: p.kind,
		Edition:   details.Classify(p.writable, o.IsBound()),
		Default:   p.def != nil && value == p.def,
	}
	if p.max > p.min {
		d.Min, d.Max = p.min, p.max
	}
	if p.kind == details.ValueColor && d.Value != "" {
		if c, err := details.ParseColor(d.Value); err == nil {
			d.RealValue = d.Value
			d.Value = details.FormatColor(c)
		}
	}
	if o.IsBound() {
		d.Reason = "bound"
	}
	return d
}

// Details returns the records of every property, in display order.
func (n *Node) Details() []details.Detail {
	records := make([]details.Detail, 0, len(nodeProperties))
	for _, p := range nodeProperties {
		records = append(records, n.detail(p))
	}
	return records
}

// coerce validates an edit of p and returns the typed value.
func coerce(p nodeProperty, value string) (any, error) {
	value = strings.TrimSpace(value)
	if p.kind == details.ValueColor {
		c, err := details.ParseColor(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return c, nil
	}
	if p.name == "title" {
		return value, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s wants an integer, got %q", ErrInvalidValue, p.label, value)
	}
	if p.max > p.min && (float64(i) < p.min || float64(i) > p.max) {
		return nil, fmt.Errorf("%w: %s must be within [%d, %d]", ErrInvalidValue, p.label, int(p.min), int(p.max))
	}
	return i, nil
}
