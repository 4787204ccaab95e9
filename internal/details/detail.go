package details

import (
	"fmt"
	"strings"
)

// PaneType groups related details of a node.
type PaneType string

const (
	PaneNode   PaneType = "node"
	PaneWindow PaneType = "window"
	PaneLayout PaneType = "layout"
	PaneRegion PaneType = "region"
)

// ValueKind selects the editor representation built for a value.
type ValueKind string

const (
	ValueText            ValueKind = "text"
	ValueInsets          ValueKind = "insets"
	ValueConstraints     ValueKind = "constraints"
	ValueGridConstraints ValueKind = "grid-constraints"
	ValueColor           ValueKind = "color"
)

// EditionType says whether a detail may be written.
type EditionType string

const (
	EditionNone     EditionType = "none"
	EditionEditable EditionType = "editable"
	// EditionBound marks a property computed from another property.
	// It rejects direct writes.
	EditionBound EditionType = "bound"
)

// LabelKind asks the UI for an overlay hint next to the label.
type LabelKind string

const (
	LabelNormal       LabelKind = ""
	LabelLayoutBounds LabelKind = "layout-bounds"
	LabelBoundsParent LabelKind = "bounds-in-parent"
	LabelBaseline     LabelKind = "baseline"
)

// Affordances shown next to a value.
const (
	AffordanceEdit = "edit"
	AffordanceLock = "lock"
)

// Detail is the display record of one inspectable property. Details are
// rebuilt on every update; they are never patched in place.
type Detail struct {
	Pane       PaneType    `json:"pane"`
	ID         int         `json:"id"`
	Property   string      `json:"property"`
	Label      string      `json:"label"`
	LabelKind  LabelKind   `json:"label_kind,omitempty"`
	Value      string      `json:"value"`
	RealValue  string      `json:"real_value,omitempty"`
	Default    bool        `json:"default"`
	ValidItems []string    `json:"valid_items,omitempty"`
	Min        float64     `json:"min,omitempty"`
	Max        float64     `json:"max,omitempty"`
	ValueKind  ValueKind   `json:"value_kind"`
	Edition    EditionType `json:"edition"`
	Reason     string      `json:"reason,omitempty"`
}

// Key identifies a detail within the details of one node.
type Key struct {
	Pane PaneType `json:"pane"`
	ID   int      `json:"id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Pane, k.ID)
}

// Key returns the detail's pane-relative identity.
func (d Detail) Key() Key {
	return Key{Pane: d.Pane, ID: d.ID}
}

// Editable reports whether the detail accepts writes right now.
func (d Detail) Editable() bool {
	return d.Edition == EditionEditable
}

// HasRange reports whether Min/Max bound numeric input.
func (d Detail) HasRange() bool {
	return d.Max > d.Min
}

// Affordance returns the icon shown next to the value: edit for
// editable details, lock for bound ones, nothing otherwise.
func (d Detail) Affordance() string {
	switch d.Edition {
	case EditionEditable:
		return AffordanceEdit
	case EditionBound:
		return AffordanceLock
	default:
		return ""
	}
}

// Matches implements the property filter: an empty filter matches
// everything, otherwise the label or a plain text value must contain
// the filter, ignoring case.
func (d Detail) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	if strings.Contains(strings.ToLower(d.Label), filter) {
		return true
	}
	return d.ValueKind == ValueText && strings.Contains(strings.ToLower(d.Value), filter)
}

// Classify derives the edition type of a property.
func Classify(writable, bound bool) EditionType {
	switch {
	case bound:
		return EditionBound
	case writable:
		return EditionEditable
	default:
		return EditionNone
	}
}

func (d Detail) String() string {
	return fmt.Sprintf("%s=%s", d.Label, d.Value)
}
