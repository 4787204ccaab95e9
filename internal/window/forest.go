package window

import (
	"sort"

	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Predicate selects the windows placed into a forest.
type Predicate func(w *model.WindowInfo) bool

// IsPopup reports whether w is a transient popup: an override-redirect
// window or one typed as a menu, tooltip, combo box, drag icon or
// notification.
func IsPopup(w *model.WindowInfo) bool {
	if w.OverrideRedirect {
		return true
	}
	for _, t := range w.Types {
		switch t {
		case model.WindowTypeMenu,
			model.WindowTypeDropdownMenu,
			model.WindowTypePopupMenu,
			model.WindowTypeTooltip,
			model.WindowTypeCombo,
			model.WindowTypeDND,
			model.WindowTypeNotification:
			return true
		}
	}
	return false
}

// NoParent is the parent index of a forest root.
const NoParent = -1

// Node is one popup in a forest. Parent and Children are indices into
// Forest.Nodes.
type Node struct {
	Window   uint32
	Title    string
	Parent   int
	Children []int
}

// Forest is the ownership forest of the popups of one inspected window,
// stored as an arena. Roots are popups owned by the inspected window.
type Forest struct {
	Target uint32
	Nodes  []Node
	index  map[uint32]int
}

// BuildForest places every window accepted by pred into the forest of
// target. A window owned by target becomes a root, a window owned by an
// already placed popup becomes its child, anything else is dropped.
// Placement repeats until nothing more can be placed, so the result
// does not depend on the order of windows.
func BuildForest(target uint32, windows []*model.WindowInfo, pred Predicate) *Forest {
	f := &Forest{
		Target: target,
		index:  make(map[uint32]int),
	}

	pending := make([]*model.WindowInfo, 0, len(windows))
	for _, w := range windows {
		if w == nil || w.ID == target || !pred(w) {
			continue
		}
		pending = append(pending, w)
	}

	for {
		placed := false
		remaining := pending[:0]
		for _, w := range pending {
			if _, dup := f.index[w.ID]; dup {
				continue
			}
			switch parent, ok := f.Find(w.Owner); {
			case w.Owner == target:
				f.add(w, NoParent)
				placed = true
			case ok:
				f.add(w, parent)
				placed = true
			default:
				remaining = append(remaining, w)
			}
		}
		pending = remaining
		if !placed || len(pending) == 0 {
			return f
		}
	}
}

func (f *Forest) add(w *model.WindowInfo, parent int) {
	i := len(f.Nodes)
	f.Nodes = append(f.Nodes, Node{Window: w.ID, Title: w.Title, Parent: parent})
	f.index[w.ID] = i
	if parent != NoParent {
		f.Nodes[parent].Children = append(f.Nodes[parent].Children, i)
	}
}

// Find returns the index of the node holding window.
func (f *Forest) Find(window uint32) (int, bool) {
	if f == nil {
		return 0, false
	}
	i, ok := f.index[window]
	return i, ok
}

// Len returns the number of popups in the forest.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Nodes)
}

// Roots returns the indices of the root nodes ordered by window id.
func (f *Forest) Roots() []int {
	roots := make([]int, 0)
	for i, n := range f.Nodes {
		if n.Parent == NoParent {
			roots = append(roots, i)
		}
	}
	f.sortByWindow(roots)
	return roots
}

func (f *Forest) sortByWindow(indices []int) {
	sort.Slice(indices, func(a, b int) bool {
		return f.Nodes[indices[a]].Window < f.Nodes[indices[b]].Window
	})
}

// owner returns the window a node hangs from: its parent popup, or the
// target for roots.
func (f *Forest) owner(i int) uint32 {
	if p := f.Nodes[i].Parent; p != NoParent {
		return f.Nodes[p].Window
	}
	return f.Target
}

// Equal reports whether two forests have the same shape. Every window
// has exactly one owner, so equal owner maps mean equal forests
// regardless of arena order.
func (f *Forest) Equal(other *Forest) bool {
	if f == nil || other == nil {
		return f.Len() == 0 && other.Len() == 0
	}
	if f.Target != other.Target || len(f.Nodes) != len(other.Nodes) {
		return false
	}
	for i, n := range f.Nodes {
		j, ok := other.Find(n.Window)
		if !ok || other.owner(j) != f.owner(i) {
			return false
		}
	}
	return true
}

// Flatten lists the popups depth-first, siblings ordered by window id.
func (f *Forest) Flatten() []model.PopupWindow {
	out := make([]model.PopupWindow, 0, f.Len())
	if f == nil {
		return out
	}

	type entry struct{ node, depth int }
	stack := make([]entry, 0, len(f.Nodes))
	roots := f.Roots()
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, entry{roots[i], 0})
	}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := f.Nodes[e.node]
		out = append(out, model.PopupWindow{
			ID:    n.Window,
			Owner: f.owner(e.node),
			Depth: e.depth,
			Title: n.Title,
		})

		children := append([]int(nil), n.Children...)
		f.sortByWindow(children)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, entry{children[i], e.depth + 1})
		}
	}
	return out
}
