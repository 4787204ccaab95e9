package mirror

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/logger"
)

type sampleNode struct {
	width  *Property[int]
	height *Property[int]
	title  *Property[string]
	area   *Property[int]
}

func newSampleNode() *sampleNode {
	n := &sampleNode{
		width:  NewProperty(10),
		height: NewProperty(20),
		title:  NewProperty("node"),
		area:   NewProperty(0),
	}
	n.area.Bind(func() int { return n.width.Get() * n.height.Get() }, n.width, n.height)
	return n
}

// brokenNode has one accessor that fails and one that panics.
type brokenNode struct {
	ok *Property[bool]
}

func init() {
	Register("widthProperty", func(n *sampleNode) (Observable, error) { return n.width, nil })
	Register("heightProperty", func(n *sampleNode) (Observable, error) { return n.height, nil })
	Register("titleProperty", func(n *sampleNode) (Observable, error) { return n.title, nil })
	Register("areaProperty", func(n *sampleNode) (Observable, error) { return n.area, nil })
	// Does not follow the naming convention and must be ignored.
	Register("layout", func(n *sampleNode) (Observable, error) { return n.title, nil })

	Register("okProperty", func(n *brokenNode) (Observable, error) { return n.ok, nil })
	Register("failingProperty", func(n *brokenNode) (Observable, error) {
		return nil, errors.New("access denied")
	})
	Register("panickingProperty", func(n *brokenNode) (Observable, error) { panic("boom") })
	Register("missingProperty", func(n *brokenNode) (Observable, error) { return nil, nil })
}

type recorder struct {
	mu      sync.Mutex
	changes []string
	values  []any
}

func (r *recorder) UpdateDetail(name string, property Observable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, name)
	r.values = append(r.values, property.Value())
}

func TestPropertySetNotifiesOnChangeOnly(t *testing.T) {
	p := NewProperty(1)
	calls := 0
	sub := p.AddListener(func(Observable) { calls++ })

	require.NoError(t, p.Set(1))
	assert.Equal(t, 0, calls)
	require.NoError(t, p.Set(2))
	assert.Equal(t, 1, calls)

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, p.ListenerCount())
	require.NoError(t, p.Set(3))
	assert.Equal(t, 1, calls)
}

func TestBoundPropertyRejectsWrites(t *testing.T) {
	n := newSampleNode()
	assert.True(t, n.area.IsBound())
	assert.Equal(t, 200, n.area.Get())

	assert.ErrorIs(t, n.area.Set(5), ErrBound)

	require.NoError(t, n.width.Set(3))
	assert.Equal(t, 60, n.area.Get())

	n.area.Unbind()
	assert.False(t, n.area.IsBound())
	assert.Equal(t, 0, n.width.ListenerCount())
	require.NoError(t, n.area.Set(5))
}

func TestTrackerDiscoversConventionalAccessors(t *testing.T) {
	n := newSampleNode()
	rec := &recorder{}
	tracker := NewTracker(rec, logger.Nop())

	tracker.Attach(n)
	assert.Equal(t, []string{"area", "height", "title", "width"}, tracker.Names())

	require.NoError(t, n.title.Set("renamed"))
	require.NoError(t, n.height.Set(2))

	assert.Contains(t, rec.changes, "title")
	assert.Contains(t, rec.changes, "height")
	// area follows height through its binding
	assert.Contains(t, rec.changes, "area")
}

func TestTrackerClearRemovesEveryListener(t *testing.T) {
	n := newSampleNode()
	baseWidth := n.width.ListenerCount()
	baseHeight := n.height.ListenerCount()

	rec := &recorder{}
	tracker := NewTracker(rec, logger.Nop())

	// Clear with nothing attached is safe.
	tracker.Clear()

	for i := 0; i < 3; i++ {
		tracker.Attach(n)
		assert.Equal(t, baseWidth+1, n.width.ListenerCount())
		assert.Equal(t, 1, n.title.ListenerCount())
	}

	tracker.Clear()
	tracker.Detach()

	assert.Equal(t, baseWidth, n.width.ListenerCount())
	assert.Equal(t, baseHeight, n.height.ListenerCount())
	assert.Equal(t, 0, n.title.ListenerCount())
	assert.Equal(t, 0, n.area.ListenerCount())
	assert.Empty(t, tracker.Properties())

	require.NoError(t, n.title.Set("after clear"))
	assert.Empty(t, rec.changes)
}

func TestTrackerReattachMovesListeners(t *testing.T) {
	first := newSampleNode()
	second := newSampleNode()
	tracker := NewTracker(&recorder{}, logger.Nop())

	tracker.Attach(first)
	tracker.Attach(second)

	assert.Equal(t, 0, first.title.ListenerCount())
	assert.Equal(t, 1, second.title.ListenerCount())
}

func TestTrackerToleratesFailingAccessors(t *testing.T) {
	n := &brokenNode{ok: NewProperty(true)}
	tracker := NewTracker(&recorder{}, logger.Nop())

	assert.NotPanics(t, func() { tracker.Attach(n) })
	assert.Equal(t, []string{"ok"}, tracker.Names())
	assert.Equal(t, 1, n.ok.ListenerCount())

	tracker.Clear()
	assert.Equal(t, 0, n.ok.ListenerCount())
}

func TestAccessorsListsRegisteredNames(t *testing.T) {
	assert.Equal(t,
		[]string{"areaProperty", "heightProperty", "layout", "titleProperty", "widthProperty"},
		Accessors(&sampleNode{}))
	assert.Empty(t, Accessors(42))
}
