package details

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// StatusException prefixes status messages raised by failed edits.
	StatusException = "Exception: "
	// StatusDuration is how long an edit failure stays visible.
	StatusDuration = 10 * time.Second
)

// Setter writes a detail value into the live target.
type Setter interface {
	SetDetail(ctx context.Context, pane PaneType, detailID int, value string) error
}

// StatusReporter shows a transient message to the user.
type StatusReporter interface {
	SetStatusText(text string, duration time.Duration)
}

// Pane holds the details of the selected node, grouped by pane type,
// and submits edits back to the target.
type Pane struct {
	mu             sync.RWMutex
	panes          map[PaneType][]Detail
	filter         string
	setter         Setter
	status         StatusReporter
	statusDuration time.Duration
	log            *zerolog.Logger
}

// NewPane creates a pane writing through setter and reporting edit
// failures to status.
func NewPane(setter Setter, status StatusReporter, log *zerolog.Logger) *Pane {
	return &Pane{
		panes:          make(map[PaneType][]Detail),
		setter:         setter,
		status:         status,
		statusDuration: StatusDuration,
		log:            log,
	}
}

// SetStatusDuration overrides how long edit failures stay visible.
func (p *Pane) SetStatusDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusDuration = d
}

// StatusDuration returns how long edit failures stay visible.
func (p *Pane) StatusDuration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statusDuration
}

// Update replaces every detail of one pane type.
func (p *Pane) Update(pane PaneType, details []Detail) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(details) == 0 {
		delete(p.panes, pane)
		return
	}
	copied := make([]Detail, len(details))
	copy(copied, details)
	p.panes[pane] = copied
}

// UpdateDetail replaces the detail with the same pane and id. It
// returns false when no such detail is shown.
func (p *Pane) UpdateDetail(detail Detail) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	shown := p.panes[detail.Pane]
	for i := range shown {
		if shown[i].ID == detail.ID {
			shown[i] = detail
			return true
		}
	}
	p.log.Debug().Str("detail", detail.Key().String()).Msg("Pane not found for detail")
	return false
}

// Clear drops every detail, e.g. when the selection is removed.
func (p *Pane) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panes = make(map[PaneType][]Detail)
}

// Filter sets the property filter applied by Details.
func (p *Pane) Filter(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = text
}

// Details returns the visible details ordered by pane type and id.
func (p *Pane) Details() []Detail {
	p.mu.RLock()
	defer p.mu.RUnlock()

	paneTypes := make([]string, 0, len(p.panes))
	for pane := range p.panes {
		paneTypes = append(paneTypes, string(pane))
	}
	sort.Strings(paneTypes)

	visible := make([]Detail, 0)
	for _, pane := range paneTypes {
		for _, d := range p.panes[PaneType(pane)] {
			if d.Matches(p.filter) {
				visible = append(visible, d)
			}
		}
	}
	return visible
}

// Lookup returns the shown detail with the given key.
func (p *Pane) Lookup(key Key) (Detail, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, d := range p.panes[key.Pane] {
		if d.ID == key.ID {
			return d, true
		}
	}
	return Detail{}, false
}

// Submit sends a new text value for detail to the target. Failures are
// shown as a status message and never returned; the result only says
// whether the write was accepted.
func (p *Pane) Submit(ctx context.Context, detail Detail, value string) bool {
	p.mu.RLock()
	setter, status, duration := p.setter, p.status, p.statusDuration
	p.mu.RUnlock()

	if err := setter.SetDetail(ctx, detail.Pane, detail.ID, value); err != nil {
		p.log.Warn().
			Err(err).
			Str("detail", detail.Key().String()).
			Str("value", value).
			Msg("Failed to set detail")
		if status != nil {
			status.SetStatusText(StatusException+err.Error(), duration)
		}
		return false
	}
	return true
}
