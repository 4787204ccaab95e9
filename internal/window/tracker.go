package window

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Scheduler runs a function on the UI goroutine.
type Scheduler interface {
	RunLater(fn func()) bool
}

// PublishFunc receives a new forest and its flattened popups on the UI
// goroutine.
type PublishFunc func(forest *Forest, popups []model.PopupWindow)

// Tracker periodically rebuilds the popup forest of one window and
// publishes it when its shape changes.
type Tracker struct {
	backend   Backend
	target    uint32
	interval  time.Duration
	predicate Predicate
	scheduler Scheduler
	publish   PublishFunc
	log       *zerolog.Logger

	// previous is only touched by Tick, which runs on the tracker
	// goroutine or synchronously before Start.
	previous *Forest

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker for the popups of target.
func NewTracker(backend Backend, target uint32, interval time.Duration, scheduler Scheduler, publish PublishFunc) *Tracker {
	return &Tracker{
		backend:   backend,
		target:    target,
		interval:  interval,
		predicate: IsPopup,
		scheduler: scheduler,
		publish:   publish,
		log:       logger.WithComponent("topology-tracker"),
	}
}

// SetPredicate replaces the IsPopup filter. Call before Start.
func (t *Tracker) SetPredicate(p Predicate) {
	t.predicate = p
}

// Tick scans the windows once. It returns true when a changed forest was
// handed to the scheduler.
func (t *Tracker) Tick() bool {
	windows, err := t.backend.ListWindows()
	if err != nil {
		t.log.Debug().Err(err).Msg("Failed to list windows")
		return false
	}

	forest := BuildForest(t.target, windows, t.predicate)
	if forest.Equal(t.previous) {
		return false
	}
	t.previous = forest

	popups := forest.Flatten()
	t.log.Debug().
		Uint32("window", t.target).
		Int("popups", len(popups)).
		Msg("Popup windows changed")

	return t.scheduler.RunLater(func() {
		t.publish(forest, popups)
	})
}

// Start begins scanning on a ticker.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopChan != nil {
		return
	}
	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stopChan, t.done)
}

// Stop stops scanning and waits for the loop to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stopChan, done := t.stopChan, t.done
	t.stopChan, t.done = nil, nil
	t.mu.Unlock()

	if stopChan == nil {
		return
	}
	close(stopChan)
	<-done
}

func (t *Tracker) loop(stopChan, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Tick()
	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}
