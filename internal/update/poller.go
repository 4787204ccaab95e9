// Package update runs the reconciliation loop that keeps the repository
// in step with the agents.
package update

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Default timings.
const (
	DefaultInterval     = 500 * time.Millisecond
	DefaultWaitInterval = 50 * time.Millisecond
)

var errStopped = errors.New("poller stopped")

// Connector pulls the current application list from the agents.
type Connector interface {
	Connect(ctx context.Context) ([]*model.AppController, error)
	Close(ctx context.Context) error
}

// Repository receives the diffs computed by each poll.
type Repository interface {
	AppAdded(app *model.AppController)
	AppRemoved(app *model.AppController)
	StageAdded(stage *model.StageController)
	StageRemoved(stage *model.StageController)
}

// Poller compares the application list against the previous poll at a
// fixed interval and drives the repository with the differences.
type Poller struct {
	repository   Repository
	interval     time.Duration
	waitInterval time.Duration
	metrics      *metrics.Metrics
	exit         func(code int)
	log          *zerolog.Logger

	mu        sync.Mutex
	connector Connector
	stopChan  chan struct{}

	// previous is only touched by the polling goroutine.
	previous []*model.AppController
	first    bool
}

// NewPoller creates a poller driving repository.
func NewPoller(repository Repository, interval time.Duration, m *metrics.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		repository:   repository,
		interval:     interval,
		waitInterval: DefaultWaitInterval,
		metrics:      m,
		exit:         os.Exit,
		log:          logger.WithComponent("poller"),
		stopChan:     make(chan struct{}),
		first:        true,
	}
}

// SetConnector provides the connector. The first poll waits for it.
func (p *Poller) SetConnector(c Connector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connector = c
}

// SetWaitInterval changes the pause between checks for a connector.
func (p *Poller) SetWaitInterval(d time.Duration) {
	p.waitInterval = d
}

// SetExitFunc replaces os.Exit, called by Finish.
func (p *Poller) SetExitFunc(exit func(code int)) {
	p.exit = exit
}

func (p *Poller) getConnector() Connector {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connector
}

// waitForConnector blocks until a connector is set, ctx ends or the
// poller is stopped.
func (p *Poller) waitForConnector(ctx context.Context) (Connector, error) {
	for {
		if c := p.getConnector(); c != nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.stopChan:
			return nil, errStopped
		case <-time.After(p.waitInterval):
		}
	}
}

// Run polls until ctx is cancelled or Stop is called.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-p.stopChan:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends Run.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stopChan:
	default:
		close(p.stopChan)
	}
}

// Finish stops polling, closes the connector and exits the process.
func (p *Poller) Finish(ctx context.Context) {
	p.Stop()
	if c := p.getConnector(); c != nil {
		if err := c.Close(ctx); err != nil {
			p.log.Warn().Err(err).Msg("Failed to close connector")
		}
	}
	p.exit(0)
}

// Poll runs one reconciliation. It reports whether anything changed.
// A failed pull counts as no change.
func (p *Poller) Poll(ctx context.Context) bool {
	var connector Connector
	if p.first {
		c, err := p.waitForConnector(ctx)
		if err != nil {
			return false
		}
		p.first = false
		connector = c
	} else {
		connector = p.getConnector()
	}

	start := time.Now()
	apps, err := connector.Connect(ctx)
	p.metrics.RecordPoll(time.Since(start), err)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to pull applications")
		return false
	}

	modified := p.reconcile(apps)
	if modified {
		p.previous = apps
	}
	return modified
}

// reconcile emits, in order: stage changes of apps present in both
// polls, new apps, then vanished apps.
func (p *Poller) reconcile(apps []*model.AppController) bool {
	modified := false

	for _, app := range apps {
		previous := findApp(p.previous, app.ID)
		if previous == nil {
			continue
		}
		for _, stage := range app.Stages {
			if _, ok := previous.Stage(stage.ID.StageID); !ok {
				p.log.Debug().Str("stage", stage.ID.String()).Msg("Stage added")
				p.repository.StageAdded(stage)
				p.metrics.RecordChange(metrics.StageAdded)
				modified = true
			}
		}
		for _, stage := range previous.Stages {
			if _, ok := app.Stage(stage.ID.StageID); !ok {
				p.log.Debug().Str("stage", stage.ID.String()).Msg("Stage removed")
				p.repository.StageRemoved(stage)
				p.metrics.RecordChange(metrics.StageRemoved)
				modified = true
			}
		}
	}

	for _, app := range apps {
		if findApp(p.previous, app.ID) == nil {
			p.log.Debug().Int("app", app.ID).Msg("App added")
			p.repository.AppAdded(app)
			p.metrics.RecordChange(metrics.AppAdded)
			modified = true
		}
	}

	for _, app := range p.previous {
		if findApp(apps, app.ID) == nil {
			p.log.Debug().Int("app", app.ID).Msg("App removed")
			p.repository.AppRemoved(app)
			p.metrics.RecordChange(metrics.AppRemoved)
			modified = true
		}
	}

	return modified
}

func findApp(apps []*model.AppController, id int) *model.AppController {
	for _, app := range apps {
		if app.ID == id {
			return app
		}
	}
	return nil
}
