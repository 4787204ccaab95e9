// Package connector is the inspector's end of the bridge. Agents
// announce themselves here; the poller pulls fresh application
// snapshots from it; agent events are routed through it to the stage
// they belong to.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/remote"
)

type agent struct {
	app      model.Application
	stages   []model.StageID
	failures int
}

// Connector tracks the known agents and the event routes of their
// stages.
type Connector struct {
	endpoint      string
	retryInterval time.Duration
	metrics       *metrics.Metrics
	log           *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	agents map[int]*agent
	order  []int
	routes map[model.StageID]model.Dispatcher
}

var (
	_ remote.Connector = (*Connector)(nil)
	_ model.Router     = (*Connector)(nil)
)

// New creates a connector. endpoint is the address agents dispatch
// events to.
func New(endpoint string, m *metrics.Metrics) *Connector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connector{
		endpoint:      endpoint,
		retryInterval: remote.DefaultRetryInterval,
		metrics:       m,
		log:           logger.WithComponent("connector"),
		ctx:           ctx,
		cancel:        cancel,
		agents:        make(map[int]*agent),
		routes:        make(map[model.StageID]model.Dispatcher),
	}
}

// SetRetryInterval changes the pause between lookups of an announced
// agent. Call it before the connector is bound.
func (c *Connector) SetRetryInterval(d time.Duration) {
	c.retryInterval = d
}

// AgentStarted looks up the agent registry at port in the background
// and adds the agent once found.
func (c *Connector) AgentStarted(_ context.Context, appID, port int) error {
	c.log.Info().Int("app", appID).Int("port", port).Msg("Agent started")
	remote.FindApplicationWithRetry(c.ctx, port, c.retryInterval, func(app *remote.ApplicationClient) {
		c.AddAgent(appID, app)
	})
	return nil
}

// AgentFinished forgets the agent of appID.
func (c *Connector) AgentFinished(_ context.Context, appID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[appID]; !ok {
		c.log.Debug().Int("app", appID).Msg("Finished agent was not tracked")
		return nil
	}
	c.removeLocked(appID)
	c.log.Info().Int("app", appID).Msg("Agent finished")
	return nil
}

// AddAgent tracks app under appID, replacing any previous agent with
// the same id.
func (c *Connector) AddAgent(appID int, app model.Application) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[appID]; !ok {
		c.order = append(c.order, appID)
	}
	c.agents[appID] = &agent{app: app}
	c.log.Debug().Int("app", appID).Msg("Agent added")
}

func (c *Connector) removeLocked(appID int) {
	delete(c.agents, appID)
	for i, id := range c.order {
		if id == appID {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// AgentCount returns the number of tracked agents.
func (c *Connector) AgentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.agents)
}

// Connect asks every agent for its stages and returns fresh
// controllers, in the order agents were discovered. An agent that does
// not answer keeps its last known stages; only AgentFinished forgets
// an agent.
func (c *Connector) Connect(ctx context.Context) ([]*model.AppController, error) {
	c.mu.RLock()
	order := append([]int(nil), c.order...)
	agents := make(map[int]*agent, len(c.agents))
	for id, a := range c.agents {
		agents[id] = a
	}
	c.mu.RUnlock()

	apps := make([]*model.AppController, 0, len(order))
	for _, appID := range order {
		a := agents[appID]
		ids, err := a.app.StageIDs(ctx)

		c.mu.Lock()
		if err != nil {
			a.failures++
			if a.failures == 1 {
				c.log.Warn().Err(err).Int("app", appID).Msg("Failed to get stages, keeping last known")
			}
			ids = a.stages
		} else {
			if a.failures > 0 {
				c.log.Info().Int("app", appID).Int("failures", a.failures).Msg("Agent answering again")
			}
			a.failures = 0
			a.stages = ids
		}
		c.mu.Unlock()

		app := model.NewAppController(appID, a.app)
		for _, id := range ids {
			app.AddStage(model.NewStageController(id, a.app, c))
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Route implements model.Router.
func (c *Connector) Route(id model.StageID, d model.Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[id] = d
}

// Unroute implements model.Router.
func (c *Connector) Unroute(id model.StageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.routes, id)
}

// Endpoint implements model.Router.
func (c *Connector) Endpoint() string {
	return c.endpoint
}

// Dispatch delivers event to the dispatcher of its stage. Events for
// unrouted stages are dropped.
func (c *Connector) Dispatch(_ context.Context, event model.Event) error {
	c.mu.RLock()
	d, ok := c.routes[event.Stage]
	c.mu.RUnlock()

	c.metrics.RecordEvent(string(event.Type), ok)
	if !ok {
		c.log.Debug().Str("stage", event.Stage.String()).Str("type", string(event.Type)).Msg("Event for unrouted stage dropped")
		return nil
	}
	d.Dispatch(event)
	return nil
}

// Close stops pending agent lookups and closes every agent.
func (c *Connector) Close(ctx context.Context) error {
	c.cancel()

	c.mu.Lock()
	agents := make(map[int]*agent, len(c.agents))
	for id, a := range c.agents {
		agents[id] = a
	}
	c.agents = make(map[int]*agent)
	c.order = nil
	c.mu.Unlock()

	var errs []error
	for id, a := range agents {
		if err := a.app.Close(ctx); err != nil {
			c.log.Warn().Err(err).Int("app", id).Msg("Failed to close agent")
			errs = append(errs, fmt.Errorf("failed to close agent %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
