// Package agent is the target side of the bridge. An Agent serves the
// remote application interface for the windows of one process, watches
// their popups and mirrors the properties of the selected node back to
// the inspector as events.
package agent

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/mirror"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/remote"
	"github.com/bryanchriswhite/scenicview/internal/uithread"
	"github.com/bryanchriswhite/scenicview/internal/window"
)

// bindAttempts is how many client ports Start tries before giving up.
const bindAttempts = 10

// Agent inspects the windows of one process.
type Agent struct {
	pid              int
	toolkit          Toolkit
	topologyInterval time.Duration
	retryInterval    time.Duration
	dial             func(endpoint string) remote.Connector
	log              *zerolog.Logger

	// queue runs topology publications and sends events, in order.
	queue *uithread.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	stages    map[int]*stage
	senders   map[string]remote.Connector
	registry  *remote.Registry
	port      int
	connector remote.Connector
}

var _ model.Application = (*Agent)(nil)

// New creates an agent for the windows of pid. The pid is also the
// application id the inspector knows the agent by.
func New(pid int, toolkit Toolkit) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.WithComponent("agent")
	return &Agent{
		pid:              pid,
		toolkit:          toolkit,
		topologyInterval: 500 * time.Millisecond,
		retryInterval:    remote.DefaultRetryInterval,
		dial: func(endpoint string) remote.Connector {
			return remote.NewConnectorClient(endpoint)
		},
		log:     log,
		queue:   uithread.New(log),
		ctx:     ctx,
		cancel:  cancel,
		stages:  make(map[int]*stage),
		senders: make(map[string]remote.Connector),
	}
}

// AppID returns the application id of the agent.
func (a *Agent) AppID() int {
	return a.pid
}

// SetTopologyInterval changes how often popups are scanned. Stages that
// already watch popups keep their interval.
func (a *Agent) SetTopologyInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.topologyInterval = d
}

// SetRetryInterval changes the pause between lookups of the connector.
// Call it before Start.
func (a *Agent) SetRetryInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retryInterval = d
}

// SetDialer replaces how event endpoints are reached.
func (a *Agent) SetDialer(dial func(endpoint string) remote.Connector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dial = dial
	a.senders = make(map[string]remote.Connector)
}

// Port returns the port of the agent registry, 0 before Start.
func (a *Agent) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port
}

// Start binds the agent registry on a fresh client port and announces
// the agent to the connector on connectorPort once it can be found.
// Failing to bind is fatal for the agent.
func (a *Agent) Start(connectorPort int) error {
	var (
		registry *remote.Registry
		port     int
		err      error
	)
	for i := 0; i < bindAttempts; i++ {
		port = remote.ClientPort()
		registry, err = remote.BindApplication(a, port)
		if err == nil {
			break
		}
		a.log.Debug().Err(err).Int("port", port).Msg("Client port taken, trying next")
	}
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	a.mu.Lock()
	a.registry = registry
	a.port = port
	interval := a.retryInterval
	a.mu.Unlock()

	a.log.Info().Int("pid", a.pid).Int("port", port).Msg("Agent listening")

	remote.FindConnectorWithRetry(a.ctx, connectorPort, interval, func(c *remote.ConnectorClient) {
		a.mu.Lock()
		a.connector = c
		a.mu.Unlock()

		if err := c.AgentStarted(a.ctx, a.pid, port); err != nil {
			a.log.Error().Err(err).Msg("Failed to announce agent")
			return
		}
		a.log.Info().Str("connector", c.Address()).Msg("Agent announced")
	})
	return nil
}

// Stop announces the agent's end, unbinds its registry and closes every
// stage. It is safe to call without Start.
func (a *Agent) Stop(ctx context.Context) error {
	a.cancel()

	a.mu.Lock()
	connector, registry := a.connector, a.registry
	a.connector, a.registry = nil, nil
	a.mu.Unlock()

	var errs []error
	if connector != nil {
		if err := connector.AgentFinished(ctx, a.pid); err != nil {
			errs = append(errs, fmt.Errorf("failed to announce agent end: %w", err))
		}
	}
	if err := remote.UnbindApplication(registry); err != nil {
		errs = append(errs, fmt.Errorf("failed to unbind agent: %w", err))
	}
	if err := a.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.queue.Stop()
	return errors.Join(errs...)
}

// stageWindows returns the stage windows of the process.
func (a *Agent) stageWindows() ([]*model.WindowInfo, error) {
	windows, err := a.toolkit.ListWindows()
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	return window.WindowsOf(windows, a.pid), nil
}

// stage returns the state of id, creating it when id names a live
// window of the process.
func (a *Agent) stage(id model.StageID) (*stage, error) {
	if id.AppID != a.pid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}

	a.mu.Lock()
	s, ok := a.stages[id.StageID]
	a.mu.Unlock()
	if ok {
		return s, nil
	}

	windows, err := a.stageWindows()
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		if int(w.ID) != id.StageID {
			continue
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if s, ok := a.stages[id.StageID]; ok {
			return s, nil
		}
		s = newStage(id)
		a.stages[id.StageID] = s
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
}

// StageIDs lists the top-level windows of the process.
func (a *Agent) StageIDs(context.Context) ([]model.StageID, error) {
	windows, err := a.stageWindows()
	if err != nil {
		return nil, err
	}
	ids := make([]model.StageID, len(windows))
	for i, w := range windows {
		ids[i] = model.StageID{AppID: a.pid, StageID: int(w.ID)}
	}
	return ids, nil
}

// SetEventDispatcher makes the stage send its events to the connector at
// endpoint. An empty endpoint stops event delivery.
func (a *Agent) SetEventDispatcher(_ context.Context, id model.StageID, endpoint string) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}

	var sender remote.Connector
	if endpoint != "" {
		sender = a.sender(endpoint)
	}

	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()

	a.watchPopups(s)
	s.log.Debug().Str("endpoint", endpoint).Msg("Event dispatcher set")
	return nil
}

func (a *Agent) sender(endpoint string) remote.Connector {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.senders[endpoint]; ok {
		return c
	}
	c := a.dial(endpoint)
	a.senders[endpoint] = c
	return c
}

// send queues event for delivery to the stage's dispatcher. Events of a
// stage without dispatcher are dropped.
func (a *Agent) send(s *stage, event model.Event) {
	event.Stage = s.id

	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		s.log.Debug().Str("type", string(event.Type)).Msg("No dispatcher, event dropped")
		return
	}
	a.queue.RunLater(func() {
		if err := sender.Dispatch(a.ctx, event); err != nil {
			s.log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to dispatch event")
		}
	})
}

// watchPopups starts or stops the topology tracker of s to match its
// configuration and dispatcher.
func (a *Agent) watchPopups(s *stage) {
	a.mu.Lock()
	interval := a.topologyInterval
	a.mu.Unlock()

	s.mu.Lock()
	want := s.sender != nil && s.config.ShowPopups
	var stopped *window.Tracker
	switch {
	case want && s.tracker == nil:
		s.tracker = window.NewTracker(a.toolkit, s.window, interval, a.queue, func(_ *window.Forest, popups []model.PopupWindow) {
			s.mu.Lock()
			s.popups = popups
			s.mu.Unlock()
			a.send(s, model.Event{Type: model.EventWindowsUpdated, Popups: popups})
		})
		s.tracker.Start()
	case !want && s.tracker != nil:
		stopped = s.takeTracker()
		s.popups = nil
	}
	s.mu.Unlock()

	if stopped != nil {
		stopped.Stop()
		a.send(s, model.Event{Type: model.EventWindowsUpdated, Popups: []model.PopupWindow{}})
	}
}

// ConfigurationUpdated applies a new configuration to the stage.
func (a *Agent) ConfigurationUpdated(ctx context.Context, id model.StageID, cfg model.Configuration) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.config
	s.config = cfg
	var done chan struct{}
	if previous.RefreshInterval != cfg.RefreshInterval || !cfg.AutoRefresh {
		done = s.stopRefresh()
	}
	if cfg.AutoRefresh && s.selected != nil {
		s.startRefresh(func() { a.refresh(s) })
	}
	s.mu.Unlock()
	wait(done)

	a.watchPopups(s)

	if previous.AnimationsEnabled != cfg.AnimationsEnabled {
		return a.AnimationsEnabled(ctx, id, cfg.AnimationsEnabled)
	}
	return nil
}

// Update refreshes the selected node and resends its details.
func (a *Agent) Update(_ context.Context, id model.StageID) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}
	a.refresh(s)
	a.sendDetails(s)
	return nil
}

// refresh reads the selected window again. Changed properties reach the
// inspector through the mirror. A vanished window clears the selection.
func (a *Agent) refresh(s *stage) {
	s.mu.Lock()
	node := s.selected
	s.mu.Unlock()
	if node == nil {
		return
	}

	windows, err := a.toolkit.ListWindows()
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to refresh node")
		return
	}
	for _, w := range windows {
		if w.ID == node.Window {
			node.apply(w)
			return
		}
	}

	s.log.Info().Uint32("window", node.Window).Msg("Selected node went away")
	a.dropSelection(s)
	a.sendDetails(s)
}

// CloseStage stops watching the stage and forgets it.
func (a *Agent) CloseStage(_ context.Context, id model.StageID) error {
	a.mu.Lock()
	s, ok := a.stages[id.StageID]
	if ok && id.AppID == a.pid {
		delete(a.stages, id.StageID)
	}
	a.mu.Unlock()

	if !ok || id.AppID != a.pid {
		return nil
	}
	a.closeStage(s)
	return nil
}

func (a *Agent) closeStage(s *stage) {
	s.mu.Lock()
	tracker := s.takeTracker()
	done := s.stopRefresh()
	s.sender = nil
	s.mu.Unlock()

	wait(done)
	if tracker != nil {
		tracker.Stop()
	}
	a.clearSelection(s)
	s.log.Debug().Msg("Stage closed")
}

// Close closes every stage.
func (a *Agent) Close(context.Context) error {
	a.mu.Lock()
	stages := make([]*stage, 0, len(a.stages))
	for _, s := range a.stages {
		stages = append(stages, s)
	}
	a.stages = make(map[int]*stage)
	a.mu.Unlock()

	for _, s := range stages {
		a.closeStage(s)
	}
	return nil
}

// SetSelectedNode starts mirroring node, which must be the stage window
// or one of its popups.
func (a *Agent) SetSelectedNode(_ context.Context, id model.StageID, ref model.NodeRef) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}

	windows, err := a.toolkit.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	forest := window.BuildForest(s.window, windows, window.IsPopup)
	if _, isPopup := forest.Find(ref.ID); ref.ID != s.window && !isPopup {
		return fmt.Errorf("%w: %d", ErrUnknownNode, ref.ID)
	}

	var info *model.WindowInfo
	for _, w := range windows {
		if w.ID == ref.ID {
			info = w
			break
		}
	}
	if info == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, ref.ID)
	}

	a.clearSelection(s)

	node := newNode(info)
	tracker := mirror.NewTracker(mirror.UpdaterFunc(func(name string, _ mirror.Observable) {
		a.detailChanged(s, node, name)
	}), s.log)
	tracker.Attach(node)

	s.mu.Lock()
	s.selected = node
	s.mirror = tracker
	if s.config.AutoRefresh {
		s.startRefresh(func() { a.refresh(s) })
	}
	s.mu.Unlock()

	nodeRef := node.Ref()
	a.send(s, model.Event{Type: model.EventNodeSelected, Node: &nodeRef})
	a.sendDetails(s)
	return nil
}

// RemoveSelectedNode stops mirroring the selected node.
func (a *Agent) RemoveSelectedNode(_ context.Context, id model.StageID) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}
	a.clearSelection(s)
	a.sendDetails(s)
	return nil
}

func (a *Agent) clearSelection(s *stage) {
	wait(a.dropSelection(s))
}

// dropSelection clears the selection and returns the channel closed
// once the refresh loop exited. The refresh loop itself must not wait
// on it.
func (a *Agent) dropSelection(s *stage) chan struct{} {
	s.mu.Lock()
	tracker := s.mirror
	s.mirror = nil
	s.selected = nil
	done := s.stopRefresh()
	s.mu.Unlock()

	if tracker != nil {
		tracker.Clear()
	}
	return done
}

func (a *Agent) detailChanged(s *stage, node *Node, name string) {
	p, ok := propertyNamed(name)
	if !ok {
		return
	}
	detail := node.detail(p)
	a.send(s, model.Event{Type: model.EventDetailUpdated, Pane: p.pane, Detail: &detail})
}

// sendDetails sends the full detail list of the selected node, or an
// empty one when nothing is selected.
func (a *Agent) sendDetails(s *stage) {
	s.mu.Lock()
	node := s.selected
	s.mu.Unlock()

	records := []details.Detail{}
	if node != nil {
		records = node.Details()
	}
	a.send(s, model.Event{Type: model.EventDetailsUpdated, Details: records})
}

// SetDetail writes value into the property shown as detailID of pane on
// the selected node. The value is coerced to the property type and
// validated before reaching the toolkit.
func (a *Agent) SetDetail(_ context.Context, id model.StageID, pane details.PaneType, detailID int, value string) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	node := s.selected
	s.mu.Unlock()
	if node == nil {
		return ErrNoSelection
	}

	p, ok := lookupProperty(pane, detailID)
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrUnknownDetail, pane, detailID)
	}
	if !p.writable {
		return fmt.Errorf("%w: %s is read-only", ErrNotEditable, p.label)
	}
	if node.props[p.name].IsBound() {
		return fmt.Errorf("%w: %w", ErrNotEditable, mirror.ErrBound)
	}

	typed, err := coerce(p, value)
	if err != nil {
		return err
	}
	if err := a.write(node, p, typed); err != nil {
		return fmt.Errorf("failed to set %s: %w", p.label, err)
	}

	s.log.Info().Str("property", p.name).Str("value", value).Msg("Detail set")
	a.refresh(s)
	return nil
}

func (a *Agent) write(node *Node, p nodeProperty, value any) error {
	switch p.name {
	case "title":
		return a.toolkit.SetTitle(node.Window, value.(string))
	case "x", "y", "width", "height":
		g := node.Geometry()
		v := value.(int)
		switch p.name {
		case "x":
			g.X = v
		case "y":
			g.Y = v
		case "width":
			g.Width = v
		case "height":
			g.Height = v
		}
		return a.toolkit.MoveResize(node.Window, g)
	case "borderWidth":
		return a.toolkit.SetBorderWidth(node.Window, value.(int))
	case "borderColor":
		c := value.(color.RGBA)
		if err := a.toolkit.SetBorderColor(node.Window, c); err != nil {
			return err
		}
		return node.borderColor.Set(details.FormatColor(c))
	default:
		return fmt.Errorf("%w: %s", ErrNotEditable, p.name)
	}
}

// AnimationsEnabled pauses or resumes every animation and reports the
// new state.
func (a *Agent) AnimationsEnabled(_ context.Context, id model.StageID, enabled bool) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}
	if err := a.toolkit.SetAnimationsEnabled(enabled); err != nil {
		return fmt.Errorf("failed to toggle animations: %w", err)
	}
	return a.sendAnimations(s)
}

// UpdateAnimations reports the running animations.
func (a *Agent) UpdateAnimations(_ context.Context, id model.StageID) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}
	return a.sendAnimations(s)
}

// PauseAnimation pauses one animation and reports the new state.
func (a *Agent) PauseAnimation(_ context.Context, id model.StageID, animationID int) error {
	s, err := a.stage(id)
	if err != nil {
		return err
	}
	if err := a.toolkit.PauseAnimation(animationID); err != nil {
		return fmt.Errorf("failed to pause animation %d: %w", animationID, err)
	}
	return a.sendAnimations(s)
}

func (a *Agent) sendAnimations(s *stage) error {
	animations, err := a.toolkit.Animations()
	if err != nil {
		return fmt.Errorf("failed to list animations: %w", err)
	}
	if animations == nil {
		animations = []model.Animation{}
	}
	a.send(s, model.Event{Type: model.EventAnimationsUpdated, Animations: animations})
	return nil
}
