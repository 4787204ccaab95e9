// Package inspector is the UI side of the inspector. The Hub keeps what
// the user sees (the application tree, the active stage, its popups,
// details and animations, and a transient status line) and fans every
// change out to subscribers.
package inspector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/repository"
)

// Scheduler runs a function on the UI goroutine.
type Scheduler interface {
	RunLater(fn func()) bool
}

const subscriberBuffer = 32

// Hub is the inspector state behind the UI.
type Hub struct {
	scheduler     Scheduler
	metrics       *metrics.Metrics
	pane          *details.Pane
	remoteTimeout time.Duration
	log           *zerolog.Logger

	mu          sync.RWMutex
	apps        []*AppView
	stages      map[model.StageID]*model.StageController
	active      *model.StageController
	selected    *model.NodeRef
	popups      map[model.StageID][]model.PopupWindow
	animations  []model.Animation
	config      model.Configuration
	status      string
	statusTimer *time.Timer

	subMu       sync.RWMutex
	subscribers map[uuid.UUID]chan Notification
}

var (
	_ repository.Notifier    = (*Hub)(nil)
	_ model.Dispatcher       = (*Hub)(nil)
	_ details.Setter         = (*Hub)(nil)
	_ details.StatusReporter = (*Hub)(nil)
)

// NewHub creates a hub handling agent events on scheduler.
func NewHub(scheduler Scheduler, m *metrics.Metrics) *Hub {
	h := &Hub{
		scheduler:     scheduler,
		metrics:       m,
		remoteTimeout: 5 * time.Second,
		log:           logger.WithComponent("inspector"),
		stages:        make(map[model.StageID]*model.StageController),
		popups:        make(map[model.StageID][]model.PopupWindow),
		config:        model.DefaultConfiguration(),
		subscribers:   make(map[uuid.UUID]chan Notification),
	}
	h.pane = details.NewPane(h, h, h.log)
	return h
}

// SetRemoteTimeout bounds every call the hub makes to an agent.
func (h *Hub) SetRemoteTimeout(d time.Duration) {
	h.remoteTimeout = d
}

// SetStatusDuration changes how long failures stay visible.
func (h *Hub) SetStatusDuration(d time.Duration) {
	h.pane.SetStatusDuration(d)
}

func (h *Hub) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.remoteTimeout)
}

// Subscribe registers a subscriber. Notifications are dropped for
// subscribers that do not keep up.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Notification) {
	id := uuid.New()
	ch := make(chan Notification, subscriberBuffer)

	h.subMu.Lock()
	h.subscribers[id] = ch
	h.subMu.Unlock()

	h.log.Debug().Str("subscriber", id.String()).Msg("Subscriber added")
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
		h.log.Debug().Str("subscriber", id.String()).Msg("Subscriber removed")
	}
}

func (h *Hub) notify(n Notification) {
	n.Time = time.Now()

	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.log.Debug().Str("subscriber", id.String()).Str("type", string(n.Type)).Msg("Subscriber full, notification dropped")
		}
	}
}

func (h *Hub) updateModelSize() {
	stages := len(h.stages)
	apps := len(h.apps)
	h.metrics.SetModelSize(apps, stages)
}

func (h *Hub) appIndex(appID int) int {
	for i, app := range h.apps {
		if app.ID == appID {
			return i
		}
	}
	return -1
}

// AppAdded implements repository.Notifier.
func (h *Hub) AppAdded(app *model.AppController) {
	view := &AppView{ID: app.ID, Stages: app.StageIDs()}

	h.mu.Lock()
	h.apps = append(h.apps, view)
	for _, stage := range app.Stages {
		h.stages[stage.ID] = stage
	}
	h.updateModelSize()
	copied := *view
	h.mu.Unlock()

	h.log.Info().Int("app", app.ID).Int("stages", len(app.Stages)).Msg("App added")
	h.notify(Notification{Type: NotifyAppAdded, App: &copied})
}

// AppRemoved implements repository.Notifier.
func (h *Hub) AppRemoved(app *model.AppController) {
	h.mu.Lock()
	if i := h.appIndex(app.ID); i >= 0 {
		h.apps = append(h.apps[:i:i], h.apps[i+1:]...)
	}
	for id := range h.stages {
		if id.AppID == app.ID {
			delete(h.stages, id)
			delete(h.popups, id)
		}
	}
	deactivated := h.active != nil && h.active.ID.AppID == app.ID
	if deactivated {
		h.deactivateLocked()
	}
	h.updateModelSize()
	h.mu.Unlock()

	h.log.Info().Int("app", app.ID).Msg("App removed")
	h.notify(Notification{Type: NotifyAppRemoved, App: &AppView{ID: app.ID, Stages: app.StageIDs()}})
	if deactivated {
		h.notify(Notification{Type: NotifyActiveStage})
	}
}

// StageAdded implements repository.Notifier.
func (h *Hub) StageAdded(stage *model.StageController) {
	h.mu.Lock()
	h.stages[stage.ID] = stage
	if i := h.appIndex(stage.ID.AppID); i >= 0 {
		h.apps[i].Stages = append(h.apps[i].Stages, stage.ID)
	}
	h.updateModelSize()
	h.mu.Unlock()

	id := stage.ID
	h.notify(Notification{Type: NotifyStageAdded, Stage: &id})
}

// StageRemoved implements repository.Notifier.
func (h *Hub) StageRemoved(stage *model.StageController) {
	h.mu.Lock()
	delete(h.stages, stage.ID)
	delete(h.popups, stage.ID)
	if i := h.appIndex(stage.ID.AppID); i >= 0 {
		ids := h.apps[i].Stages
		for j, id := range ids {
			if id == stage.ID {
				h.apps[i].Stages = append(ids[:j:j], ids[j+1:]...)
				break
			}
		}
	}
	deactivated := h.active != nil && h.active.ID == stage.ID
	if deactivated {
		h.deactivateLocked()
	}
	h.updateModelSize()
	h.mu.Unlock()

	id := stage.ID
	h.notify(Notification{Type: NotifyStageRemoved, Stage: &id})
	if deactivated {
		h.notify(Notification{Type: NotifyActiveStage})
	}
}

func (h *Hub) deactivateLocked() {
	h.active = nil
	h.selected = nil
	h.animations = nil
	h.pane.Clear()
}

// ConfigurationUpdated implements repository.Notifier by pushing the
// current configuration to every stage.
func (h *Hub) ConfigurationUpdated() {
	h.mu.RLock()
	cfg := h.config
	stages := make([]*model.StageController, 0, len(h.stages))
	for _, stage := range h.stages {
		stages = append(stages, stage)
	}
	h.mu.RUnlock()

	for _, stage := range stages {
		ctx, cancel := h.remoteContext(context.Background())
		if err := stage.ConfigurationUpdated(ctx, cfg); err != nil {
			h.log.Warn().Err(err).Str("stage", stage.ID.String()).Msg("Failed to update configuration")
		}
		cancel()
	}
}

// SetActiveStage implements repository.Notifier. The active stage is
// the one whose details, popups and animations are shown.
func (h *Hub) SetActiveStage(stage *model.StageController) {
	h.mu.Lock()
	h.deactivateLocked()
	h.active = stage
	h.mu.Unlock()

	ctx, cancel := h.remoteContext(context.Background())
	defer cancel()
	if err := stage.Update(ctx); err != nil {
		h.log.Warn().Err(err).Str("stage", stage.ID.String()).Msg("Failed to update stage")
	}
	if err := stage.UpdateAnimations(ctx); err != nil {
		h.log.Warn().Err(err).Str("stage", stage.ID.String()).Msg("Failed to update animations")
	}

	h.log.Info().Str("stage", stage.ID.String()).Msg("Active stage set")
	id := stage.ID
	h.notify(Notification{Type: NotifyActiveStage, Stage: &id})
}

// Activate makes the tracked stage id the active stage.
func (h *Hub) Activate(id model.StageID) error {
	h.mu.RLock()
	stage, ok := h.stages[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}

	done := make(chan struct{})
	if !h.scheduler.RunLater(func() {
		defer close(done)
		h.SetActiveStage(stage)
	}) {
		return fmt.Errorf("failed to activate %s: inspector stopped", id)
	}
	<-done
	return nil
}

// Dispatch implements model.Dispatcher. Events are applied on the UI
// goroutine.
func (h *Hub) Dispatch(event model.Event) {
	h.scheduler.RunLater(func() {
		h.handle(event)
	})
}

func (h *Hub) handle(event model.Event) {
	h.mu.Lock()
	active := h.active != nil && h.active.ID == event.Stage
	switch event.Type {
	case model.EventWindowsUpdated:
		h.popups[event.Stage] = event.Popups
	case model.EventAnimationsUpdated:
		if active {
			h.animations = event.Animations
		}
	case model.EventNodeSelected:
		if active {
			h.selected = event.Node
		}
	case model.EventDetailsUpdated:
		if active {
			h.showDetails(event.Details)
		}
	case model.EventDetailUpdated:
		if active && event.Detail != nil {
			h.pane.UpdateDetail(*event.Detail)
		}
	default:
		h.log.Debug().Str("type", string(event.Type)).Msg("Unknown event type")
	}
	h.mu.Unlock()

	h.notify(Notification{Type: NotifyEvent, Event: &event})
}

// showDetails rebuilds the panes from a full detail list. Callers hold
// h.mu.
func (h *Hub) showDetails(records []details.Detail) {
	grouped := make(map[details.PaneType][]details.Detail)
	for _, d := range records {
		grouped[d.Pane] = append(grouped[d.Pane], d)
	}
	h.pane.Clear()
	for pane, ds := range grouped {
		h.pane.Update(pane, ds)
	}
	if len(records) == 0 {
		h.selected = nil
	}
}

func (h *Hub) activeStage() (*model.StageController, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.active == nil {
		return nil, ErrNoActiveStage
	}
	return h.active, nil
}

// SelectNode selects a node of the active stage.
func (h *Hub) SelectNode(ctx context.Context, node model.NodeRef) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}
	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	if err := stage.SetSelectedNode(ctx, node); err != nil {
		h.SetStatusText(details.StatusException+err.Error(), h.pane.StatusDuration())
		return fmt.Errorf("failed to select node %d: %w", node.ID, err)
	}
	return nil
}

// ClearSelection deselects the node of the active stage.
func (h *Hub) ClearSelection(ctx context.Context) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.selected = nil
	h.pane.Clear()
	h.mu.Unlock()

	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	if err := stage.RemoveSelectedNode(ctx); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	return nil
}

// SetDetail implements details.Setter on the active stage.
func (h *Hub) SetDetail(ctx context.Context, pane details.PaneType, detailID int, value string) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}
	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	return stage.SetDetail(ctx, pane, detailID, value)
}

// SubmitDetail sends an edit of a shown detail. A rejected edit is shown
// as status text and reported as ErrEditRejected.
func (h *Hub) SubmitDetail(ctx context.Context, key details.Key, value string) error {
	detail, ok := h.pane.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDetail, key)
	}
	accepted := h.pane.Submit(ctx, detail, value)
	h.metrics.RecordEdit(accepted)
	if !accepted {
		return ErrEditRejected
	}
	return nil
}

// FilterDetails sets the property filter of the detail panes.
func (h *Hub) FilterDetails(text string) {
	h.pane.Filter(text)
}

// Details returns the visible details of the selected node.
func (h *Hub) Details() []details.Detail {
	return h.pane.Details()
}

// Configuration returns the configuration pushed to stages.
func (h *Hub) Configuration() model.Configuration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// SetConfiguration stores cfg and pushes it to every stage on the UI
// goroutine.
func (h *Hub) SetConfiguration(cfg model.Configuration) {
	h.mu.Lock()
	h.config = cfg
	h.mu.Unlock()

	h.scheduler.RunLater(h.ConfigurationUpdated)
	h.notify(Notification{Type: NotifyConfiguration, Configuration: &cfg})
}

// SetAnimationsEnabled pauses or resumes the animations of the active
// stage.
func (h *Hub) SetAnimationsEnabled(ctx context.Context, enabled bool) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.config.AnimationsEnabled = enabled
	h.mu.Unlock()

	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	if err := stage.AnimationsEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to toggle animations: %w", err)
	}
	return nil
}

// UpdateAnimations asks the active stage for its animations.
func (h *Hub) UpdateAnimations(ctx context.Context) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}
	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	if err := stage.UpdateAnimations(ctx); err != nil {
		return fmt.Errorf("failed to update animations: %w", err)
	}
	return nil
}

// PauseAnimation pauses one animation of the active stage.
func (h *Hub) PauseAnimation(ctx context.Context, animationID int) error {
	stage, err := h.activeStage()
	if err != nil {
		return err
	}
	ctx, cancel := h.remoteContext(ctx)
	defer cancel()
	if err := stage.PauseAnimation(ctx, animationID); err != nil {
		h.SetStatusText(details.StatusException+err.Error(), h.pane.StatusDuration())
		return fmt.Errorf("failed to pause animation %d: %w", animationID, err)
	}
	return nil
}

// Animations returns the animations of the active stage.
func (h *Hub) Animations() []model.Animation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Animation{}, h.animations...)
}

// SetStatusText shows text until d elapsed or another text replaces it.
func (h *Hub) SetStatusText(text string, d time.Duration) {
	h.mu.Lock()
	if h.statusTimer != nil {
		h.statusTimer.Stop()
	}
	h.status = text
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		if h.statusTimer != timer {
			h.mu.Unlock()
			return
		}
		h.status = ""
		h.statusTimer = nil
		h.mu.Unlock()
		h.notify(Notification{Type: NotifyStatus})
	})
	h.statusTimer = timer
	h.mu.Unlock()

	h.log.Info().Str("status", text).Dur("duration", d).Msg("Status text")
	h.notify(Notification{Type: NotifyStatus, Status: text})
}

// Apps returns the inspected applications and their stages.
func (h *Hub) Apps() []AppView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	apps := make([]AppView, len(h.apps))
	for i, app := range h.apps {
		apps[i] = AppView{ID: app.ID, Stages: append([]model.StageID{}, app.Stages...)}
	}
	return apps
}

// Status returns a summary of the inspector state.
func (h *Hub) Status() StatusView {
	h.mu.RLock()
	view := StatusView{
		Apps:   len(h.apps),
		Stages: len(h.stages),
		Status: h.status,
		Popups: []model.PopupWindow{},
	}
	if h.active != nil {
		id := h.active.ID
		view.ActiveStage = &id
		view.Popups = append(view.Popups, h.popups[id]...)
	}
	if h.selected != nil {
		selected := *h.selected
		view.Selected = &selected
	}
	h.mu.RUnlock()

	h.subMu.RLock()
	view.Subscribers = len(h.subscribers)
	h.subMu.RUnlock()
	return view
}
