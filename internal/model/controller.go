package model

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/logger"
)

// StageController is the inspector's handle on one stage of a remote
// application.
type StageController struct {
	ID StageID

	app    Application
	router Router
	log    *zerolog.Logger

	mu         sync.RWMutex
	dispatcher Dispatcher
}

// NewStageController creates a controller for stage id of app. Events
// for the stage are routed through router, which may be nil.
func NewStageController(id StageID, app Application, router Router) *StageController {
	return &StageController{
		ID:     id,
		app:    app,
		router: router,
		log:    logger.WithStage("stage-controller", id.String()),
	}
}

// App returns the remote application owning the stage.
func (s *StageController) App() Application {
	return s.app
}

// Dispatcher returns the dispatcher set by SetEventDispatcher, or nil.
func (s *StageController) Dispatcher() Dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dispatcher
}

// SetEventDispatcher routes the stage's events to d and asks the agent
// to start sending them. A remote failure is logged; the route stays.
func (s *StageController) SetEventDispatcher(ctx context.Context, d Dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()

	endpoint := ""
	if s.router != nil {
		s.router.Route(s.ID, d)
		endpoint = s.router.Endpoint()
	}
	if err := s.app.SetEventDispatcher(ctx, s.ID, endpoint); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set event dispatcher")
	}
}

// Close drops the event route and closes the remote stage.
func (s *StageController) Close(ctx context.Context) {
	s.mu.Lock()
	s.dispatcher = nil
	s.mu.Unlock()

	if s.router != nil {
		s.router.Unroute(s.ID)
	}
	if err := s.app.CloseStage(ctx, s.ID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close stage")
	}
}

func (s *StageController) ConfigurationUpdated(ctx context.Context, cfg Configuration) error {
	return s.app.ConfigurationUpdated(ctx, s.ID, cfg)
}

func (s *StageController) Update(ctx context.Context) error {
	return s.app.Update(ctx, s.ID)
}

func (s *StageController) SetSelectedNode(ctx context.Context, node NodeRef) error {
	return s.app.SetSelectedNode(ctx, s.ID, node)
}

func (s *StageController) RemoveSelectedNode(ctx context.Context) error {
	return s.app.RemoveSelectedNode(ctx, s.ID)
}

// SetDetail implements details.Setter for the stage.
func (s *StageController) SetDetail(ctx context.Context, pane details.PaneType, detailID int, value string) error {
	return s.app.SetDetail(ctx, s.ID, pane, detailID, value)
}

func (s *StageController) AnimationsEnabled(ctx context.Context, enabled bool) error {
	return s.app.AnimationsEnabled(ctx, s.ID, enabled)
}

func (s *StageController) UpdateAnimations(ctx context.Context) error {
	return s.app.UpdateAnimations(ctx, s.ID)
}

func (s *StageController) PauseAnimation(ctx context.Context, animationID int) error {
	return s.app.PauseAnimation(ctx, s.ID, animationID)
}

// AppController is the inspector's handle on one target application.
// Its id is stable for the lifetime of the target process.
type AppController struct {
	ID     int
	Stages []*StageController
	App    Application
}

// NewAppController creates a controller with no stages.
func NewAppController(id int, app Application) *AppController {
	return &AppController{ID: id, App: app}
}

// Clone returns a controller sharing the stage controllers but owning
// its own stage list.
func (a *AppController) Clone() *AppController {
	return &AppController{
		ID:     a.ID,
		Stages: append([]*StageController(nil), a.Stages...),
		App:    a.App,
	}
}

// AddStage appends a stage, keeping discovery order.
func (a *AppController) AddStage(stage *StageController) {
	a.Stages = append(a.Stages, stage)
}

// Stage returns the stage with the given stage id.
func (a *AppController) Stage(stageID int) (*StageController, bool) {
	i := a.stageIndex(stageID)
	if i < 0 {
		return nil, false
	}
	return a.Stages[i], true
}

// RemoveStage removes and returns the stage with the given stage id.
func (a *AppController) RemoveStage(stageID int) (*StageController, bool) {
	i := a.stageIndex(stageID)
	if i < 0 {
		return nil, false
	}
	stage := a.Stages[i]
	a.Stages = append(a.Stages[:i:i], a.Stages[i+1:]...)
	return stage, true
}

func (a *AppController) stageIndex(stageID int) int {
	for i, s := range a.Stages {
		if s.ID.StageID == stageID {
			return i
		}
	}
	return -1
}

// StageIDs returns the ids of the app's stages in discovery order.
func (a *AppController) StageIDs() []StageID {
	ids := make([]StageID, len(a.Stages))
	for i, s := range a.Stages {
		ids[i] = s.ID
	}
	return ids
}

// Close closes every stage of the application.
func (a *AppController) Close(ctx context.Context) {
	for _, s := range a.Stages {
		s.Close(ctx)
	}
}
