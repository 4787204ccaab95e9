// Package modeltest provides an in-memory model.Application for tests.
package modeltest

import (
	"context"
	"sync"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Call records one method invocation.
type Call struct {
	Method string
	Stage  model.StageID
	Args   []any
}

// Application records calls and serves a configurable stage list.
type Application struct {
	AppID int

	mu          sync.Mutex
	stages      []model.StageID
	err         error
	stageIDsErr error
	calls       []Call
}

// NewApplication returns a fake application with the given stages.
func NewApplication(appID int, stageIDs ...int) *Application {
	a := &Application{AppID: appID}
	a.SetStages(stageIDs...)
	return a
}

// SetStages replaces the stage list returned by StageIDs.
func (a *Application) SetStages(stageIDs ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stages = make([]model.StageID, len(stageIDs))
	for i, id := range stageIDs {
		a.stages[i] = model.StageID{AppID: a.AppID, StageID: id}
	}
}

// FailWith makes every call except StageIDs return err.
func (a *Application) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// FailStageIDsWith makes StageIDs return err.
func (a *Application) FailStageIDsWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stageIDsErr = err
}

// Calls returns every recorded call.
func (a *Application) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// CallsTo returns the recorded calls of one method.
func (a *Application) CallsTo(method string) []Call {
	var matched []Call
	for _, c := range a.Calls() {
		if c.Method == method {
			matched = append(matched, c)
		}
	}
	return matched
}

func (a *Application) record(method string, id model.StageID, args ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Method: method, Stage: id, Args: args})
	return a.err
}

func (a *Application) ConfigurationUpdated(_ context.Context, id model.StageID, cfg model.Configuration) error {
	return a.record("ConfigurationUpdated", id, cfg)
}

func (a *Application) Update(_ context.Context, id model.StageID) error {
	return a.record("Update", id)
}

func (a *Application) SetEventDispatcher(_ context.Context, id model.StageID, endpoint string) error {
	return a.record("SetEventDispatcher", id, endpoint)
}

func (a *Application) StageIDs(context.Context) ([]model.StageID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Method: "StageIDs"})
	if a.stageIDsErr != nil {
		return nil, a.stageIDsErr
	}
	return append([]model.StageID(nil), a.stages...), nil
}

func (a *Application) CloseStage(_ context.Context, id model.StageID) error {
	return a.record("CloseStage", id)
}

func (a *Application) Close(context.Context) error {
	return a.record("Close", model.StageID{AppID: a.AppID})
}

func (a *Application) SetSelectedNode(_ context.Context, id model.StageID, node model.NodeRef) error {
	return a.record("SetSelectedNode", id, node)
}

func (a *Application) RemoveSelectedNode(_ context.Context, id model.StageID) error {
	return a.record("RemoveSelectedNode", id)
}

func (a *Application) SetDetail(_ context.Context, id model.StageID, pane details.PaneType, detailID int, value string) error {
	return a.record("SetDetail", id, pane, detailID, value)
}

func (a *Application) AnimationsEnabled(_ context.Context, id model.StageID, enabled bool) error {
	return a.record("AnimationsEnabled", id, enabled)
}

func (a *Application) UpdateAnimations(_ context.Context, id model.StageID) error {
	return a.record("UpdateAnimations", id)
}

func (a *Application) PauseAnimation(_ context.Context, id model.StageID, animationID int) error {
	return a.record("PauseAnimation", id, animationID)
}

// Controller builds an AppController with one StageController per
// current stage, routed through router.
func (a *Application) Controller(router model.Router) *model.AppController {
	ids, _ := a.StageIDs(context.Background())
	app := model.NewAppController(a.AppID, a)
	for _, id := range ids {
		app.AddStage(model.NewStageController(id, a, router))
	}
	return app
}

// Router is a model.Router recording routes.
type Router struct {
	Address string

	mu     sync.Mutex
	routes map[model.StageID]model.Dispatcher
}

func (r *Router) Route(id model.StageID, d model.Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.routes == nil {
		r.routes = make(map[model.StageID]model.Dispatcher)
	}
	r.routes[id] = d
}

func (r *Router) Unroute(id model.StageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, id)
}

func (r *Router) Endpoint() string {
	return r.Address
}

// Routed returns the dispatcher routed for id.
func (r *Router) Routed(id model.StageID) (model.Dispatcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.routes[id]
	return d, ok
}
