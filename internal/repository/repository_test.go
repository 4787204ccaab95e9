package repository

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/model/modeltest"
	"github.com/bryanchriswhite/scenicview/internal/uithread"
)

// recorder is a Notifier recording calls as strings. check, when set,
// runs inside every notification.
type recorder struct {
	mu     sync.Mutex
	events []string
	check  func(event string)
}

func (r *recorder) record(event string) {
	if r.check != nil {
		r.check(event)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) AppAdded(app *model.AppController) { r.record(fmt.Sprintf("appAdded(%d)", app.ID)) }
func (r *recorder) AppRemoved(app *model.AppController) {
	r.record(fmt.Sprintf("appRemoved(%d)", app.ID))
}
func (r *recorder) StageAdded(s *model.StageController) {
	r.record(fmt.Sprintf("stageAdded(%s)", s.ID))
}
func (r *recorder) StageRemoved(s *model.StageController) {
	r.record(fmt.Sprintf("stageRemoved(%s)", s.ID))
}
func (r *recorder) ConfigurationUpdated() { r.record("configurationUpdated") }
func (r *recorder) SetActiveStage(s *model.StageController) {
	r.record(fmt.Sprintf("setActiveStage(%s)", s.ID))
}

type fixture struct {
	queue  *uithread.Queue
	notes  *recorder
	router *modeltest.Router
	repo   *Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		queue:  uithread.New(logger.Nop()),
		notes:  &recorder{},
		router: &modeltest.Router{Address: "127.0.0.1:7557"},
	}
	t.Cleanup(f.queue.Stop)
	f.repo = New(f.queue, f.notes, model.DispatcherFunc(func(model.Event) {}))
	return f
}

func (f *fixture) appIDs() []int {
	return idsOf(f.repo.Apps())
}

// trackedIDs reads the app list directly; only call it on the queue.
func (f *fixture) trackedIDs() []int {
	return idsOf(f.repo.apps)
}

func idsOf(apps []*model.AppController) []int {
	ids := make([]int, 0)
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	return ids
}

func TestAppAddedTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	app := modeltest.NewApplication(1, 10)

	f.repo.AppAdded(app.Controller(f.router))
	f.repo.AppAdded(app.Controller(f.router))
	f.queue.Flush()

	assert.Equal(t, []int{1}, f.appIDs())
	assert.Equal(t, []string{"appAdded(1)", "setActiveStage(1:10)", "configurationUpdated"}, f.notes.Events())
	assert.Len(t, app.CallsTo("SetEventDispatcher"), 1)
}

func TestOnlyFirstAppWithStagesBecomesActive(t *testing.T) {
	f := newFixture(t)

	f.repo.AppAdded(modeltest.NewApplication(1, 10, 11).Controller(f.router))
	f.repo.AppAdded(modeltest.NewApplication(2, 20).Controller(f.router))
	f.queue.Flush()

	assert.Equal(t, []string{
		"appAdded(1)", "setActiveStage(1:10)", "configurationUpdated",
		"appAdded(2)", "configurationUpdated",
	}, f.notes.Events())

	_, routed := f.router.Routed(model.StageID{AppID: 1, StageID: 11})
	assert.True(t, routed)
}

func TestFirstAppWithoutStagesSelectsNothing(t *testing.T) {
	f := newFixture(t)

	f.repo.AppAdded(modeltest.NewApplication(1).Controller(f.router))
	f.queue.Flush()

	assert.Equal(t, []string{"appAdded(1)", "configurationUpdated"}, f.notes.Events())
}

func TestAppsSeesEveryScheduledMutation(t *testing.T) {
	f := newFixture(t)
	f.repo.AppAdded(modeltest.NewApplication(1, 10).Controller(f.router))
	f.repo.AppAdded(modeltest.NewApplication(2, 20).Controller(f.router))

	assert.Equal(t, []int{1, 2}, f.appIDs())

	f.queue.Stop()
	assert.Nil(t, f.repo.Apps())
}

func TestMutationsCommitBeforeNotifying(t *testing.T) {
	f := newFixture(t)
	app := modeltest.NewApplication(1, 10)

	var observed []string
	f.notes.check = func(event string) {
		observed = append(observed, fmt.Sprintf("%s %v closed=%d", event, f.trackedIDs(), len(app.CallsTo("CloseStage"))))
	}

	controller := app.Controller(f.router)
	f.repo.AppAdded(controller)
	f.repo.AppRemoved(controller)
	f.queue.Flush()

	assert.Equal(t, []string{
		"appAdded(1) [1] closed=0",
		"setActiveStage(1:10) [1] closed=0",
		"configurationUpdated [1] closed=0",
		"appRemoved(1) [] closed=1",
	}, observed)
}

func TestStageAddedAndRemoved(t *testing.T) {
	f := newFixture(t)
	app := modeltest.NewApplication(1, 10)
	f.repo.AppAdded(app.Controller(f.router))

	stage := model.NewStageController(model.StageID{AppID: 1, StageID: 11}, app, f.router)
	f.repo.StageAdded(stage)
	f.repo.StageAdded(stage)
	f.queue.Flush()

	apps := f.repo.Apps()
	require.Len(t, apps, 1)
	assert.Equal(t, []model.StageID{{AppID: 1, StageID: 10}, {AppID: 1, StageID: 11}}, apps[0].StageIDs())

	assert.Same(t, stage, apps[0].Stages[1])

	f.repo.StageRemoved(stage)
	f.repo.StageRemoved(stage)
	f.queue.Flush()

	assert.Equal(t, []model.StageID{{AppID: 1, StageID: 10}}, f.repo.Apps()[0].StageIDs())
	assert.Equal(t, []string{
		"appAdded(1)", "setActiveStage(1:10)", "configurationUpdated",
		"stageAdded(1:11)", "configurationUpdated",
		"stageRemoved(1:11)",
	}, f.notes.Events())

	closed := app.CallsTo("CloseStage")
	require.Len(t, closed, 1)
	assert.Equal(t, model.StageID{AppID: 1, StageID: 11}, closed[0].Stage)
}

func TestOutOfOrderRemovalsAreNoops(t *testing.T) {
	f := newFixture(t)
	app := modeltest.NewApplication(1, 10)
	controller := app.Controller(f.router)

	f.repo.AppAdded(controller)
	f.repo.AppRemoved(controller)
	// arrives after its app is gone
	f.repo.StageRemoved(controller.Stages[0])
	f.repo.StageAdded(model.NewStageController(model.StageID{AppID: 1, StageID: 12}, app, f.router))
	f.repo.AppRemoved(controller)
	f.queue.Flush()

	assert.Empty(t, f.repo.Apps())
	assert.Equal(t, []string{
		"appAdded(1)", "setActiveStage(1:10)", "configurationUpdated",
		"appRemoved(1)",
	}, f.notes.Events())
	assert.Len(t, app.CallsTo("CloseStage"), 1)
}

func TestRepositoryDoesNotMutateCallerSnapshot(t *testing.T) {
	f := newFixture(t)
	app := modeltest.NewApplication(1, 10)
	controller := app.Controller(f.router)

	f.repo.AppAdded(controller)
	f.repo.StageAdded(model.NewStageController(model.StageID{AppID: 1, StageID: 11}, app, f.router))
	f.queue.Flush()

	assert.Len(t, controller.Stages, 1)
	assert.Len(t, f.repo.Apps()[0].Stages, 2)
}
