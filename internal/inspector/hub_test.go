package inspector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/model/modeltest"
	"github.com/bryanchriswhite/scenicview/internal/uithread"
)

func newTestHub(t *testing.T) (*Hub, *uithread.Queue) {
	t.Helper()
	q := uithread.New(logger.Nop())
	t.Cleanup(q.Stop)
	return NewHub(q, metrics.New()), q
}

func sampleDetails(stage model.StageID) model.Event {
	return model.Event{
		Type:  model.EventDetailsUpdated,
		Stage: stage,
		Details: []details.Detail{
			{Pane: details.PaneNode, ID: 0, Label: "Title", Value: "Main", ValueKind: details.ValueText, Edition: details.EditionEditable},
			{Pane: details.PaneLayout, ID: 2, Label: "Width", Value: "300", ValueKind: details.ValueText, Edition: details.EditionEditable},
		},
	}
}

func drain(ch <-chan Notification) []NotificationType {
	var types []NotificationType
	for {
		select {
		case n := <-ch:
			types = append(types, n.Type)
		default:
			return types
		}
	}
}

func TestHubTracksAppsAndStages(t *testing.T) {
	h, _ := newTestHub(t)
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	app := modeltest.NewApplication(1, 1, 2).Controller(nil)
	h.AppAdded(app)
	extra := model.NewStageController(model.StageID{AppID: 1, StageID: 3}, app.App, nil)
	h.StageAdded(extra)
	h.StageRemoved(app.Stages[0])

	assert.Equal(t, []AppView{{ID: 1, Stages: []model.StageID{{AppID: 1, StageID: 2}, {AppID: 1, StageID: 3}}}}, h.Apps())
	assert.Equal(t, 2, h.Status().Stages)

	h.AppRemoved(app)
	assert.Empty(t, h.Apps())
	assert.Equal(t, 0, h.Status().Stages)

	assert.Equal(t, []NotificationType{NotifyAppAdded, NotifyStageAdded, NotifyStageRemoved, NotifyAppRemoved}, drain(ch))
}

func TestSetActiveStageRefreshesStage(t *testing.T) {
	h, _ := newTestHub(t)
	fake := modeltest.NewApplication(1, 1)
	app := fake.Controller(nil)
	h.AppAdded(app)

	h.SetActiveStage(app.Stages[0])

	assert.Len(t, fake.CallsTo("Update"), 1)
	assert.Len(t, fake.CallsTo("UpdateAnimations"), 1)
	require.NotNil(t, h.Status().ActiveStage)
	assert.Equal(t, model.StageID{AppID: 1, StageID: 1}, *h.Status().ActiveStage)
}

func TestActivateUnknownStage(t *testing.T) {
	h, _ := newTestHub(t)
	assert.ErrorIs(t, h.Activate(model.StageID{AppID: 5, StageID: 5}), ErrUnknownStage)

	app := modeltest.NewApplication(5, 5).Controller(nil)
	h.AppAdded(app)
	require.NoError(t, h.Activate(model.StageID{AppID: 5, StageID: 5}))
	assert.NotNil(t, h.Status().ActiveStage)
}

func TestEventsOnlyShowForActiveStage(t *testing.T) {
	h, q := newTestHub(t)
	app := modeltest.NewApplication(1, 1, 2).Controller(nil)
	h.AppAdded(app)
	h.SetActiveStage(app.Stages[0])

	active := app.Stages[0].ID
	other := app.Stages[1].ID

	h.Dispatch(sampleDetails(other))
	h.Dispatch(model.Event{Type: model.EventWindowsUpdated, Stage: other, Popups: []model.PopupWindow{{ID: 9, Owner: 2}}})
	q.Flush()
	assert.Empty(t, h.Details())
	assert.Empty(t, h.Status().Popups)

	h.Dispatch(sampleDetails(active))
	h.Dispatch(model.Event{Type: model.EventWindowsUpdated, Stage: active, Popups: []model.PopupWindow{{ID: 7, Owner: 1}}})
	h.Dispatch(model.Event{Type: model.EventAnimationsUpdated, Stage: active, Animations: []model.Animation{{ID: 1, Name: "fade"}}})
	h.Dispatch(model.Event{Type: model.EventNodeSelected, Stage: active, Node: &model.NodeRef{ID: 1, Name: "Main"}})
	updated := details.Detail{Pane: details.PaneLayout, ID: 2, Label: "Width", Value: "400", ValueKind: details.ValueText}
	h.Dispatch(model.Event{Type: model.EventDetailUpdated, Stage: active, Detail: &updated})
	q.Flush()

	shown := h.Details()
	require.Len(t, shown, 2)
	assert.Equal(t, "400", shown[0].Value)
	assert.Equal(t, "Main", shown[1].Value)
	assert.Equal(t, []model.PopupWindow{{ID: 7, Owner: 1}}, h.Status().Popups)
	assert.Equal(t, []model.Animation{{ID: 1, Name: "fade"}}, h.Animations())
	assert.Equal(t, &model.NodeRef{ID: 1, Name: "Main"}, h.Status().Selected)

	h.FilterDetails("tit")
	require.Len(t, h.Details(), 1)
	assert.Equal(t, "Title", h.Details()[0].Label)
}

func TestSubmitDetail(t *testing.T) {
	h, q := newTestHub(t)
	h.SetStatusDuration(20 * time.Millisecond)
	ctx := context.Background()

	fake := modeltest.NewApplication(1, 1)
	app := fake.Controller(nil)
	h.AppAdded(app)
	assert.ErrorIs(t, h.SubmitDetail(ctx, details.Key{Pane: details.PaneNode}, "x"), ErrUnknownDetail)

	h.SetActiveStage(app.Stages[0])
	h.Dispatch(sampleDetails(app.Stages[0].ID))
	q.Flush()

	require.NoError(t, h.SubmitDetail(ctx, details.Key{Pane: details.PaneLayout, ID: 2}, "500"))
	calls := fake.CallsTo("SetDetail")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{details.PaneLayout, 2, "500"}, calls[0].Args)

	fake.FailWith(errors.New("Width must be within [1, 65535]"))
	err := h.SubmitDetail(ctx, details.Key{Pane: details.PaneLayout, ID: 2}, "0")
	assert.ErrorIs(t, err, ErrEditRejected)
	assert.Equal(t, "Exception: Width must be within [1, 65535]", h.Status().Status)

	require.Eventually(t, func() bool { return h.Status().Status == "" }, time.Second, 5*time.Millisecond)
}

func TestStatusTextReplacesPrevious(t *testing.T) {
	h, _ := newTestHub(t)

	h.SetStatusText("first", 20*time.Millisecond)
	h.SetStatusText("second", time.Hour)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, "second", h.Status().Status)
}

func TestConfigurationIsPushedToEveryStage(t *testing.T) {
	h, q := newTestHub(t)
	a := modeltest.NewApplication(1, 1, 2)
	b := modeltest.NewApplication(2, 1)
	h.AppAdded(a.Controller(nil))
	h.AppAdded(b.Controller(nil))

	cfg := model.DefaultConfiguration()
	cfg.ShowBounds = true
	h.SetConfiguration(cfg)
	q.Flush()

	assert.Len(t, a.CallsTo("ConfigurationUpdated"), 2)
	require.Len(t, b.CallsTo("ConfigurationUpdated"), 1)
	assert.Equal(t, cfg, b.CallsTo("ConfigurationUpdated")[0].Args[0])
	assert.Equal(t, cfg, h.Configuration())
}

func TestRemovingActiveAppDeactivates(t *testing.T) {
	h, q := newTestHub(t)
	app := modeltest.NewApplication(1, 1).Controller(nil)
	h.AppAdded(app)
	h.SetActiveStage(app.Stages[0])
	h.Dispatch(sampleDetails(app.Stages[0].ID))
	q.Flush()

	h.AppRemoved(app)

	assert.Nil(t, h.Status().ActiveStage)
	assert.Empty(t, h.Details())
	assert.ErrorIs(t, h.SelectNode(context.Background(), model.NodeRef{ID: 1}), ErrNoActiveStage)
	assert.ErrorIs(t, h.UpdateAnimations(context.Background()), ErrNoActiveStage)
}

func TestStageOperationsReachActiveStage(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	fake := modeltest.NewApplication(1, 1)
	app := fake.Controller(nil)
	h.AppAdded(app)
	h.SetActiveStage(app.Stages[0])

	require.NoError(t, h.SelectNode(ctx, model.NodeRef{ID: 100}))
	require.NoError(t, h.ClearSelection(ctx))
	require.NoError(t, h.SetAnimationsEnabled(ctx, false))
	require.NoError(t, h.PauseAnimation(ctx, 3))

	assert.Equal(t, []any{model.NodeRef{ID: 100}}, fake.CallsTo("SetSelectedNode")[0].Args)
	assert.Len(t, fake.CallsTo("RemoveSelectedNode"), 1)
	assert.Equal(t, []any{false}, fake.CallsTo("AnimationsEnabled")[0].Args)
	assert.Equal(t, []any{3}, fake.CallsTo("PauseAnimation")[0].Args)
	assert.False(t, h.Configuration().AnimationsEnabled)

	fake.FailWith(errors.New("gone"))
	assert.Error(t, h.PauseAnimation(ctx, 3))
	assert.Equal(t, "Exception: gone", h.Status().Status)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h, _ := newTestHub(t)
	id, ch := h.Subscribe()
	assert.Equal(t, 1, h.Status().Subscribers)

	h.Unsubscribe(id)
	h.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Status().Subscribers)
}
