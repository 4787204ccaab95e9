package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/model/modeltest"
)

func TestParseStageID(t *testing.T) {
	tests := []struct {
		in      string
		want    model.StageID
		wantErr bool
	}{
		{in: "12:3", want: model.StageID{AppID: 12, StageID: 3}},
		{in: "0:0", want: model.StageID{}},
		{in: "12", wantErr: true},
		{in: "a:3", wantErr: true},
		{in: "12:b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := model.ParseStageID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestStageControllerRoutesAndCloses(t *testing.T) {
	ctx := context.Background()
	app := modeltest.NewApplication(7, 1)
	router := &modeltest.Router{Address: "127.0.0.1:7557"}
	id := model.StageID{AppID: 7, StageID: 1}
	stage := model.NewStageController(id, app, router)

	var got []model.Event
	d := model.DispatcherFunc(func(e model.Event) { got = append(got, e) })
	stage.SetEventDispatcher(ctx, d)

	routed, ok := router.Routed(id)
	require.True(t, ok)
	routed.Dispatch(model.Event{Type: model.EventAnimationsUpdated, Stage: id})
	assert.Len(t, got, 1)

	calls := app.CallsTo("SetEventDispatcher")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"127.0.0.1:7557"}, calls[0].Args)

	stage.Close(ctx)
	_, ok = router.Routed(id)
	assert.False(t, ok)
	assert.Nil(t, stage.Dispatcher())
	assert.Len(t, app.CallsTo("CloseStage"), 1)
}

func TestStageControllerCloseToleratesRemoteFailure(t *testing.T) {
	app := modeltest.NewApplication(7, 1)
	app.FailWith(errors.New("connection refused"))
	stage := model.NewStageController(model.StageID{AppID: 7, StageID: 1}, app, nil)

	assert.NotPanics(t, func() {
		stage.SetEventDispatcher(context.Background(), model.DispatcherFunc(func(model.Event) {}))
		stage.Close(context.Background())
	})
}

func TestAppControllerStages(t *testing.T) {
	app := modeltest.NewApplication(3, 1, 2, 3)
	controller := app.Controller(nil)
	snapshot := controller.Stages

	removed, ok := controller.RemoveStage(2)
	require.True(t, ok)
	assert.Equal(t, 2, removed.ID.StageID)
	assert.Equal(t, []model.StageID{{AppID: 3, StageID: 1}, {AppID: 3, StageID: 3}}, controller.StageIDs())
	// earlier snapshots of the stage list are not disturbed
	assert.Len(t, snapshot, 3)
	assert.Equal(t, 2, snapshot[1].ID.StageID)

	_, ok = controller.RemoveStage(2)
	assert.False(t, ok)

	controller.Close(context.Background())
	assert.Len(t, app.CallsTo("CloseStage"), 2)
}
