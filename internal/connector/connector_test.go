package connector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/model/modeltest"
	"github.com/bryanchriswhite/scenicview/internal/remote"
)

type eventLog struct {
	mu     sync.Mutex
	events []model.Event
}

func (l *eventLog) Dispatch(e model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Event(nil), l.events...)
}

func TestConnectBuildsSnapshotsInDiscoveryOrder(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	c.AddAgent(20, modeltest.NewApplication(20, 1))
	c.AddAgent(10, modeltest.NewApplication(10, 1, 2))

	apps, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, 20, apps[0].ID)
	assert.Equal(t, 10, apps[1].ID)
	assert.Equal(t, []model.StageID{{AppID: 10, StageID: 1}, {AppID: 10, StageID: 2}}, apps[1].StageIDs())
}

func TestConnectReturnsFreshControllers(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	c.AddAgent(1, modeltest.NewApplication(1, 1))

	first, err := c.Connect(context.Background())
	require.NoError(t, err)
	second, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first[0], second[0])
}

func TestConnectKeepsLastStagesOnFailure(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	app := modeltest.NewApplication(1, 1, 2)
	c.AddAgent(1, app)

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	app.FailStageIDsWith(errors.New("timeout"))
	apps, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, []model.StageID{{AppID: 1, StageID: 1}, {AppID: 1, StageID: 2}}, apps[0].StageIDs())
}

func TestConnectKeepsAgentThroughOutage(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	app := modeltest.NewApplication(1, 1)
	c.AddAgent(1, app)

	app.FailStageIDsWith(errors.New("gone"))
	for i := 0; i < 10; i++ {
		apps, err := c.Connect(context.Background())
		require.NoError(t, err)
		require.Len(t, apps, 1, "failing poll %d", i)
		assert.Empty(t, apps[0].Stages)
	}
	assert.Equal(t, 1, c.AgentCount())

	app.FailStageIDsWith(nil)
	app.SetStages(1, 2)
	apps, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, []model.StageID{{AppID: 1, StageID: 1}, {AppID: 1, StageID: 2}}, apps[0].StageIDs())
}

func TestAgentFinishedForgetsAgent(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	c.AddAgent(1, modeltest.NewApplication(1, 1))
	c.AddAgent(2, modeltest.NewApplication(2, 1))

	require.NoError(t, c.AgentFinished(context.Background(), 1))
	require.NoError(t, c.AgentFinished(context.Background(), 1))

	apps, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, 2, apps[0].ID)
}

func TestDispatchRoutesByStage(t *testing.T) {
	m := metrics.New()
	c := New("127.0.0.1:1", m)
	app := modeltest.NewApplication(1, 1)
	c.AddAgent(1, app)

	apps, err := c.Connect(context.Background())
	require.NoError(t, err)

	log := &eventLog{}
	stage := apps[0].Stages[0]
	stage.SetEventDispatcher(context.Background(), log)

	calls := app.CallsTo("SetEventDispatcher")
	require.Len(t, calls, 1)
	assert.Equal(t, "127.0.0.1:1", calls[0].Args[0])

	routed := model.Event{Type: model.EventWindowsUpdated, Stage: stage.ID}
	dropped := model.Event{Type: model.EventWindowsUpdated, Stage: model.StageID{AppID: 9, StageID: 9}}
	require.NoError(t, c.Dispatch(context.Background(), routed))
	require.NoError(t, c.Dispatch(context.Background(), dropped))
	assert.Equal(t, []model.Event{routed}, log.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDispatched.WithLabelValues("windows-updated")))

	stage.Close(context.Background())
	require.NoError(t, c.Dispatch(context.Background(), routed))
	assert.Len(t, log.all(), 1)
}

func TestCloseClosesEveryAgent(t *testing.T) {
	c := New("127.0.0.1:1", nil)
	a := modeltest.NewApplication(1, 1)
	b := modeltest.NewApplication(2, 1)
	b.FailWith(errors.New("broken pipe"))
	c.AddAgent(1, a)
	c.AddAgent(2, b)

	err := c.Close(context.Background())
	assert.ErrorContains(t, err, "failed to close agent 2")
	assert.Len(t, a.CallsTo("Close"), 1)
	assert.Len(t, b.CallsTo("Close"), 1)
	assert.Equal(t, 0, c.AgentCount())
}

func TestAgentStartedFindsAgentOverLoopback(t *testing.T) {
	port := remote.ClientPort()
	c := New("127.0.0.1:1", nil)
	defer c.Close(context.Background())

	// Announce before the agent binds; the lookup keeps retrying.
	require.NoError(t, c.AgentStarted(context.Background(), 42, port))

	app := modeltest.NewApplication(42, 3)
	registry, err := remote.BindApplication(app, port)
	require.NoError(t, err)
	defer remote.UnbindApplication(registry)

	require.Eventually(t, func() bool { return c.AgentCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	apps, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, []model.StageID{{AppID: 42, StageID: 3}}, apps[0].StageIDs())
}
