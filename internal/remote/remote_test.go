package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/model/modeltest"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

type recordingConnector struct {
	mu       sync.Mutex
	started  map[int]int
	finished []int
	events   []model.Event
	err      error
}

func (c *recordingConnector) AgentStarted(_ context.Context, appID, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started == nil {
		c.started = make(map[int]int)
	}
	c.started[appID] = port
	return c.err
}

func (c *recordingConnector) AgentFinished(_ context.Context, appID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, appID)
	return c.err
}

func (c *recordingConnector) Dispatch(_ context.Context, event model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func TestRegistryBindLookupUnbind(t *testing.T) {
	ctx := context.Background()
	registry, err := Listen(0)
	require.NoError(t, err)
	defer registry.Close()

	client := NewClient(Address(LocalHost, registry.Port()))

	err = client.Lookup(ctx, AgentName)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotBound)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, CodeNotBound, remoteErr.Code)

	registry.Bind(AgentName, ApplicationObject(modeltest.NewApplication(1)))
	require.NoError(t, client.Lookup(ctx, AgentName))

	names, err := client.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{AgentName}, names)

	registry.Unbind(AgentName)
	registry.Unbind(AgentName)
	registry.Unbind("never-bound")
	assert.ErrorIs(t, client.Lookup(ctx, AgentName), ErrNotBound)
}

func TestRegistryRejectsUnknownAction(t *testing.T) {
	registry, err := BindApplication(modeltest.NewApplication(1), 0)
	require.NoError(t, err)
	defer UnbindApplication(registry)

	client := NewClient(Address(LocalHost, registry.Port()))
	err = client.Call(context.Background(), AgentName, "explode", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestApplicationRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := modeltest.NewApplication(42, 1, 2)
	registry, err := BindApplication(fake, 0)
	require.NoError(t, err)
	defer UnbindApplication(registry)

	app, err := FindApplication(ctx, LocalHost, registry.Port())
	require.NoError(t, err)

	ids, err := app.StageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.StageID{{AppID: 42, StageID: 1}, {AppID: 42, StageID: 2}}, ids)

	stage := model.StageID{AppID: 42, StageID: 2}
	cfg := model.Configuration{ShowBounds: true, RefreshInterval: time.Second}
	require.NoError(t, app.ConfigurationUpdated(ctx, stage, cfg))
	require.NoError(t, app.SetEventDispatcher(ctx, stage, "127.0.0.1:7557"))
	require.NoError(t, app.SetSelectedNode(ctx, stage, model.NodeRef{ID: 9, Name: "button"}))
	require.NoError(t, app.SetDetail(ctx, stage, details.PaneWindow, 3, "120"))
	require.NoError(t, app.AnimationsEnabled(ctx, stage, true))
	require.NoError(t, app.PauseAnimation(ctx, stage, 5))
	require.NoError(t, app.Close(ctx))

	assert.Equal(t, []any{cfg}, fake.CallsTo("ConfigurationUpdated")[0].Args)
	assert.Equal(t, []any{"127.0.0.1:7557"}, fake.CallsTo("SetEventDispatcher")[0].Args)
	assert.Equal(t, []any{model.NodeRef{ID: 9, Name: "button"}}, fake.CallsTo("SetSelectedNode")[0].Args)
	assert.Equal(t, []any{details.PaneWindow, 3, "120"}, fake.CallsTo("SetDetail")[0].Args)
	assert.Equal(t, []any{true}, fake.CallsTo("AnimationsEnabled")[0].Args)
	assert.Equal(t, []any{5}, fake.CallsTo("PauseAnimation")[0].Args)
	assert.Equal(t, stage, fake.CallsTo("SetDetail")[0].Stage)
	assert.Len(t, fake.CallsTo("Close"), 1)
}

func TestApplicationErrorsCrossTheWire(t *testing.T) {
	ctx := context.Background()
	fake := modeltest.NewApplication(42, 1)
	fake.FailWith(errors.New("value out of range"))
	registry, err := BindApplication(fake, 0)
	require.NoError(t, err)
	defer UnbindApplication(registry)

	app := NewApplicationClient(Address(LocalHost, registry.Port()))
	err = app.SetDetail(ctx, model.StageID{AppID: 42, StageID: 1}, details.PaneNode, 1, "x")

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, CodeFailed, remoteErr.Code)
	assert.Contains(t, remoteErr.Message, "value out of range")
}

func TestConnectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingConnector{}
	registry, err := BindConnector(recorder, 0)
	require.NoError(t, err)
	defer UnbindConnector(registry)

	connector, err := FindConnector(ctx, LocalHost, registry.Port())
	require.NoError(t, err)

	require.NoError(t, connector.AgentStarted(ctx, 42, 7600))
	require.NoError(t, connector.AgentFinished(ctx, 42))

	detail := details.Detail{
		Pane:      details.PaneWindow,
		ID:        2,
		Property:  "width",
		Label:     "Width",
		Value:     "120",
		ValueKind: details.ValueText,
		Edition:   details.EditionEditable,
	}
	event := model.Event{
		Type:  model.EventAnimationsUpdated,
		Stage: model.StageID{AppID: 42, StageID: 1},
		Animations: []model.Animation{
			{ID: 1, Name: "fade", Rate: 1.5, CycleCount: -1, CurrentTime: 250 * time.Millisecond},
		},
		Detail: &detail,
	}
	require.NoError(t, connector.Dispatch(ctx, event))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, map[int]int{42: 7600}, recorder.started)
	assert.Equal(t, []int{42}, recorder.finished)
	require.Len(t, recorder.events, 1)
	assert.Equal(t, event, recorder.events[0])
}

func TestFindReportsConnectionError(t *testing.T) {
	_, err := FindConnector(context.Background(), LocalHost, freePort(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotBound)

	registry, err := Listen(0)
	require.NoError(t, err)
	defer registry.Close()

	_, err = FindConnector(context.Background(), LocalHost, registry.Port())
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestFindWithRetryWaitsForBinding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := freePort(t)
	var calls int
	var mu sync.Mutex
	found := make(chan *ApplicationClient, 2)
	FindApplicationWithRetry(ctx, port, 0, func(app *ApplicationClient) {
		mu.Lock()
		calls++
		mu.Unlock()
		found <- app
	})

	time.Sleep(3 * DefaultRetryInterval)
	registry, err := BindApplication(modeltest.NewApplication(7, 1), port)
	require.NoError(t, err)
	defer UnbindApplication(registry)

	select {
	case app := <-found:
		ids, err := app.StageIDs(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("application was never found")
	}

	time.Sleep(3 * DefaultRetryInterval)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestFindWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	found := make(chan struct{}, 1)
	FindConnectorWithRetry(ctx, freePort(t), 0, func(*ConnectorClient) { found <- struct{}{} })

	time.Sleep(2 * DefaultRetryInterval)
	cancel()

	select {
	case <-found:
		t.Fatal("continuation ran after cancellation")
	case <-time.After(4 * DefaultRetryInterval):
	}
}

func TestFindWithRetryUsesGivenInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slowPort, fastPort := freePort(t), freePort(t)
	slow := make(chan struct{}, 1)
	fast := make(chan struct{}, 1)
	FindConnectorWithRetry(ctx, slowPort, time.Hour, func(*ConnectorClient) { slow <- struct{}{} })
	FindConnectorWithRetry(ctx, fastPort, 5*time.Millisecond, func(*ConnectorClient) { fast <- struct{}{} })

	time.Sleep(2 * DefaultRetryInterval)
	for _, port := range []int{slowPort, fastPort} {
		registry, err := BindConnector(&recordingConnector{}, port)
		require.NoError(t, err)
		defer UnbindConnector(registry)
	}

	select {
	case <-fast:
	case <-time.After(5 * time.Second):
		t.Fatal("connector was never found")
	}
	select {
	case <-slow:
		t.Fatal("lookup retried before its interval elapsed")
	case <-time.After(4 * DefaultRetryInterval):
	}
}

func TestClientPortIsUnique(t *testing.T) {
	const n = 200
	ports := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ports <- ClientPort()
		}()
	}
	wg.Wait()
	close(ports)

	seen := make(map[int]bool)
	for p := range ports {
		assert.Greater(t, p, BasePort)
		assert.False(t, seen[p], "port %d allocated twice", p)
		seen[p] = true
	}
	assert.Len(t, seen, n)
}

func TestUnbindNilRegistry(t *testing.T) {
	assert.NoError(t, UnbindApplication(nil))
	assert.NoError(t, UnbindConnector(nil))
}
