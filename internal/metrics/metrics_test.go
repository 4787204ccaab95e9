package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPoll(t *testing.T) {
	m := New()

	m.RecordPoll(10*time.Millisecond, nil)
	m.RecordPoll(10*time.Millisecond, errors.New("unreachable"))
	m.RecordChange(AppAdded)
	m.RecordChange(AppAdded)
	m.RecordChange(StageRemoved)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollChanges.WithLabelValues(AppAdded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollChanges.WithLabelValues(StageRemoved)))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPoll(time.Second, nil)
		m.RecordChange(AppRemoved)
		m.SetModelSize(1, 2)
		m.RecordEvent("windows-updated", true)
		m.RecordEdit(false)
		m.RecordHTTPRequest("GET", "/api/apps", "200", time.Millisecond)
		m.IncWSConnections()
		m.DecWSConnections()
		m.RecordWSMessage("app-added")
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetModelSize(2, 5)
	m.RecordEvent("animations-updated", true)
	m.RecordEvent("animations-updated", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "scenicview_apps_active 2")
	assert.Contains(t, body, "scenicview_stages_active 5")
	assert.Contains(t, body, `scenicview_events_dispatched_total{type="animations-updated"} 1`)
	assert.Contains(t, body, "scenicview_events_dropped_total 1")
}
