package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.now = func() time.Time { return time.Unix(1_760_000_000, 0) }

	assert.NoError(t, m.Track("leaderboard:warmup").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("leaderboard:warmup").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("leaderboard:warmup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("leaderboard:warmup", "failure")))
	assert.Equal(t, 1_760_000_000.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues("leaderboard:warmup")))
}

func TestEmailAndLeaderboardGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddEmail("sent")
	m.AddEmail("sent")
	m.AddEmail("")
	m.SetLeaderboardSize(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.emails.WithLabelValues("sent")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.warmed))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddEmail("sent")
	m.SetLeaderboardSize(3)
	assert.NoError(t, m.Track("x").End(nil))
}

func TestFailedRunLeavesLastSuccessUnset(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	_ = m.Track("notification:email").End(errors.New("smtp down"))

	assert.Equal(t, 0, testutil.CollectAndCount(m.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}
