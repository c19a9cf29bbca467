package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker's collectors: run outcomes and latency per task
// type, the time each task last succeeded, notification e-mail delivery and
// the size of the last leaderboard warmup.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	emails      *prometheus.CounterVec
	warmed      prometheus.Gauge
	now         func() time.Time
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors with registerer. A nil registerer
// selects the process-wide default, registered once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = register(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return register(registerer)
}

// Tracker times one task run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing a run of task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the run and hands err back so handlers can
// `return tracker.End(err)`.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	m := t.metrics
	m.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	if err != nil {
		m.runs.WithLabelValues(t.task, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(t.task, "success").Inc()
	m.lastSuccess.WithLabelValues(t.task).Set(float64(m.now().Unix()))
	return nil
}

// AddEmail counts one notification e-mail by outcome, "sent" or "failed".
func (m *Metrics) AddEmail(outcome string) {
	if m == nil || outcome == "" {
		return
	}
	m.emails.WithLabelValues(outcome).Inc()
}

// SetLeaderboardSize records how many partners the last warmup ranked.
func (m *Metrics) SetLeaderboardSize(n int) {
	if m == nil {
		return
	}
	m.warmed.Set(float64(n))
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_jobs_total",
			Help: "Task runs by task type and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "referral_job_duration_seconds",
			Help:    "Task run latency by task type.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "referral_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"job"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_notification_emails_total",
			Help: "Partner notification e-mails grouped by delivery outcome.",
		}, []string{"outcome"}),
		warmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "referral_leaderboard_entries",
			Help: "Partners ranked by the most recent leaderboard warmup.",
		}),
		now: time.Now,
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.emails, m.warmed)
	return m
}
