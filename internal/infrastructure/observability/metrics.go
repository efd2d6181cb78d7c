package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduled job metrics
	JobRunsTotal   *prometheus.CounterVec
	JobUnitsTotal  *prometheus.CounterVec
	JobRunDuration *prometheus.HistogramVec
	JobLastSuccess *prometheus.GaugeVec
	JobLockSkipped *prometheus.CounterVec

	// Payout metrics
	PayoutsTotal      *prometheus.CounterVec
	PayoutAmountCents *prometheus.CounterVec

	// Subscription retry metrics
	SubscriptionRetriesTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Outbox relay metrics
	OutboxRelayed *prometheus.CounterVec
	OutboxBacklog prometheus.Gauge
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Total number of scheduled job runs by result",
			},
			[]string{"job", "result"},
		),
		JobUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_units_total",
				Help:      "Units of work processed by scheduled jobs by outcome",
			},
			[]string{"job", "outcome"},
		),
		JobRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_run_duration_seconds",
				Help:      "Scheduled job run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"job"},
		),
		JobLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful job run",
			},
			[]string{"job"},
		),
		JobLockSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_lock_skipped_total",
				Help:      "Job runs skipped because another instance held the lock",
			},
			[]string{"job"},
		),
		PayoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payouts_total",
				Help:      "Payouts by resulting status",
			},
			[]string{"status"},
		),
		PayoutAmountCents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_amount_cents_total",
				Help:      "Net amount paid out in minor units",
			},
			[]string{"currency"},
		),
		SubscriptionRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_retries_total",
				Help:      "Subscription payment retry outcomes that produced a notification",
			},
			[]string{"outcome"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Processor webhook deliveries by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		OutboxRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_relayed_total",
				Help:      "Outbox entries relayed to the notification stream by result",
			},
			[]string{"event", "result"},
		),
		OutboxBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_backlog",
				Help:      "Outbox entries waiting to be relayed",
			},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.JobRunsTotal,
		m.JobUnitsTotal,
		m.JobRunDuration,
		m.JobLastSuccess,
		m.JobLockSkipped,
		m.PayoutsTotal,
		m.PayoutAmountCents,
		m.SubscriptionRetriesTotal,
		m.WebhookEventsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.OutboxRelayed,
		m.OutboxBacklog,
	)

	return m
}

// ObserveRun records a finished job run. failed is true when the run itself could not complete.
func (m *Metrics) ObserveRun(job string, succeeded, failedUnits, skipped int, d time.Duration, failed bool) {
	result := "success"
	if failed {
		result = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, result).Inc()
	m.JobRunDuration.WithLabelValues(job).Observe(d.Seconds())
	m.JobUnitsTotal.WithLabelValues(job, "succeeded").Add(float64(succeeded))
	m.JobUnitsTotal.WithLabelValues(job, "failed").Add(float64(failedUnits))
	m.JobUnitsTotal.WithLabelValues(job, "skipped").Add(float64(skipped))
	if !failed {
		m.JobLastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// BreakerStateChanged is a providers.StateChangeFunc that exports the breaker state.
func (m *Metrics) BreakerStateChanged(name string, from, to gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
