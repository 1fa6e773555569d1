package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ItemsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_processed_total",
			Help: "Total number of mail items that reached a terminal outcome (count)",
		},
		[]string{"source", "status"},
	)

	ItemsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_skipped_total",
			Help: "Total number of candidates skipped before processing (count)",
		},
		[]string{"source", "reason"},
	)

	CrawlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_crawl_duration_ms",
			Help:    "Duration of order-detail crawls in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"source", "status"},
	)

	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_tick_duration_ms",
			Help:    "Duration of one ingestion tick per source in milliseconds",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"source"},
	)

	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_candidates_total",
			Help: "Total number of candidates returned by mailbox polls (count)",
		},
		[]string{"source"},
	)

	InFlightItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_inflight_items",
			Help: "Number of mail items currently being processed (count)",
		},
		[]string{"source"},
	)

	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_login_attempts_total",
			Help: "Total number of login attempts per source (count)",
		},
		[]string{"source", "status"},
	)

	OTPWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_otp_wait_duration_ms",
			Help:    "Time spent waiting for a verification code in milliseconds",
			Buckets: []float64{1000, 5000, 10000, 30000, 60000, 120000, 300000},
		},
		[]string{"source", "status"},
	)

	SinkAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_appends_total",
			Help: "Total number of record appends to the tabular store (count)",
		},
		[]string{"status"},
	)

	LabelWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "label_writes_total",
			Help: "Total number of label add/remove operations (count)",
		},
		[]string{"label", "op", "status"},
	)

	FlightLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_lookups_total",
			Help: "Total number of flight-status lookups (count)",
		},
		[]string{"status"},
	)

	OutcomeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcome_events_total",
			Help: "Total number of outcome events published (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"component", "strategy", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(ItemsProcessedTotal)
	prometheus.MustRegister(ItemsSkippedTotal)
	prometheus.MustRegister(CrawlDuration)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(CandidatesTotal)
	prometheus.MustRegister(InFlightItems)
	prometheus.MustRegister(LabelWritesTotal)
	prometheus.MustRegister(SinkAppendsTotal)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterSessionMetrics() {
	prometheus.MustRegister(LoginAttemptsTotal)
	prometheus.MustRegister(OTPWaitDuration)
}

func RegisterFlightInfoMetrics() {
	prometheus.MustRegister(FlightLookupsTotal)
}

func RegisterEventsMetrics() {
	prometheus.MustRegister(OutcomeEventsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveCrawlDuration(source string, d time.Duration, status string) {
	CrawlDuration.WithLabelValues(source, status).Observe(float64(d.Milliseconds()))
}

func ObserveTickDuration(source string, d time.Duration) {
	TickDuration.WithLabelValues(source).Observe(float64(d.Milliseconds()))
}
