package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/council/config"
)

// Prometheus collectors are package level so repeated Telemetry construction
// (tests, CLI one-shots) never double-registers them.
var (
	councilRounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "council_rounds_total",
		Help: "Completed council rounds by whether a summary was requested.",
	}, []string{"summary"})
	councilRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "council_round_duration_seconds",
		Help:    "Wall-clock duration of complete council rounds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	modelInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "council_model_invocations_total",
		Help: "Model invocations by endpoint and outcome.",
	}, []string{"model", "outcome"})
	modelInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "council_model_invocation_duration_seconds",
		Help:    "Duration of individual model invocations.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"model"})
)

// Telemetry provides in-process monitoring for council rounds and model calls
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
}

// Metrics holds various performance metrics
type Metrics struct {
	mu sync.RWMutex

	// Round metrics
	TotalRounds        int64
	SummariesRequested int64
	AverageRoundTime   time.Duration

	// Per-model metrics
	ModelRequests     map[string]int64
	ModelSuccessRates map[string]float64
	ModelAverageTimes map[string]time.Duration
}

// CouncilEvent represents one completed council round
type CouncilEvent struct {
	ID               string
	Query            string
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	EndpointCount    int
	Successes        int
	SummaryRequested bool
}

// ModelEvent represents a single model invocation
type ModelEvent struct {
	Model     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			ModelRequests:     make(map[string]int64),
			ModelSuccessRates: make(map[string]float64),
			ModelAverageTimes: make(map[string]time.Duration),
		},
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startMetricsCollection()
	}

	return t
}

// RecordCouncilEvent records a completed council round
func (t *Telemetry) RecordCouncilEvent(ctx context.Context, event CouncilEvent) {
	if !t.config.Enabled {
		return
	}

	summary := "false"
	if event.SummaryRequested {
		summary = "true"
	}
	councilRounds.WithLabelValues(summary).Inc()
	councilRoundDuration.Observe(event.Duration.Seconds())

	m := t.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRounds++
	if event.SummaryRequested {
		m.SummariesRequested++
	}
	if m.TotalRounds == 1 {
		m.AverageRoundTime = event.Duration
	} else {
		total := m.AverageRoundTime * time.Duration(m.TotalRounds-1)
		m.AverageRoundTime = (total + event.Duration) / time.Duration(m.TotalRounds)
	}

	t.logger.Printf("Council Event: ID=%s, Models=%d, Successes=%d, Duration=%v",
		event.ID, event.EndpointCount, event.Successes, event.Duration)
}

// RecordModelEvent records a single model invocation
func (t *Telemetry) RecordModelEvent(ctx context.Context, event ModelEvent) {
	if !t.config.Enabled {
		return
	}

	outcome := "success"
	if !event.Success {
		outcome = "failure"
	}
	modelInvocations.WithLabelValues(event.Model, outcome).Inc()
	modelInvocationDuration.WithLabelValues(event.Model).Observe(event.Duration.Seconds())

	m := t.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ModelRequests[event.Model]++
	requests := m.ModelRequests[event.Model]

	current := m.ModelSuccessRates[event.Model] * float64(requests-1)
	if event.Success {
		current += 1.0
	}
	m.ModelSuccessRates[event.Model] = current / float64(requests)

	if requests == 1 {
		m.ModelAverageTimes[event.Model] = event.Duration
	} else {
		total := m.ModelAverageTimes[event.Model] * time.Duration(requests-1)
		m.ModelAverageTimes[event.Model] = (total + event.Duration) / time.Duration(requests)
	}
}

// Snapshot returns a copy of the current metrics for the ops endpoint
func (t *Telemetry) Snapshot() map[string]interface{} {
	m := t.metrics
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make(map[string]int64, len(m.ModelRequests))
	for k, v := range m.ModelRequests {
		requests[k] = v
	}
	rates := make(map[string]float64, len(m.ModelSuccessRates))
	for k, v := range m.ModelSuccessRates {
		rates[k] = v
	}
	averages := make(map[string]string, len(m.ModelAverageTimes))
	for k, v := range m.ModelAverageTimes {
		averages[k] = v.String()
	}

	return map[string]interface{}{
		"total_rounds":        m.TotalRounds,
		"summaries_requested": m.SummariesRequested,
		"average_round_time":  m.AverageRoundTime.String(),
		"model_requests":      requests,
		"model_success_rates": rates,
		"model_average_times": averages,
	}
}

func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		snap := t.Snapshot()
		t.logger.Printf("Metrics: rounds=%v, avg_round_time=%v, models=%v",
			snap["total_rounds"], snap["average_round_time"], snap["model_requests"])
	}
}
