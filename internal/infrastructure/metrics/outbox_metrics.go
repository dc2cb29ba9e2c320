// Package metrics exposes Prometheus instrumentation for the outbox relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics instruments the outbox relay pipeline. A nil *OutboxMetrics
// is valid and records nothing, so callers never need to guard their
// instrumentation sites.
type OutboxMetrics struct {
	EventsPending       prometheus.Gauge
	EventsProcessed     *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	PublishDuration     *prometheus.HistogramVec
	RetryTotal          *prometheus.CounterVec
	OldestEventAge      prometheus.Gauge
	PollBatchSize       prometheus.Histogram
	CleanupDeletedTotal prometheus.Counter
}

// NewOutboxMetrics creates and registers outbox metrics with the given registerer.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	metrics := &OutboxMetrics{
		EventsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corekit_outbox_events_pending",
			Help: "Current number of unprocessed events in the outbox",
		}),
		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corekit_outbox_events_processed_total",
				Help: "Total number of processed events",
			},
			[]string{"event_type", "status"}, // status: success/failed
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corekit_outbox_processing_duration_seconds",
				Help:    "Time from event creation to processing completion",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corekit_outbox_publish_duration_seconds",
				Help:    "Time to publish event to the event bus",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"event_type"},
		),
		RetryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corekit_outbox_retry_total",
				Help: "Total number of retry attempts for failed events",
			},
			[]string{"event_type"},
		),
		OldestEventAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corekit_outbox_oldest_event_age_seconds",
			Help: "Age in seconds of the oldest unprocessed event",
		}),
		PollBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corekit_outbox_poll_batch_size",
			Help:    "Number of events retrieved in each poll batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CleanupDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corekit_outbox_cleanup_deleted_total",
			Help: "Total number of processed events deleted by cleanup",
		}),
	}

	registerer.MustRegister(
		metrics.EventsPending,
		metrics.EventsProcessed,
		metrics.ProcessingDuration,
		metrics.PublishDuration,
		metrics.RetryTotal,
		metrics.OldestEventAge,
		metrics.PollBatchSize,
		metrics.CleanupDeletedTotal,
	)

	return metrics
}

// ObserveBatch records the size of one poll batch.
func (m *OutboxMetrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.PollBatchSize.Observe(float64(size))
}

// ObserveEntryAge records the time an entry spent in the outbox before its
// processing finished, whatever the outcome.
func (m *OutboxMetrics) ObserveEntryAge(eventType string, age time.Duration) {
	if m == nil {
		return
	}
	m.ProcessingDuration.WithLabelValues(eventType).Observe(age.Seconds())
}

// RecordPublished counts one successful publish and its duration.
func (m *OutboxMetrics) RecordPublished(eventType string, publishDuration time.Duration) {
	if m == nil {
		return
	}
	m.PublishDuration.WithLabelValues(eventType).Observe(publishDuration.Seconds())
	m.EventsProcessed.WithLabelValues(eventType, "success").Inc()
}

// RecordRetry counts one failed publish that will be retried.
func (m *OutboxMetrics) RecordRetry(eventType string) {
	if m == nil {
		return
	}
	m.RetryTotal.WithLabelValues(eventType).Inc()
}

// RecordDeadLetter counts one entry abandoned after exhausting its retries.
func (m *OutboxMetrics) RecordDeadLetter(eventType string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(eventType, "failed").Inc()
}

// RecordCleanup counts entries deleted by a cleanup pass.
func (m *OutboxMetrics) RecordCleanup(deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.CleanupDeletedTotal.Add(float64(deleted))
}

// SetBacklog updates the pending-count and oldest-entry-age gauges from one
// outbox stats snapshot.
func (m *OutboxMetrics) SetBacklog(pending int64, oldest time.Time) {
	if m == nil {
		return
	}

	m.EventsPending.Set(float64(pending))

	if pending > 0 && !oldest.IsZero() {
		m.OldestEventAge.Set(time.Since(oldest).Seconds())
	} else {
		m.OldestEventAge.Set(0)
	}
}
