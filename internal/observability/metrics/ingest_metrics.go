package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/lock"
	"gorm.io/gorm"
)

const (
	IngestReasonDeadlineExceeded = "deadline_exceeded"
	IngestReasonLockTimeout      = "lock_timeout"
	IngestReasonUniqueViolation  = "unique_violation"
	IngestReasonSerialization    = "serialization_failure"
	IngestReasonValidation       = "validation"
	IngestReasonUnknown          = "unknown"
)

// IngestMetrics tracks the dedup and upsert pipeline.
type IngestMetrics struct {
	duration  *prometheus.HistogramVec
	matches   *prometheus.CounterVec
	conflicts prometheus.Counter
	errors    *prometheus.CounterVec
	lockWait  prometheus.Histogram
	dlq       *prometheus.CounterVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// IngestWithConfig returns the singleton ingest metrics registered on the
// default registerer.
func IngestWithConfig(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

func newIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &IngestMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "inventory_ingest_duration_seconds",
			Help:        "Time to resolve and persist one host record.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"action"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_dedup_matches_total",
			Help:        "Inbound records matched to a stored host, by deciding fact.",
			ConstLabels: constLabels,
		}, []string{"fact"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "inventory_ingest_conflicts_total",
			Help:        "Creates that lost a uniqueness race and were re-resolved.",
			ConstLabels: constLabels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_ingest_errors_total",
			Help:        "Failed ingest attempts by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "inventory_ingest_lock_wait_seconds",
			Help:        "Time spent acquiring canonical fact locks.",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
		dlq: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_queue_dead_letters_total",
			Help:        "Ingress messages moved to the dead-letter stream.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}
	registerOrReuse(registerer, &m.duration)
	registerOrReuse(registerer, &m.matches)
	registerOrReuse(registerer, &m.conflicts)
	registerOrReuse(registerer, &m.errors)
	registerOrReuse(registerer, &m.lockWait)
	registerOrReuse(registerer, &m.dlq)
	return m
}

func (m *IngestMetrics) ObserveIngest(action string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *IngestMetrics) IncMatch(fact string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(fact).Inc()
}

func (m *IngestMetrics) IncConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *IngestMetrics) IncError(err error) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(ClassifyIngestReason(err)).Inc()
}

func (m *IngestMetrics) ObserveLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(elapsed.Seconds())
}

func (m *IngestMetrics) IncDeadLetter(reason string) {
	if m == nil {
		return
	}
	m.dlq.WithLabelValues(reason).Inc()
}

// ClassifyIngestReason maps an ingest failure to a bounded label value.
func ClassifyIngestReason(err error) string {
	if err == nil {
		return IngestReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return IngestReasonDeadlineExceeded
	}
	if errors.Is(err, lock.ErrLockTimeout) {
		return IngestReasonLockTimeout
	}
	if domain.IsValidationError(err) {
		return IngestReasonValidation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return IngestReasonUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return IngestReasonUniqueViolation
		case "55P03":
			return IngestReasonLockTimeout
		case "40001":
			return IngestReasonSerialization
		}
	}
	return IngestReasonUnknown
}
