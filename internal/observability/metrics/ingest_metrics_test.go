package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/lock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyIngestReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: IngestReasonDeadlineExceeded},
		{name: "lock_timeout", err: fmt.Errorf("acquire: %w", lock.ErrLockTimeout), want: IngestReasonLockTimeout},
		{name: "pg_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: IngestReasonLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: IngestReasonSerialization},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: IngestReasonUniqueViolation},
		{name: "validation", err: domain.ErrNoCanonicalFacts, want: IngestReasonValidation},
		{name: "unknown", err: errors.New("boom"), want: IngestReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyIngestReason(tc.err))
		})
	}
}

func TestIngestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newIngestMetrics(registry, Config{ServiceName: "inventory", Environment: "test"})

	m.IncMatch(domain.FactInsightsID)
	m.IncMatch(domain.FactInsightsID)
	m.IncConflict()
	m.IncError(gorm.ErrDuplicatedKey)
	m.ObserveIngest("created", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.matches.WithLabelValues(domain.FactInsightsID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues(IngestReasonUniqueViolation)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestIngestMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newIngestMetrics(registry, Config{})
	second := newIngestMetrics(registry, Config{})

	first.IncConflict()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.conflicts))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})
	assert.NotNil(t, GinMiddleware(m))
	assert.Equal(t, 0, testutil.CollectAndCount(m.requests))
}
