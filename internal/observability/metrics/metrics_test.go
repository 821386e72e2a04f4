package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("account", "000501"),
		attribute.String("fqdn", "web01.example.com"),
		attribute.String("fact", "fqdn"),
		attribute.String("action", "created"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("fact"), attrs[0].Key)
	assert.Equal(t, attribute.Key("action"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordHostIngest(context.Background(), "http", "created")
	m.RecordFactLookup(context.Background(), "fqdn", true)
	m.RecordRateLimit(context.Background(), "/hosts", false)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordHostQuery(context.Background(), "fqdn")
	m.RecordHostEvent(context.Background(), "created", "published")
	m.RecordRateLimit(context.Background(), "/api/inventory/v1/hosts", true)
}
