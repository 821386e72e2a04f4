package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level OTel instruments.
type Metrics struct {
	hostIngest  metric.Int64Counter
	hostEvents  metric.Int64Counter
	hostQueries metric.Int64Counter
	factLookups metric.Int64Counter
	rateLimits  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "inventory"
	}
	meter := provider.Meter(name)

	hostIngest, err := meter.Int64Counter("inventory_host_ingest_total",
		metric.WithDescription("Host records ingested by outcome."))
	if err != nil {
		return nil, err
	}
	hostEvents, err := meter.Int64Counter("inventory_host_events_total",
		metric.WithDescription("Host change events published."))
	if err != nil {
		return nil, err
	}
	hostQueries, err := meter.Int64Counter("inventory_host_queries_total",
		metric.WithDescription("Host read queries by filter kind."))
	if err != nil {
		return nil, err
	}
	factLookups, err := meter.Int64Counter("inventory_fact_lookups_total",
		metric.WithDescription("Canonical fact lookups issued during deduplication."))
	if err != nil {
		return nil, err
	}

	rateLimits, err := meter.Int64Counter("inventory_ingest_rate_limit_total",
		metric.WithDescription("Ingest rate limit decisions."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		hostIngest:  hostIngest,
		hostEvents:  hostEvents,
		hostQueries: hostQueries,
		factLookups: factLookups,
		rateLimits:  rateLimits,
	}, nil
}

// RecordHostIngest counts one ingested record. source is "http" or "queue".
func (m *Metrics) RecordHostIngest(ctx context.Context, source, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.hostIngest.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordHostEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.hostEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordHostQuery(ctx context.Context, filter string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("filter", strings.TrimSpace(filter)))
	m.hostQueries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFactLookup counts a dedup lookup on fact. The fact name is bounded;
// its value is never recorded.
func (m *Metrics) RecordFactLookup(ctx context.Context, fact string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	attrs := FilterAttributes(
		attribute.String("fact", strings.TrimSpace(fact)),
		attribute.String("outcome", outcome),
	)
	m.factLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimit counts an ingest rate limit decision. The account is not a label.
func (m *Metrics) RecordRateLimit(ctx context.Context, endpoint string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("outcome", outcome),
	)
	m.rateLimits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"action":      {},
	"event_type":  {},
	"outcome":     {},
	"filter":      {},
	"fact":        {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
