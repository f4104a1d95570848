package otel_metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/mongodb-labs/mongo-web-shell-sub000/internal"
)

const ServerServiceName = "mws-server"

const (
	RequestsCounterName         = "requests"
	RequestErrorsCounterName    = "request_errors"
	RateLimitedCounterName      = "rate_limited"
	ResourcesCreatedCounterName = "resources_created"
	ResourcesExpiredCounterName = "resources_expired"
	RequestDurationHistName     = "request_duration"

	RouteKey   = "route"
	StatusKey  = "status"
	VersionKey = "mws.version"
)

type Metrics struct {
	RequestsCounter         metric.Int64Counter
	RequestErrorsCounter    metric.Int64Counter
	RateLimitedCounter      metric.Int64Counter
	ResourcesCreatedCounter metric.Int64Counter
	ResourcesExpiredCounter metric.Int64Counter
	RequestDurationHist     metric.Float64Histogram
}

func BuildMetricName(baseName string) string {
	return GetMWSOtelMetricsNamespace() + "mws_" + baseName
}

type OtelManager struct {
	MetricsProvider        *sdkmetric.MeterProvider
	Meter                  metric.Meter
	Int64CountersCache     map[string]metric.Int64Counter
	Float64HistogramsCache map[string]metric.Float64Histogram
	Metrics                Metrics
}

// NewOtelManager exports through OTLP when enabled and records into a no-op meter otherwise.
func NewOtelManager(ctx context.Context, serviceName string, enabled bool) (*OtelManager, error) {
	om := OtelManager{
		Int64CountersCache:     make(map[string]metric.Int64Counter),
		Float64HistogramsCache: make(map[string]metric.Float64Histogram),
	}
	if enabled {
		provider, err := SetupMWSMetricsProvider(ctx, serviceName)
		if err != nil {
			return nil, err
		}
		om.MetricsProvider = provider
		om.Meter = provider.Meter("io.mongodb-labs." + serviceName)
	} else {
		om.Meter = noop.NewMeterProvider().Meter(serviceName)
	}
	if err := om.setupMetrics(); err != nil {
		return nil, err
	}
	return &om, nil
}

func (om *OtelManager) Close(ctx context.Context) error {
	if om.MetricsProvider == nil {
		return nil
	}
	return om.MetricsProvider.Shutdown(ctx)
}

func getOrInitMetric[M any, O any](
	cons func(metric.Meter, string, ...O) (M, error),
	meter metric.Meter,
	cache map[string]M,
	name string,
	opts ...O,
) (M, error) {
	m, ok := cache[name]
	if !ok {
		var err error
		m, err = cons(meter, name, opts...)
		if err != nil {
			var none M
			return none, err
		}
		cache[name] = m
	}
	return m, nil
}

func (om *OtelManager) GetOrInitInt64Counter(name string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return getOrInitMetric(metric.Meter.Int64Counter, om.Meter, om.Int64CountersCache, name, opts...)
}

func (om *OtelManager) GetOrInitFloat64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return getOrInitMetric(metric.Meter.Float64Histogram, om.Meter, om.Float64HistogramsCache, name, opts...)
}

func (om *OtelManager) setupMetrics() error {
	var err error
	om.Metrics.RequestsCounter, err = om.GetOrInitInt64Counter(BuildMetricName(RequestsCounterName),
		metric.WithDescription("Requests served by the resource server"),
	)
	if err != nil {
		return err
	}
	om.Metrics.RequestErrorsCounter, err = om.GetOrInitInt64Counter(BuildMetricName(RequestErrorsCounterName),
		metric.WithDescription("Requests answered with an error body"),
	)
	if err != nil {
		return err
	}
	om.Metrics.RateLimitedCounter, err = om.GetOrInitInt64Counter(BuildMetricName(RateLimitedCounterName),
		metric.WithDescription("Requests rejected by the per session rate limit"),
	)
	if err != nil {
		return err
	}
	om.Metrics.ResourcesCreatedCounter, err = om.GetOrInitInt64Counter(BuildMetricName(ResourcesCreatedCounterName),
		metric.WithDescription("Shell resources created"),
	)
	if err != nil {
		return err
	}
	om.Metrics.ResourcesExpiredCounter, err = om.GetOrInitInt64Counter(BuildMetricName(ResourcesExpiredCounterName),
		metric.WithDescription("Idle shell resources dropped"),
	)
	if err != nil {
		return err
	}
	om.Metrics.RequestDurationHist, err = om.GetOrInitFloat64Histogram(BuildMetricName(RequestDurationHistName),
		metric.WithUnit("s"),
		metric.WithDescription("Request handling latency"),
	)
	return err
}

func newOtelResource(otelServiceName string, attrs ...attribute.KeyValue) (*resource.Resource, error) {
	allAttrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(otelServiceName),
		attribute.String(VersionKey, internal.MWSVersionShaShort()),
	}, attrs...)
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			allAttrs...,
		),
	)
}

func setupExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	otlpMetricProtocol := getOtlpMetricProtocol()
	var metricExporter sdkmetric.Exporter
	var err error
	switch otlpMetricProtocol {
	case "http/protobuf":
		metricExporter, err = otlpmetrichttp.New(ctx)
	case "grpc":
		metricExporter, err = otlpmetricgrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported otel metric protocol: %s", otlpMetricProtocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry metrics exporter: %w", err)
	}
	return metricExporter, nil
}

func SetupMWSMetricsProvider(ctx context.Context, otelServiceName string) (*sdkmetric.MeterProvider, error) {
	otelResource, err := newOtelResource(otelServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource: %w", err)
	}
	metricExporter, err := setupExporter(ctx)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(otelResource),
	), nil
}
