// Package telemetry wires up OpenTelemetry tracing and metrics. Development
// setups print to stdout; production ships OTLP over HTTP to a collector.
//
// Typical startup sequence:
//
//	tp, err := telemetry.InitTracer(ctx, "portward", telemetry.ExporterStdout, "")
//	defer tp.Shutdown(ctx)
//
//	mp, err := telemetry.InitMeter(ctx, "portward", telemetry.ExporterStdout, "")
//	defer mp.Shutdown(ctx)
//
//	metrics, err := telemetry.NewMetrics(mp, "portward")
//	metrics.PortAllocationsTotal.Add(ctx, 1, ...)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Exporter names understood by InitTracer and InitMeter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Attribute keys shared across instrument call sites.
var (
	AttrHTTPMethod  = attribute.Key("http.method")
	AttrHTTPStatus  = attribute.Key("http.status_code")
	AttrPeerService = attribute.Key("peer.service")
	AttrResult      = attribute.Key("result")
	AttrPool        = attribute.Key("pool")
	AttrService     = attribute.Key("service")
	AttrToState     = attribute.Key("to_state")
)

// Metrics bundles every instrument the orchestrator records, created once at
// startup and handed to the components that need them.
type Metrics struct {
	ServerRequestDuration metric.Float64Histogram
	ServerRequestTotal    metric.Int64Counter
	ClientRequestDuration metric.Float64Histogram
	ClientRequestTotal    metric.Int64Counter

	PortAllocationsTotal   metric.Int64Counter
	AllocationWaitDuration metric.Float64Histogram
	HealthTransitionsTotal metric.Int64Counter
	ProbeDuration          metric.Float64Histogram
	RestartsTotal          metric.Int64Counter
}

// InitTracer builds a TracerProvider, installs it globally, and registers the
// W3C trace-context and baggage propagators. "otlp" selects OTLP/HTTP against
// endpoint; anything else falls back to pretty-printed stdout spans.
//
// Callers own the provider and must Shutdown it on exit.
func InitTracer(ctx context.Context, serviceName, exporter, endpoint string) (*sdktrace.TracerProvider, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, exporter, endpoint)
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// InitMeter builds a MeterProvider and installs it globally. Exporter
// selection matches InitTracer: "otlp" needs an endpoint, everything else
// writes to stdout.
//
// Callers own the provider and must Shutdown it on exit.
func InitMeter(ctx context.Context, serviceName, exporter, endpoint string) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	metricExporter, err := newMetricExporter(ctx, exporter, endpoint)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// instrumentBuilder collects instrument-creation errors so NewMetrics can
// report all failures at once instead of stopping at the first.
type instrumentBuilder struct {
	meter metric.Meter
	errs  []error
}

func (b *instrumentBuilder) histogram(name, desc, unit string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("creating %s: %w", name, err))
	}
	return h
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("creating %s: %w", name, err))
	}
	return c
}

// NewMetrics registers every instrument on a meter scoped to serviceName.
func NewMetrics(mp *sdkmetric.MeterProvider, serviceName string) (*Metrics, error) {
	b := &instrumentBuilder{meter: mp.Meter(serviceName)}

	m := &Metrics{
		ServerRequestDuration: b.histogram("http.server.request.duration",
			"Duration of incoming HTTP requests", "s"),
		ServerRequestTotal: b.counter("http.server.request.total",
			"Total number of incoming HTTP requests", "{request}"),
		ClientRequestDuration: b.histogram("http.client.request.duration",
			"Duration of outgoing HTTP requests", "s"),
		ClientRequestTotal: b.counter("http.client.request.total",
			"Total number of outgoing HTTP requests", "{request}"),

		PortAllocationsTotal: b.counter("ledger.allocations.total",
			"Total number of port allocation requests by pool and result", "{allocation}"),
		AllocationWaitDuration: b.histogram("ledger.allocation.wait.duration",
			"Time allocation requests spent waiting for a free port", "s"),
		HealthTransitionsTotal: b.counter("monitor.health.transitions.total",
			"Total number of service health state transitions", "{transition}"),
		ProbeDuration: b.histogram("monitor.probe.duration",
			"Latency of health probes", "s"),
		RestartsTotal: b.counter("healer.restarts.total",
			"Total number of restart attempts by service and result", "{restart}"),
	}

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return m, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newSpanExporter(ctx context.Context, exporter, endpoint string) (sdktrace.SpanExporter, error) {
	if exporter == ExporterOTLP {
		if endpoint == "" {
			return nil, errors.New("otlp exporter requires an endpoint")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(hostPort(endpoint))}
		if !isHTTPS(endpoint) {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func newMetricExporter(ctx context.Context, exporter, endpoint string) (sdkmetric.Exporter, error) {
	if exporter == ExporterOTLP {
		if endpoint == "" {
			return nil, errors.New("otlp exporter requires an endpoint")
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(hostPort(endpoint))}
		if !isHTTPS(endpoint) {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return stdoutmetric.New()
}

// hostPort strips the scheme from a collector URL; the OTLP options want a
// bare host:port ("http://otel-collector:4318" becomes "otel-collector:4318").
func hostPort(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

func isHTTPS(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == "https"
}
