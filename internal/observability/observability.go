// Package observability constructs the process-wide zerolog logger and
// OpenTelemetry trace/metric providers a caller hands to the Resolver through
// resolver.Options, following the same construct-once shape as glyphoxa's
// internal/observe package. Stores and the Codec take no logger or
// telemetry handles.
package observability

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName scopes every span and metric this module emits.
const instrumentationName = "github.com/basepair/resourcereg"

// Config controls how NewProvider builds its logger and OTel providers.
type Config struct {
	// ServiceName is reported as the OTel resource's service.name.
	ServiceName string

	// Trace, when true, wires the stdout span exporter so a CLI run with
	// --trace prints spans to Writer as they complete.
	Trace bool

	// Writer receives log lines and, if Trace is set, exported spans.
	// Metrics are exported to io.Discard, not to Writer. Defaults to
	// os.Stderr.
	Writer io.Writer

	// Level is the minimum zerolog level logged. Defaults to InfoLevel.
	Level zerolog.Level
}

// Provider bundles the constructed logger and telemetry handles a caller
// threads into the Resolver's Options.
type Provider struct {
	Log     zerolog.Logger
	Tracer  trace.Tracer
	Meter   metric.Meter
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
}

// NewProvider builds a Provider. Callers should defer Shutdown.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "resourcereg"
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if cfg.Level == 0 {
		cfg.Level = zerolog.InfoLevel
	}

	log := zerolog.New(cfg.Writer).Level(cfg.Level).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()

	res, err := resource.New(ctx, resource.WithAttributes())
	if err != nil {
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetMeterProvider(mp)

	return &Provider{
		Log:    log,
		Tracer: tp.Tracer(instrumentationName),
		Meter:  mp.Meter(instrumentationName),
		tp:     tp,
		mp:     mp,
	}, nil
}

// Shutdown flushes and releases the trace and metric providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		errs = append(errs, p.tp.Shutdown(ctx))
	}
	if p.mp != nil {
		errs = append(errs, p.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Metrics are the Resolver's cache-hit/cache-miss and per-store-latency
// instruments, created from a Provider's Meter.
type Metrics struct {
	CacheHits    metric.Int64Counter
	CacheMisses  metric.Int64Counter
	StoreLatency metric.Float64Histogram
}

// NewMetrics creates the Resolver's metric instruments against m.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	hits, err := m.Int64Counter("resourcereg.resolver.cache_hits",
		metric.WithDescription("Resolve calls served from the in-memory cache."))
	if err != nil {
		return nil, err
	}
	misses, err := m.Int64Counter("resourcereg.resolver.cache_misses",
		metric.WithDescription("Resolve calls that walked the store path."))
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram("resourcereg.store.latency",
		metric.WithDescription("Per-store round-trip latency for Get/Put/Delete."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{CacheHits: hits, CacheMisses: misses, StoreLatency: latency}, nil
}
