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

// Metrics exposes application-level instruments.
type Metrics struct {
	checklistToggles      metric.Int64Counter
	dayCompletions        metric.Int64Counter
	sprintCompletions     metric.Int64Counter
	enrollmentActivations metric.Int64Counter
	rateLimitAllowed      metric.Int64Counter
	rateLimitDenied       metric.Int64Counter
	sweepExpirations      metric.Int64Counter
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
		name = "sprintline"
	}
	meter := provider.Meter(name)

	checklistToggles, err := meter.Int64Counter("sprintline_checklist_toggles_total")
	if err != nil {
		return nil, err
	}
	dayCompletions, err := meter.Int64Counter("sprintline_day_completions_total")
	if err != nil {
		return nil, err
	}
	sprintCompletions, err := meter.Int64Counter("sprintline_sprint_completions_total")
	if err != nil {
		return nil, err
	}
	enrollmentActivations, err := meter.Int64Counter("sprintline_enrollment_activations_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("sprintline_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("sprintline_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	sweepExpirations, err := meter.Int64Counter("sprintline_sweep_expirations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checklistToggles:      checklistToggles,
		dayCompletions:        dayCompletions,
		sprintCompletions:     sprintCompletions,
		enrollmentActivations: enrollmentActivations,
		rateLimitAllowed:      rateLimitAllowed,
		rateLimitDenied:       rateLimitDenied,
		sweepExpirations:      sweepExpirations,
	}, nil
}

// RecordChecklistToggle increments checklist toggle counts.
func (m *Metrics) RecordChecklistToggle(ctx context.Context, day int, completed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("day", fmt.Sprintf("%d", day)),
		attribute.String("completed", fmt.Sprintf("%t", completed)),
	)
	m.checklistToggles.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDayCompletion increments day completion counts.
func (m *Metrics) RecordDayCompletion(ctx context.Context, day int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("day", fmt.Sprintf("%d", day)))
	m.dayCompletions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSprintCompletion increments full-sprint completion counts.
func (m *Metrics) RecordSprintCompletion(ctx context.Context) {
	if m == nil {
		return
	}
	m.sprintCompletions.Add(ctx, 1)
}

// RecordEnrollmentActivation increments enrollment activation counts.
func (m *Metrics) RecordEnrollmentActivation(ctx context.Context) {
	if m == nil {
		return
	}
	m.enrollmentActivations.Add(ctx, 1)
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSweepExpiration increments maintenance sweep expiration counts.
func (m *Metrics) RecordSweepExpiration(ctx context.Context, kind string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.sweepExpirations.Add(ctx, count, metric.WithAttributes(attrs...))
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
	"endpoint":    {},
	"status_code": {},
	"day":         {},
	"completed":   {},
	"reason":      {},
	"kind":        {},
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
