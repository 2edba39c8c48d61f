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

// Metrics exposes application-level instruments pushed over OTLP.
type Metrics struct {
	workflowsFiled   metric.Int64Counter
	stageTransitions metric.Int64Counter
	registrySyncs    metric.Int64Counter
	remindersSent    metric.Int64Counter
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
		name = "practicehub"
	}
	meter := provider.Meter(name)

	workflowsFiled, err := meter.Int64Counter("practicehub_workflows_filed_total")
	if err != nil {
		return nil, err
	}
	stageTransitions, err := meter.Int64Counter("practicehub_stage_transitions_total")
	if err != nil {
		return nil, err
	}
	registrySyncs, err := meter.Int64Counter("practicehub_registry_syncs_total")
	if err != nil {
		return nil, err
	}
	remindersSent, err := meter.Int64Counter("practicehub_reminders_sent_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		workflowsFiled:   workflowsFiled,
		stageTransitions: stageTransitions,
		registrySyncs:    registrySyncs,
		remindersSent:    remindersSent,
	}, nil
}

// RecordWorkflowFiled increments filed workflow counts.
func (m *Metrics) RecordWorkflowFiled(ctx context.Context, workflowType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("workflow_type", strings.TrimSpace(workflowType)))
	m.workflowsFiled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStageTransition increments stage transition counts.
func (m *Metrics) RecordStageTransition(ctx context.Context, workflowType, toStage string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("workflow_type", strings.TrimSpace(workflowType)),
		attribute.String("to_stage", strings.TrimSpace(toStage)),
	)
	m.stageTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRegistrySync increments registry sync counts.
func (m *Metrics) RecordRegistrySync(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.registrySyncs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReminderSent increments deadline reminder counts.
func (m *Metrics) RecordReminderSent(ctx context.Context, workType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("work_type", strings.TrimSpace(workType)))
	m.remindersSent.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"workflow_type": {},
	"to_stage":      {},
	"source":        {},
	"outcome":       {},
	"work_type":     {},
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
