package observability

import (
	"github.com/numericalz/practicehub/internal/observability/logger"
	"github.com/numericalz/practicehub/internal/observability/metrics"
	"github.com/numericalz/practicehub/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	fx.Provide(provideLoggerConfig),
	fx.Provide(logger.New),
	fx.Provide(provideTracingConfig),
	fx.Provide(tracing.NewProvider),
	fx.Provide(provideMetricsConfig),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.NewProvider),
	fx.Provide(metrics.New),
	fx.Invoke(ensureTracingProvider),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: true,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
	}
}

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}
