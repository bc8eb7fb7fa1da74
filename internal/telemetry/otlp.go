package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// buildOTLPMetricExporter constructs an OTLP/HTTP exporter. Endpoint, headers
// and TLS are taken from the standard OTEL_EXPORTER_OTLP_* environment
// variables, which the exporter reads itself.
func buildOTLPMetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx)
}
