package otel_metrics

import "github.com/mongodb-labs/mongo-web-shell-sub000/internal"

func GetMWSOtelMetricsNamespace() string {
	return internal.MWSOtelMetricsNamespace()
}

func getOtlpMetricProtocol() string {
	return internal.GetEnvString("OTEL_EXPORTER_OTLP_PROTOCOL",
		internal.GetEnvString("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", "http/protobuf"))
}
