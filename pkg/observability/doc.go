/*
Package observability provides the monitoring instruments of the Lectern engine.

Metrics are Prometheus collectors registered on a caller-supplied registry; a nil
*Metrics is valid and records nothing. Tracing uses the global OpenTelemetry
provider, which is a no-op until InitTracing installs an OTLP exporter.
*/
package observability
