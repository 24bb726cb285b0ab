// Package observability wires OpenTelemetry metrics and tracing into
// pipecat.
//
// StreamMetrics counts values, stops and failures per named stream; the
// pipeline operators record into it when given pipeline.WithMetrics. All
// StreamMetrics methods are safe on a nil receiver, so instrumentation is
// optional. InitMeter and InitTracer install OTLP/HTTP exporters for
// commands that want to ship telemetry.
package observability
