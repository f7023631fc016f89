// Package telemetry groups the observability packages of playback.
//
// # Components
//
//   - logging: slog construction, rotating log files, header redaction and
//     request/session context fields
//   - metrics: Prometheus counters and histograms for recording, replay and
//     retention, served by promhttp
//   - health: readiness checks and the version endpoint of the proxy
//
// Components take a nil collector where metrics are optional, so library
// users that do not expose /metrics pay nothing for them.
package telemetry
