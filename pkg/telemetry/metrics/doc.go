// Package metrics provides Prometheus metrics for recording and replay.
//
// # Metrics
//
//   - <ns>_<sub>_recordings_total: responses committed by recorders
//   - <ns>_<sub>_collisions_total: identity collisions by source (record, replay)
//   - <ns>_<sub>_active_recorders: recorders currently started
//   - <ns>_<sub>_replay_requests_total: replayed requests by result (hit, fallback, passthrough, miss)
//   - <ns>_<sub>_replay_duration_seconds: time spent serving a replayed request
//   - <ns>_<sub>_sessions_pruned_total: stored sessions removed by retention
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	rec := recorder.New(recorder.Config{Metrics: collector})
//	router.Handle("/metrics", collector.Handler())
//
// A nil *Collector is valid and records nothing, so components accept one
// unconditionally.
package metrics
