// Package server provides the playback HTTP proxy.
//
// The server accepts forward-proxy requests (absolute request URIs, as sent
// by clients configured with HTTP_PROXY) or ordinary requests carrying the
// upstream URL in the X-Playback-Target header, and sends them through a
// round tripper: a replay engine in replay mode, or a recorder wrapping the
// real transport in record mode.
//
// # Routes
//
//   - GET /healthz     liveness and recording count
//   - GET /metrics     Prometheus metrics (path configurable)
//   - GET /recordings  identities currently loaded or recorded
//   - GET /readyz      readiness checks (storage, snapshot), 503 when degraded
//   - GET /version     build information
//
// Every other request is proxied. Proxy requests never reach the routes
// above, so a recorded upstream path such as /healthz is still proxied.
//
// # Middleware
//
// Requests pass through chi's RequestID and Recoverer middleware and a
// structured slog request logger.
//
// # Errors
//
// Replay misses under the fail policy answer 404 with a JSON error body;
// upstream transport failures answer 502.
package server
