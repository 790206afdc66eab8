// Package admin implements the HTTP admin endpoint of the livelock server.
//
// Routes:
//
//   - GET /metrics: Prometheus text format, the lock storage metrics followed by the
//     process metrics of github.com/VictoriaMetrics/metrics
//   - GET /stats: lockmgr.Stats as JSON
//   - GET /healthz: plain "ok"
//
// The admin endpoint is read only, locks can only be changed through the RPC transports.
package admin
