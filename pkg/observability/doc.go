// Package observability provides structured logging, Prometheus metrics, and
// health probes.
//
// # Overview
//
// Logging uses stdlib slog with a JSON handler; loggers travel through
// request contexts so handlers inherit the request id. Metrics cover HTTP
// traffic, store operations per backend, authorization decisions, and login
// outcomes, exposed through a registry-scoped /metrics handler.
//
// # Usage Example
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	metrics := observability.NewMetrics(nil)
//
//	logger.WithField("backend", "redis").Info("store initialized")
//	metrics.AuthzDecisionsTotal.WithLabelValues("authorized").Inc()
package observability
