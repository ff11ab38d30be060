/*
Package monitoring provides metrics collection for the host.

# Overview

Metrics live on a per-instance Prometheus registry, so several hosts (or
tests) can coexist in one process without duplicate registration panics.

# Features

- Control server request metrics (latency, status)
- Worker lifecycle, output and telemetry delivery metrics
- Capability bridge call metrics
- Extension injection and cycle duration metrics
- Page console and waitFor give-up metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordTelemetry(false, "not_running")
*/
package monitoring
