/*
Package monitoring provides metrics collection.

# Overview

This package implements Prometheus-based metrics for the service: HTTP
requests, tree builds per source, security scope acquisitions, persist
outcomes and throughput, and consumer service calls.

Every recording method is safe to call on a nil *Metrics, so components
can be constructed without metrics in tests.

# Usage

	// Create metrics collector on a registry
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record a persist
	metrics.RecordPersist(monitoring.OutcomeOK, n, time.Since(start))

	// Time operations
	timer := monitoring.NewTimer(metrics, "search", "glob")
	// ... perform operation ...
	timer.StopErr(err)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
