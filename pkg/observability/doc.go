/*
Package observability turns orchestrator, tool and saga lifecycle events
into Prometheus metrics and structured log records.

Both are plain domain.LifecycleHooks values, combined with domain.MergeHooks:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.MergeHooks(metrics.Hooks(), observability.LoggingHooks(logger))
*/
package observability
