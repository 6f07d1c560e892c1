/*
Package observability turns engine lifecycle hooks into Prometheus metrics and structured
log lines.

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	engine := lendflow.New(lendflow.WithLifecycleHooks(hooks))
*/
package observability
