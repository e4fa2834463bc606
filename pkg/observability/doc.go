/*
Package observability turns runner lifecycle events into Prometheus metrics.

	m := observability.NewMetrics(prometheus.NewRegistry())
	r := runner.New(runner.WithHooks(m.Hooks()))

Metrics are labelled by job name (e.g. "relax1", "static.5.4") only; directories
are left out to keep label cardinality bounded.
*/
package observability
