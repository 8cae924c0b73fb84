// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on /debug/vars by the serve command.
package metrics

import "expvar"

// Operation counters.
var (
	AnalyzeTotal       = expvar.NewInt("archaeology_analyze_total")
	CacheHits          = expvar.NewInt("archaeology_cache_hits_total")
	ExtractionFailures = expvar.NewInt("archaeology_extraction_failures_total")
	DroppedConnections = expvar.NewInt("archaeology_dropped_connections_total")
	PatternRuns        = expvar.NewInt("archaeology_pattern_runs_total")
	GraphSyncFailures  = expvar.NewInt("archaeology_graph_sync_failures_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
