// Package metrics exports orchestrator events to Prometheus.
//
// A [Collector] implements script.Observer. Pass it in script.Config to
// count executions by outcome, tool calls by tool and success, and to track
// their durations:
//
//	col := metrics.NewCollector()
//	orch, _ := script.New(script.Config{Engine: luaengine.NewFactory(), Observer: col})
//	http.Handle("/metrics", col.Handler())
package metrics
