/*
Package metrics exposes Prometheus metrics for the Quarry control plane.

Gauges mirror the cardinalities of the state machine's reverse indexes
(unassigned tasks, unprocessed state changes, executors, running tasks)
and are refreshed by the apply path after every committed request.
Histograms track apply latency; counters track failed requests by
payload kind.

All metrics are registered at package init. Handler returns the standard
promhttp handler for the hosting process to mount.
*/
package metrics
