// Package metrics defines the Prometheus instrumentation for idman:
// bulk operation outcomes, retries, resolver cache behaviour, restore phase
// timings, retention deletions, and storage usage gauges.
package metrics
