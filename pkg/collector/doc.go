// Package collector snapshots the live identity configuration. The four
// resource kinds are listed concurrently, incremental runs drop resources
// not modified since the cutoff, and cross-account collection fans out one
// snapshot per assumed-role config.
package collector
