// Package ingest parses bulk-assignment input files in two dialects:
// tabular CSV with a header row, and structured JSON. Structural errors are
// reported with per-row line numbers; a batch with any structural error is
// rejected before name resolution.
package ingest
