/*
Package export converts backups between three interchange dialects: typed
JSON, human-readable YAML, and a tabular csv layout with one table per
resource kind plus a key/value metadata table. Output can be gzip
compressed; import detects compression from the magic bytes. Imported
graphs are re-validated and always receive a fresh backup id.
*/
package export
