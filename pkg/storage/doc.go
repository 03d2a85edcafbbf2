/*
Package storage provides BoltDB-backed persistence for backups, templates,
and restore operation state.

Backup payloads are JSON-serialized record graphs, optionally encrypted
with AES-256-GCM before they hit disk; metadata is kept in a separate
bucket in the clear so listing and retention never need the encryption
key. All writes are ACID via BoltDB transactions; deletes are reported
with an existed flag so callers can distinguish no-ops.

Buckets:

	backups      backup id -> (optionally encrypted) record graph
	backup_meta  backup id -> metadata JSON
	templates    template name -> template JSON
	operations   operation id -> restore operation state
*/
package storage
