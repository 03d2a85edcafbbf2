// Package retention enforces keep-N-per-period policies over stored
// backups and reports storage usage, limit alerts, and backup diffs.
package retention
