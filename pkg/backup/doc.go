// Package backup defines the integrity and serialization rules for the
// backup record graph. The checksum is SHA-256 over the JSON encoding of
// the canonically sorted graph with the metadata checksum and size fields
// zeroed; Verify recomputes and compares.
package backup
