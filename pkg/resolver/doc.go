// Package resolver maps principal, permission-set, and account names to
// their stable identifiers, memoising across a batch run. Concurrent misses
// on the same namespace collapse to a single directory fetch; negative
// lookups are cached so they are not retried within the batch.
package resolver
