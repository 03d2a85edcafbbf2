// Package orphan detects assignments whose principal has been deleted
// from the directory, with a per-profile on-disk result cache.
package orphan
