// Package directory defines the capability interface the core consumes from
// the cloud directory service, an AWS Identity Center binding, and an
// in-memory fake for tests. Clients are injected at construction; there is
// no package-level default.
package directory
