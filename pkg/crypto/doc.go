// Package crypto provides AES-256-GCM encryption for backup payloads at rest.
package crypto
