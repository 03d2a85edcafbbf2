/*
Package errdefs defines the structured error taxonomy shared by every idman
subsystem, plus the retry classifier used by the batch executor and the
restore engine.

Errors carry a Kind (validation, parsing, execution, permission, network,
configuration, storage), a stable machine-readable code, and a recovery
suggestion drawn from a static table. Wrapping preserves the cause chain so
errors.As and errors.Is keep working through component boundaries.

Transient failures (rate limiting, timeouts, service unavailability) are
retried with exponential backoff: base 1s, doubled per attempt, capped at
60s, two retries by default.
*/
package errdefs
