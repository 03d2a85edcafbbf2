/*
Package log provides structured logging for idman built on zerolog.

Init configures the global Logger once at process start; commands default to
console output on stderr so structured logs never interleave with command
output on stdout. Child-logger helpers (WithComponent, WithProfile,
WithBackupID, WithOperationID) attach the standard correlation fields used
across the executor, restore, and retention subsystems.
*/
package log
