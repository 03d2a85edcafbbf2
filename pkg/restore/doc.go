/*
Package restore replays stored backups into a live identity instance.

Phases run in dependency order: users, then groups, then permission sets,
then assignments. Each phase lists the live collection once, walks the
backup collection with bounded concurrency, and resolves conflicts by the
configured strategy (OVERWRITE, SKIP, MERGE, or PROMPT with a cached
per-resource decision). Every write appends its inverse to a rollback
journal; a phase failure replays that journal in reverse before the run
returns. Completed phases checkpoint into persisted operation state so a
rerun of the same operation id skips them.
*/
package restore
