/*
Package bulk implements the bulk-assignment pipeline: preview and
confirmation gating, and the batch executor.

The executor divides records into fixed-size batches and dispatches items
concurrently under a weighted semaphore. Each item performs an existence
check first so that repeated assigns and revokes are idempotent no-ops
(already-exists / already-absent), retries transient failures with
exponential backoff, and carries a per-item timeout. With stop-on-error the
first hard failure cancels un-started items while in-flight items finish.

TuneFor picks concurrency, batch size, and rate delay keyed on the number of
distinct accounts in the input.
*/
package bulk
