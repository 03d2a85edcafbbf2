package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/events"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/types"
)

const (
	defaultBatchSize      = 10
	maxBatchSize          = 50
	defaultPerItemTimeout = 60 * time.Second
)

// Options control one bulk run
type Options struct {
	DryRun          bool
	ContinueOnError bool
	BatchSize       int
	MaxConcurrent   int
	PerItemTimeout  time.Duration
	RateDelay       time.Duration
	RetryPolicy     errdefs.RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.BatchSize > maxBatchSize {
		o.BatchSize = maxBatchSize
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = o.BatchSize
	}
	if o.PerItemTimeout <= 0 {
		o.PerItemTimeout = defaultPerItemTimeout
	}
	if o.RetryPolicy.MaxRetries == 0 && o.RetryPolicy.BaseDelay == 0 {
		o.RetryPolicy = errdefs.DefaultRetryPolicy()
	}
	return o
}

// Executor applies assignment operations with bounded concurrency,
// per-item retry, and a continue-or-stop failure policy.
type Executor struct {
	client directory.Client
	broker *events.Broker
}

// NewExecutor creates a batch executor. The broker may be nil.
func NewExecutor(client directory.Client, broker *events.Broker) *Executor {
	return &Executor{client: client, broker: broker}
}

// Process applies op to every resolved record. Unresolved records are
// reported as skipped; ordering between concurrent items is not guaranteed.
func (e *Executor) Process(ctx context.Context, records []types.AssignmentRecord, op types.BulkOperation, opts Options) (*types.BulkResults, error) {
	opts = opts.withDefaults()
	logger := log.WithComponent("bulk-executor")
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchDuration)

	results := &types.BulkResults{Operation: op}
	start := time.Now()

	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(opts.MaxConcurrent))

	// A hard failure under stop-on-error cancels un-started items only;
	// in-flight items are allowed to finish.
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()

	for batchStart := 0; batchStart < len(records); batchStart += opts.BatchSize {
		batchEnd := min(batchStart+opts.BatchSize, len(records))
		batch := records[batchStart:batchEnd]

		var wg sync.WaitGroup
		for i := range batch {
			rec := batch[i]

			if !rec.Resolved {
				mu.Lock()
				results.Skipped = append(results.Skipped, types.ItemResult{
					Record: rec,
					Status: types.ItemSkipped,
					Error:  fmt.Sprintf("unresolved: %v", rec.ResolveErrors),
				})
				mu.Unlock()
				continue
			}

			if dispatchCtx.Err() != nil {
				mu.Lock()
				results.Skipped = append(results.Skipped, types.ItemResult{
					Record: rec,
					Status: types.ItemSkipped,
					Error:  "cancelled before dispatch",
				})
				mu.Unlock()
				continue
			}

			if err := sem.Acquire(dispatchCtx, 1); err != nil {
				mu.Lock()
				results.Skipped = append(results.Skipped, types.ItemResult{
					Record: rec,
					Status: types.ItemSkipped,
					Error:  "cancelled before dispatch",
				})
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				item := e.processItem(ctx, rec, op, opts)

				mu.Lock()
				switch item.Status {
				case types.ItemFailed:
					results.Failed = append(results.Failed, item)
					if !opts.ContinueOnError {
						cancelDispatch()
					}
				default:
					results.Successful = append(results.Successful, item)
				}
				mu.Unlock()

				metrics.OperationsTotal.WithLabelValues(string(op), string(item.Status)).Inc()
			}()

			if opts.RateDelay > 0 {
				time.Sleep(opts.RateDelay)
			}
		}
		wg.Wait()

		if dispatchCtx.Err() != nil && !opts.ContinueOnError {
			// Remaining batches are skipped wholesale
			for _, rec := range records[batchEnd:] {
				results.Skipped = append(results.Skipped, types.ItemResult{
					Record: rec,
					Status: types.ItemSkipped,
					Error:  "cancelled before dispatch",
				})
			}
			break
		}
	}

	results.TotalProcessed = len(results.Successful) + len(results.Failed) + len(results.Skipped)
	results.Duration = time.Since(start)

	logger.Info().
		Str("operation", string(op)).
		Int("successful", len(results.Successful)).
		Int("failed", len(results.Failed)).
		Int("skipped", len(results.Skipped)).
		Dur("duration", results.Duration).
		Msg("bulk run complete")

	if e.broker != nil {
		e.broker.Publish(&events.Event{
			Type:    events.EventBulkCompleted,
			Message: fmt.Sprintf("bulk %s: %d ok, %d failed", op, len(results.Successful), len(results.Failed)),
		})
	}
	return results, nil
}

// processItem applies one operation with existence check, retry, and timing
func (e *Executor) processItem(ctx context.Context, rec types.AssignmentRecord, op types.BulkOperation, opts Options) types.ItemResult {
	start := time.Now()
	item := types.ItemResult{Record: rec}

	itemCtx, cancel := context.WithTimeout(ctx, opts.PerItemTimeout)
	defer cancel()

	assignment := types.Assignment{
		AccountID:        rec.AccountID,
		PermissionSetARN: rec.PermissionSetARN,
		PrincipalType:    rec.PrincipalType,
		PrincipalID:      rec.PrincipalID,
	}

	retries, err := errdefs.Retry(itemCtx, opts.RetryPolicy, func() error {
		existing, err := e.client.ListAssignments(itemCtx, assignment.AccountID, assignment.PermissionSetARN)
		if err != nil {
			return err
		}
		present := false
		for _, a := range existing {
			if a.Key() == assignment.Key() {
				present = true
				break
			}
		}

		switch op {
		case types.OperationAssign:
			if present {
				item.Status = types.ItemAlreadyExists
				return nil
			}
			if opts.DryRun {
				item.Status = types.ItemSucceeded
				return nil
			}
			if err := e.client.CreateAssignment(itemCtx, assignment); err != nil {
				return err
			}
			item.Status = types.ItemSucceeded
			e.publish(events.EventAssignmentCreated, assignment)
		case types.OperationRevoke:
			if !present {
				item.Status = types.ItemAlreadyAbsent
				return nil
			}
			if opts.DryRun {
				item.Status = types.ItemSucceeded
				return nil
			}
			if err := e.client.DeleteAssignment(itemCtx, assignment); err != nil {
				return err
			}
			item.Status = types.ItemSucceeded
			e.publish(events.EventAssignmentRevoked, assignment)
		}
		return nil
	})

	item.Retries = retries
	if retries > 0 {
		metrics.RetriesTotal.Add(float64(retries))
	}
	if err != nil {
		item.Status = types.ItemFailed
		item.Error = err.Error()
	}
	item.Duration = time.Since(start)
	return item
}

func (e *Executor) publish(t events.EventType, a types.Assignment) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		Type: t,
		Metadata: map[string]string{
			"account_id":         a.AccountID,
			"permission_set_arn": a.PermissionSetARN,
			"principal_type":     string(a.PrincipalType),
			"principal_id":       a.PrincipalID,
		},
	})
}
