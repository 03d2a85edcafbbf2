package bulk

import (
	"time"

	"github.com/cloudsmiths/idman/pkg/types"
)

// Tuning holds the executor knobs chosen for an input size
type Tuning struct {
	MaxConcurrent int
	BatchSize     int
	RateDelay     time.Duration
}

// TuneFor picks executor settings keyed on the number of distinct accounts
// in the batch. Revoke gets the more aggressive setting of two adjacent
// buckets since deletes are cheaper than creates on the directory side.
func TuneFor(accountCount int, op types.BulkOperation) Tuning {
	small := Tuning{
		MaxConcurrent: min(accountCount, 15),
		BatchSize:     max(accountCount, 1),
		RateDelay:     100 * time.Millisecond,
	}
	medium := Tuning{
		MaxConcurrent: 25,
		BatchSize:     min(max(accountCount, 1), 50),
		RateDelay:     50 * time.Millisecond,
	}
	large := Tuning{
		MaxConcurrent: 30,
		BatchSize:     50,
		RateDelay:     20 * time.Millisecond,
	}

	var bucket, next Tuning
	switch {
	case accountCount <= 10:
		bucket, next = small, medium
	case accountCount <= 50:
		bucket, next = medium, large
	default:
		bucket, next = large, large
	}

	if op == types.OperationRevoke {
		return next
	}
	return bucket
}
