package bulk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

func resolvedRecord(principal, ps, account string) types.AssignmentRecord {
	return types.AssignmentRecord{
		PrincipalName:     principal,
		PermissionSetName: ps,
		AccountName:       account,
		PrincipalType:     types.PrincipalUser,
		PrincipalID:       "id-" + principal,
		PermissionSetARN:  "arn:ps/" + ps,
		AccountID:         account,
		Resolved:          true,
	}
}

func TestProcessAssign(t *testing.T) {
	fake := directory.NewFake()
	exec := NewExecutor(fake, nil)

	records := []types.AssignmentRecord{
		resolvedRecord("alice", "ReadOnly", "123456789012"),
		resolvedRecord("bob", "ReadOnly", "123456789012"),
	}
	results, err := exec.Process(context.Background(), records, types.OperationAssign, Options{})
	require.NoError(t, err)

	assert.Len(t, results.Successful, 2)
	assert.Empty(t, results.Failed)
	assert.Equal(t, 2, results.TotalProcessed)
	assert.Equal(t, 2, fake.CallCount("CreateAssignment"))
}

func TestAssignIdempotent(t *testing.T) {
	fake := directory.NewFake()
	exec := NewExecutor(fake, nil)
	records := []types.AssignmentRecord{resolvedRecord("alice", "ReadOnly", "123456789012")}

	_, err := exec.Process(context.Background(), records, types.OperationAssign, Options{})
	require.NoError(t, err)
	results, err := exec.Process(context.Background(), records, types.OperationAssign, Options{})
	require.NoError(t, err)

	require.Len(t, results.Successful, 1)
	assert.Equal(t, types.ItemAlreadyExists, results.Successful[0].Status)
	// Second run issued no create
	assert.Equal(t, 1, fake.CallCount("CreateAssignment"))
}

func TestRevokeIdempotent(t *testing.T) {
	fake := directory.NewFake()
	exec := NewExecutor(fake, nil)
	records := []types.AssignmentRecord{resolvedRecord("alice", "ReadOnly", "123456789012")}

	results, err := exec.Process(context.Background(), records, types.OperationRevoke, Options{})
	require.NoError(t, err)

	require.Len(t, results.Successful, 1)
	assert.Equal(t, types.ItemAlreadyAbsent, results.Successful[0].Status)
	assert.Equal(t, 0, fake.CallCount("DeleteAssignment"))
}

func TestDryRunIssuesNoWrites(t *testing.T) {
	fake := directory.NewFake()
	exec := NewExecutor(fake, nil)
	records := []types.AssignmentRecord{resolvedRecord("alice", "ReadOnly", "123456789012")}

	results, err := exec.Process(context.Background(), records, types.OperationAssign, Options{DryRun: true})
	require.NoError(t, err)

	assert.Len(t, results.Successful, 1)
	assert.Equal(t, 0, fake.CallCount("CreateAssignment"))
	assert.Equal(t, 0, fake.CallCount("DeleteAssignment"))
}

func TestUnresolvedRecordsSkipped(t *testing.T) {
	fake := directory.NewFake()
	exec := NewExecutor(fake, nil)

	rec := resolvedRecord("alice", "ReadOnly", "123456789012")
	rec.Resolved = false
	rec.ResolveErrors = []string{"principal not found"}

	results, err := exec.Process(context.Background(), []types.AssignmentRecord{rec}, types.OperationAssign, Options{})
	require.NoError(t, err)

	assert.Len(t, results.Skipped, 1)
	assert.Equal(t, 0, fake.CallCount("CreateAssignment"))
}

func TestTransientFailureRetried(t *testing.T) {
	fake := directory.NewFake()
	fake.FailNext("CreateAssignment", errdefs.New(errdefs.KindExecution, errdefs.CodeRateLimited, "throttled"))
	exec := NewExecutor(fake, nil)
	records := []types.AssignmentRecord{resolvedRecord("alice", "ReadOnly", "123456789012")}

	opts := Options{RetryPolicy: errdefs.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}
	results, err := exec.Process(context.Background(), records, types.OperationAssign, opts)
	require.NoError(t, err)

	require.Len(t, results.Successful, 1)
	assert.Equal(t, 1, results.Successful[0].Retries)
}

func TestHardFailureRecorded(t *testing.T) {
	fake := directory.NewFake()
	fake.FailNext("CreateAssignment", errdefs.New(errdefs.KindPermission, errdefs.CodeAccessDenied, "denied"))
	exec := NewExecutor(fake, nil)
	records := []types.AssignmentRecord{resolvedRecord("alice", "ReadOnly", "123456789012")}

	results, err := exec.Process(context.Background(), records, types.OperationAssign, Options{ContinueOnError: true})
	require.NoError(t, err)

	require.Len(t, results.Failed, 1)
	assert.Contains(t, results.Failed[0].Error, "denied")
}

func TestStopOnErrorSkipsRemaining(t *testing.T) {
	fake := directory.NewFake()
	fake.FailNext("CreateAssignment", errdefs.New(errdefs.KindPermission, errdefs.CodeAccessDenied, "denied"))
	exec := NewExecutor(fake, nil)

	var records []types.AssignmentRecord
	for _, name := range []string{"a", "b", "c", "d"} {
		records = append(records, resolvedRecord(name, "ReadOnly", "123456789012"))
	}

	// Batch size 1 serialises items so the failure lands on the first
	results, err := exec.Process(context.Background(), records, types.OperationAssign, Options{BatchSize: 1})
	require.NoError(t, err)

	assert.Len(t, results.Failed, 1)
	assert.Len(t, results.Skipped, 3)
	assert.Equal(t, 4, results.TotalProcessed)
}
