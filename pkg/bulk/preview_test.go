package bulk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/types"
)

func TestBuildPreview(t *testing.T) {
	records := []types.AssignmentRecord{
		{PrincipalName: "alice", PermissionSetName: "ReadOnly", AccountName: "Prod", Resolved: true},
		{PrincipalName: "devs", PermissionSetName: "Power", AccountName: "Dev", Resolved: true},
		{PrincipalName: "bob", PermissionSetName: "ReadOnly", AccountName: "Prod", Resolved: false},
	}
	p := BuildPreview(types.OperationAssign, records)

	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Resolvable)
	assert.Equal(t, 1, p.Unresolvable)
	assert.Equal(t, []string{"alice", "bob", "devs"}, p.Principals)
	assert.Equal(t, []string{"Power", "ReadOnly"}, p.PermissionSets)
	assert.Equal(t, []string{"Dev", "Prod"}, p.Accounts)
}

func TestGateDryRun(t *testing.T) {
	p := &Preview{Total: 2, Resolvable: 1, Unresolvable: 1}
	// Dry-run short-circuits even with unresolvable records
	result, err := Gate(p, GateOptions{DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, GateDryRun, result)
}

func TestGateAbortsOnUnresolvable(t *testing.T) {
	p := &Preview{Total: 2, Resolvable: 1, Unresolvable: 1}
	_, err := Gate(p, GateOptions{}, nil)
	require.Error(t, err)
}

func TestGateForceSkipsPrompt(t *testing.T) {
	p := &Preview{Total: 2, Resolvable: 2}
	called := false
	prompter := PrompterFunc(func(string) (bool, error) {
		called = true
		return true, nil
	})
	result, err := Gate(p, GateOptions{Force: true}, prompter)
	require.NoError(t, err)
	assert.Equal(t, GateProceed, result)
	assert.False(t, called)
}

func TestGateDeclined(t *testing.T) {
	p := &Preview{Total: 1, Resolvable: 1}
	prompter := PrompterFunc(func(string) (bool, error) { return false, nil })
	result, err := Gate(p, GateOptions{}, prompter)
	require.NoError(t, err)
	assert.Equal(t, GateDeclined, result)
}

func TestTuneFor(t *testing.T) {
	tests := []struct {
		name     string
		accounts int
		op       types.BulkOperation
		expected Tuning
	}{
		{
			name:     "small assign",
			accounts: 5,
			op:       types.OperationAssign,
			expected: Tuning{MaxConcurrent: 5, BatchSize: 5, RateDelay: 100 * time.Millisecond},
		},
		{
			name:     "medium assign",
			accounts: 30,
			op:       types.OperationAssign,
			expected: Tuning{MaxConcurrent: 25, BatchSize: 30, RateDelay: 50 * time.Millisecond},
		},
		{
			name:     "large assign",
			accounts: 100,
			op:       types.OperationAssign,
			expected: Tuning{MaxConcurrent: 30, BatchSize: 50, RateDelay: 20 * time.Millisecond},
		},
		{
			name:     "small revoke takes the adjacent bucket",
			accounts: 5,
			op:       types.OperationRevoke,
			expected: Tuning{MaxConcurrent: 25, BatchSize: 5, RateDelay: 50 * time.Millisecond},
		},
		{
			name:     "large revoke stays large",
			accounts: 100,
			op:       types.OperationRevoke,
			expected: Tuning{MaxConcurrent: 30, BatchSize: 50, RateDelay: 20 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TuneFor(tt.accounts, tt.op))
		})
	}
}
