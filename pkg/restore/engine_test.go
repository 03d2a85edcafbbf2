package restore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/storage"
	"github.com/cloudsmiths/idman/pkg/types"
)

func testEnv(t *testing.T) (*Engine, *directory.Fake, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir(), nil)
	require.NoError(t, err)
	fake := directory.NewFake()
	engine := New(store, fake, nil)
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})
	return engine, fake, store
}

func storedBackup(t *testing.T, store *storage.BoltStore) string {
	t.Helper()
	data := &types.BackupData{
		Metadata: types.BackupMetadata{
			Timestamp:         time.Now(),
			SourceInstanceARN: "arn:aws:sso:us-east-1:123456789012:instance/ssoins-1",
			SourceAccount:     "123456789012",
			SourceRegion:      "us-east-1",
			Type:              types.BackupFull,
		},
		Users: []types.User{
			{ID: "u-1", Name: "alice", DisplayName: "Alice", Email: "alice@example.com"},
			{ID: "u-2", Name: "bob", DisplayName: "Bob"},
		},
		Groups: []types.Group{
			{ID: "g-1", Name: "devs", Description: "developers"},
		},
		PermissionSets: []types.PermissionSet{
			{ARN: "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1", Name: "DevAccess"},
		},
		Assignments: []types.Assignment{
			{AccountID: "123456789012", PermissionSetARN: "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1",
				PrincipalType: types.PrincipalUser, PrincipalID: "u-1"},
		},
	}
	id, err := store.StoreBackup(data)
	require.NoError(t, err)
	return id
}

func TestRestoreIntoEmptyInstance(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictOverwrite})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.Len(t, res.Changes, 5)
	assert.Len(t, fake.Users, 2)
	assert.Len(t, fake.Groups, 1)
	assert.Len(t, fake.PermissionSets, 1)
	assert.Len(t, fake.Assignments, 1)
}

func TestRestoreDryRunWritesNothing(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)

	res, err := engine.Restore(context.Background(), id, Options{DryRun: true, Strategy: types.ConflictOverwrite})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Changes, 5)
	assert.Empty(t, fake.Users)
	assert.Zero(t, fake.CallCount("CreateUser"))
	assert.Zero(t, fake.CallCount("CreateAssignment"))
}

func TestRestoreSkipStrategy(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Someone Else"}

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictSkip})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Warnings, "user alice already exists, skipped")
	assert.Equal(t, "Someone Else", fake.Users["u-1"].DisplayName)
	// bob did not exist, so he is still created
	assert.Equal(t, 1, fake.CallCount("CreateUser"))
}

func TestRestoreOverwriteStrategy(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Someone Else"}

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictOverwrite})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Alice", fake.Users["u-1"].DisplayName)
	assert.Equal(t, 1, fake.CallCount("UpdateUser"))
}

func TestRestoreMergeSkipsIdenticalUser(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Alice", Email: "alice@example.com"}

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictMerge})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, fake.CallCount("UpdateUser"))
	assert.Contains(t, res.Warnings, "user alice already exists, skipped")
}

func TestRestoreMergeOverwritesDifferingUser(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Old Name", Email: "alice@example.com"}

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictMerge})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, fake.CallCount("UpdateUser"))
	assert.Equal(t, "Alice", fake.Users["u-1"].DisplayName)
}

func TestRestorePromptUsesSuggestedAction(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	// identical user: suggestion is skip
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Alice", Email: "alice@example.com"}

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictPrompt})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, fake.CallCount("UpdateUser"))
}

func TestRestorePromptDecisionIsCached(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Old"}

	asked := 0
	engine.SetPrompter(PrompterFunc(func(c Conflict) types.ConflictStrategy {
		asked++
		return types.ConflictOverwrite
	}))

	_, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictPrompt})
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
	assert.Equal(t, 1, fake.CallCount("UpdateUser"))
}

func TestRestoreTargetResources(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)

	res, err := engine.Restore(context.Background(), id, Options{
		Strategy:        types.ConflictOverwrite,
		TargetResources: []types.ResourceKind{types.KindUsers},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, fake.Users, 2)
	assert.Empty(t, fake.Groups)
	assert.Empty(t, fake.Assignments)
}

func TestRestoreRollsBackOnPhaseFailure(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	// users succeed, groups phase fails hard
	fake.FailNext("CreateGroup", errors.New("boom"))

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictOverwrite})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Rollback)
	assert.True(t, res.Rollback.Success)
	assert.Equal(t, 2, res.Rollback.Reverted)
	// created users were deleted again
	assert.Empty(t, fake.Users)
	assert.Equal(t, 2, fake.CallCount("DeleteUser"))
}

func TestRestoreRollbackRestoresPriorValues(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Original"}
	fake.Users["u-9"] = types.User{ID: "u-9", Name: "bob", DisplayName: "Bob Prior"}
	fake.FailNext("CreateGroup", errors.New("boom"))

	res, err := engine.Restore(context.Background(), id, Options{Strategy: types.ConflictOverwrite})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotNil(t, res.Rollback)
	assert.True(t, res.Rollback.Success)
	assert.Equal(t, "Original", fake.Users["u-1"].DisplayName)
	assert.Equal(t, "Bob Prior", fake.Users["u-9"].DisplayName)
}

func TestRollbackJournalSurvivesStorageRoundTrip(t *testing.T) {
	engine, fake, store := testEnv(t)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Rewritten"}
	created := types.Assignment{
		AccountID:        "123456789012",
		PermissionSetARN: "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1",
		PrincipalType:    types.PrincipalUser,
		PrincipalID:      "u-1",
	}
	fake.Assignments[created.Key()] = created

	state := &types.OperationState{
		OperationID: "op-journal",
		Type:        "restore",
		StartTime:   time.Now().UTC(),
		RollbackActions: []types.RollbackAction{
			{
				Type:         types.RollbackRestorePrior,
				ResourceType: types.KindUsers,
				ResourceID:   "u-1",
				PriorUser:    &types.User{ID: "u-1", Name: "alice", DisplayName: "Original"},
			},
			{
				Type:         types.RollbackDelete,
				ResourceType: types.KindAssignments,
				ResourceID:   created.Key(),
				Assignment:   &created,
			},
		},
	}
	require.NoError(t, store.SaveOperation(state))

	// a resumed rollback only sees the journal as it decodes from storage
	reloaded, err := store.GetOperation("op-journal")
	require.NoError(t, err)
	require.NotNil(t, reloaded)

	r := &run{engine: engine, state: reloaded, result: &Result{}, opts: Options{}.withDefaults()}
	rb := r.rollback(context.Background())
	assert.True(t, rb.Success)
	assert.Equal(t, 2, rb.Reverted)
	assert.Equal(t, "Original", fake.Users["u-1"].DisplayName)
	assert.Empty(t, fake.Assignments)
}

func TestRestoreCheckpointsSkipOnRerun(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)

	res, err := engine.Restore(context.Background(), id, Options{
		Strategy:    types.ConflictOverwrite,
		OperationID: "op-rerun",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	createUsers := fake.CallCount("CreateUser")

	res2, err := engine.Restore(context.Background(), id, Options{
		Strategy:    types.ConflictOverwrite,
		OperationID: "op-rerun",
	})
	require.NoError(t, err)
	assert.True(t, res2.Success)
	// no phase ran again
	assert.Equal(t, createUsers, fake.CallCount("CreateUser"))
	assert.Len(t, res2.Warnings, 4)
}

func TestRestoreRetriesTransientFailures(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.FailNext("CreateUser", errdefs.New(errdefs.KindExecution, errdefs.CodeRateLimited, "throttled"))

	policy := errdefs.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	res, err := engine.Restore(context.Background(), id, Options{
		Strategy:    types.ConflictOverwrite,
		RetryPolicy: &policy,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, fake.Users, 2)
}

// slowClient wedges user creation until the context expires
type slowClient struct {
	*directory.Fake
}

func (s *slowClient) CreateUser(ctx context.Context, u types.User) (*types.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRestoreAppliesPerItemTimeout(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir(), nil)
	require.NoError(t, err)
	engine := New(store, &slowClient{Fake: directory.NewFake()}, nil)
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})
	id := storedBackup(t, store)

	res, err := engine.Restore(context.Background(), id, Options{
		Strategy:        types.ConflictOverwrite,
		TargetResources: []types.ResourceKind{types.KindUsers},
		PerItemTimeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "context deadline exceeded")
}

func TestPreviewCountsOverlap(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice"}

	preview, err := engine.Preview(context.Background(), id, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, preview.ToRestore.Users)
	assert.Equal(t, 1, preview.Existing.Users)
	assert.Equal(t, 1, preview.ToRestore.Assignments)
	assert.Equal(t, 0, preview.Existing.Assignments)
	assert.Zero(t, fake.CallCount("CreateUser"))
}

func TestValidateCompatibilityMissingPolicy(t *testing.T) {
	engine, fake, store := testEnv(t)
	data := &types.BackupData{
		Metadata: types.BackupMetadata{
			Timestamp:     time.Now(),
			SourceAccount: "123456789012",
			SourceRegion:  "us-east-1",
			Type:          types.BackupFull,
		},
		PermissionSets: []types.PermissionSet{{
			ARN:             "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1",
			Name:            "DevAccess",
			ManagedPolicies: []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"},
		}},
	}
	id, err := store.StoreBackup(data)
	require.NoError(t, err)

	targetARN := "arn:aws:sso:us-east-1:123456789012:instance/ssoins-1"
	fake.Instances = []directory.Instance{{ARN: targetARN, AccountID: "123456789012", Region: "us-east-1"}}

	result, err := engine.ValidateCompatibility(context.Background(), id, targetARN)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing managed policy")

	fake.Policies["arn:aws:iam::aws:policy/ReadOnlyAccess"] = true
	result, err = engine.ValidateCompatibility(context.Background(), id, targetARN)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateCompatibilityCrossAccountFlags(t *testing.T) {
	engine, fake, store := testEnv(t)
	id := storedBackup(t, store)

	targetARN := "arn:aws:sso:eu-west-1:999999999999:instance/ssoins-2"
	fake.Instances = []directory.Instance{{ARN: targetARN, AccountID: "999999999999", Region: "eu-west-1"}}

	result, err := engine.ValidateCompatibility(context.Background(), id, targetARN)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "true", result.Details["cross_account"])
	assert.Equal(t, "true", result.Details["cross_region"])
	assert.Len(t, result.Warnings, 2)
}

func TestApplyMappings(t *testing.T) {
	src := &types.BackupData{
		PermissionSets: []types.PermissionSet{{
			ARN: "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1", Name: "DevAccess",
		}},
		Assignments: []types.Assignment{{
			AccountID:        "123456789012",
			PermissionSetARN: "arn:aws:sso:us-east-1:123456789012:permissionSet/ps-1",
			PrincipalType:    types.PrincipalUser,
			PrincipalID:      "u-1",
		}},
	}
	mapped := ApplyMappings(src, &types.ResourceMappings{
		SourceAccount:      "123456789012",
		TargetAccount:      "999999999999",
		SourceRegion:       "us-east-1",
		TargetRegion:       "eu-west-1",
		PermissionSetNames: map[string]string{"DevAccess": "DevAccessEU"},
	})

	assert.Equal(t, "arn:aws:sso:eu-west-1:999999999999:permissionSet/ps-1", mapped.PermissionSets[0].ARN)
	assert.Equal(t, "DevAccessEU", mapped.PermissionSets[0].Name)
	assert.Equal(t, "999999999999", mapped.Assignments[0].AccountID)
	// original untouched
	assert.Equal(t, "123456789012", src.Assignments[0].AccountID)
	assert.Equal(t, "DevAccess", src.PermissionSets[0].Name)
}

func TestRegistrySweepsCompletedOperations(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	defer r.Stop()

	r.Put(&types.OperationState{OperationID: "op-1", Type: "restore"})
	r.Complete("op-1")
	require.NotNil(t, r.Get("op-1"))

	time.Sleep(20 * time.Millisecond)
	r.sweep(time.Now())
	assert.Nil(t, r.Get("op-1"))
}

func TestRegistryActive(t *testing.T) {
	r := NewRegistry(time.Minute)
	defer r.Stop()

	r.Put(&types.OperationState{OperationID: "op-1"})
	r.Put(&types.OperationState{OperationID: "op-2"})
	r.Complete("op-2")

	assert.Equal(t, []string{"op-1"}, r.Active())
}
