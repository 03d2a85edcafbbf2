package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

func seededFake() *directory.Fake {
	fake := directory.NewFake()
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", DisplayName: "Alice"}
	fake.Groups["g-1"] = types.Group{ID: "g-1", Name: "devs"}
	fake.PermissionSets["arn:ps/ReadOnlyAccess"] = types.PermissionSet{ARN: "arn:ps/ReadOnlyAccess", Name: "ReadOnlyAccess"}
	fake.Accounts["123456789012"] = types.Account{ID: "123456789012", Name: "Prod"}
	return fake
}

func TestResolvePrincipalMemoised(t *testing.T) {
	fake := seededFake()
	r := New(fake)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := r.ResolvePrincipal(ctx, "alice", types.PrincipalUser)
		require.NoError(t, err)
		assert.Equal(t, "u-1", id)
	}

	// At most one directory call for the whole sequence
	assert.Equal(t, 1, fake.CallCount("ListUsers"))
}

func TestNegativeLookupCached(t *testing.T) {
	fake := seededFake()
	r := New(fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.ResolvePrincipal(ctx, "bob", types.PrincipalUser)
		require.Error(t, err)
		assert.True(t, errdefs.IsNotFound(err))
	}

	assert.Equal(t, 1, fake.CallCount("ListUsers"))
}

func TestResolveCaseSensitive(t *testing.T) {
	fake := seededFake()
	r := New(fake)

	_, err := r.ResolvePrincipal(context.Background(), "Alice", types.PrincipalUser)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestResolveRecord(t *testing.T) {
	fake := seededFake()
	r := New(fake)
	ctx := context.Background()

	rec := types.AssignmentRecord{
		PrincipalName:     "alice",
		PermissionSetName: "ReadOnlyAccess",
		AccountName:       "Prod",
		PrincipalType:     types.PrincipalUser,
	}
	r.ResolveRecord(ctx, &rec)

	assert.True(t, rec.Resolved)
	assert.Equal(t, "u-1", rec.PrincipalID)
	assert.Equal(t, "arn:ps/ReadOnlyAccess", rec.PermissionSetARN)
	assert.Equal(t, "123456789012", rec.AccountID)
}

func TestResolveRecordCollectsErrors(t *testing.T) {
	fake := seededFake()
	r := New(fake)
	ctx := context.Background()

	rec := types.AssignmentRecord{
		PrincipalName:     "bob",
		PermissionSetName: "ReadOnlyAccess",
		AccountName:       "Nope",
		PrincipalType:     types.PrincipalUser,
	}
	r.ResolveRecord(ctx, &rec)

	assert.False(t, rec.Resolved)
	assert.Len(t, rec.ResolveErrors, 2)
	assert.Contains(t, rec.ResolveErrors[0], "bob")
	assert.Contains(t, rec.ResolveErrors[0], "case-sensitive")
}

func TestWarmCache(t *testing.T) {
	fake := seededFake()
	r := New(fake)
	ctx := context.Background()

	records := []types.AssignmentRecord{
		{PrincipalName: "alice", PermissionSetName: "ReadOnlyAccess", AccountName: "Prod", PrincipalType: types.PrincipalUser},
		{PrincipalName: "devs", PermissionSetName: "ReadOnlyAccess", AccountName: "Prod", PrincipalType: types.PrincipalGroup},
	}
	require.NoError(t, r.WarmCache(ctx, records))

	for i := range records {
		r.ResolveRecord(ctx, &records[i])
		assert.True(t, records[i].Resolved)
	}

	assert.Equal(t, 1, fake.CallCount("ListUsers"))
	assert.Equal(t, 1, fake.CallCount("ListGroups"))
	assert.Equal(t, 1, fake.CallCount("ListPermissionSets"))
	assert.Equal(t, 1, fake.CallCount("ListAccounts"))
}
