package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/types"
)

func populatedFake(t *testing.T) *directory.Fake {
	t.Helper()
	fake := directory.NewFake()
	fake.Instances = []directory.Instance{{
		ARN:             "arn:aws:sso:::instance/ssoins-1",
		IdentityStoreID: "d-1234567890",
		AccountID:       "123456789012",
		Region:          "us-east-1",
	}}
	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice", UpdatedAt: old}
	fake.Users["u-2"] = types.User{ID: "u-2", Name: "bob", UpdatedAt: recent}
	fake.Groups["g-1"] = types.Group{ID: "g-1", Name: "devs", MemberIDs: []string{"u-1", "u-2"}, UpdatedAt: old}
	fake.PermissionSets["arn:ps/DevAccess"] = types.PermissionSet{ARN: "arn:ps/DevAccess", Name: "DevAccess", UpdatedAt: recent}
	fake.Assignments["a"] = types.Assignment{
		AccountID: "123456789012", PermissionSetARN: "arn:ps/DevAccess",
		PrincipalType: types.PrincipalUser, PrincipalID: "u-1",
	}
	return fake
}

func TestCollectFull(t *testing.T) {
	fake := populatedFake(t)
	data, err := New(fake).Collect(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, types.BackupFull, data.Metadata.Type)
	assert.Equal(t, "arn:aws:sso:::instance/ssoins-1", data.Metadata.SourceInstanceARN)
	assert.Equal(t, "123456789012", data.Metadata.SourceAccount)
	assert.Len(t, data.Users, 2)
	assert.Len(t, data.Groups, 1)
	assert.Len(t, data.PermissionSets, 1)
	assert.Len(t, data.Assignments, 1)
	assert.Equal(t, []string{"g-1"}, data.Relationships.UserGroups["u-1"])
}

func TestCollectIncremental(t *testing.T) {
	fake := populatedFake(t)
	data, err := New(fake).Collect(context.Background(), Options{
		Type:  types.BackupIncremental,
		Since: time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	require.Len(t, data.Users, 1)
	assert.Equal(t, "bob", data.Users[0].Name)
	assert.Empty(t, data.Groups)
	assert.Len(t, data.PermissionSets, 1)
	// Assignments carry no timestamp; always collected in full
	assert.Len(t, data.Assignments, 1)
}

func TestCollectListFailure(t *testing.T) {
	fake := populatedFake(t)
	fake.FailNext("ListUsers", errors.New("throttled"))
	_, err := New(fake).Collect(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list users")
}

func TestValidateConnection(t *testing.T) {
	fake := populatedFake(t)
	status, err := New(fake).ValidateConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, "d-1234567890", status.IdentityStoreID)
	assert.Empty(t, status.MissingCapabilities)
}

func TestValidateConnectionMissingCapability(t *testing.T) {
	fake := populatedFake(t)
	fake.FailNext("ListPermissionSets", errors.New("access denied"))
	status, err := New(fake).ValidateConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, []string{"list-permission-sets"}, status.MissingCapabilities)
}

type fakeFactory struct {
	clients map[string]*directory.Fake
	err     error
}

func (f *fakeFactory) ClientFor(ctx context.Context, cfg types.CrossAccountConfig) (directory.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.clients[cfg.AccountID], nil
}

func TestCollectCrossAccount(t *testing.T) {
	a := populatedFake(t)
	b := directory.NewFake()
	b.Instances = []directory.Instance{{ARN: "arn:aws:sso:::instance/ssoins-2", AccountID: "234567890123", Region: "eu-west-1"}}
	b.Users["u-9"] = types.User{ID: "u-9", Name: "carol"}

	factory := &fakeFactory{clients: map[string]*directory.Fake{
		"123456789012": a,
		"234567890123": b,
	}}
	configs := []types.CrossAccountConfig{
		{AccountID: "123456789012", RoleARN: "arn:aws:iam::123456789012:role/IdmanRead"},
		{AccountID: "234567890123", RoleARN: "arn:aws:iam::234567890123:role/IdmanRead"},
	}

	results, failures := CollectCrossAccount(context.Background(), factory, configs, Options{})
	assert.Empty(t, failures)
	require.Len(t, results, 2)
	assert.Len(t, results["123456789012"].Users, 2)
	assert.Len(t, results["234567890123"].Users, 1)
}

func TestCollectCrossAccountPartialFailure(t *testing.T) {
	a := populatedFake(t)
	b := directory.NewFake()
	b.FailNext("ListInstances", errors.New("role assumption denied"))

	factory := &fakeFactory{clients: map[string]*directory.Fake{
		"123456789012": a,
		"234567890123": b,
	}}
	configs := []types.CrossAccountConfig{
		{AccountID: "123456789012", RoleARN: "r1"},
		{AccountID: "234567890123", RoleARN: "r2"},
	}

	results, failures := CollectCrossAccount(context.Background(), factory, configs, Options{})
	assert.Len(t, results, 1)
	require.Len(t, failures, 1)
	assert.Error(t, failures["234567890123"])
}
