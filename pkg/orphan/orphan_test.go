package orphan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/types"
)

func testDetector(t *testing.T, ttl time.Duration) (*Detector, *directory.Fake) {
	t.Helper()
	fake := directory.NewFake()
	fake.Users["u-1"] = types.User{ID: "u-1", Name: "alice"}
	fake.Groups["g-1"] = types.Group{ID: "g-1", Name: "devs"}
	fake.Assignments["live-user"] = types.Assignment{
		AccountID: "123456789012", PermissionSetARN: "arn:ps/1",
		PrincipalType: types.PrincipalUser, PrincipalID: "u-1",
	}
	fake.Assignments["dead-user"] = types.Assignment{
		AccountID: "123456789012", PermissionSetARN: "arn:ps/1",
		PrincipalType: types.PrincipalUser, PrincipalID: "u-gone",
	}
	fake.Assignments["dead-group"] = types.Assignment{
		AccountID: "123456789012", PermissionSetARN: "arn:ps/2",
		PrincipalType: types.PrincipalGroup, PrincipalID: "g-gone",
	}

	d := New(fake, "test-"+t.Name(), ttl)
	d.cacheDir = t.TempDir()
	return d, fake
}

func TestDetectOrphans(t *testing.T) {
	d, _ := testDetector(t, time.Hour)

	orphaned, err := d.Detect(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, orphaned, 2)
	ids := []string{orphaned[0].Assignment.PrincipalID, orphaned[1].Assignment.PrincipalID}
	assert.ElementsMatch(t, []string{"u-gone", "g-gone"}, ids)
	for _, o := range orphaned {
		assert.Contains(t, o.Reason, "no longer exists")
	}
}

func TestDetectUsesCache(t *testing.T) {
	d, fake := testDetector(t, time.Hour)

	_, err := d.Detect(context.Background(), false)
	require.NoError(t, err)
	listCalls := fake.CallCount("ListAllAssignments")

	_, err = d.Detect(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, listCalls, fake.CallCount("ListAllAssignments"))
}

func TestDetectForceBypassesCache(t *testing.T) {
	d, fake := testDetector(t, time.Hour)

	_, err := d.Detect(context.Background(), false)
	require.NoError(t, err)
	listCalls := fake.CallCount("ListAllAssignments")

	_, err = d.Detect(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, listCalls+1, fake.CallCount("ListAllAssignments"))
}

func TestDetectExpiredCacheIsIgnored(t *testing.T) {
	d, fake := testDetector(t, time.Millisecond)

	_, err := d.Detect(context.Background(), false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = d.Detect(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.CallCount("ListAllAssignments"))
}

func TestInvalidateCache(t *testing.T) {
	d, fake := testDetector(t, time.Hour)

	_, err := d.Detect(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, d.InvalidateCache())
	require.NoError(t, d.InvalidateCache()) // idempotent

	_, err = d.Detect(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.CallCount("ListAllAssignments"))
}
