package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/types"
)

func sampleBackup() *types.BackupData {
	data := &types.BackupData{
		Metadata: types.BackupMetadata{
			BackupID:          "b-1",
			Timestamp:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			SourceInstanceARN: "arn:aws:sso:::instance/ssoins-1",
			SourceAccount:     "123456789012",
			SourceRegion:      "us-east-1",
			Type:              types.BackupFull,
			Version:           FormatVersion,
		},
		Users: []types.User{
			{ID: "u-2", Name: "bob", DisplayName: "Bob"},
			{ID: "u-1", Name: "alice", DisplayName: "Alice", Email: "alice@example.com"},
		},
		Groups: []types.Group{
			{ID: "g-1", Name: "devs", MemberIDs: []string{"u-2", "u-1"}},
		},
		PermissionSets: []types.PermissionSet{
			{ARN: "arn:ps/ReadOnly", Name: "ReadOnly", ManagedPolicies: []string{"arn:policy/ReadOnlyAccess"}},
		},
		Assignments: []types.Assignment{
			{AccountID: "123456789012", PermissionSetARN: "arn:ps/ReadOnly", PrincipalType: types.PrincipalUser, PrincipalID: "u-1"},
		},
	}
	data.Relationships = BuildRelationships(data)
	return data
}

func TestChecksumDeterministic(t *testing.T) {
	data := sampleBackup()
	sum1, err := Checksum(data)
	require.NoError(t, err)

	// Shuffled input produces the same checksum
	data.Users[0], data.Users[1] = data.Users[1], data.Users[0]
	sum2, err := Checksum(data)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)
}

func TestChecksumSensitiveToContent(t *testing.T) {
	data := sampleBackup()
	sum1, err := Checksum(data)
	require.NoError(t, err)

	data.Users[0].Email = "changed@example.com"
	sum2, err := Checksum(data)
	require.NoError(t, err)
	assert.NotEqual(t, sum1, sum2)
}

func TestSealAndVerify(t *testing.T) {
	data := sampleBackup()
	sum, err := Seal(data)
	require.NoError(t, err)
	assert.Equal(t, sum, data.Metadata.Checksum)
	assert.Equal(t, 2, data.Metadata.Counts.Users)
	assert.Greater(t, data.Metadata.SizeBytes, int64(0))

	ok, err := Verify(data)
	require.NoError(t, err)
	assert.True(t, ok)

	data.Groups[0].Description = "tampered"
	ok, err = Verify(data)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	data := sampleBackup()
	_, err := Seal(data)
	require.NoError(t, err)

	encoded, err := Serialize(data)
	require.NoError(t, err)
	decoded, err := Deserialize(encoded)
	require.NoError(t, err)

	assert.Equal(t, data.Metadata.BackupID, decoded.Metadata.BackupID)
	require.Len(t, decoded.Users, 2)
	assert.Equal(t, "bob", decoded.Users[0].Name)
	assert.Equal(t, "alice", decoded.Users[1].Name)
	assert.Equal(t, data.Groups[0].Name, decoded.Groups[0].Name)
	assert.Equal(t, data.PermissionSets[0].Name, decoded.PermissionSets[0].Name)
	assert.Equal(t, data.Assignments[0].Key(), decoded.Assignments[0].Key())
	assert.Equal(t, data.Relationships.UserGroups, decoded.Relationships.UserGroups)

	ok, err := Verify(decoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildRelationships(t *testing.T) {
	data := sampleBackup()
	rel := BuildRelationships(data)

	assert.ElementsMatch(t, []string{"u-1", "u-2"}, rel.GroupMembers["g-1"])
	assert.Equal(t, []string{"g-1"}, rel.UserGroups["u-1"])
	assert.Len(t, rel.PermissionSetAssignments["arn:ps/ReadOnly"], 1)
}
