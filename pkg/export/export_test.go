package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/types"
)

func sampleBackup() *types.BackupData {
	return &types.BackupData{
		Metadata: types.BackupMetadata{
			BackupID:          "b-1",
			Timestamp:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			SourceInstanceARN: "arn:aws:sso:::instance/ssoins-1",
			SourceAccount:     "123456789012",
			SourceRegion:      "us-east-1",
			Type:              types.BackupFull,
			Version:           "1.0",
		},
		Users: []types.User{
			{ID: "u-1", Name: "alice", DisplayName: "Alice", Email: "alice@example.com", Active: true},
			{ID: "u-2", Name: "bob", DisplayName: "Bob", Active: false},
		},
		Groups: []types.Group{
			{ID: "g-1", Name: "devs", Description: "developers", MemberIDs: []string{"u-1", "u-2"}},
		},
		PermissionSets: []types.PermissionSet{{
			ARN:             "arn:aws:sso:::permissionSet/ps-1",
			Name:            "DevAccess",
			ManagedPolicies: []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"},
			CustomerManagedPolicies: []types.CustomerManagedPolicy{
				{Name: "custom-policy", Path: "/teams/"},
			},
		}},
		Assignments: []types.Assignment{{
			AccountID:        "123456789012",
			PermissionSetARN: "arn:aws:sso:::permissionSet/ps-1",
			PrincipalType:    types.PrincipalUser,
			PrincipalID:      "u-1",
		}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON, "JSON": FormatJSON,
		"yaml": FormatYAML, "yml": FormatYAML,
		"csv": FormatCSV,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestRoundTripAllFormats(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			src := sampleBackup()
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, src, format, false))

			got, err := Import(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, src.Metadata.BackupID, got.Metadata.BackupID)
			assert.Equal(t, src.Users, got.Users)
			assert.Equal(t, src.Groups, got.Groups)
			assert.Equal(t, src.PermissionSets, got.PermissionSets)
			assert.Equal(t, src.Assignments, got.Assignments)
		})
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	src := sampleBackup()
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, src, FormatJSON, true))
	assert.Equal(t, []byte{0x1f, 0x8b}, buf.Bytes()[:2])

	got, err := Import(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, src.Users, got.Users)
}

func TestCSVEscapingRoundTrip(t *testing.T) {
	src := sampleBackup()
	src.Users = []types.User{{
		ID:          "u-1",
		Name:        `comma, "quoted"`,
		DisplayName: "line\nbreak",
		Email:       "tab\there@example.com",
		GivenName:   `she said "hi, there"`,
	}}
	src.Groups[0].Description = "multi\nline, \"desc\"\twith tab"

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, src, FormatCSV, false))

	got, err := Import(&buf, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, src.Users, got.Users)
	assert.Equal(t, src.Groups[0].Description, got.Groups[0].Description)
}

func TestImportRevalidation(t *testing.T) {
	data := sampleBackup()
	result, err := Revalidate(data, "new-id")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "new-id", data.Metadata.BackupID)
}

func TestRevalidateRejectsIncompleteRecords(t *testing.T) {
	data := sampleBackup()
	data.Users = append(data.Users, types.User{DisplayName: "no id or name"})
	data.Assignments = append(data.Assignments, types.Assignment{AccountID: "123456789012"})

	result, err := Revalidate(data, "new-id")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	// id must not be replaced on a failed validation
	assert.Equal(t, "b-1", data.Metadata.BackupID)
}

func TestImportDetectsPlainAfterCompressedExport(t *testing.T) {
	src := sampleBackup()
	var plain, compressed bytes.Buffer
	require.NoError(t, Export(&plain, src, FormatYAML, false))
	require.NoError(t, Export(&compressed, src, FormatYAML, true))
	assert.NotEqual(t, plain.Bytes()[:2], compressed.Bytes()[:2])

	got, err := Import(&plain, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, src.Users, got.Users)
}
