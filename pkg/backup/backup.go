package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudsmiths/idman/pkg/types"
)

// FormatVersion is stamped into backup metadata on creation
const FormatVersion = "1.0"

// Checksum computes the deterministic integrity checksum of a backup's
// record graph. The canonical form sorts every collection by its stable
// key (users by name, groups by name, permission sets by ARN, assignments
// by their 4-tuple) and zeroes the checksum and size fields of the
// metadata before hashing, so that recomputation over a stored backup
// reproduces the stored value.
func Checksum(data *types.BackupData) (string, error) {
	canon := Normalise(data)
	canon.Metadata.Checksum = ""
	canon.Metadata.SizeBytes = 0

	encoded, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("failed to encode backup for checksum: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Normalise returns a copy of data with every collection sorted into
// canonical order. The input is not modified.
func Normalise(data *types.BackupData) *types.BackupData {
	canon := &types.BackupData{
		Metadata:       data.Metadata,
		Users:          append([]types.User(nil), data.Users...),
		Groups:         append([]types.Group(nil), data.Groups...),
		PermissionSets: append([]types.PermissionSet(nil), data.PermissionSets...),
		Assignments:    append([]types.Assignment(nil), data.Assignments...),
		Relationships:  normaliseRelationships(data.Relationships),
	}

	sort.Slice(canon.Users, func(i, j int) bool { return canon.Users[i].Name < canon.Users[j].Name })
	sort.Slice(canon.Groups, func(i, j int) bool { return canon.Groups[i].Name < canon.Groups[j].Name })
	sort.Slice(canon.PermissionSets, func(i, j int) bool { return canon.PermissionSets[i].ARN < canon.PermissionSets[j].ARN })
	sort.Slice(canon.Assignments, func(i, j int) bool { return canon.Assignments[i].Key() < canon.Assignments[j].Key() })
	return canon
}

func normaliseRelationships(rel types.RelationshipMap) types.RelationshipMap {
	return types.RelationshipMap{
		UserGroups:               sortValues(rel.UserGroups),
		GroupMembers:             sortValues(rel.GroupMembers),
		PermissionSetAssignments: sortValues(rel.PermissionSetAssignments),
	}
}

func sortValues(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		vs := append([]string(nil), v...)
		sort.Strings(vs)
		out[k] = vs
	}
	return out
}

// Seal recomputes the checksum and size of data in place, returning the
// checksum. Called by the collector and by import before storage.
func Seal(data *types.BackupData) (string, error) {
	data.Metadata.Counts = types.ResourceCounts{
		Users:          len(data.Users),
		Groups:         len(data.Groups),
		PermissionSets: len(data.PermissionSets),
		Assignments:    len(data.Assignments),
	}

	sum, err := Checksum(data)
	if err != nil {
		return "", err
	}
	data.Metadata.Checksum = sum

	encoded, err := Serialize(data)
	if err != nil {
		return "", err
	}
	data.Metadata.SizeBytes = int64(len(encoded))
	return sum, nil
}

// Verify recomputes the checksum and compares it to the stored value
func Verify(data *types.BackupData) (bool, error) {
	sum, err := Checksum(data)
	if err != nil {
		return false, err
	}
	return sum == data.Metadata.Checksum, nil
}

// Serialize encodes a backup as JSON
func Serialize(data *types.BackupData) ([]byte, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize backup: %w", err)
	}
	return encoded, nil
}

// Deserialize decodes a backup from JSON
func Deserialize(encoded []byte) (*types.BackupData, error) {
	var data types.BackupData
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, fmt.Errorf("failed to deserialize backup: %w", err)
	}
	return &data, nil
}

// BuildRelationships derives the relationship map from the record graph
func BuildRelationships(data *types.BackupData) types.RelationshipMap {
	rel := types.RelationshipMap{
		UserGroups:               make(map[string][]string),
		GroupMembers:             make(map[string][]string),
		PermissionSetAssignments: make(map[string][]string),
	}
	for _, g := range data.Groups {
		for _, uid := range g.MemberIDs {
			rel.GroupMembers[g.ID] = append(rel.GroupMembers[g.ID], uid)
			rel.UserGroups[uid] = append(rel.UserGroups[uid], g.ID)
		}
	}
	for _, a := range data.Assignments {
		rel.PermissionSetAssignments[a.PermissionSetARN] = append(rel.PermissionSetAssignments[a.PermissionSetARN], a.Key())
	}
	return rel
}
