package restore

import (
	"strings"

	"github.com/cloudsmiths/idman/pkg/types"
)

// ApplyMappings builds a copy of the backup with source namespaces
// rewritten to the target. Each field is copied explicitly; the original
// is never mutated.
func ApplyMappings(data *types.BackupData, m *types.ResourceMappings) *types.BackupData {
	out := &types.BackupData{
		Metadata:      data.Metadata,
		Users:         append([]types.User(nil), data.Users...),
		Groups:        append([]types.Group(nil), data.Groups...),
		Relationships: data.Relationships,
	}

	out.PermissionSets = make([]types.PermissionSet, len(data.PermissionSets))
	for i, ps := range data.PermissionSets {
		mapped := ps
		mapped.ARN = mapARN(ps.ARN, m)
		if newName, ok := m.PermissionSetNames[ps.Name]; ok {
			mapped.Name = newName
		}
		out.PermissionSets[i] = mapped
	}

	out.Assignments = make([]types.Assignment, len(data.Assignments))
	for i, a := range data.Assignments {
		mapped := a
		mapped.PermissionSetARN = mapARN(a.PermissionSetARN, m)
		mapped.AccountID = mapAccountID(a.AccountID, m)
		out.Assignments[i] = mapped
	}
	return out
}

func mapAccountID(id string, m *types.ResourceMappings) string {
	if mapped, ok := m.AccountIDMap[id]; ok {
		return mapped
	}
	if m.SourceAccount != "" && id == m.SourceAccount && m.TargetAccount != "" {
		return m.TargetAccount
	}
	return id
}

// mapARN rewrites the account and region segments of an ARN. ARN layout is
// arn:partition:service:region:account:resource.
func mapARN(arn string, m *types.ResourceMappings) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 {
		return arn
	}
	if m.SourceRegion != "" && parts[3] == m.SourceRegion && m.TargetRegion != "" {
		parts[3] = m.TargetRegion
	}
	parts[4] = mapAccountID(parts[4], m)
	return strings.Join(parts, ":")
}
