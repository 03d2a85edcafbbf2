package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Section markers. Each table starts with a one-field marker row, then its
// header row, then data rows. csv quoting makes commas, quotes, newlines,
// and tabs in any field round-trip.
const (
	sectionMetadata       = "#metadata"
	sectionUsers          = "#users"
	sectionGroups         = "#groups"
	sectionPermissionSets = "#permission_sets"
	sectionAssignments    = "#assignments"
)

// listSep joins multi-valued fields inside one csv cell. Identifiers and
// ARNs never contain it.
const listSep = ";"

var (
	userHeader  = []string{"id", "name", "display_name", "email", "given_name", "family_name", "active", "updated_at"}
	groupHeader = []string{"id", "name", "description", "member_ids", "updated_at"}
	psHeader    = []string{"arn", "name", "description", "session_duration", "relay_state", "inline_policy",
		"managed_policies", "customer_managed_policies", "permissions_boundary", "updated_at"}
	assignmentHeader = []string{"account_id", "permission_set_arn", "principal_type", "principal_id"}
)

func exportCSV(w io.Writer, data *types.BackupData) error {
	cw := csv.NewWriter(w)

	writeRow := func(fields ...string) { cw.Write(fields) }

	writeRow(sectionMetadata)
	writeRow("key", "value")
	writeRow("backup_id", data.Metadata.BackupID)
	writeRow("timestamp", data.Metadata.Timestamp.Format(time.RFC3339Nano))
	writeRow("source_instance_arn", data.Metadata.SourceInstanceARN)
	writeRow("source_account", data.Metadata.SourceAccount)
	writeRow("source_region", data.Metadata.SourceRegion)
	writeRow("type", string(data.Metadata.Type))
	writeRow("version", data.Metadata.Version)

	writeRow(sectionUsers)
	writeRow(userHeader...)
	for _, u := range data.Users {
		writeRow(u.ID, u.Name, u.DisplayName, u.Email, u.GivenName, u.FamilyName,
			strconv.FormatBool(u.Active), formatTime(u.UpdatedAt))
	}

	writeRow(sectionGroups)
	writeRow(groupHeader...)
	for _, g := range data.Groups {
		writeRow(g.ID, g.Name, g.Description, strings.Join(g.MemberIDs, listSep), formatTime(g.UpdatedAt))
	}

	writeRow(sectionPermissionSets)
	writeRow(psHeader...)
	for _, ps := range data.PermissionSets {
		writeRow(ps.ARN, ps.Name, ps.Description, ps.SessionDuration, ps.RelayState, ps.InlinePolicy,
			strings.Join(ps.ManagedPolicies, listSep), formatPolicies(ps.CustomerManagedPolicies),
			ps.PermissionsBoundary, formatTime(ps.UpdatedAt))
	}

	writeRow(sectionAssignments)
	writeRow(assignmentHeader...)
	for _, a := range data.Assignments {
		writeRow(a.AccountID, a.PermissionSetARN, string(a.PrincipalType), a.PrincipalID)
	}

	cw.Flush()
	return cw.Error()
}

func importCSV(r io.Reader) (*types.BackupData, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	data := &types.BackupData{}
	section := ""
	expectHeader := false

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to read csv backup", err)
		}
		if len(rec) == 1 && strings.HasPrefix(rec[0], "#") {
			section = rec[0]
			expectHeader = section != sectionMetadata
			continue
		}
		if expectHeader {
			expectHeader = false
			continue
		}

		switch section {
		case sectionMetadata:
			if len(rec) != 2 {
				return nil, badRow(section, rec)
			}
			applyMetadata(&data.Metadata, rec[0], rec[1])
		case sectionUsers:
			if len(rec) != len(userHeader) {
				return nil, badRow(section, rec)
			}
			active, _ := strconv.ParseBool(rec[6])
			data.Users = append(data.Users, types.User{
				ID: rec[0], Name: rec[1], DisplayName: rec[2], Email: rec[3],
				GivenName: rec[4], FamilyName: rec[5], Active: active, UpdatedAt: parseTime(rec[7]),
			})
		case sectionGroups:
			if len(rec) != len(groupHeader) {
				return nil, badRow(section, rec)
			}
			data.Groups = append(data.Groups, types.Group{
				ID: rec[0], Name: rec[1], Description: rec[2],
				MemberIDs: splitList(rec[3]), UpdatedAt: parseTime(rec[4]),
			})
		case sectionPermissionSets:
			if len(rec) != len(psHeader) {
				return nil, badRow(section, rec)
			}
			data.PermissionSets = append(data.PermissionSets, types.PermissionSet{
				ARN: rec[0], Name: rec[1], Description: rec[2], SessionDuration: rec[3],
				RelayState: rec[4], InlinePolicy: rec[5],
				ManagedPolicies:         splitList(rec[6]),
				CustomerManagedPolicies: parsePolicies(rec[7]),
				PermissionsBoundary:     rec[8],
				UpdatedAt:               parseTime(rec[9]),
			})
		case sectionAssignments:
			if len(rec) != len(assignmentHeader) {
				return nil, badRow(section, rec)
			}
			data.Assignments = append(data.Assignments, types.Assignment{
				AccountID:        rec[0],
				PermissionSetARN: rec[1],
				PrincipalType:    types.PrincipalType(rec[2]),
				PrincipalID:      rec[3],
			})
		default:
			return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeBadSyntax,
				fmt.Sprintf("csv row outside any section: %v", rec))
		}
	}
	return data, nil
}

func badRow(section string, rec []string) error {
	return errdefs.New(errdefs.KindParsing, errdefs.CodeBadSyntax,
		fmt.Sprintf("malformed row in %s section: %d fields", section, len(rec)))
}

func applyMetadata(m *types.BackupMetadata, key, value string) {
	switch key {
	case "backup_id":
		m.BackupID = value
	case "timestamp":
		m.Timestamp = parseTime(value)
	case "source_instance_arn":
		m.SourceInstanceARN = value
	case "source_account":
		m.SourceAccount = value
	case "source_region":
		m.SourceRegion = value
	case "type":
		m.Type = types.BackupType(value)
	case "version":
		m.Version = value
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func formatPolicies(policies []types.CustomerManagedPolicy) string {
	parts := make([]string, len(policies))
	for i, p := range policies {
		parts[i] = p.Name + "|" + p.Path
	}
	return strings.Join(parts, listSep)
}

func parsePolicies(s string) []types.CustomerManagedPolicy {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSep)
	out := make([]types.CustomerManagedPolicy, 0, len(parts))
	for _, p := range parts {
		name, path, _ := strings.Cut(p, "|")
		out = append(out, types.CustomerManagedPolicy{Name: name, Path: path})
	}
	return out
}
