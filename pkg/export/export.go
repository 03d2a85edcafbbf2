package export

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Format names an interchange dialect
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat normalises a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", errdefs.New(errdefs.KindParsing, errdefs.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported export format %q (expected json, yaml, or csv)", s))
	}
}

// Export writes the backup in the chosen dialect, optionally gzip
// compressed. Resources are written one at a time so export never holds a
// second copy of the graph.
func Export(w io.Writer, data *types.BackupData, format Format, compress bool) error {
	if compress {
		gz := gzip.NewWriter(w)
		if err := export(gz, data, format); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
	return export(w, data, format)
}

func export(w io.Writer, data *types.BackupData, format Format) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(data); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case FormatCSV:
		return exportCSV(w, data)
	default:
		return errdefs.New(errdefs.KindParsing, errdefs.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported export format %q", format))
	}
}

// gzip magic bytes
var gzipMagic = []byte{0x1f, 0x8b}

// Import reads a backup in the given dialect, transparently decompressing
// gzip input. The result is validated and reseal-ready; the caller mints
// the new backup id via Revalidate.
func Import(r io.Reader, format Format) (*types.BackupData, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err == nil && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to open gzip stream", err)
		}
		defer gz.Close()
		return importPlain(gz, format)
	}
	return importPlain(br, format)
}

func importPlain(r io.Reader, format Format) (*types.BackupData, error) {
	var data types.BackupData
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to parse JSON backup", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&data); err != nil {
			return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to parse YAML backup", err)
		}
	case FormatCSV:
		parsed, err := importCSV(r)
		if err != nil {
			return nil, err
		}
		data = *parsed
	default:
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported import format %q", format))
	}
	return &data, nil
}

// exportJSON streams the graph: metadata first, then each collection
// element by element.
func exportJSON(w io.Writer, data *types.BackupData) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	bw.WriteString(`{"metadata":`)
	if err := enc.Encode(data.Metadata); err != nil {
		return err
	}
	if err := encodeList(bw, enc, "users", data.Users); err != nil {
		return err
	}
	if err := encodeList(bw, enc, "groups", data.Groups); err != nil {
		return err
	}
	if err := encodeList(bw, enc, "permission_sets", data.PermissionSets); err != nil {
		return err
	}
	if err := encodeList(bw, enc, "assignments", data.Assignments); err != nil {
		return err
	}
	bw.WriteString(`,"relationships":`)
	if err := enc.Encode(data.Relationships); err != nil {
		return err
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func encodeList[T any](bw *bufio.Writer, enc *json.Encoder, name string, items []T) error {
	bw.WriteString(`,"` + name + `":[`)
	for i, item := range items {
		if i > 0 {
			bw.WriteByte(',')
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	bw.WriteByte(']')
	return nil
}

// Revalidate checks an imported graph and prepares it for storage: every
// record must carry its minimum fields, and the import always gets a fresh
// backup id so it can never collide with the export's source.
func Revalidate(data *types.BackupData, newBackupID string) (*types.ValidationResult, error) {
	result := &types.ValidationResult{Valid: true}

	if data.Metadata.Timestamp.IsZero() {
		result.AddError("metadata is missing a timestamp")
	}
	for i, u := range data.Users {
		if u.ID == "" || u.Name == "" {
			result.AddError(fmt.Sprintf("user %d is missing id or name", i))
		}
	}
	for i, g := range data.Groups {
		if g.ID == "" || g.Name == "" {
			result.AddError(fmt.Sprintf("group %d is missing id or name", i))
		}
	}
	for i, ps := range data.PermissionSets {
		if ps.ARN == "" || ps.Name == "" {
			result.AddError(fmt.Sprintf("permission set %d is missing arn or name", i))
		}
	}
	for i, a := range data.Assignments {
		if a.AccountID == "" || a.PermissionSetARN == "" || a.PrincipalID == "" ||
			(a.PrincipalType != types.PrincipalUser && a.PrincipalType != types.PrincipalGroup) {
			result.AddError(fmt.Sprintf("assignment %d is missing one of its identity fields", i))
		}
	}

	if result.Valid {
		data.Metadata.BackupID = newBackupID
	}
	return result, nil
}
