package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// RowError is one structural problem tied to an input line
type RowError struct {
	Line    int
	Field   string
	Message string
}

func (e RowError) String() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Result is the outcome of parsing one input file
type Result struct {
	Records []types.AssignmentRecord
	Errors  []RowError
}

// Valid reports whether the batch passed structural validation
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

// LoadFile parses a bulk-assignment file, dispatching on extension.
// A batch with any structural error is rejected before resolution.
func LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax,
			fmt.Sprintf("failed to open input file %s", path), err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(f)
	case ".json":
		return ParseJSON(f)
	default:
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported input file extension: %s", filepath.Ext(path)))
	}
}

var requiredColumns = []string{"principal_name", "permission_set_name", "account_name"}

// ParseCSV parses the tabular-with-header dialect
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeEmptyFile, "input file is empty")
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to read header row", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeBadSyntax,
				fmt.Sprintf("missing required column: %s", required))
		}
	}

	result := &Result{}
	line := 1
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}

		rec := types.AssignmentRecord{
			PrincipalType: types.PrincipalUser,
			LineNumber:    line,
		}
		rec.PrincipalName = cell(row, cols, "principal_name")
		rec.PermissionSetName = cell(row, cols, "permission_set_name")
		rec.AccountName = cell(row, cols, "account_name")
		if pt := cell(row, cols, "principal_type"); pt != "" {
			rec.PrincipalType = types.PrincipalType(pt)
		}

		result.Errors = append(result.Errors, validateRecord(rec)...)
		result.Records = append(result.Records, rec)
	}

	if len(result.Records) == 0 && len(result.Errors) == 0 {
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeEmptyFile, "input file has no data rows")
	}
	return result, nil
}

func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// jsonFile is the structured-object dialect
type jsonFile struct {
	Assignments []jsonRecord `json:"assignments"`
}

type jsonRecord struct {
	PrincipalName     string `json:"principal_name"`
	PermissionSetName string `json:"permission_set_name"`
	AccountName       string `json:"account_name"`
	PrincipalType     string `json:"principal_type,omitempty"`
}

// ParseJSON parses the structured-object dialect. Entry index stands in for
// the line number in error reports.
func ParseJSON(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to read input", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeEmptyFile, "input file is empty")
	}

	var file jsonFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax, "failed to parse JSON input", err)
	}
	if len(file.Assignments) == 0 {
		return nil, errdefs.New(errdefs.KindParsing, errdefs.CodeEmptyFile, "input file has no assignments")
	}

	result := &Result{}
	for i, jr := range file.Assignments {
		rec := types.AssignmentRecord{
			PrincipalName:     jr.PrincipalName,
			PermissionSetName: jr.PermissionSetName,
			AccountName:       jr.AccountName,
			PrincipalType:     types.PrincipalUser,
			LineNumber:        i + 1,
		}
		if jr.PrincipalType != "" {
			rec.PrincipalType = types.PrincipalType(jr.PrincipalType)
		}
		result.Errors = append(result.Errors, validateRecord(rec)...)
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func validateRecord(rec types.AssignmentRecord) []RowError {
	var errs []RowError
	if rec.PrincipalName == "" {
		errs = append(errs, RowError{Line: rec.LineNumber, Field: "principal_name", Message: "value must not be empty"})
	}
	if rec.PermissionSetName == "" {
		errs = append(errs, RowError{Line: rec.LineNumber, Field: "permission_set_name", Message: "value must not be empty"})
	}
	if rec.AccountName == "" {
		errs = append(errs, RowError{Line: rec.LineNumber, Field: "account_name", Message: "value must not be empty"})
	}
	if rec.PrincipalType != types.PrincipalUser && rec.PrincipalType != types.PrincipalGroup {
		errs = append(errs, RowError{Line: rec.LineNumber, Field: "principal_type",
			Message: fmt.Sprintf("must be USER or GROUP, got %q", rec.PrincipalType)})
	}
	return errs
}
