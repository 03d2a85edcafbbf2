package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the idman taxonomy
type Kind string

const (
	KindValidation    Kind = "validation"
	KindParsing       Kind = "parsing"
	KindExecution     Kind = "execution"
	KindPermission    Kind = "permission"
	KindNetwork       Kind = "network"
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
)

// Stable machine-readable codes. Suggestions are keyed by (kind, code).
const (
	CodeMissingField       = "missing_field"
	CodeBadEntityRef       = "bad_entity_reference"
	CodeBadAccountID       = "bad_account_id"
	CodeBadTags            = "bad_tags"
	CodeDuplicate          = "duplicate"
	CodeNotFound           = "not_found"
	CodeBadSyntax          = "bad_syntax"
	CodeUnsupportedFormat  = "unsupported_format"
	CodeEmptyFile          = "empty_file"
	CodeRateLimited        = "rate_limited"
	CodeServiceUnavailable = "service_unavailable"
	CodeInvalidParameters  = "invalid_parameters"
	CodeAssignmentFailed   = "assignment_failed"
	CodeRollbackFailed     = "rollback_failed"
	CodeTimeout            = "timeout"
	CodeAccessDenied       = "access_denied"
	CodeCrossAccountAccess = "cross_account_access"
	CodeConnectionTimeout  = "connection_timeout"
	CodeRequestTimeout     = "request_timeout"
	CodeDNSFailure         = "dns_failure"
	CodeTLSFailure         = "tls_failure"
	CodeMissingProfile     = "missing_profile"
	CodeMissingInstance    = "missing_instance"
	CodeCorruptConfig      = "corrupt_config"
	CodeWriteFailed        = "write_failed"
	CodeDeleteFailed       = "delete_failed"
	CodeListFailed         = "list_failed"
	CodeIntegrity          = "integrity_mismatch"
)

// Error is a structured error carrying a stable code and a recovery suggestion
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s/%s): %v", e.Message, e.Kind, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (%s/%s)", e.Message, e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Suggestion returns the recovery suggestion for this error
func (e *Error) Suggestion() string {
	if s, ok := suggestions[suggestionKey{e.Kind, e.Code}]; ok {
		return s
	}
	return "Check the logs for details and retry the operation"
}

// New creates a structured error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a structured error wrapping a cause
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// AsError extracts a structured error from err, if present
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsKind reports whether err carries the given taxonomy kind
func IsKind(err error, kind Kind) bool {
	if e, ok := AsError(err); ok {
		return e.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a not-found resolution error
func IsNotFound(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Code == CodeNotFound
	}
	return false
}

type suggestionKey struct {
	kind Kind
	code string
}

// Static recovery suggestion table keyed by (kind, code).
var suggestions = map[suggestionKey]string{
	{KindValidation, CodeMissingField}:       "Add the missing required field and rerun",
	{KindValidation, CodeBadEntityRef}:       "Entity references must be 'user:name' or 'group:name'",
	{KindValidation, CodeBadAccountID}:       "Account IDs must be 12-digit numeric strings",
	{KindValidation, CodeBadTags}:            "Tag filters require non-empty keys and values",
	{KindValidation, CodeDuplicate}:          "Remove the duplicate entry",
	{KindValidation, CodeNotFound}:           "Verify names match exactly (case-sensitive)",
	{KindValidation, CodeIntegrity}:          "The data failed its integrity check; re-export from the source",
	{KindParsing, CodeBadSyntax}:             "Fix the file syntax; see the reported line number",
	{KindParsing, CodeUnsupportedFormat}:     "Supported input formats are .csv and .json",
	{KindParsing, CodeEmptyFile}:             "The input file is empty; provide at least one record",
	{KindExecution, CodeRateLimited}:         "The request was throttled; it will be retried automatically",
	{KindExecution, CodeServiceUnavailable}:  "The directory service is unavailable; retry later",
	{KindExecution, CodeInvalidParameters}:   "One or more request parameters were rejected; check the inputs",
	{KindExecution, CodeAssignmentFailed}:    "Inspect the per-item failure detail and rerun with --continue-on-error",
	{KindExecution, CodeRollbackFailed}:      "Manual cleanup may be required; review the rollback errors",
	{KindExecution, CodeTimeout}:             "The operation timed out; increase the per-item timeout or retry",
	{KindPermission, CodeAccessDenied}:       "The caller lacks the required capability; check the attached policies",
	{KindPermission, CodeCrossAccountAccess}: "Verify the cross-account role ARN and external ID",
	{KindNetwork, CodeConnectionTimeout}:     "Check network connectivity to the directory endpoint",
	{KindNetwork, CodeRequestTimeout}:        "The request timed out in transit; retry",
	{KindNetwork, CodeDNSFailure}:            "DNS resolution failed; check the configured endpoint",
	{KindNetwork, CodeTLSFailure}:            "TLS negotiation failed; check certificates and clock skew",
	{KindConfiguration, CodeMissingProfile}:  "Configure the profile or pass --profile with a known name",
	{KindConfiguration, CodeMissingInstance}: "The profile has no instance binding; set instance_arn",
	{KindConfiguration, CodeCorruptConfig}:   "The configuration file is corrupt; fix or regenerate it",
	{KindStorage, CodeWriteFailed}:           "Check disk space and permissions on the storage path",
	{KindStorage, CodeDeleteFailed}:          "The backup could not be deleted; check storage permissions",
	{KindStorage, CodeListFailed}:            "Backup enumeration failed; verify the storage backend is reachable",
	{KindStorage, CodeIntegrity}:             "Stored checksum mismatch; the backup may be corrupt",
}
