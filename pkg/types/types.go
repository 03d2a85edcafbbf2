package types

import (
	"time"
)

// PrincipalType distinguishes users from groups in assignments
type PrincipalType string

const (
	PrincipalUser  PrincipalType = "USER"
	PrincipalGroup PrincipalType = "GROUP"
)

// User represents a directory user
type User struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	DisplayName string            `json:"display_name" yaml:"display_name"`
	Email       string            `json:"email,omitempty" yaml:"email,omitempty"`
	GivenName   string            `json:"given_name,omitempty" yaml:"given_name,omitempty"`
	FamilyName  string            `json:"family_name,omitempty" yaml:"family_name,omitempty"`
	Active      bool              `json:"active" yaml:"active"`
	ExternalIDs map[string]string `json:"external_ids,omitempty" yaml:"external_ids,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Group represents a directory group
type Group struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	MemberIDs   []string  `json:"member_ids,omitempty" yaml:"member_ids,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// CustomerManagedPolicy references a customer-managed policy by name and path
type CustomerManagedPolicy struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// PermissionSet is a named bundle of policies assignable to a principal
type PermissionSet struct {
	ARN                     string                  `json:"arn" yaml:"arn"`
	Name                    string                  `json:"name" yaml:"name"`
	Description             string                  `json:"description,omitempty" yaml:"description,omitempty"`
	SessionDuration         string                  `json:"session_duration,omitempty" yaml:"session_duration,omitempty"`
	RelayState              string                  `json:"relay_state,omitempty" yaml:"relay_state,omitempty"`
	InlinePolicy            string                  `json:"inline_policy,omitempty" yaml:"inline_policy,omitempty"`
	ManagedPolicies         []string                `json:"managed_policies,omitempty" yaml:"managed_policies,omitempty"`
	CustomerManagedPolicies []CustomerManagedPolicy `json:"customer_managed_policies,omitempty" yaml:"customer_managed_policies,omitempty"`
	PermissionsBoundary     string                  `json:"permissions_boundary,omitempty" yaml:"permissions_boundary,omitempty"`
	UpdatedAt               time.Time               `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Assignment binds one principal to one permission set within one account.
// Identity is the 4-tuple; duplicates are idempotent no-ops.
type Assignment struct {
	AccountID        string        `json:"account_id" yaml:"account_id"`
	PermissionSetARN string        `json:"permission_set_arn" yaml:"permission_set_arn"`
	PrincipalType    PrincipalType `json:"principal_type" yaml:"principal_type"`
	PrincipalID      string        `json:"principal_id" yaml:"principal_id"`
}

// Key returns the identity 4-tuple as a stable string
func (a Assignment) Key() string {
	return a.AccountID + "|" + a.PermissionSetARN + "|" + string(a.PrincipalType) + "|" + a.PrincipalID
}

// Account is an organization member account
type Account struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Email  string            `json:"email,omitempty"`
	Status string            `json:"status,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// AssignmentRecord is one row of a bulk-assignment input file, enriched by
// the resolver before execution
type AssignmentRecord struct {
	PrincipalName     string        `json:"principal_name"`
	PermissionSetName string        `json:"permission_set_name"`
	AccountName       string        `json:"account_name"`
	PrincipalType     PrincipalType `json:"principal_type"`
	LineNumber        int           `json:"line_number,omitempty"`

	// Filled in by the resolver
	PrincipalID      string   `json:"principal_id,omitempty"`
	PermissionSetARN string   `json:"permission_set_arn,omitempty"`
	AccountID        string   `json:"account_id,omitempty"`
	Resolved         bool     `json:"resolved"`
	ResolveErrors    []string `json:"resolve_errors,omitempty"`
}

// BulkOperation is the direction of a bulk run
type BulkOperation string

const (
	OperationAssign BulkOperation = "assign"
	OperationRevoke BulkOperation = "revoke"
)

// ItemStatus classifies the outcome of one bulk item
type ItemStatus string

const (
	ItemSucceeded     ItemStatus = "succeeded"
	ItemAlreadyExists ItemStatus = "already_exists"
	ItemAlreadyAbsent ItemStatus = "already_absent"
	ItemFailed        ItemStatus = "failed"
	ItemSkipped       ItemStatus = "skipped"
)

// ItemResult records the outcome and timing of one bulk item
type ItemResult struct {
	Record   AssignmentRecord `json:"record"`
	Status   ItemStatus       `json:"status"`
	Error    string           `json:"error,omitempty"`
	Retries  int              `json:"retries,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// BulkResults aggregates the outcome of a bulk run
type BulkResults struct {
	Operation      BulkOperation `json:"operation"`
	Successful     []ItemResult  `json:"successful"`
	Failed         []ItemResult  `json:"failed"`
	Skipped        []ItemResult  `json:"skipped"`
	TotalProcessed int           `json:"total_processed"`
	Duration       time.Duration `json:"duration"`
}

// BackupType distinguishes full from incremental snapshots
type BackupType string

const (
	BackupFull        BackupType = "FULL"
	BackupIncremental BackupType = "INCREMENTAL"
)

// RetentionPolicy is a keep-N-per-period policy over stored backups
type RetentionPolicy struct {
	KeepDaily   int  `json:"keep_daily" yaml:"keep_daily"`
	KeepWeekly  int  `json:"keep_weekly" yaml:"keep_weekly"`
	KeepMonthly int  `json:"keep_monthly" yaml:"keep_monthly"`
	KeepYearly  int  `json:"keep_yearly" yaml:"keep_yearly"`
	AutoCleanup bool `json:"auto_cleanup" yaml:"auto_cleanup"`
}

// EncryptionInfo records how a stored backup is encrypted at rest
type EncryptionInfo struct {
	Encrypted bool   `json:"encrypted"`
	Algorithm string `json:"algorithm,omitempty"`
	KeyID     string `json:"key_id,omitempty"`
}

// ResourceCounts tallies the resources captured in a backup
type ResourceCounts struct {
	Users          int `json:"users"`
	Groups         int `json:"groups"`
	PermissionSets int `json:"permission_sets"`
	Assignments    int `json:"assignments"`
}

// Total returns the sum over all resource kinds
func (c ResourceCounts) Total() int {
	return c.Users + c.Groups + c.PermissionSets + c.Assignments
}

// BackupMetadata describes a stored backup
type BackupMetadata struct {
	BackupID          string          `json:"backup_id"`
	Timestamp         time.Time       `json:"timestamp"`
	SourceInstanceARN string          `json:"source_instance_arn"`
	SourceAccount     string          `json:"source_account"`
	SourceRegion      string          `json:"source_region"`
	Type              BackupType      `json:"type"`
	Version           string          `json:"version"`
	RetentionPolicy   RetentionPolicy `json:"retention_policy"`
	Encryption        EncryptionInfo  `json:"encryption"`
	Counts            ResourceCounts  `json:"resource_counts"`
	SizeBytes         int64           `json:"size_bytes"`
	Checksum          string          `json:"checksum"`
}

// RelationshipMap captures cross-resource relationships inside a backup
type RelationshipMap struct {
	UserGroups               map[string][]string `json:"user_groups,omitempty"`
	GroupMembers             map[string][]string `json:"group_members,omitempty"`
	PermissionSetAssignments map[string][]string `json:"permission_set_assignments,omitempty"`
}

// BackupData is the full record graph of one backup
type BackupData struct {
	Metadata       BackupMetadata  `json:"metadata"`
	Users          []User          `json:"users"`
	Groups         []Group         `json:"groups"`
	PermissionSets []PermissionSet `json:"permission_sets"`
	Assignments    []Assignment    `json:"assignments"`
	Relationships  RelationshipMap `json:"relationships"`
}

// TemplateMetadata describes a stored template
type TemplateMetadata struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string    `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// TargetSpec selects the accounts a template assignment applies to.
// Exactly one of AccountIDs or AccountTags must be set.
type TargetSpec struct {
	AccountIDs        []string          `json:"account_ids,omitempty" yaml:"account_ids,omitempty"`
	AccountTags       map[string]string `json:"account_tags,omitempty" yaml:"account_tags,omitempty"`
	ExcludeAccountIDs []string          `json:"exclude_account_ids,omitempty" yaml:"exclude_account_ids,omitempty"`
}

// TemplateAssignment is one declarative assignment block inside a template.
// Entities are references of the form "user:name" or "group:name".
type TemplateAssignment struct {
	Entities       []string   `json:"entities" yaml:"entities"`
	PermissionSets []string   `json:"permission_sets" yaml:"permission_sets"`
	Targets        TargetSpec `json:"targets" yaml:"targets"`
}

// Template is a declarative description of many concrete assignments
type Template struct {
	Metadata    TemplateMetadata     `json:"metadata" yaml:"metadata"`
	Assignments []TemplateAssignment `json:"assignments" yaml:"assignments"`
}

// ConflictStrategy controls how restore treats resources that already exist
type ConflictStrategy string

const (
	ConflictOverwrite ConflictStrategy = "OVERWRITE"
	ConflictSkip      ConflictStrategy = "SKIP"
	ConflictMerge     ConflictStrategy = "MERGE"
	ConflictPrompt    ConflictStrategy = "PROMPT"
)

// ResourceKind names one of the four restorable resource kinds
type ResourceKind string

const (
	KindUsers          ResourceKind = "users"
	KindGroups         ResourceKind = "groups"
	KindPermissionSets ResourceKind = "permission-sets"
	KindAssignments    ResourceKind = "assignments"
	KindAll            ResourceKind = "all"
)

// ChangeAction is the kind of mutation recorded in the rollback journal
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
)

// AppliedChange records one mutation performed during a restore
type AppliedChange struct {
	ResourceType ResourceKind `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Action       ChangeAction `json:"action"`
	PriorValue   any          `json:"prior_value,omitempty"`
	NewValue     any          `json:"new_value,omitempty"`
}

// RollbackActionType is the inverse operation for an applied change
type RollbackActionType string

const (
	RollbackDelete       RollbackActionType = "delete"
	RollbackRestorePrior RollbackActionType = "restore-prior"
)

// RollbackAction is one entry of the rollback journal. Prior values are
// concrete typed fields so a journal reloaded from storage decodes back
// into the structs the rollback path needs.
type RollbackAction struct {
	Type               RollbackActionType `json:"type"`
	ResourceType       ResourceKind       `json:"resource_type"`
	ResourceID         string             `json:"resource_id"`
	PriorUser          *User              `json:"prior_user,omitempty"`
	PriorGroup         *Group             `json:"prior_group,omitempty"`
	PriorPermissionSet *PermissionSet     `json:"prior_permission_set,omitempty"`
	Assignment         *Assignment        `json:"assignment,omitempty"`
}

// Checkpoint marks a completed restore phase and the counts it observed
type Checkpoint struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// OperationState tracks one restore operation end to end
type OperationState struct {
	OperationID     string           `json:"operation_id"`
	Type            string           `json:"type"`
	StartTime       time.Time        `json:"start_time"`
	Checkpoints     []Checkpoint     `json:"checkpoints"`
	AppliedChanges  []AppliedChange  `json:"applied_changes"`
	RollbackActions []RollbackAction `json:"rollback_actions"`
	Completed       bool             `json:"completed"`
	Success         bool             `json:"success"`
}

// HasCheckpoint reports whether the named phase checkpoint is present
func (s *OperationState) HasCheckpoint(name string) bool {
	for _, cp := range s.Checkpoints {
		if cp.Name == name {
			return true
		}
	}
	return false
}

// StorageUsage summarises aggregate backup storage consumption
type StorageUsage struct {
	TotalSizeBytes int64            `json:"total_size_bytes"`
	TotalCount     int              `json:"total_count"`
	SizeByPeriod   map[string]int64 `json:"size_by_period"`
	CountByPeriod  map[string]int   `json:"count_by_period"`
	OldestBackup   time.Time        `json:"oldest_backup,omitempty"`
	NewestBackup   time.Time        `json:"newest_backup,omitempty"`
}

// StorageLimit configures usage thresholds for alerting
type StorageLimit struct {
	MaxSizeBytes      int64   `json:"max_size_bytes,omitempty" yaml:"max_size_bytes,omitempty"`
	MaxCount          int     `json:"max_count,omitempty" yaml:"max_count,omitempty"`
	WarningThreshold  float64 `json:"warning_threshold" yaml:"warning_threshold"`
	CriticalThreshold float64 `json:"critical_threshold" yaml:"critical_threshold"`
}

// AlertLevel grades a storage alert
type AlertLevel string

const (
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// StorageAlert is one threshold crossing with a recommended action
type StorageAlert struct {
	Level             AlertLevel `json:"level"`
	Message           string     `json:"message"`
	RecommendedAction string     `json:"recommended_action"`
}

// CrossAccountConfig supplies role assumption details for fleet operations
type CrossAccountConfig struct {
	AccountID  string `json:"account_id" yaml:"account_id"`
	RoleARN    string `json:"role_arn" yaml:"role_arn"`
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// ResourceMappings rewrites source namespaces to target namespaces during restore
type ResourceMappings struct {
	SourceAccount      string            `json:"source_account,omitempty" yaml:"source_account,omitempty"`
	TargetAccount      string            `json:"target_account,omitempty" yaml:"target_account,omitempty"`
	SourceRegion       string            `json:"source_region,omitempty" yaml:"source_region,omitempty"`
	TargetRegion       string            `json:"target_region,omitempty" yaml:"target_region,omitempty"`
	AccountIDMap       map[string]string `json:"account_id_map,omitempty" yaml:"account_id_map,omitempty"`
	PermissionSetNames map[string]string `json:"permission_set_names,omitempty" yaml:"permission_set_names,omitempty"`
}
