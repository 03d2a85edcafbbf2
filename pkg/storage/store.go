package storage

import (
	"time"

	"github.com/cloudsmiths/idman/pkg/types"
)

// ListFilters narrows backup enumeration
type ListFilters struct {
	Type  types.BackupType
	Since time.Time
}

// Store defines the interface for backup, template, and operation-state
// persistence. The Backup aggregate is exclusively owned by the store while
// at rest; a retrieved instance is owned by its caller for the duration of
// the operation.
type Store interface {
	// Backups
	StoreBackup(data *types.BackupData) (string, error)
	RetrieveBackup(backupID string) (*types.BackupData, error)
	ListBackups(filters *ListFilters) ([]types.BackupMetadata, error)
	DeleteBackup(backupID string) (bool, error)
	VerifyIntegrity(backupID string) (*types.ValidationResult, error)
	GetBackupMetadata(backupID string) (*types.BackupMetadata, error)
	GetStorageInfo() (map[string]any, error)

	// Templates
	SaveTemplate(tpl *types.Template) error
	GetTemplate(name string) (*types.Template, error)
	ListTemplates() ([]types.TemplateMetadata, error)
	DeleteTemplate(name string) (bool, error)

	// Operation state (restore checkpoint recovery)
	SaveOperation(state *types.OperationState) error
	GetOperation(operationID string) (*types.OperationState, error)
	DeleteOperation(operationID string) error

	// Utility
	Close() error
}
