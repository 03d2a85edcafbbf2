package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/cloudsmiths/idman/pkg/backup"
	"github.com/cloudsmiths/idman/pkg/crypto"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/types"
)

var (
	// Bucket names
	bucketBackups    = []byte("backups")
	bucketBackupMeta = []byte("backup_meta")
	bucketTemplates  = []byte("templates")
	bucketOperations = []byte("operations")
)

// BoltStore implements Store using BoltDB. Backup payloads are optionally
// encrypted at rest; metadata stays in the clear so listing never needs the
// key.
type BoltStore struct {
	db        *bolt.DB
	encryptor *crypto.Encryptor
}

// NewBoltStore creates a new BoltDB-backed store. The encryptor may be nil
// for unencrypted storage.
func NewBoltStore(dataDir string, encryptor *crypto.Encryptor) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "idman.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketBackups, bucketBackupMeta, bucketTemplates, bucketOperations}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, encryptor: encryptor}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// StoreBackup seals and persists a backup, minting an id when absent
func (s *BoltStore) StoreBackup(data *types.BackupData) (string, error) {
	if data.Metadata.BackupID == "" {
		data.Metadata.BackupID = uuid.NewString()
	}
	if s.encryptor != nil {
		data.Metadata.Encryption = types.EncryptionInfo{
			Encrypted: true,
			Algorithm: crypto.Algorithm,
			KeyID:     s.encryptor.KeyID(),
		}
	}
	if _, err := backup.Seal(data); err != nil {
		return "", errdefs.Wrap(errdefs.KindStorage, errdefs.CodeWriteFailed, "failed to seal backup", err)
	}

	payload, err := backup.Serialize(data)
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindStorage, errdefs.CodeWriteFailed, "failed to serialize backup", err)
	}

	if s.encryptor != nil {
		payload, err = s.encryptor.Encrypt(payload)
		if err != nil {
			return "", errdefs.Wrap(errdefs.KindStorage, errdefs.CodeWriteFailed, "failed to encrypt backup", err)
		}
	}

	meta, err := json.Marshal(data.Metadata)
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindStorage, errdefs.CodeWriteFailed, "failed to serialize metadata", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBackups).Put([]byte(data.Metadata.BackupID), payload); err != nil {
			return err
		}
		return tx.Bucket(bucketBackupMeta).Put([]byte(data.Metadata.BackupID), meta)
	})
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindStorage, errdefs.CodeWriteFailed, "failed to store backup", err)
	}

	s.updateGauges()
	return data.Metadata.BackupID, nil
}

// RetrieveBackup loads and decodes a backup by id
func (s *BoltStore) RetrieveBackup(backupID string) (*types.BackupData, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBackups).Get([]byte(backupID))
		if data == nil {
			return errdefs.New(errdefs.KindStorage, errdefs.CodeNotFound,
				fmt.Sprintf("backup not found: %s", backupID))
		}
		// Copy out: BoltDB data is only valid during the transaction
		payload = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.encryptor != nil {
		payload, err = s.encryptor.Decrypt(payload)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindStorage, errdefs.CodeIntegrity, "failed to decrypt backup", err)
		}
	}
	return backup.Deserialize(payload)
}

// ListBackups enumerates stored backup metadata, optionally filtered
func (s *BoltStore) ListBackups(filters *ListFilters) ([]types.BackupMetadata, error) {
	var out []types.BackupMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackupMeta).ForEach(func(k, v []byte) error {
			var meta types.BackupMetadata
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			if filters != nil {
				if filters.Type != "" && meta.Type != filters.Type {
					return nil
				}
				if !filters.Since.IsZero() && meta.Timestamp.Before(filters.Since) {
					return nil
				}
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, errdefs.CodeListFailed, "failed to list backups", err)
	}
	return out, nil
}

// DeleteBackup removes a backup, reporting whether it existed
func (s *BoltStore) DeleteBackup(backupID string) (bool, error) {
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(backupID)
		if tx.Bucket(bucketBackups).Get(key) != nil {
			existed = true
		}
		if err := tx.Bucket(bucketBackups).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketBackupMeta).Delete(key)
	})
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindStorage, errdefs.CodeDeleteFailed,
			fmt.Sprintf("failed to delete backup %s", backupID), err)
	}
	s.updateGauges()
	return existed, nil
}

// VerifyIntegrity recomputes the stored backup's checksum
func (s *BoltStore) VerifyIntegrity(backupID string) (*types.ValidationResult, error) {
	data, err := s.RetrieveBackup(backupID)
	if err != nil {
		return nil, err
	}
	result := &types.ValidationResult{Valid: true}
	ok, err := backup.Verify(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		result.AddError(fmt.Sprintf("checksum mismatch for backup %s", backupID))
	}
	return result, nil
}

// GetBackupMetadata returns metadata for one backup, nil when absent
func (s *BoltStore) GetBackupMetadata(backupID string) (*types.BackupMetadata, error) {
	var meta *types.BackupMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBackupMeta).Get([]byte(backupID))
		if data == nil {
			return nil
		}
		meta = &types.BackupMetadata{}
		return json.Unmarshal(data, meta)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// GetStorageInfo reports aggregate storage statistics
func (s *BoltStore) GetStorageInfo() (map[string]any, error) {
	metas, err := s.ListBackups(nil)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, m := range metas {
		totalSize += m.SizeBytes
	}
	return map[string]any{
		"backend":          "boltdb",
		"backup_count":     len(metas),
		"total_size_bytes": totalSize,
		"encrypted":        s.encryptor != nil,
	}, nil
}

func (s *BoltStore) updateGauges() {
	metas, err := s.ListBackups(nil)
	if err != nil {
		return
	}
	var totalSize int64
	for _, m := range metas {
		totalSize += m.SizeBytes
	}
	metrics.StorageBackupsTotal.Set(float64(len(metas)))
	metrics.StorageSizeBytes.Set(float64(totalSize))
}

// Template operations

func (s *BoltStore) SaveTemplate(tpl *types.Template) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(tpl)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTemplates).Put([]byte(tpl.Metadata.Name), data)
	})
}

func (s *BoltStore) GetTemplate(name string) (*types.Template, error) {
	var tpl types.Template
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTemplates).Get([]byte(name))
		if data == nil {
			return errdefs.New(errdefs.KindStorage, errdefs.CodeNotFound,
				fmt.Sprintf("template not found: %s", name))
		}
		return json.Unmarshal(data, &tpl)
	})
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *BoltStore) ListTemplates() ([]types.TemplateMetadata, error) {
	var out []types.TemplateMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).ForEach(func(k, v []byte) error {
			var tpl types.Template
			if err := json.Unmarshal(v, &tpl); err != nil {
				return err
			}
			out = append(out, tpl.Metadata)
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, errdefs.CodeListFailed, "failed to list templates", err)
	}
	return out, nil
}

func (s *BoltStore) DeleteTemplate(name string) (bool, error) {
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(name)
		if tx.Bucket(bucketTemplates).Get(key) != nil {
			existed = true
		}
		return tx.Bucket(bucketTemplates).Delete(key)
	})
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindStorage, errdefs.CodeDeleteFailed,
			fmt.Sprintf("failed to delete template %s", name), err)
	}
	return existed, nil
}

// Operation state operations

func (s *BoltStore) SaveOperation(state *types.OperationState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketOperations).Put([]byte(state.OperationID), data)
	})
}

func (s *BoltStore) GetOperation(operationID string) (*types.OperationState, error) {
	var state *types.OperationState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOperations).Get([]byte(operationID))
		if data == nil {
			return nil
		}
		state = &types.OperationState{}
		return json.Unmarshal(data, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *BoltStore) DeleteOperation(operationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).Delete([]byte(operationID))
	})
}

var _ Store = (*BoltStore)(nil)
