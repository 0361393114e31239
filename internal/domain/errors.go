package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceMissing means the owner's database file was absent when a
	// backup was requested.
	ErrSourceMissing = errors.New("source database file does not exist")

	// ErrBackupNotFound means the requested backup does not exist in the
	// owner's namespace.
	ErrBackupNotFound = errors.New("backup not found")
)

// ProvisioningError marks a failure to verify or create the remote bucket.
// CreateBackup keeps its message distinct so operators can tell a
// misconfigured object store from an ordinary failed backup.
type ProvisioningError struct {
	Bucket string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning bucket %q: %v", e.Bucket, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// TransferError wraps an upload or download failure against the remote
// store.
type TransferError struct {
	Op  string
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
