package domain

import "context"

// Backend is the storage role the orchestrator dispatches to. Exactly one
// implementation (cloud or local) is active per process. Every operation
// is scoped to an owner; implementations must never let one owner read or
// enumerate another owner's archives.
type Backend interface {
	// Put persists the staged archive under the owner's namespace and
	// consumes the staging file on success. It returns the stored name
	// and the archive size in bytes.
	Put(ctx context.Context, ownerID, archivePath string) (storedID string, size int64, err error)

	// List returns the owner's backups sorted by creation time descending.
	// An owner with no backups yields an empty slice, not an error.
	List(ctx context.Context, ownerID string) ([]BackupRecord, error)

	// Get makes the stored archive available as a local file. The cleanup
	// func removes any temporary copy and must be called by the caller
	// regardless of outcome.
	Get(ctx context.Context, ownerID, storedID string) (localPath string, cleanup func(), err error)

	// Delete removes a stored archive from the owner's namespace.
	Delete(ctx context.Context, ownerID, storedID string) error
}

// Archiver builds and unpacks single-entry compressed archives.
type Archiver interface {
	Build(sourcePath, destPath string) error
	Extract(sourcePath, destPath string) error
}
