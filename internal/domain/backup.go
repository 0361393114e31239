package domain

import "time"

// Mode is the process-wide backend choice, resolved once at startup and
// never re-evaluated per request.
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

// ArchiveEntryName is the name of the single entry inside every archive.
const ArchiveEntryName = "database.db"

// ArchiveContentType is the MIME type uploads are tagged with and the only
// type the remote bucket accepts.
const ArchiveContentType = "application/gzip"

// ArchiveExt is the archive file extension, including the dot.
const ArchiveExt = ".gz"

// BackupRecord describes one stored backup. It is derived from backend
// listing metadata, never persisted on its own.
type BackupRecord struct {
	ID        string
	Name      string
	Size      int64
	CreatedAt time.Time
}

// BackupResult is the uniform outcome of CreateBackup. Failures carry a
// human-readable message instead of an error value so the HTTP layer can
// map them straight to a response.
type BackupResult struct {
	Success bool
	Size    int64
	Message string
}

// ArchiveFilename returns the deterministic name for an archive captured
// at t: backup_<UTC instant without colons or sub-second digits>_GMT.gz.
func ArchiveFilename(t time.Time) string {
	return "backup_" + t.UTC().Format("2006-01-02T150405") + "_GMT" + ArchiveExt
}
