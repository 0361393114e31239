package domain

// UsageRecorder is the owner storage-usage collaborator owned by the host
// application. The orchestrator overwrites the recorded figure with the
// latest backup's size after every successful CreateBackup.
type UsageRecorder interface {
	GetOwnerStorageUsage(ownerID string) (int64, error)
	SetOwnerStorageUsage(ownerID string, size int64) error
}
