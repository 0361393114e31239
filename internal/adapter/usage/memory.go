package usage

import "sync"

// Memory is a process-local UsageRecorder. The real collaborator lives in
// the host application's relational layer; this stand-in backs the CLI
// wiring and tests.
type Memory struct {
	mu    sync.RWMutex
	bytes map[string]int64
}

func NewMemory() *Memory {
	return &Memory{bytes: make(map[string]int64)}
}

func (m *Memory) GetOwnerStorageUsage(ownerID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes[ownerID], nil
}

func (m *Memory) SetOwnerStorageUsage(ownerID string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[ownerID] = size
	return nil
}
