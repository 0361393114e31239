package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSources locates owner databases laid out as <dir>/<ownerID>.db.
type DirSources struct {
	dir string
}

func NewDirSources(dir string) *DirSources {
	return &DirSources{dir: dir}
}

func (d *DirSources) SourcePath(ownerID string) string {
	return filepath.Join(d.dir, ownerID+".db")
}

// Owners lists every owner with a database file in the data directory.
// A missing directory means no owners yet.
func (d *DirSources) Owners() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var owners []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		owners = append(owners, strings.TrimSuffix(name, ".db"))
	}

	return owners, nil
}
