package app

import (
	"fmt"
	"net/url"

	"github.com/semmidev/ledgervault/internal/adapter/storage"
	"github.com/semmidev/ledgervault/internal/config"
	"github.com/semmidev/ledgervault/internal/domain"
)

// ResolveBackend picks the storage backend for the lifetime of the
// process. Cloud mode requires an endpoint and an access key, and the
// endpoint must parse as an http(s) URL; anything less means local mode.
//
// When the remote client cannot be constructed the local backend is
// returned together with the configuration error, so the caller logs the
// misconfiguration instead of discovering a silent downgrade in a cloud
// deployment. The returned backend is always usable when err is non-nil
// and the backend is non-nil.
func ResolveBackend(cfg *config.Config) (domain.Backend, domain.Mode, error) {
	local, err := storage.NewLocal(cfg.Backup.LocalPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize local backend: %w", err)
	}

	if !remoteConfigured(&cfg.Storage) {
		return local, domain.ModeLocal, nil
	}

	remote, err := storage.NewS3(&cfg.Storage, cfg.Backup.MaxArchiveSize)
	if err != nil {
		return local, domain.ModeLocal,
			fmt.Errorf("remote storage misconfigured, falling back to local mode: %w", err)
	}

	return remote, domain.ModeCloud, nil
}

func remoteConfigured(s *config.StorageConfig) bool {
	if s.Endpoint == "" || s.AccessKey == "" {
		return false
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
