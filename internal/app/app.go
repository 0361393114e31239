package app

import (
	"context"
	"fmt"

	"github.com/semmidev/ledgervault/internal/adapter/archive"
	"github.com/semmidev/ledgervault/internal/adapter/notify"
	"github.com/semmidev/ledgervault/internal/config"
	"github.com/semmidev/ledgervault/internal/domain"
	"github.com/semmidev/ledgervault/internal/infrastructure/logger"
	"github.com/semmidev/ledgervault/internal/infrastructure/scheduler"
	"github.com/semmidev/ledgervault/internal/usecase"
)

// App wires the backup subsystem together: one backend resolved at
// startup, one orchestrator shared by every owner, and the scheduled
// jobs around them.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	sources   *usecase.DirSources
	backupUC  *usecase.Backup
	cleanupUC *usecase.Cleanup
	mode      domain.Mode
}

// New builds the application. The usage-accounting collaborator is a root
// dependency owned by the host application and injected here.
func New(cfg *config.Config, usageRecorder domain.UsageRecorder) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	backend, mode, err := ResolveBackend(cfg)
	if err != nil {
		if backend == nil {
			return nil, err
		}
		// The process still runs, but an operator expecting cloud mode
		// needs to see this.
		log.Errorf("%v", err)
	}
	log.Infof("Storage mode: %s", mode)

	var notifier usecase.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize telegram notifier: %v", err)
		} else {
			notifier = tg
			log.Infof("Telegram notifications enabled")
		}
	}

	sources := usecase.NewDirSources(cfg.Backup.DataDir)

	backupUC := usecase.NewBackup(
		backend,
		mode,
		archive.NewGzip(),
		sources,
		usageRecorder,
		notifier,
		nil,
		log,
		cfg.Backup.StagingDir,
	)

	cleanupUC := usecase.NewCleanup(backend, sources, log, cfg.Backup.RetentionDays)

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(log),
		sources:   sources,
		backupUC:  backupUC,
		cleanupUC: cleanupUC,
		mode:      mode,
	}, nil
}

// Backups exposes the orchestrator to the HTTP layer.
func (a *App) Backups() *usecase.Backup {
	return a.backupUC
}

func (a *App) Run(ctx context.Context) error {
	if spec := a.config.Backup.Schedule; spec != "" {
		a.logger.Infof("Scheduling automatic backups: %s", spec)
		if err := a.scheduler.AddJob(spec, a.backupAllOwners); err != nil {
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
	}

	cleanupSchedule := "0 0 3 * * *"
	a.logger.Infof("Scheduling cleanup: %s", cleanupSchedule)
	if err := a.scheduler.AddJob(cleanupSchedule, a.cleanupUC.Execute); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started, mode: %s", a.mode)

	<-ctx.Done()
	return nil
}

// backupAllOwners snapshots every owner found in the data directory.
// Per-owner failures are already converted into results by the
// orchestrator; they only need logging here.
func (a *App) backupAllOwners(ctx context.Context) error {
	owners, err := a.sources.Owners()
	if err != nil {
		return fmt.Errorf("enumerate owners: %w", err)
	}

	for _, ownerID := range owners {
		result := a.backupUC.CreateBackup(ctx, ownerID)
		if !result.Success {
			a.logger.Errorf("[%s] Scheduled backup failed: %s", ownerID, result.Message)
		}
	}
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}
