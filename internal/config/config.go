package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Storage StorageConfig `mapstructure:"storage"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type BackupConfig struct {
	// DataDir holds the per-owner database files (<data_dir>/<owner>.db).
	DataDir string `mapstructure:"data_dir"`

	// LocalPath is the backup root used when no object store is configured.
	LocalPath string `mapstructure:"local_path"`

	// StagingDir holds freshly built archives and restore downloads.
	// Defaults to the system temp directory.
	StagingDir string `mapstructure:"staging_dir"`

	RetentionDays  int    `mapstructure:"retention_days"`
	Schedule       string `mapstructure:"schedule"`
	MaxArchiveSize int64  `mapstructure:"max_archive_size"`
}

// StorageConfig describes the optional remote object store. When Endpoint
// or AccessKey is empty the deployment runs in local mode.
type StorageConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "ledgervault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("backup.staging_dir", os.TempDir())
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.max_archive_size", 50*1024*1024)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "backups")
	v.SetDefault("storage.timeout_seconds", 30)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backup.DataDir == "" {
		return fmt.Errorf("backup.data_dir is required")
	}
	if c.Backup.LocalPath == "" {
		return fmt.Errorf("backup.local_path is required")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative")
	}
	if c.Backup.MaxArchiveSize <= 0 {
		return fmt.Errorf("backup.max_archive_size must be positive")
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}
