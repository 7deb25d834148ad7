// Package config provides Viper-based configuration for the moodlog CLI.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Archive drivers.
const (
	ArchiveNone = ""
	ArchiveFile = "file"
	ArchiveS3   = "s3"
	ArchiveGCS  = "gcs"
)

// Config represents the complete CLI configuration.
type Config struct {
	User       string        `mapstructure:"user"`
	Location   string        `mapstructure:"location"`
	WindowSize int           `mapstructure:"window_size"`
	Store      StoreConfig   `mapstructure:"store"`
	Archive    ArchiveConfig `mapstructure:"archive"`
	Profile    ProfileConfig `mapstructure:"profile"`
	Telemetry  TelemetryConf `mapstructure:"telemetry"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Output     OutputConfig  `mapstructure:"output"`
}

// StoreConfig selects where records and buckets live.
type StoreConfig struct {
	Driver       string        `mapstructure:"driver"` // file, postgres or mongo
	Dir          string        `mapstructure:"dir"`    // file driver: one snapshot per user
	DSN          string        `mapstructure:"dsn"`
	URI          string        `mapstructure:"uri"`
	Database     string        `mapstructure:"database"`
	Transactions bool          `mapstructure:"transactions"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig selects where backups are uploaded. Key is a hex encoded
// 32-byte key sealing archived snapshots. PathStyle is for MinIO and
// similar S3 endpoints.
type ArchiveConfig struct {
	Driver          string        `mapstructure:"driver"`
	Dir             string        `mapstructure:"dir"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	PathStyle       bool          `mapstructure:"path_style"`
	RoleARN         string        `mapstructure:"role_arn"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Retention       time.Duration `mapstructure:"retention"`
	Key             string        `mapstructure:"key"`
}

// ProfileConfig selects the profile store. Without a Redis address,
// profiles live next to the file store or in memory.
type ProfileConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// TelemetryConf toggles OpenTelemetry instrumentation.
type TelemetryConf struct {
	Tracing bool `mapstructure:"tracing"`
	Metrics bool `mapstructure:"metrics"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// Load reads configuration from file and MOODLOG_* environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".moodlog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/moodlog")
	}

	v.SetEnvPrefix("MOODLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Store.Dir = os.ExpandEnv(cfg.Store.Dir)
	cfg.Archive.Dir = os.ExpandEnv(cfg.Archive.Dir)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user", "me")
	v.SetDefault("location", "Local")
	v.SetDefault("window_size", 14)

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.dir", "$HOME/.local/share/moodlog")
	v.SetDefault("store.database", "moodlog")
	v.SetDefault("store.transactions", true)
	v.SetDefault("store.timeout", 10*time.Second)

	v.SetDefault("archive.prefix", "snapshots")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case DriverFile:
		if cfg.Store.Dir == "" {
			return errors.New("store.dir is required for the file driver")
		}
	case DriverPostgres:
		if cfg.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	case DriverMongo:
		if cfg.Store.URI == "" {
			return errors.New("store.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %q (must be file, postgres, or mongo)", cfg.Store.Driver)
	}

	switch cfg.Archive.Driver {
	case ArchiveNone:
	case ArchiveFile:
		if cfg.Archive.Dir == "" {
			return errors.New("archive.dir is required for the file archive")
		}
	case ArchiveS3, ArchiveGCS:
		if cfg.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the %s archive", cfg.Archive.Driver)
		}
	default:
		return fmt.Errorf("invalid archive driver: %q (must be file, s3, or gcs)", cfg.Archive.Driver)
	}
	if cfg.Archive.Key != "" {
		if _, err := cfg.Archive.KeyBytes(); err != nil {
			return err
		}
	}

	if cfg.WindowSize < 1 || cfg.WindowSize > 366 {
		return fmt.Errorf("invalid window_size: %d (must be 1..366)", cfg.WindowSize)
	}
	if _, err := cfg.LoadLocation(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}
	return nil
}

// LoadLocation resolves the configured time zone.
func (c *Config) LoadLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", c.Location, err)
	}
	return loc, nil
}

// KeyBytes decodes the archive encryption key. It returns nil when no key
// is configured.
func (a *ArchiveConfig) KeyBytes() ([]byte, error) {
	if a.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(a.Key)
	if err != nil || len(key) != 32 {
		return nil, errors.New("archive.key must be 64 hex characters")
	}
	return key, nil
}
