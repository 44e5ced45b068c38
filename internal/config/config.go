// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bohanco/hpimage/internal/archive"
	"github.com/bohanco/hpimage/internal/downloader"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ArchiveConfig governs the archive fetch client.
type ArchiveConfig struct {
	Endpoint       string   `mapstructure:"endpoint"`
	Markets        []string `mapstructure:"markets"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// DownloadConfig governs rendition downloads.
type DownloadConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Concurrency    int    `mapstructure:"concurrency"`
}

// StorageConfig selects and parameterizes the blob sinks. Provider is one
// of "local", "gcs", "replicate" (both) or "noop".
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to the record store. Provider is "postgres"
// or "noop".
type DBConfig struct {
	Provider        string `mapstructure:"provider"`
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime string `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for readiness notifications. Provider is
// "pubsub" or "noop".
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// OpsConfig controls the optional health/metrics HTTP listener.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ArchiveTimeout returns the archive HTTP attempt timeout.
func (c ArchiveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DownloadTimeout returns the download HTTP attempt timeout.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load builds a Config from disk and environment. path may name a config
// file directly; when empty the usual search paths apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hpimage/")
		v.AddConfigPath("$HOME/.hpimage")
	}

	v.SetEnvPrefix("HPIMAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.endpoint", archive.DefaultEndpoint)
	v.SetDefault("archive.markets", defaultMarkets())
	v.SetDefault("archive.timeout_seconds", 15)

	v.SetDefault("download.endpoint", downloader.DefaultEndpoint)
	v.SetDefault("download.timeout_seconds", 60)
	v.SetDefault("download.concurrency", 6)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data/images")

	v.SetDefault("db.provider", "noop")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("pubsub.provider", "noop")

	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.port", 9090)

	v.SetDefault("logging.development", false)
}

func defaultMarkets() []string {
	markets := make([]string, 0, len(archive.DefaultTimezones))
	for market := range archive.DefaultTimezones {
		markets = append(markets, market)
	}
	return markets
}

// Validate rejects configurations the commands cannot run with.
func (c Config) Validate() error {
	if len(c.Archive.Markets) == 0 {
		return fmt.Errorf("archive.markets must not be empty")
	}
	switch c.Storage.Provider {
	case "local", "noop":
	case "gcs", "replicate":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.provider is %q but storage.gcs_bucket is not set", c.Storage.Provider)
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	switch c.DB.Provider {
	case "noop":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.provider is \"postgres\" but db.dsn is not set")
		}
	default:
		return fmt.Errorf("unknown db provider %q", c.DB.Provider)
	}
	switch c.PubSub.Provider {
	case "noop":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.TopicID == "" {
			return fmt.Errorf("pubsub.provider is \"pubsub\" but project_id or topic_id is not set")
		}
	default:
		return fmt.Errorf("unknown pubsub provider %q", c.PubSub.Provider)
	}
	return nil
}
