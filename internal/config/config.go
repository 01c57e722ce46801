// Package config loads application configuration from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated by a double
// underscore, e.g. DISPATCH_STORAGE__DRIVER=bolt.
const EnvPrefix = "DISPATCH_"

// Config is the full application configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Storage    StorageConfig    `koanf:"storage"`
	Escalation EscalationConfig `koanf:"escalation"`
	Search     SearchConfig     `koanf:"search"`
	History    HistoryConfig    `koanf:"history"`
	Operators  OperatorsConfig  `koanf:"operators"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn error"`
	Format     string `koanf:"format" validate:"oneof=text json"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

// StorageConfig selects and configures the incident store.
type StorageConfig struct {
	Driver     string         `koanf:"driver" validate:"oneof=json bolt postgres"`
	DataDir    string         `koanf:"data_dir" validate:"required_if=Driver json"`
	BackupKeep int            `koanf:"backup_keep" validate:"gte=1"`
	BoltPath   string         `koanf:"bolt_path" validate:"required_if=Driver bolt"`
	Database   DatabaseConfig `koanf:"database"`
}

// DatabaseConfig contains PostgreSQL settings used by the postgres driver.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
}

// EscalationConfig contains the escalation thresholds.
type EscalationConfig struct {
	TimeThreshold         time.Duration `koanf:"time_threshold" validate:"gt=0"`
	HighPriorityEnabled   bool          `koanf:"high_priority_enabled"`
	HighPriorityThreshold time.Duration `koanf:"high_priority_threshold" validate:"gt=0"`
}

// SearchConfig contains search defaults.
type SearchConfig struct {
	DaysBack int `koanf:"days_back" validate:"gte=0"`
}

// HistoryConfig contains audit log display settings.
type HistoryConfig struct {
	Limit int `koanf:"limit" validate:"gte=1"`
}

// OperatorsConfig points at an optional operator roster.
type OperatorsConfig struct {
	SeedFile string `koanf:"seed_file"`
}

// MetricsConfig controls the metrics textfile export.
type MetricsConfig struct {
	TextfilePath string `koanf:"textfile_path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Storage: StorageConfig{
			Driver:     "json",
			DataDir:    "data",
			BackupKeep: 5,
			BoltPath:   "data/incidents.db",
			Database: DatabaseConfig{
				MaxOpenConns:    5,
				MaxIdleConns:    1,
				ConnMaxLifetime: 30 * time.Minute,
				ConnectAttempts: 5,
				ConnectTimeout:  30 * time.Second,
			},
		},
		Escalation: EscalationConfig{
			TimeThreshold:         30 * time.Minute,
			HighPriorityEnabled:   true,
			HighPriorityThreshold: 15 * time.Minute,
		},
		Search:  SearchConfig{DaysBack: 30},
		History: HistoryConfig{Limit: 50},
	}
}

// Load builds the configuration. Sources, later ones winning: Default, the YAML file at
// path (skipped when path is empty), environment variables with EnvPrefix. Variables from
// envFiles (default ".env") are exported first; missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DISPATCH_STORAGE__DATA_DIR to storage.data_dir.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == "postgres" && c.Storage.Database.URL == "" {
		return errors.New("invalid config: storage.database.url is required for the postgres driver")
	}
	return nil
}
