package config

import (
	"time"

	"keyword-harvester/pkg/aggregator"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
)

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Suggest    suggest.Config    `mapstructure:"suggest"`
	Aggregator aggregator.Config `mapstructure:"aggregator"`
	Storage    storage.Config    `mapstructure:"storage"`
	Export     ExportConfig      `mapstructure:"export"`
	Locale     LocaleConfig      `mapstructure:"locale"`
	Logger     logger.Config     `mapstructure:"logger"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig holds the shared secret guarding the log export.
// An empty secret disables the export.
type ExportConfig struct {
	Secret string `mapstructure:"secret"`
}

// LocaleConfig points at an optional replacement for the embedded tables
type LocaleConfig struct {
	TablesPath string `mapstructure:"tables_path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
