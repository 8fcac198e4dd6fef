package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
)

const envPrefix = "HARVESTER"

type manager struct {
	mu         sync.RWMutex
	config     *Config
	viper      *viper.Viper
	configPath string
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads defaults, then the YAML file at configPath when one is given,
// then environment overrides.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configPath = configPath
	if err := m.setupViper(); err != nil {
		return nil, fmt.Errorf("failed to setup viper: %w", err)
	}

	config, err := m.read()
	if err != nil {
		return nil, err
	}

	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	config, err := m.read()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) read() (*Config, error) {
	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Aggregator.KeyPrefix = config.Storage.KeyPrefix

	if err := m.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (m *manager) setupViper() error {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	}

	setDefaults(m.viper)

	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	// Names used by existing deployments
	if err := m.viper.BindEnv("export.secret", envPrefix+"_EXPORT_SECRET", "EXPORT_PASSWORD"); err != nil {
		return err
	}
	if err := m.viper.BindEnv("storage.redis.url", envPrefix+"_STORAGE_REDIS_URL", "REDIS_URL"); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("suggest.endpoint", suggest.DefaultEndpoint)
	v.SetDefault("suggest.client", suggest.DefaultClient)
	v.SetDefault("suggest.timeout", suggest.DefaultTimeout)
	v.SetDefault("suggest.user_agent", suggest.DefaultUserAgent)

	v.SetDefault("aggregator.workers", 8)
	v.SetDefault("aggregator.task_timeout", "10s")
	v.SetDefault("aggregator.temporal_policy", string(expansion.DefaultTemporalPolicy))
	v.SetDefault("aggregator.sink_timeout", "5s")

	v.SetDefault("storage.driver", storage.DriverMemory)
	v.SetDefault("storage.key_prefix", storage.DefaultKeyPrefix)
	v.SetDefault("storage.retention", "0s")
	v.SetDefault("storage.redis.url", "")
	v.SetDefault("storage.file.path", "data/search_logs.jsonl")

	v.SetDefault("export.secret", "")
	v.SetDefault("locale.tables_path", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func (m *manager) validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Aggregator.Workers <= 0 {
		return fmt.Errorf("aggregator.workers must be positive")
	}

	if config.Aggregator.TaskTimeout <= 0 {
		return fmt.Errorf("aggregator.task_timeout must be positive")
	}

	if config.Aggregator.SinkTimeout <= 0 {
		return fmt.Errorf("aggregator.sink_timeout must be positive")
	}

	if _, err := expansion.ParseTemporalPolicy(config.Aggregator.TemporalPolicy); err != nil {
		return err
	}

	if config.Suggest.Timeout <= 0 {
		return fmt.Errorf("suggest.timeout must be positive")
	}

	if _, err := suggest.ModeForClient(config.Suggest.Client); err != nil {
		return err
	}

	switch config.Storage.Driver {
	case storage.DriverMemory:
	case storage.DriverRedis:
		if config.Storage.Redis.URL == "" {
			return fmt.Errorf("storage.redis.url is required for the redis driver")
		}
	case storage.DriverFile:
		if config.Storage.File.Path == "" {
			return fmt.Errorf("storage.file.path is required for the file driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if config.Storage.KeyPrefix == "" {
		return fmt.Errorf("storage.key_prefix cannot be empty")
	}

	if config.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention cannot be negative")
	}

	return nil
}
