package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds storage configuration for both backend families.
// URL is usually supplied through the DATABASE_URL environment variable;
// its presence alone selects the server backend.
type DatabaseConfig struct {
	URL                  string        `mapstructure:"url"`
	Path                 string        `mapstructure:"path"`
	PoolMinConns         int           `mapstructure:"pool_min_conns"`
	PoolMaxConns         int           `mapstructure:"pool_max_conns"`
	AcquireTimeout       time.Duration `mapstructure:"acquire_timeout"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	HealthCheckThreshold time.Duration `mapstructure:"health_check_threshold"`
	ResultCacheTTL       time.Duration `mapstructure:"result_cache_ttl"`
	ResultCacheCap       int           `mapstructure:"result_cache_cap"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A missing
// config file is fine; defaults plus environment cover everything.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/erp.db")
	viper.SetDefault("database.pool_min_conns", 3)
	viper.SetDefault("database.pool_max_conns", 25)
	viper.SetDefault("database.acquire_timeout", 30*time.Second)
	viper.SetDefault("database.connect_timeout", 5*time.Second)
	viper.SetDefault("database.health_check_threshold", 100*time.Millisecond)
	viper.SetDefault("database.result_cache_ttl", 60*time.Second)
	viper.SetDefault("database.result_cache_cap", 1000)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.path", "ERP_DB_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		return fmt.Errorf("database.pool_min_conns must not exceed database.pool_max_conns")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port is out of range")
	}
	return nil
}
