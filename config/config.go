// Package config loads microrm settings from a YAML file and MICRORM_
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Konsultn-Engineering/microrm/connector"
	"github.com/Konsultn-Engineering/microrm/logger"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// EnvPrefix prefixes every environment override, e.g. MICRORM_DATABASE_HOST.
const EnvPrefix = "MICRORM"

// Config represents the microrm configuration
type Config struct {
	Provider string           `mapstructure:"provider"`
	Database connector.Config `mapstructure:"database"`
	Engine   EngineConfig     `mapstructure:"engine"`
	Log      logger.Config    `mapstructure:"log"`
}

// EngineConfig holds executor settings.
type EngineConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	PlanCacheSize  int           `mapstructure:"plan_cache_size"`
	Naming         string        `mapstructure:"naming"`
}

// Load reads path, or microrm.yml from the working directory when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", "sqlserver")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 1433)
	v.SetDefault("database.database", "")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.encrypt", "")
	v.SetDefault("database.connect_timeout", "30s")
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 5)
	v.SetDefault("database.pool.max_lifetime", "1h")
	v.SetDefault("database.pool.max_idle_time", "30m")
	v.SetDefault("engine.command_timeout", "5m")
	v.SetDefault("engine.plan_cache_size", 512)
	v.SetDefault("engine.naming", "verbatim")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("microrm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Engine.CommandTimeout <= 0 {
		return fmt.Errorf("engine.command_timeout must be positive, got: %s", cfg.Engine.CommandTimeout)
	}
	if _, err := schema.NamingStrategyByName(cfg.Engine.Naming); err != nil {
		return fmt.Errorf("engine.naming: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
