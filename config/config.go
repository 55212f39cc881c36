package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the council service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Council   CouncilConfig   `mapstructure:"council"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// CouncilConfig describes the static set of inference backends and the
// defaults applied to incoming queries.
type CouncilConfig struct {
	Endpoints          []EndpointConfig `mapstructure:"endpoints"`
	DefaultTimeout     time.Duration    `mapstructure:"default_timeout"`
	DefaultWantSummary bool             `mapstructure:"default_want_summary"`
}

// EndpointConfig represents a single inference backend
type EndpointConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

func (c CouncilConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("council.endpoints must list at least one backend")
	}
	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		name := strings.TrimSpace(ep.Name)
		if name == "" {
			return fmt.Errorf("council.endpoints[%d].name required", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("council.endpoints[%d].name %q duplicated", i, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(ep.URL) == "" {
			return fmt.Errorf("council.endpoints[%d].url required", i)
		}
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("council.default_timeout cannot be negative")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	LogFile      string `mapstructure:"log_file"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8001")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("council.default_timeout", time.Minute)
	viper.SetDefault("council.default_want_summary", true)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COUNCIL")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Council.Validate(); err != nil {
		panic(err)
	}
	return &config
}
