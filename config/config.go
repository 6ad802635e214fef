package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	API struct {
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"api"`
	Repositories struct {
		Mongo struct {
			URI      string `mapstructure:"uri"`
			Database string `mapstructure:"database"`
		} `mapstructure:"mongo"`
	} `mapstructure:"repositories"`
	Cache struct {
		StatsTTL time.Duration `mapstructure:"statsTTL"`
	} `mapstructure:"cache"`
}

// IsProduction reports whether the service runs in production mode.
// Internal error details are withheld from responses in this mode.
func (c *Config) IsProduction() bool {
	return c.Mode == "production"
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	// Deploy-time overrides
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		config.Repositories.Mongo.URI = uri
	}
	if mode := os.Getenv("APP_ENV"); mode != "" {
		config.Mode = mode
	}

	// Fail fast on required keys; nothing below can run without a store URI.
	if config.Repositories.Mongo.URI == "" {
		return Config{}, fmt.Errorf("missing required config: repositories.mongo.uri (or MONGODB_URI)")
	}
	if config.Repositories.Mongo.Database == "" {
		config.Repositories.Mongo.Database = "usersvc"
	}
	if config.API.Prefix == "" {
		config.API.Prefix = "/api/v1"
	}

	return config, nil
}
