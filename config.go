package edgekit

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edgekit/edgekit/store"
)

// Config is the yaml configuration for the edgekit server binary.
type Config struct {
	Port  int         `yaml:"port"`
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig selects and configures the blob store backing the cache.
type CacheConfig struct {
	// Provider is one of "memory", "sqlite" or "redis".
	Provider string `yaml:"provider"`
	// Name optionally names the cache instance.
	Name string `yaml:"name"`
	// SQLitePath is the database file for the sqlite provider.
	SQLitePath string `yaml:"sqlitePath"`
	// Redis configures the redis provider.
	Redis store.RedisConfig `yaml:"redis"`
}

// LoadConfig reads the configuration from a yaml file.
func LoadConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
