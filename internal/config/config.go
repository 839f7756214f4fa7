// Package config loads the directoryctl TOML configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-user-directory/cache"
	"github.com/goliatone/go-user-directory/internal/logging"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config is the application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Cache    CacheSettings  `toml:"cache"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig selects the entity store. The memory driver ignores DSN.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CacheSettings configures the user read-model cache.
type CacheSettings struct {
	Capacity           int           `toml:"capacity"`
	NumShards          int           `toml:"num_shards"`
	TTL                time.Duration `toml:"ttl"`
	EvictionPercentage int           `toml:"eviction_percentage"`
	EvictionInterval   time.Duration `toml:"eviction_interval"`
	PopulateOnRead     bool          `toml:"populate_on_read"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration embedded from config.example.toml.
func Default() Config {
	var cfg Config
	if _, err := toml.Decode(string(exampleConf), &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return cfg
}

// Load reads the TOML file at path over the defaults, so keys missing from the
// file keep their default value, and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteExample writes the example configuration to path. It refuses to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every section. Field failures are returned as a go-errors
// validation error listing each field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Log),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid configuration")
	}
	if err := c.CacheConfig().Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid cache configuration")
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverMemory, DriverSQLite, DriverPostgres)),
		validation.Field(&d.DSN, validation.When(d.Driver != DriverMemory, validation.Required)),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.MaxIdleConns, validation.Min(0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.By(func(v any) error {
			_, err := logging.ParseLevel(v.(string))
			return err
		})),
	)
}

// CacheConfig converts the cache section to a cache.Config.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.NumShards,
		TTL:                c.Cache.TTL,
		EvictionPercentage: c.Cache.EvictionPercentage,
		EvictionInterval:   c.Cache.EvictionInterval,
	}
}
