// Package config loads routingd settings from an optional YAML file with
// ROUTINGCORE_* environment overrides.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/viper"

	"routingcore/internal/blob"
	"routingcore/internal/core"
	"routingcore/internal/logging"
)

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StorageConfig selects the registry backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"` // Secret: may embed credentials.
}

// S3Config configures the S3 report archive.
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

// BlobConfig selects the report archive backend.
type BlobConfig struct {
	Driver string   `mapstructure:"driver" yaml:"driver"`
	FSRoot string   `mapstructure:"fs_root" yaml:"fs_root"`
	S3     S3Config `mapstructure:"s3" yaml:"s3"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the complete daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Blob    BlobConfig    `mapstructure:"blob" yaml:"blob"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	// Seed loads the sample operations at startup when the registry is empty.
	Seed bool `mapstructure:"seed" yaml:"seed"`
}

var envBindings = map[string][]string{
	"http.addr":            {"ROUTINGCORE_HTTP_ADDR"},
	"storage.driver":       {"ROUTINGCORE_STORAGE_DRIVER"},
	"storage.sqlite_path":  {"ROUTINGCORE_SQLITE_PATH"},
	"storage.postgres_dsn": {"ROUTINGCORE_POSTGRES_DSN"},
	"blob.driver":          {"ROUTINGCORE_BLOB_DRIVER"},
	"blob.fs_root":         {"ROUTINGCORE_BLOB_FS_ROOT"},
	"blob.s3.bucket":       {"ROUTINGCORE_BLOB_S3_BUCKET"},
	"blob.s3.region":       {"ROUTINGCORE_BLOB_S3_REGION"},
	"blob.s3.prefix":       {"ROUTINGCORE_BLOB_S3_PREFIX"},
	"blob.s3.endpoint":     {"ROUTINGCORE_BLOB_S3_ENDPOINT"},
	"blob.s3.path_style":   {"ROUTINGCORE_BLOB_S3_PATH_STYLE"},
	"log.level":            {"ROUTINGCORE_LOG_LEVEL"},
	"log.format":           {"ROUTINGCORE_LOG_FORMAT"},
	"seed":                 {"ROUTINGCORE_SEED"},
}

var defaults = map[string]any{
	"http.addr":      ":8080",
	"storage.driver": string(core.StorageMemory),
	"blob.driver":    string(blob.DriverFilesystem),
	"blob.fs_root":   "./blobdata",
	"log.level":      "info",
	"log.format":     "json",
}

// Load reads the YAML file at filePath when it exists, then applies any
// ROUTINGCORE_* environment variables on top. An empty path loads from the
// environment and defaults only.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := bindEnvs(v); err != nil {
		return nil, err
	}
	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		if err := v.BindEnv(slices.Insert(slices.Clone(envs), 0, key)...); err != nil {
			return err
		}
	}
	return nil
}

// StorageConfig converts the storage section for core.OpenPersistentStore.
func (c *Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig converts the blob section for blob.Open. S3 credentials come
// from the default AWS chain.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Prefix:    c.Blob.S3.Prefix,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// LogConfig converts the log section for logging.Config.New.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
