package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/52poke/gmlib/internal/storage"
	"github.com/spf13/viper"
)

type Config struct {
	Storage            string `mapstructure:"storage"`
	TTLSeconds         int    `mapstructure:"ttl_seconds"`
	Quiet              bool   `mapstructure:"quiet"`
	LocalDir           string `mapstructure:"local_dir"`
	RedisAddr          string `mapstructure:"redis_addr"`
	RedisDB            int    `mapstructure:"redis_db"`
	RedisPassword      string `mapstructure:"redis_password"`
	S3Endpoint         string `mapstructure:"s3_endpoint"`
	S3Region           string `mapstructure:"s3_region"`
	S3Bucket           string `mapstructure:"s3_bucket"`
	S3AccessKey        string `mapstructure:"s3_access_key"`
	S3SecretKey        string `mapstructure:"s3_secret_key"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
	UserAgent          string `mapstructure:"user_agent"`
	LogLevel           string `mapstructure:"log_level"`
}

// Load reads the configuration and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read loads GMLIB_* environment variables and, when path is not empty, a
// config file, without validating the result. Environment values win over
// the file.
func Read(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("gmlib")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage {
	case storage.TypeLocal:
		if c.LocalDir == "" {
			return errors.New("GMLIB_LOCAL_DIR is required for local storage")
		}
	case storage.TypeScript:
		if c.RedisAddr == "" {
			return errors.New("GMLIB_REDIS_ADDR is required for script storage")
		}
	case storage.TypeS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return errors.New("S3 endpoint/bucket/access/secret are required for s3 storage")
		}
	default:
		return &storage.InvalidStorageTypeError{Type: c.Storage}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage", storage.TypeLocal)
	v.SetDefault("ttl_seconds", 172800)
	v.SetDefault("quiet", false)
	v.SetDefault("local_dir", defaultLocalDir())
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_password", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("http_timeout_seconds", 10)
	v.SetDefault("user_agent", "gmlib/1.0")
	v.SetDefault("log_level", "info")
}

func defaultLocalDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gmlib")
}
