package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/52poke/gmlib/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GMLIB_LOCAL_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, storage.TypeLocal, cfg.Storage)
	assert.Equal(t, 172800, cfg.TTLSeconds)
	assert.False(t, cfg.Quiet)
	assert.Equal(t, 10, cfg.HTTPTimeoutSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gmlib.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: script\nredis_addr: file:6379\nttl_seconds: 60\nquiet: true\n"), 0o644))
	t.Setenv("GMLIB_REDIS_ADDR", "env:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, storage.TypeScript, cfg.Storage)
	assert.Equal(t, "env:6379", cfg.RedisAddr)
	assert.Equal(t, 60, cfg.TTLSeconds)
	assert.True(t, cfg.Quiet)
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("GMLIB_STORAGE", "session")

	_, err := Load("")
	assert.ErrorIs(t, err, storage.ErrInvalidStorageType)
}

func TestValidateRequiresBackendSettings(t *testing.T) {
	assert.Error(t, Config{Storage: storage.TypeScript}.Validate())
	assert.Error(t, Config{Storage: storage.TypeS3, S3Endpoint: "http://minio:9000"}.Validate())
	assert.NoError(t, Config{Storage: storage.TypeS3, S3Endpoint: "e", S3Bucket: "b", S3AccessKey: "a", S3SecretKey: "s"}.Validate())
}
