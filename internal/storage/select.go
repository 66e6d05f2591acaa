package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Host carries the resources the adapters are built on. A nil or empty
// field means the host never granted that medium.
type Host struct {
	LocalDir string
	Redis    *redis.Client
	S3       S3API
	S3Bucket string
}

// Select maps a storage type token to its adapter.
func Select(storageType string, host Host) (Backend, error) {
	switch storageType {
	case TypeLocal:
		if host.LocalDir == "" {
			return nil, fmt.Errorf("%s: no local directory: %w", storageType, ErrHostUnavailable)
		}
		return NewLocalStore(host.LocalDir)
	case TypeScript:
		if host.Redis == nil {
			return nil, fmt.Errorf("%s: no redis client: %w", storageType, ErrHostUnavailable)
		}
		return NewScriptStore(host.Redis), nil
	case TypeS3:
		if host.S3 == nil || host.S3Bucket == "" {
			return nil, fmt.Errorf("%s: no s3 client or bucket: %w", storageType, ErrHostUnavailable)
		}
		return NewS3Store(host.S3Bucket, host.S3), nil
	default:
		return nil, &InvalidStorageTypeError{Type: storageType}
	}
}

// TypeOf returns the storage type token of b, or "custom" for adapters
// defined outside this package.
func TypeOf(b Backend) string {
	switch b.(type) {
	case *LocalStore:
		return TypeLocal
	case *ScriptStore:
		return TypeScript
	case *S3Store:
		return TypeS3
	default:
		return "custom"
	}
}
