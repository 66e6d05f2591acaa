package storage

import (
	"context"
	"errors"
	"fmt"
)

const (
	TypeLocal  = "local"
	TypeScript = "script"
	TypeS3     = "s3"
)

var (
	ErrNotFound           = errors.New("storage key not found")
	ErrInvalidStorageType = errors.New("invalid storage type")
	ErrHostUnavailable    = errors.New("storage host resource unavailable")
)

// Backend is a flat string key-value medium. Absent keys are reported as
// ErrNotFound regardless of how the medium represents them, and Keys lists
// every key in the medium, not only the ones a caller wrote.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type InvalidStorageTypeError struct {
	Type string
}

func (e *InvalidStorageTypeError) Error() string {
	return fmt.Sprintf("invalid storage type %q: want %q, %q or %q", e.Type, TypeLocal, TypeScript, TypeS3)
}

func (e *InvalidStorageTypeError) Is(target error) bool {
	return target == ErrInvalidStorageType
}
