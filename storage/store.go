package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when a key has no value.
var ErrKeyNotFound = errors.New("key not found")

type Store interface {
	Set(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, error)
	Del(ctx context.Context, key []byte) (bool, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Keys(ctx context.Context) ([][]byte, error)

	Len() int

	Restore(snapshot []byte) error
	Backup() ([]byte, error)

	Close() error
}
