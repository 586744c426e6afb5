// Package store defines the key/value storage contract state is persisted in.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for empty keys or nil values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// KV is the storage a contract reads and writes its state through.
type KV interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Has(ctx context.Context, key []byte) (bool, error)
	Close() error
}
