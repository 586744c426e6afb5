// Package leveldb provides a store.KV persisted on disk with goleveldb.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/store"
)

// MinCacheMiB is the smallest cache budget Open accepts.
const MinCacheMiB = 8

// KV is a store.KV backed by a goleveldb database directory.
type KV struct {
	db *leveldb.DB
}

// Options returns the goleveldb options for a cache budget of cacheMiB megabytes.
func Options(cacheMiB int) *opt.Options {
	if cacheMiB < MinCacheMiB {
		cacheMiB = MinCacheMiB
	}
	return &opt.Options{
		BlockCacheCapacity: cacheMiB / 2 * opt.MiB,
		WriteBuffer:        cacheMiB / 4 * opt.MiB,
		Filter:             filter.NewBloomFilter(10),
	}
}

// Open opens (or creates) the database at path.
func Open(path string, cacheMiB int) (*KV, error) {
	db, err := leveldb.OpenFile(path, Options(cacheMiB))
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &KV{db: db}, nil
}

func (s *KV) Get(_ context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

// Set writes value under key with a synced write; contract state must survive a crash
// right after initialization.
func (s *KV) Set(_ context.Context, key, value []byte) error {
	if len(key) == 0 || value == nil {
		return store.ErrInvalidInput
	}
	if err := s.db.Put(key, value, &opt.WriteOptions{Sync: true}); err != nil {
		return translate(err)
	}
	return nil
}

func (s *KV) Has(_ context.Context, key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, translate(err)
	}
	return ok, nil
}

func (s *KV) Close() error {
	return s.db.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return store.ErrNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return store.ErrClosed
	default:
		return err
	}
}

var _ store.KV = (*KV)(nil)
