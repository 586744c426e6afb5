// Package memory provides an in-memory store.KV.
package memory

import (
	"context"
	"sync"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/store"
)

// KV is an in-memory implementation of store.KV.
type KV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewKV creates an empty in-memory store.
func NewKV() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns a copy of the value under key. Returns ErrNotFound if absent.
func (s *KV) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	v, exists := s.data[string(key)]
	if !exists {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *KV) Set(_ context.Context, key, value []byte) error {
	if len(key) == 0 || value == nil {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *KV) Has(_ context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, store.ErrClosed
	}
	_, exists := s.data[string(key)]
	return exists, nil
}

func (s *KV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ store.KV = (*KV)(nil)
