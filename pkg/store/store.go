// Package store persists small controller records (lifecycle flags, watched
// values, membership) by key.
package store

import (
    "errors"
    "sync"
)

var ErrNotFound = errors.New("store: not found")

// Persister loads and saves opaque records.
type Persister interface {
    Load(key string) ([]byte, error)
    Save(key string, value []byte) error
}

// Memory is a process-local Persister.
type Memory struct {
    mu sync.RWMutex
    m  map[string][]byte
}

func NewMemory() *Memory { return &Memory{m: make(map[string][]byte)} }

func (s *Memory) Load(key string) ([]byte, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    v, ok := s.m[key]
    if !ok { return nil, ErrNotFound }
    return append([]byte(nil), v...), nil
}

func (s *Memory) Save(key string, value []byte) error {
    s.mu.Lock(); defer s.mu.Unlock()
    s.m[key] = append([]byte(nil), value...)
    return nil
}

var _ Persister = (*Memory)(nil)
