package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
)

// Store is an in-memory implementation of store.Store for tests.
// Models are kept encoded so every Load returns a fresh instance.
type Store struct {
	mu        sync.RWMutex
	codec     store.Codec
	models    map[model.Descriptor][]byte
	manifests map[model.Descriptor][]model.Descriptor
}

// New creates a new in-memory store.
func New(codec store.Codec) *Store {
	return &Store{
		codec:     codec,
		models:    make(map[model.Descriptor][]byte),
		manifests: make(map[model.Descriptor][]model.Descriptor),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Exists implements store.Store.
func (s *Store) Exists(ctx context.Context, d model.Descriptor) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[d]
	return ok, nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, d model.Descriptor) (process.Process, error) {
	s.mu.RLock()
	data, ok := s.models[d]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load %s: %w", d, internalerr.ErrNotFound)
	}
	return s.codec.Decode(d, data)
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, d model.Descriptor, p process.Process) error {
	data, err := s.codec.Encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[d] = data
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, d model.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, d)
	delete(s.manifests, d)
	return nil
}

// Latest implements store.Store.
func (s *Store) Latest(ctx context.Context, f model.Family) (model.Descriptor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best model.Descriptor
	found := false
	for d := range s.models {
		if d.Family() == f && (!found || d.Version > best.Version) {
			best, found = d, true
		}
	}
	return best, found, nil
}

// SaveManifest implements store.Store.
func (s *Store) SaveManifest(ctx context.Context, d model.Descriptor, models []model.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[d] = append([]model.Descriptor(nil), models...)
	return nil
}

// LoadManifest implements store.Store.
func (s *Store) LoadManifest(ctx context.Context, d model.Descriptor) ([]model.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[d]
	if !ok {
		return nil, fmt.Errorf("load manifest %s: %w", d, internalerr.ErrNotFound)
	}
	return append([]model.Descriptor(nil), m...), nil
}

// Len returns the number of stored models.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}
