// Package embedstore holds content embeddings with a fixed dimensionality.
package embedstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/pkg/utils"
)

// Store is an in-memory embedding store keyed by content ID. Vectors are
// L2-normalized at put time so downstream cosine similarity is a dot product.
type Store struct {
	dimensions int
	mu         sync.RWMutex
	vectors    map[string][]float32
}

// New creates a store for vectors of the given dimensionality.
func New(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &Store{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
	}, nil
}

// Dimensions returns the fixed vector length of the store.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Put stores or replaces the vector for contentID. The input is copied and
// normalized; the caller's slice is not retained or modified.
func (s *Store) Put(contentID string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(embedding), s.dimensions)
	}
	vec := make([]float32, s.dimensions)
	copy(vec, embedding)
	utils.NormalizeL2(vec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[contentID] = vec
	return nil
}

// Get returns the normalized vector for contentID.
func (s *Store) Get(contentID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.vectors[contentID]
	if !ok {
		return nil, fmt.Errorf("embedding %q: %w", contentID, models.ErrNotFound)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// Remove deletes the vector for contentID. Removing an absent ID is a no-op.
func (s *Store) Remove(contentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, contentID)
}

// AllIDs returns a sorted snapshot of the current content IDs. The snapshot
// is stable under concurrent mutation and can be iterated repeatedly.
func (s *Store) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
