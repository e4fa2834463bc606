package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.MarkerStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Marker
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Marker),
	}
}

// copyMarker isolates stored markers from caller mutation.
func copyMarker(m *domain.Marker) *domain.Marker {
	out := &domain.Marker{Actions: make([]domain.Directive, len(m.Actions))}
	for i, d := range m.Actions {
		d.Set = maps.Clone(d.Set)
		out.Actions[i] = d
	}
	return out
}

// Save stores a copy of the marker.
func (s *Store) Save(ctx context.Context, dir string, marker *domain.Marker) error {
	c := copyMarker(marker)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[dir] = c
	return nil
}

// Load returns a copy of the marker.
func (s *Store) Load(ctx context.Context, dir string) (*domain.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[dir]
	if !ok {
		return nil, domain.ErrMarkerNotFound
	}
	return copyMarker(m), nil
}

// Delete removes the marker.
func (s *Store) Delete(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, dir)
	return nil
}

// List returns the directories holding a marker.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs := make([]string, 0, len(s.data))
	for dir := range s.data {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
