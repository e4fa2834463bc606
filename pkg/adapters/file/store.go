// Package file persists continuation markers as continue.json inside each
// working directory. The file holds the bare directive list, the same layout
// other solver tooling reads and writes.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/pkg/domain"
)

// Store implements ports.MarkerStore using the local filesystem.
type Store struct {
	name string
}

// New creates a Store writing domain.FileContinue in each directory.
func New() *Store {
	return NewWithName("")
}

// NewWithName creates a Store using a custom marker file name.
func NewWithName(name string) *Store {
	if name == "" {
		name = domain.FileContinue
	}
	return &Store{name: name}
}

func (s *Store) path(dir string) string {
	return filepath.Join(dir, s.name)
}

// Save replaces the marker of dir. The list goes to a temporary sibling that
// is renamed into place, so a reader never sees a partial file.
func (s *Store) Save(ctx context.Context, dir string, marker *domain.Marker) error {
	actions := marker.Actions
	if actions == nil {
		actions = []domain.Directive{}
	}
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+s.name+".*")
	if err != nil {
		return fmt.Errorf("failed to create marker: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(dir)); err != nil {
		return fmt.Errorf("failed to install marker: %w", err)
	}
	committed = true
	return nil
}

// Load reads the marker of dir. Both the bare list and an object with an
// "actions" field are accepted.
func (s *Store) Load(ctx context.Context, dir string) (*domain.Marker, error) {
	data, err := os.ReadFile(s.path(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrMarkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read marker: %w", err)
	}

	marker := &domain.Marker{}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, marker)
	} else {
		err = json.Unmarshal(trimmed, &marker.Actions)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed marker %s: %w", s.path(dir), err)
	}
	return marker, nil
}

// Delete removes the marker file. A missing marker is not an error.
func (s *Store) Delete(ctx context.Context, dir string) error {
	if err := os.Remove(s.path(dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}
