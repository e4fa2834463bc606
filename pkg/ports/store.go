package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// MarkerStore persists continuation markers, one per working directory.
// A marker present at setup time means the previous job in that directory
// did not finish and must be resumed.
type MarkerStore interface {
	// Save persists the marker for dir, replacing any previous one.
	Save(ctx context.Context, dir string, marker *domain.Marker) error

	// Load retrieves the marker for dir.
	// Returns domain.ErrMarkerNotFound if none exists.
	Load(ctx context.Context, dir string) (*domain.Marker, error)

	// Delete removes the marker for dir. Deleting a missing marker is not an error.
	Delete(ctx context.Context, dir string) error
}

// MarkerLister is implemented by shared stores that can enumerate the
// directories holding a marker, i.e. runs that were interrupted.
type MarkerLister interface {
	List(ctx context.Context) ([]string, error)
}
