package ports

import "context"

// RecipeLoader retrieves chain recipes.
// This allows the recipe source (Loam, FS, Memory) to be decoupled.
type RecipeLoader interface {
	// GetRecipe retrieves the raw definition of a recipe by ID.
	GetRecipe(id string) ([]byte, error)

	// ListRecipes returns the IDs of all available recipes.
	ListRecipes() ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel yielding the ID of each recipe that changed.
	// It is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
