package memory

import (
	"fmt"
	"sort"

	"github.com/aretw0/strata/pkg/domain"
)

// Loader implements ports.RecipeLoader using an in-memory map.
type Loader struct {
	recipes map[string][]byte
}

// NewLoader creates a new Loader with the provided raw recipe documents.
func NewLoader(data map[string]string) *Loader {
	recipes := make(map[string][]byte, len(data))
	for k, v := range data {
		recipes[k] = []byte(v)
	}
	return &Loader{recipes: recipes}
}

// GetRecipe retrieves the raw definition of a recipe by ID.
func (l *Loader) GetRecipe(id string) ([]byte, error) {
	content, ok := l.recipes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecipeNotFound, id)
	}
	return content, nil
}

// ListRecipes returns all available recipe IDs.
func (l *Loader) ListRecipes() ([]string, error) {
	keys := make([]string, 0, len(l.recipes))
	for k := range l.recipes {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
