package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository of recipe documents to ports.RecipeLoader.
// Markdown documents carry the recipe in their frontmatter and may describe
// it in their body; YAML and JSON documents are recipes as a whole.
type Loader struct {
	Repo *loam.TypedRepository[RecipeMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[RecipeMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// GetRecipe returns the recipe id as a JSON document, ready for recipe.Parse.
// The ID is normalized without extension; a Markdown body with no explicit
// description becomes the description.
func (l *Loader) GetRecipe(id string) ([]byte, error) {
	doc, err := l.Repo.Get(context.Background(), id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}

	meta := doc.Data
	meta.ID = recipeID(meta.ID, doc.ID)
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(doc.Content)
	}
	meta.GammaCommand = normalizeList(meta.GammaCommand)
	meta.Command = normalizeList(meta.Command)

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipe %s: %w", id, err)
	}
	return data, nil
}

// normalizeList turns YAML-decoded lists into []any so they marshal as JSON arrays.
func normalizeList(v any) any {
	switch list := v.(type) {
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

// ListRecipes returns the normalized IDs of every recipe in the library.
// Two documents that normalize to the same ID are an error.
func (l *Loader) ListRecipes() ([]string, error) {
	docs, err := l.Repo.List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	origin := make(map[string]string, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := recipeID(doc.Data.ID, doc.ID)
		if prev, dup := origin[id]; dup {
			return nil, fmt.Errorf("recipe %q is defined by both %s and %s", id, prev, doc.ID)
		}
		origin[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

// recipeID prefers the declared id over the document path, minus extension.
func recipeID(declared, path string) string {
	if declared == "" {
		declared = path
	}
	return filepath.ToSlash(strings.TrimSuffix(declared, filepath.Ext(declared)))
}

// Watch implements ports.Watchable. It yields the ID of each changed recipe;
// bursts of events for the same document collapse into one.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to watch recipe library: %w", err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		last := ""
		for {
			var id string
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				id = recipeID("", evt.ID)
			case <-ctx.Done():
				return
			}
			if id == last && len(out) > 0 {
				continue
			}
			last = id
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
