// Package modder replays directive lists against a working directory.
package modder

import (
	"fmt"
	"path/filepath"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/vaspio"
)

// Apply executes directives in order against dir. Each directive observes the
// effects of the ones before it. An empty list leaves dir untouched.
func Apply(dir string, directives []domain.Directive) error {
	for i, d := range directives {
		if err := apply(dir, d); err != nil {
			return fmt.Errorf("directive %d (%s): %w", i, d, err)
		}
	}
	return nil
}

func apply(dir string, d domain.Directive) error {
	switch d.Target {
	case domain.TargetDict:
		return applyDict(dir, d)
	case domain.TargetFile:
		if d.CopyTo == "" {
			return fmt.Errorf("%w: copy of %q has no destination", domain.ErrUnsupportedDirective, d.Name)
		}
		return fsutil.CopyFile(resolve(dir, d.Name), resolve(dir, d.CopyTo))
	default:
		return fmt.Errorf("%w: target %q", domain.ErrUnsupportedDirective, d.Target)
	}
}

func applyDict(dir string, d domain.Directive) error {
	path := filepath.Join(dir, d.Name)
	switch d.Name {
	case domain.FileIncar:
		inc, err := vaspio.ReadIncar(path)
		if err != nil {
			return err
		}
		inc.Merge(d.Set)
		return inc.WriteFile(path)

	case domain.FileKpoints:
		current := map[string]any{}
		if fsutil.Exists(path) {
			k, err := vaspio.ReadKpoints(path)
			if err != nil {
				return err
			}
			if current, err = k.Map(); err != nil {
				return err
			}
		}
		for key, v := range d.Set {
			if v == nil {
				delete(current, key)
				continue
			}
			current[key] = v
		}
		k, err := vaspio.KpointsFromMap(current)
		if err != nil {
			return err
		}
		return k.WriteFile(path)

	default:
		return fmt.Errorf("%w: no document handler for %q", domain.ErrUnsupportedDirective, d.Name)
	}
}

// resolve keeps absolute names (generated structure files) and anchors the rest in dir.
func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
