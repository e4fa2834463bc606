package jobs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/pkg/domain"
)

// backupFiles copies each named file in dir to <name>.orig. Missing inputs
// (typically KPOINTS under KSPACING) are logged and skipped.
func backupFiles(dir string, names []string, log *slog.Logger) error {
	for _, name := range names {
		src := filepath.Join(dir, name)
		if !fsutil.Exists(src) {
			log.Info("no input to back up", "file", name)
			continue
		}
		if err := fsutil.CopyFile(src, src+domain.BackupSuffix); err != nil {
			return fmt.Errorf("failed to back up %s: %w", name, err)
		}
	}
	return nil
}

// applySuffix renames (final) or copies (non-final) each existing named file
// in dir to <name><suffix>. An empty suffix leaves outputs in place.
func applySuffix(dir string, names []string, suffix string, final bool) error {
	if suffix == "" {
		return nil
	}
	for _, name := range names {
		src := filepath.Join(dir, name)
		if !fsutil.Exists(src) {
			continue
		}
		op := fsutil.CopyFile
		if final {
			op = fsutil.MoveFile
		}
		if err := op(src, src+suffix); err != nil {
			return fmt.Errorf("failed to suffix %s: %w", name, err)
		}
	}
	return nil
}

// Setup steps that change inputs in a way a second pass would compound.
const (
	stepBackup   = "backup"
	stepHalve    = "halve-kpoints"
	stepContinue = "continue"
)

// setupSteps remembers, per directory, which one-shot setup steps already
// succeeded, so a retried Setup skips them.
type setupSteps struct {
	mu   sync.Mutex
	done map[string]map[string]bool
}

func stepKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func (s *setupSteps) did(dir, step string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[stepKey(dir)][step]
}

func (s *setupSteps) mark(dir, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(map[string]map[string]bool)
	}
	k := stepKey(dir)
	if s.done[k] == nil {
		s.done[k] = make(map[string]bool)
	}
	s.done[k][step] = true
}

// once runs fn unless step already succeeded in dir, and records its success.
func (s *setupSteps) once(dir, step string, fn func() error) error {
	if s.did(dir, step) {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	s.mark(dir, step)
	return nil
}
