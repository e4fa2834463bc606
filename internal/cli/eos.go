package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
)

// ShowEOS renders the EOS table a constrained optimization left in dir.
func ShowEOS(w io.Writer, dir string, render func(string) (string, error)) error {
	path := dir
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		path = filepath.Join(dir, domain.FileEOS)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open EOS table: %w", err)
	}
	defer f.Close()

	direction, samples, err := domain.ReadTable(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	out, err := render(tui.EOSMarkdown(direction, samples))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
