package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/recipe"
)

// ListRecipes prints every known recipe with its kind and description.
func ListRecipes(w io.Writer, eng *strata.Engine) error {
	ids, err := eng.Recipes()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tDESCRIPTION")
	for _, id := range ids {
		r, err := eng.Recipe(id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t!\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, r.Kind, firstLine(r.Description))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}

// ShowRecipe renders one recipe as Markdown.
func ShowRecipe(w io.Writer, eng *strata.Engine, id string, render func(string) (string, error)) error {
	r, err := eng.Recipe(id)
	if err != nil {
		return err
	}
	out, err := render(recipeMarkdown(r))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func recipeMarkdown(r *recipe.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.ID)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	b.WriteString("| Setting | Value |\n|---|---|\n")
	row := func(k string, v any) { fmt.Fprintf(&b, "| %s | `%v` |\n", k, v) }
	row("kind", r.Kind)
	if r.Solver != "" {
		row("solver", r.Solver)
	}
	if len(r.Command) > 0 {
		row("command", strings.Join(r.Command, " "))
	}
	if len(r.GammaCommand) > 0 {
		row("gamma_command", strings.Join(r.GammaCommand, " "))
	}
	row("auto_npar", r.AutoNpar)
	row("auto_gamma", r.AutoGamma)
	row("auto_continue", r.AutoContinue)
	row("backup", r.Backup)
	switch r.Kind {
	case recipe.KindDoubleRelaxation:
		row("ediffg", r.Ediffg)
		row("half_kpts_first_relax", r.HalfKptsFirstRelax)
	case recipe.KindFullOptimization:
		row("ediffg", r.Ediffg)
		row("vol_change_tol", r.VolChangeTol)
	case recipe.KindConstrained:
		row("direction", r.Direction)
		row("initial_strain", r.InitialStrain)
		row("algo", r.Algo)
		row("atom_relax", r.AtomRelax)
	}
	if r.MaxSteps > 0 {
		row("max_steps", r.MaxSteps)
	}
	if r.WallTime > 0 {
		row("wall_time", r.WallTime)
	}
	if len(r.SettingsOverride) > 0 {
		row("settings_override", fmt.Sprintf("%d directive(s)", len(r.SettingsOverride)))
	}
	if r.Generate != nil {
		row("generate", "inputs regenerated from the relaxed structure")
	}
	return b.String()
}

// WatchRecipes prints each library change until ctx is done.
func WatchRecipes(ctx context.Context, w io.Writer, eng *strata.Engine) error {
	ch, err := eng.Watch(ctx)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("the recipe library cannot be watched")
	}
	printSystemMessage(w, "Watching recipe library for changes.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := eng.Recipe(id); err != nil {
				printSystemMessage(w, "'%s' changed but is invalid: %v", id, err)
				continue
			}
			printSystemMessage(w, "'%s' changed.", id)
		}
	}
}

// NewLibrary opens the recipe sources for listing and inspection.
func NewLibrary(path string) (*strata.Engine, error) {
	return strata.New(path)
}

// Renderer picks glamour output on terminals and plain Markdown otherwise.
func Renderer(plain bool) func(string) (string, error) {
	return tui.NewRenderer(plain)
}
