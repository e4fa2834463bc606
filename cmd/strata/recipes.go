package main

import (
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/spf13/cobra"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes [id]",
	Short: "List recipes, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		library, _ := cmd.Flags().GetString("library")
		eng, err := cli.NewLibrary(library)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			sm := runner.NewSignalManager(cmd.Context())
			defer sm.Stop()
			return cli.WatchRecipes(sm.Context(), out, eng)
		}
		if len(args) == 0 {
			return cli.ListRecipes(out, eng)
		}
		return cli.ShowRecipe(out, eng, args[0], renderer(cmd))
	},
}

// renderer picks glamour output unless --plain is set or stdout is not a terminal.
func renderer(cmd *cobra.Command) func(string) (string, error) {
	plain, _ := cmd.Flags().GetBool("plain")
	return cli.Renderer(plain || !tui.IsTerminal(os.Stdout))
}

func init() {
	recipesCmd.Flags().BoolP("watch", "w", false, "Report library changes until interrupted")
	rootCmd.AddCommand(recipesCmd)
}
