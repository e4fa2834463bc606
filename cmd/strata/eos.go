package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var eosCmd = &cobra.Command{
	Use:   "eos [dir|file]",
	Short: "Show the EOS table of a constrained optimization",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		return cli.ShowEOS(cmd.OutOrStdout(), target, renderer(cmd))
	},
}

func init() {
	rootCmd.AddCommand(eosCmd)
}
