package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <recipe> [dir]",
	Short: "Run a job chain behind the HTTP status server",
	Long: `Like run, but always serves /status, /samples, /markers, /events and
/metrics, and keeps serving the final status after the chain ends until
interrupted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args)
		opts.Linger = true
		return execute(cmd, opts)
	},
}

func init() {
	addRunFlags(serveCmd, ":8080")
	rootCmd.AddCommand(serveCmd)
}
