package main

import (
	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <recipe> [dir]",
	Short: "Run a job chain in a working directory",
	Long: `Runs the chain described by a recipe (a file path, a library ID or a
built-in preset) in dir, the current directory by default.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runOptions(cmd, args))
	},
}

func runOptions(cmd *cobra.Command, args []string) cli.RunOptions {
	f := cmd.Flags()
	opts := cli.RunOptions{Recipe: args[0], Dir: "."}
	if len(args) > 1 {
		opts.Dir = args[1]
	}
	opts.Library, _ = f.GetString("library")
	opts.LogLevel, _ = f.GetString("log-level")
	opts.LogFormat, _ = f.GetString("log-format")
	opts.Solvers, _ = f.GetString("solvers")
	opts.SolversExplicit = f.Changed("solvers")
	opts.RedisAddr, _ = f.GetString("redis")
	opts.RedisPassword, _ = f.GetString("redis-password")
	opts.RedisDB, _ = f.GetInt("redis-db")
	opts.RedisPrefix, _ = f.GetString("redis-prefix")
	opts.Procfs, _ = f.GetString("procfs")
	opts.Listen, _ = f.GetString("listen")
	opts.WallTime, _ = f.GetDuration("wall-time")
	opts.Retries, _ = f.GetInt("retries")
	opts.Quiet, _ = f.GetBool("quiet")
	return opts
}

// execute runs opts under a context cancelled on SIGINT or SIGTERM.
func execute(cmd *cobra.Command, opts cli.RunOptions) error {
	sm := runner.NewSignalManager(cmd.Context())
	defer sm.Stop()
	return cli.Run(sm.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func addRunFlags(cmd *cobra.Command, listen string) {
	f := cmd.Flags()
	f.String("solvers", "solvers.yaml", "Solver registry (YAML or JSON)")
	f.String("redis", "", "Redis address for shared markers and directory leases")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database")
	f.String("redis-prefix", "strata:", "Redis key prefix")
	f.String("procfs", "", "procfs mount for targeted termination (default /proc when present)")
	f.Duration("wall-time", 0, "Terminate jobs running longer than this (0 disables)")
	f.Int("retries", runner.DefaultSetupRetries, "Setup retries per job")
	f.BoolP("quiet", "q", false, "Only print errors")
	f.String("listen", listen, "Serve status, samples and metrics on this address")
}

func init() {
	addRunFlags(runCmd, "")
	rootCmd.AddCommand(runCmd)
}
