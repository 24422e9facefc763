// Command matcher is the process entry point: it reads configuration,
// wires every component Start assembles, and runs until signalled, the
// way this codebase's own cmd/vega root command composes a cobra.Command
// whose RunE does the real work instead of main doing it directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusdex/matcher/config"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "matcher",
		Short: "Run the order matching engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configPath, "configPath", ".", "directory containing config.yaml")
	config.BindFlags(fs)

	cmd.AddCommand(newInitCommand())
	return cmd
}

// newInitCommand creates dataDir and its required subdirectories, the
// way this codebase's own init command prepares a fresh node's root
// directory before the main command ever runs.
func newInitCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory required to run the matcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := prepareDataDir(cfg); err != nil {
				return &exitError{code: 1, err: err}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&configPath, "configPath", ".", "directory containing config.yaml")
	config.BindFlags(fs)
	return cmd
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

// exitCodeFor maps a returned error to spec.md §6's exit code taxonomy:
// 0 clean, 1 directory preparation failure, 2 startup timeout, 3 queue
// unavailable. Any other error exits 1, matching cobra's own default.
func exitCodeFor(err error) int {
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}
