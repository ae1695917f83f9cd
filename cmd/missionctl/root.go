package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "missionctl",
	Short: "Autonomous development orchestrator",
	Long: `missionctl drives a mission against a target repository: it plans
work units, dispatches them to parallel workers in isolated clones,
merges promoted results onto mc/working and mc/green, and keeps going
until the objective is met or a stop condition fires.

Available commands:
  run       Run a mission against the current target
  status    Report the last known state of a mission
  version   Show version information

Use "missionctl [command] --help" for more information about a command.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command, translating a mission's stop reason
// (or any other error) into the process exit code.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if _, ok := err.(*missionExitError); !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCodeFor(err))
}

func init() {
	rootCmd.Version = Version()
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

