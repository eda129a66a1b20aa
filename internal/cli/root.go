// Package cli wires the commands: a bare prompt starts a session, and
// subcommands manage targets, the history hook, facts, and diagnostics.
package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/errors"
)

// Persistent flags shared by the session-running commands.
var (
	configFlag   string
	targetFlag   string
	yesFlag      bool
	timeoutFlag  string
	maxStepsFlag int
)

var rootCmd = &cobra.Command{
	Use:   "nlsh \"<prompt>\"",
	Short: "Turn plain English into shell commands, locally or over SSH",
	Long: `nlsh turns a natural-language request into shell commands, shows each
one for confirmation, runs it, and feeds the result back into the next
proposal until the job is done.

Commands run locally by default, or on a registered remote target.

Examples:
  nlsh "show the 5 largest files in this directory"
  nlsh -t gpu-box "how much VRAM is free"
  nlsh batch webservers "check nginx is running"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return sessionCommand(cmd.Context(), args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&targetFlag, "target", "t", "", "target or group name (default: local)")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "run proposed commands without confirmation")
	rootCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "per-command timeout (e.g. 30s, 2m)")
	rootCmd.Flags().IntVar(&maxStepsFlag, "max-steps", 0, "cap on steps per session")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// Execute runs the CLI and exits the process with the outcome's code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *errors.ExitError
		if !stderrors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(errors.ExitCode(err))
	}
}
