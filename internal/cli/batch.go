package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/batch"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/hook"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

var batchCmd = &cobra.Command{
	Use:   "batch <group-or-target> \"<prompt>\"",
	Short: "Propose and run one command per target across a group",
	Long: `Run a single non-interactive propose+execute round on every target in
a group (or on one named target), in parallel. Each target gets its own
proposal shaped by that machine's facts.

Exit codes: 0 all targets succeeded, 1 some failed, 2 all failed.

Examples:
  nlsh batch webservers "restart nginx if the config validates"
  nlsh batch gpu-box "kill any python process using more than 10GB"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return batchCommand(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func batchCommand(ctx context.Context, group, prompt string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.cfg.ResolveTargets(group)
	if err != nil {
		return err
	}
	specs := make([]batch.TargetSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, batch.TargetSpec{Name: name, Target: a.cfg.Targets[name]})
	}

	proposer, err := a.proposer()
	if err != nil {
		return err
	}

	b := batch.New(proposer, a.runner, a.facts,
		batch.WithTimeout(a.commandTimeout()),
		batch.WithHistory(a.batchHistory),
		batch.WithLogger(a.log),
	)

	results := b.Run(ctx, specs, prompt)
	renderBatchResults(results)

	if code := batch.Classify(results); code != batch.ExitAllSucceeded {
		return errors.NewExitError(code)
	}
	return nil
}

// batchHistory feeds each target its own recorded shell history.
func (a *app) batchHistory(_ context.Context, spec batch.TargetSpec) []string {
	entries, err := hook.ReadHistory(a.hookMedium(&spec.Target), a.cfg.Hook.LogPath, historyContext)
	if err != nil {
		return nil
	}
	return hook.FormatHistory(entries)
}

func renderBatchResults(results []batch.Result) {
	passed := 0
	for _, result := range results {
		label := ui.TargetLabel(result.Target)
		switch {
		case result.Err != nil:
			fmt.Printf("%s %s\n", label, ui.Failure(result.Err.Error()))
		case result.Success():
			passed++
			fmt.Printf("%s %s\n", label, ui.Command(result.Command))
		default:
			fmt.Printf("%s %s %s\n", label, ui.Command(result.Command),
				ui.Failure(fmt.Sprintf("exit %d", result.ExitCode)))
		}
		if output := strings.TrimRight(result.Output(), "\n"); output != "" {
			for _, line := range strings.Split(output, "\n") {
				fmt.Printf("%s %s\n", label, line)
			}
		}
	}
	fmt.Println()
	if passed == len(results) {
		fmt.Println(ui.Success(fmt.Sprintf("%d/%d targets succeeded", passed, len(results))))
	} else {
		fmt.Println(ui.Failure(fmt.Sprintf("%d/%d targets succeeded", passed, len(results))))
	}
}
