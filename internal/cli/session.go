package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/session"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

// sessionCommand runs one interactive session for the prompt.
func sessionCommand(ctx context.Context, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, target, err := a.resolveTarget(targetFlag)
	if err != nil {
		return err
	}

	proposer, err := a.proposer()
	if err != nil {
		return err
	}

	var confirmer session.Confirmer = session.TerminalConfirmer{}
	if yesFlag {
		confirmer = session.AutoConfirmer{}
	}

	maxSteps := a.cfg.Session.MaxSteps
	if maxStepsFlag > 0 {
		maxSteps = maxStepsFlag
	}

	orch := session.New(proposer, a.runner, a.facts,
		session.WithConfirmer(confirmer),
		session.WithMaxSteps(maxSteps),
		session.WithTimeout(a.commandTimeout()),
		session.WithHistory(a.historySource(target)),
		session.WithStreams(
			func(chunk []byte) { os.Stdout.Write(chunk) },
			func(chunk []byte) { os.Stderr.Write(chunk) },
		),
		session.WithLogger(a.log),
	)

	outcome, err := orch.Run(ctx, strings.Join(args, " "), name, target)
	if err != nil {
		return err
	}
	return renderOutcome(outcome, name)
}

// renderOutcome prints the terminal state and maps it to an exit code.
func renderOutcome(outcome *session.Outcome, targetName string) error {
	where := "locally"
	if targetName != "" {
		where = "on " + targetName
	}

	switch outcome.State {
	case session.Done:
		fmt.Println(ui.Success(fmt.Sprintf("done %s in %d step(s)", where, len(outcome.Steps))))
		return nil
	case session.Halted:
		fmt.Println(ui.Warning("this one changes your shell's own state, run it yourself:"))
		fmt.Println("  " + ui.Command(outcome.HaltedCommand))
		return nil
	case session.Cancelled:
		fmt.Println(ui.Muted("cancelled"))
		return errors.NewExitError(1)
	default:
		if outcome.Err != nil {
			return outcome.Err
		}
		return errors.NewExitError(1)
	}
}
