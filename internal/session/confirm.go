package session

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

// Decision is what the user chose to do with a proposed command.
type Decision int

const (
	// Accept runs the command as proposed (or as edited).
	Accept Decision = iota
	// Cancel abandons the whole session.
	Cancel
)

// Confirmation is the user's answer to a proposed command.
type Confirmation struct {
	Decision Decision
	// Command is the command to run. It differs from the proposal when
	// the user edited it.
	Command string
}

// Confirmer asks the user whether to run a proposed command.
type Confirmer interface {
	Confirm(ctx context.Context, proposal propose.Proposal, step int) (Confirmation, error)
}

// AutoConfirmer accepts every proposal unmodified. Used with --yes and in
// batch mode, where there is no interactive user per target.
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(_ context.Context, proposal propose.Proposal, _ int) (Confirmation, error) {
	return Confirmation{Decision: Accept, Command: proposal.Command}, nil
}

const (
	choiceRun    = "run"
	choiceEdit   = "edit"
	choiceCancel = "cancel"
)

// TerminalConfirmer shows the proposed command and lets the user run it,
// edit it first, or cancel. Without a terminal it accepts silently so
// piped invocations still work.
type TerminalConfirmer struct{}

func (TerminalConfirmer) Confirm(_ context.Context, proposal propose.Proposal, step int) (Confirmation, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return Confirmation{Decision: Accept, Command: proposal.Command}, nil
	}

	fmt.Println()
	if proposal.Reasoning != "" {
		fmt.Println(ui.Muted(proposal.Reasoning))
	}
	fmt.Printf("%s %s\n", ui.StepLabel(step), ui.Command(proposal.Command))

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run this command?").
				Options(
					huh.NewOption("Run", choiceRun),
					huh.NewOption("Edit first", choiceEdit),
					huh.NewOption("Cancel", choiceCancel),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return Confirmation{Decision: Cancel}, nil
	}

	switch choice {
	case choiceRun:
		return Confirmation{Decision: Accept, Command: proposal.Command}, nil
	case choiceEdit:
		edited := proposal.Command
		editForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Command").
					Value(&edited),
			),
		)
		if err := editForm.Run(); err != nil {
			return Confirmation{Decision: Cancel}, nil
		}
		edited = strings.TrimSpace(edited)
		if edited == "" {
			return Confirmation{Decision: Cancel}, nil
		}
		return Confirmation{Decision: Accept, Command: edited}, nil
	default:
		return Confirmation{Decision: Cancel}, nil
	}
}
