// Package propose defines the contract between the tool and the command
// proposer: given a natural-language prompt plus accumulated context, the
// proposer returns the next shell command to run and whether more steps
// should follow.
package propose

import (
	"context"

	"github.com/nlsh-dev/nlsh/internal/facts"
)

// Step records one completed round of the propose/execute loop. Completed
// steps are fed back to the proposer so follow-up proposals can build on
// earlier results.
type Step struct {
	// Command is the shell command that was proposed and executed.
	Command string `json:"command"`
	// ContinueRequested is whether the proposer asked for another step
	// after this one.
	ContinueRequested bool `json:"continueRequested"`
	// Reasoning is the proposer's short explanation for the command.
	Reasoning string `json:"reasoning,omitempty"`
	// NextHint is the proposer's note to itself about what the next
	// step should do.
	NextHint string `json:"nextHint,omitempty"`
	// ExitCode is the command's exit code.
	ExitCode int `json:"exitCode"`
	// Output is the command's combined captured output, possibly
	// truncated.
	Output string `json:"output,omitempty"`
}

// Request carries everything the proposer sees when asked for a command.
type Request struct {
	// Prompt is the user's natural-language request.
	Prompt string `json:"prompt"`
	// Steps are the rounds already completed for this prompt, oldest
	// first. Empty on the first round.
	Steps []Step `json:"steps,omitempty"`
	// Facts describes the machine the command will run on.
	Facts facts.Facts `json:"facts"`
	// ShellHistory is the user's recent interactive commands, oldest
	// first, when the history hook has captured any.
	ShellHistory []string `json:"shellHistory,omitempty"`
}

// Proposal is the proposer's answer to a Request.
type Proposal struct {
	// Command is the shell command to run. Empty means the proposer has
	// nothing to run for this round.
	Command string `json:"command"`
	// Continue is whether the proposer wants another round after this
	// command has run.
	Continue bool `json:"continue"`
	// Reasoning is a short explanation shown to the user.
	Reasoning string `json:"reasoning,omitempty"`
	// NextHint carries forward what the next round should do.
	NextHint string `json:"nextHint,omitempty"`
}

// Func produces a proposal for a request.
type Func func(ctx context.Context, req Request) (Proposal, error)
