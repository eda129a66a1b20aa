// Package session drives the propose/confirm/execute loop for a single
// prompt against one target.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/runner"
)

// State is the terminal state of a session.
type State int

const (
	// Done means the loop completed and the last command succeeded.
	Done State = iota
	// Failed means a command failed and the proposer did not continue,
	// or the proposer itself gave up or errored.
	Failed
	// Cancelled means the user declined a proposed command.
	Cancelled
	// Halted means the proposal was a shell builtin the tool cannot run
	// on the user's behalf; it is surfaced for the user to run.
	Halted
)

func (s State) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of a full session.
type Outcome struct {
	State State
	// Steps are the executed rounds, in order.
	Steps []propose.Step
	// HaltedCommand is set when State is Halted.
	HaltedCommand string
	// Err describes why the session failed, when State is Failed.
	Err error
}

// ExitCode maps the outcome onto a process exit code.
func (o *Outcome) ExitCode() int {
	switch o.State {
	case Done, Halted:
		return 0
	default:
		return 1
	}
}

// outputLimit caps how much command output is carried into follow-up
// proposal requests.
const outputLimit = 16 * 1024

// Executor runs one shell command. Satisfied by runner.Runner.
type Executor interface {
	Run(ctx context.Context, target *config.Target, command string, opts runner.Options) (runner.Result, error)
}

// FactsSource supplies system facts for the target machine. Satisfied by
// facts.Cache.
type FactsSource interface {
	Get(ctx context.Context, name string, target *config.Target, force bool) (facts.Facts, error)
}

// HistorySource supplies recent interactive shell commands for context.
type HistorySource func() []string

// Orchestrator owns one session's loop.
type Orchestrator struct {
	proposer  propose.Func
	executor  Executor
	facts     FactsSource
	confirmer Confirmer
	history   HistorySource
	maxSteps  int
	timeout   time.Duration
	onStdout  func([]byte)
	onStderr  func([]byte)
	log       logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfirmer sets the confirmation strategy.
func WithConfirmer(c Confirmer) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.confirmer = c
		}
	}
}

// WithMaxSteps caps how many rounds the loop may run.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithHistory sets where shell history context comes from.
func WithHistory(h HistorySource) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithStreams sets callbacks that receive command output as it arrives.
func WithStreams(onStdout, onStderr func([]byte)) Option {
	return func(o *Orchestrator) {
		o.onStdout = onStdout
		o.onStderr = onStderr
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New builds an orchestrator.
func New(proposer propose.Func, executor Executor, factsSource FactsSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		proposer:  proposer,
		executor:  executor,
		facts:     factsSource,
		confirmer: TerminalConfirmer{},
		maxSteps:  config.DefaultMaxSteps,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives the loop for prompt against the named target (empty name and
// nil target mean local) until a terminal state is reached.
func (o *Orchestrator) Run(ctx context.Context, prompt, targetName string, target *config.Target) (*Outcome, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New(errors.ErrExec, "empty prompt", "describe what you want to run, e.g. nlsh \"show disk usage\"")
	}

	machineFacts, err := o.facts.Get(ctx, targetName, target, false)
	if err != nil {
		o.log.Warn("could not gather system facts: %v", err)
	}

	var history []string
	if o.history != nil {
		history = o.history()
	}

	outcome := &Outcome{State: Done}
	for step := 1; ; step++ {
		if step > o.maxSteps {
			outcome.State = Failed
			outcome.Err = errors.New(errors.ErrExec,
				fmt.Sprintf("stopped after %d steps without finishing", o.maxSteps),
				"raise session.max_steps in the config file or narrow the prompt")
			return outcome, nil
		}

		proposal, err := o.proposer(ctx, propose.Request{
			Prompt:       prompt,
			Steps:        outcome.Steps,
			Facts:        machineFacts,
			ShellHistory: history,
		})
		if err != nil {
			outcome.State = Failed
			outcome.Err = err
			return outcome, nil
		}

		if proposal.Command == "" {
			if proposal.Continue {
				// Nothing to run this round but the proposer wants to
				// keep thinking. Record the empty round so it shows up
				// in the next request.
				outcome.Steps = append(outcome.Steps, propose.Step{
					ContinueRequested: true,
					Reasoning:         proposal.Reasoning,
					NextHint:          proposal.NextHint,
				})
				continue
			}
			outcome.State = Failed
			outcome.Err = errors.New(errors.ErrExec,
				"no command could be proposed for this prompt",
				"rephrase the request or add detail")
			return outcome, nil
		}

		if isShellBuiltin(proposal.Command) {
			outcome.State = Halted
			outcome.HaltedCommand = proposal.Command
			return outcome, nil
		}

		confirmation, err := o.confirmer.Confirm(ctx, proposal, step)
		if err != nil {
			outcome.State = Failed
			outcome.Err = err
			return outcome, nil
		}
		if confirmation.Decision == Cancel {
			outcome.State = Cancelled
			return outcome, nil
		}
		command := confirmation.Command

		// An edit can swap the proposal for a builtin, so the guard runs
		// again on what the user actually typed.
		if isShellBuiltin(command) {
			outcome.State = Halted
			outcome.HaltedCommand = command
			return outcome, nil
		}

		result, runErr := o.executor.Run(ctx, target, command, runner.Options{
			Timeout:  o.timeout,
			OnStdout: o.onStdout,
			OnStderr: o.onStderr,
		})
		if runErr != nil {
			// Connection drops and timeouts ride along to the next
			// proposal the same way a failing exit does, so the proposer
			// can adjust or retry. Exit -1 marks "never ran".
			if proposal.Continue {
				o.log.Debug("step %d errored, continuing: %v", step, runErr)
				outcome.Steps = append(outcome.Steps, propose.Step{
					Command:           command,
					ContinueRequested: true,
					Reasoning:         proposal.Reasoning,
					NextHint:          proposal.NextHint,
					ExitCode:          -1,
					Output:            runErr.Error(),
				})
				continue
			}
			outcome.State = Failed
			outcome.Err = runErr
			return outcome, nil
		}

		executed := propose.Step{
			Command:           command,
			ContinueRequested: proposal.Continue,
			Reasoning:         proposal.Reasoning,
			NextHint:          proposal.NextHint,
			ExitCode:          result.ExitCode,
			Output:            truncateOutput(result.Stdout, result.Stderr),
		}
		outcome.Steps = append(outcome.Steps, executed)

		if result.Success() {
			if proposal.Continue {
				continue
			}
			outcome.State = Done
			return outcome, nil
		}

		// Failure. When the proposer asked to continue, the failing
		// output rides along in the next request so it can adjust.
		if proposal.Continue {
			o.log.Debug("step %d failed with exit %d, continuing", step, result.ExitCode)
			continue
		}
		outcome.State = Failed
		outcome.Err = errors.New(errors.ErrExec,
			fmt.Sprintf("command exited with code %d", result.ExitCode), "")
		return outcome, nil
	}
}

// truncateOutput merges stdout and stderr for the proposer, keeping the
// tail when the combined output is too large since errors usually land at
// the end.
func truncateOutput(stdout, stderr string) string {
	combined := stdout
	if stderr != "" {
		if combined != "" && !strings.HasSuffix(combined, "\n") {
			combined += "\n"
		}
		combined += stderr
	}
	if len(combined) <= outputLimit {
		return combined
	}
	return "...\n" + combined[len(combined)-outputLimit:]
}
