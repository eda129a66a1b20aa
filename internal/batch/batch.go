// Package batch runs one non-interactive propose+execute round per target
// across a group, in parallel.
package batch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/runner"
)

// TargetSpec pairs a target's name with its definition.
type TargetSpec struct {
	Name   string
	Target config.Target
}

// Proposal is one target's proposed command, or the error that prevented
// proposing one.
type Proposal struct {
	Spec    TargetSpec
	Command string
	Facts   facts.Facts
	Err     error
}

// Result is one target's execution outcome.
type Result struct {
	Target   string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// Err is set when the command never produced an exit code, e.g. the
	// connection failed, or when proposing already failed.
	Err error
}

// Success reports whether this target's round worked, applying the same
// pipe-truncation exception as single sessions.
func (r Result) Success() bool {
	if r.Err != nil {
		return false
	}
	return (runner.Result{ExitCode: r.ExitCode, Stdout: r.Stdout}).Success()
}

// Output merges the captured streams for display.
func (r Result) Output() string {
	return combineOutput(r.Stdout, r.Stderr)
}

// Overall outcome classification for a batch.
const (
	ExitAllSucceeded   = 0
	ExitPartialFailure = 1
	ExitTotalFailure   = 2
)

// Classify maps a batch's results onto a process exit code.
func Classify(results []Result) int {
	if len(results) == 0 {
		return ExitTotalFailure
	}
	failed := 0
	for _, result := range results {
		if !result.Success() {
			failed++
		}
	}
	switch failed {
	case 0:
		return ExitAllSucceeded
	case len(results):
		return ExitTotalFailure
	default:
		return ExitPartialFailure
	}
}

// Executor runs one shell command on a target. Satisfied by runner.Runner.
type Executor interface {
	Run(ctx context.Context, target *config.Target, command string, opts runner.Options) (runner.Result, error)
}

// FactsSource supplies per-target system facts. Satisfied by facts.Cache.
type FactsSource interface {
	Get(ctx context.Context, name string, target *config.Target, force bool) (facts.Facts, error)
}

// HistorySource supplies a target's recent shell commands for proposal
// context. May return nothing.
type HistorySource func(ctx context.Context, spec TargetSpec) []string

// Batch coordinates the parallel rounds.
type Batch struct {
	proposer propose.Func
	executor Executor
	facts    FactsSource
	history  HistorySource
	timeout  time.Duration
	log      logger.Logger
}

// Option configures a Batch.
type Option func(*Batch)

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Batch) { b.timeout = d }
}

// WithHistory sets where per-target shell history comes from.
func WithHistory(h HistorySource) Option {
	return func(b *Batch) { b.history = h }
}

// WithLogger sets the batch's logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Batch) {
		if log != nil {
			b.log = log
		}
	}
}

// New builds a batch coordinator.
func New(proposer propose.Func, executor Executor, factsSource FactsSource, opts ...Option) *Batch {
	b := &Batch{
		proposer: proposer,
		executor: executor,
		facts:    factsSource,
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProposeAll queries the proposal function once per target concurrently,
// each call fed that target's own facts and history. Results come back in
// submission order; a failed proposal occupies its slot rather than
// cancelling siblings.
func (b *Batch) ProposeAll(ctx context.Context, specs []TargetSpec, prompt string) []Proposal {
	proposals := make([]Proposal, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec TargetSpec) {
			defer wg.Done()
			proposals[i] = b.proposeOne(ctx, spec, prompt)
		}(i, spec)
	}
	wg.Wait()
	return proposals
}

func (b *Batch) proposeOne(ctx context.Context, spec TargetSpec, prompt string) Proposal {
	proposal := Proposal{Spec: spec}

	machineFacts, err := b.facts.Get(ctx, spec.Name, &spec.Target, false)
	if err != nil {
		b.log.Warn("facts unavailable for %s: %v", spec.Name, err)
	}
	proposal.Facts = machineFacts

	var history []string
	if b.history != nil {
		history = b.history(ctx, spec)
	}

	answer, err := b.proposer(ctx, propose.Request{
		Prompt:       prompt,
		Facts:        machineFacts,
		ShellHistory: history,
	})
	if err != nil {
		proposal.Err = err
		return proposal
	}
	proposal.Command = strings.TrimSpace(answer.Command)
	return proposal
}

// ExecuteAll runs the proposed commands concurrently, one goroutine per
// target, and returns results in the proposals' order. A target whose
// proposal already failed is carried through as a failed result.
func (b *Batch) ExecuteAll(ctx context.Context, proposals []Proposal) []Result {
	results := make([]Result, len(proposals))
	var wg sync.WaitGroup
	for i, proposal := range proposals {
		wg.Add(1)
		go func(i int, proposal Proposal) {
			defer wg.Done()
			results[i] = b.executeOne(ctx, proposal)
		}(i, proposal)
	}
	wg.Wait()
	return results
}

func (b *Batch) executeOne(ctx context.Context, proposal Proposal) Result {
	result := Result{Target: proposal.Spec.Name, Command: proposal.Command}
	if proposal.Err != nil {
		result.Err = proposal.Err
		return result
	}
	// An empty command means the proposer gave up on this target. Running
	// it would exit 0 and count as a pass.
	if proposal.Command == "" {
		result.Err = errors.New(errors.ErrExec,
			"no command could be proposed for this target",
			"rephrase the request or add detail")
		return result
	}

	start := time.Now()
	run, err := b.executor.Run(ctx, &proposal.Spec.Target, proposal.Command, runner.Options{
		Timeout: b.timeout,
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}
	result.ExitCode = run.ExitCode
	result.Stdout = run.Stdout
	result.Stderr = run.Stderr
	return result
}

// Run is the full round: propose everywhere, execute everywhere.
func (b *Batch) Run(ctx context.Context, specs []TargetSpec, prompt string) []Result {
	return b.ExecuteAll(ctx, b.ProposeAll(ctx, specs, prompt))
}

func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	if !strings.HasSuffix(stdout, "\n") {
		stdout += "\n"
	}
	return stdout + stderr
}
