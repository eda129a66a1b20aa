package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/runner"
)

type hostExecutor struct {
	mu      sync.Mutex
	results map[string]runner.Result
	errs    map[string]error
	ran     map[string]string
}

func newHostExecutor() *hostExecutor {
	return &hostExecutor{
		results: map[string]runner.Result{},
		errs:    map[string]error{},
		ran:     map[string]string{},
	}
}

func (e *hostExecutor) Run(_ context.Context, target *config.Target, command string, _ runner.Options) (runner.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ran[target.Host] = command
	if err, ok := e.errs[target.Host]; ok {
		return runner.Result{}, err
	}
	return e.results[target.Host], nil
}

type hostFacts struct{}

func (hostFacts) Get(_ context.Context, name string, _ *config.Target, _ bool) (facts.Facts, error) {
	return facts.Facts{OS: "Linux", Hostname: name}, nil
}

func echoProposer(_ context.Context, req propose.Request) (propose.Proposal, error) {
	// One command shaped by the prompt; per-target facts prove each call
	// was independent.
	return propose.Proposal{Command: "uptime # " + req.Facts.Hostname}, nil
}

func specs(names ...string) []TargetSpec {
	out := make([]TargetSpec, 0, len(names))
	for _, name := range names {
		out = append(out, TargetSpec{Name: name, Target: config.Target{Host: name + ".internal"}})
	}
	return out
}

func TestProposeAllIsPerTarget(t *testing.T) {
	b := New(echoProposer, newHostExecutor(), hostFacts{}, WithLogger(logger.Noop()))
	proposals := b.ProposeAll(context.Background(), specs("web1", "web2", "db1"), "check load")

	require.Len(t, proposals, 3)
	assert.Equal(t, "web1", proposals[0].Spec.Name)
	assert.Equal(t, "uptime # web1", proposals[0].Command)
	assert.Equal(t, "uptime # db1", proposals[2].Command)
}

func TestExecuteAllPreservesSubmissionOrder(t *testing.T) {
	executor := newHostExecutor()
	executor.results["a.internal"] = runner.Result{ExitCode: 0, Stdout: "up 1 day\n"}
	executor.results["b.internal"] = runner.Result{ExitCode: 0, Stdout: "up 2 days\n"}
	executor.results["c.internal"] = runner.Result{ExitCode: 0, Stdout: "up 3 days\n"}

	b := New(echoProposer, executor, hostFacts{}, WithLogger(logger.Noop()))
	results := b.Run(context.Background(), specs("a", "b", "c"), "uptime everywhere")

	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Target, results[1].Target, results[2].Target})
	assert.Equal(t, "up 2 days\n", results[1].Stdout)
	assert.Equal(t, ExitAllSucceeded, Classify(results))
}

func TestConnectionFailureIsIsolated(t *testing.T) {
	executor := newHostExecutor()
	executor.results["good.internal"] = runner.Result{ExitCode: 0, Stdout: "ok\n"}
	executor.errs["bad.internal"] = errors.New(errors.ErrSSH, "connection refused", "")

	b := New(echoProposer, executor, hostFacts{}, WithLogger(logger.Noop()))
	results := b.Run(context.Background(), specs("good", "bad"), "check")

	require.Len(t, results, 2, "a failing target must not swallow sibling results")
	assert.True(t, results[0].Success())
	assert.False(t, results[1].Success())
	assert.Error(t, results[1].Err)
	assert.Equal(t, ExitPartialFailure, Classify(results))
}

func TestProposalFailureOccupiesItsSlot(t *testing.T) {
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		if req.Facts.Hostname == "b" {
			return propose.Proposal{}, errors.New(errors.ErrExec, "proposer down", "")
		}
		return propose.Proposal{Command: "true"}, nil
	}
	b := New(proposer, newHostExecutor(), hostFacts{}, WithLogger(logger.Noop()))

	results := b.Run(context.Background(), specs("a", "b", "c"), "noop")
	require.Len(t, results, 3)
	assert.True(t, results[0].Success())
	assert.False(t, results[1].Success())
	assert.Contains(t, results[1].Err.Error(), "proposer down")
	assert.True(t, results[2].Success())
}

func TestEmptyProposalFailsItsTarget(t *testing.T) {
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		if req.Facts.Hostname == "b" {
			return propose.Proposal{Command: "true"}, nil
		}
		// The proposer gave up; running "" would exit 0 and look like a pass.
		return propose.Proposal{}, nil
	}
	executor := newHostExecutor()
	b := New(proposer, executor, hostFacts{}, WithLogger(logger.Noop()))

	results := b.Run(context.Background(), specs("a", "b"), "do something vague")
	require.Len(t, results, 2)
	assert.False(t, results[0].Success())
	assert.True(t, errors.IsCode(results[0].Err, errors.ErrExec))
	assert.True(t, results[1].Success())
	assert.NotContains(t, executor.ran, "a.internal", "an empty command must never be dispatched")
	assert.Equal(t, ExitPartialFailure, Classify(results))

	allEmpty := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{}, nil
	}
	results = New(allEmpty, newHostExecutor(), hostFacts{}, WithLogger(logger.Noop())).
		Run(context.Background(), specs("a", "b"), "do something vague")
	assert.Equal(t, ExitTotalFailure, Classify(results))
}

func TestClassify(t *testing.T) {
	ok := Result{ExitCode: 0}
	failed := Result{ExitCode: 2}
	sigpipe := Result{ExitCode: 141, Stdout: "partial\n"}
	sigpipeNoOutput := Result{ExitCode: 141}

	tests := []struct {
		name    string
		results []Result
		want    int
	}{
		{"all succeed", []Result{ok, ok}, ExitAllSucceeded},
		{"partial", []Result{ok, failed}, ExitPartialFailure},
		{"total", []Result{failed, failed}, ExitTotalFailure},
		{"empty", nil, ExitTotalFailure},
		{"sigpipe with output succeeds", []Result{sigpipe}, ExitAllSucceeded},
		{"sigpipe without output fails", []Result{sigpipeNoOutput}, ExitTotalFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.results))
		})
	}
}

func TestResultOutputMergesStreams(t *testing.T) {
	r := Result{Stdout: "line\n", Stderr: "warning\n"}
	assert.Equal(t, "line\nwarning\n", r.Output())
	assert.Equal(t, "only-err\n", Result{Stderr: "only-err\n"}.Output())
}
