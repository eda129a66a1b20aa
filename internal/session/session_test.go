package session

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/runner"
	"github.com/nlsh-dev/nlsh/pkg/sshmux"
)

// fakeExecutor returns scripted results per command and records what ran.
type fakeExecutor struct {
	results map[string]runner.Result
	errs    map[string]error
	ran     []string
}

func (f *fakeExecutor) Run(_ context.Context, _ *config.Target, command string, _ runner.Options) (runner.Result, error) {
	f.ran = append(f.ran, command)
	if err, ok := f.errs[command]; ok {
		return runner.Result{}, err
	}
	if result, ok := f.results[command]; ok {
		return result, nil
	}
	return runner.Result{ExitCode: 0}, nil
}

type fixedFacts struct{}

func (fixedFacts) Get(context.Context, string, *config.Target, bool) (facts.Facts, error) {
	return facts.Facts{OS: "Linux", Shell: "zsh", Hostname: "test-box"}, nil
}

func newTestOrchestrator(proposer propose.Func, executor Executor, opts ...Option) *Orchestrator {
	opts = append(opts, WithConfirmer(AutoConfirmer{}), WithLogger(logger.Noop()))
	return New(proposer, executor, fixedFacts{}, opts...)
}

func TestSingleStepSuccess(t *testing.T) {
	executor := &fakeExecutor{results: map[string]runner.Result{
		"df -h": {ExitCode: 0, Stdout: "Filesystem ...\n"},
	}}
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		assert.Equal(t, "show disk usage", req.Prompt)
		assert.Equal(t, "Linux", req.Facts.OS)
		return propose.Proposal{Command: "df -h"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "show disk usage", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome.State)
	require.Len(t, outcome.Steps, 1)
	assert.Equal(t, "df -h", outcome.Steps[0].Command)
	assert.Equal(t, 0, outcome.Steps[0].ExitCode)
	assert.Equal(t, 0, outcome.ExitCode())
}

func TestTwoStepLoopFeedsResultsBack(t *testing.T) {
	executor := &fakeExecutor{results: map[string]runner.Result{
		"find /var/log -name '*.log' -mtime -1": {ExitCode: 0, Stdout: "/var/log/app.log\n"},
		"tar czf logs.tar.gz /var/log/app.log":  {ExitCode: 0},
	}}
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		switch len(req.Steps) {
		case 0:
			return propose.Proposal{
				Command:  "find /var/log -name '*.log' -mtime -1",
				Continue: true,
				NextHint: "archive whatever was found",
			}, nil
		case 1:
			// The first round's result must be visible here.
			assert.Equal(t, "/var/log/app.log\n", req.Steps[0].Output)
			assert.Equal(t, "archive whatever was found", req.Steps[0].NextHint)
			assert.True(t, req.Steps[0].ContinueRequested)
			return propose.Proposal{Command: "tar czf logs.tar.gz /var/log/app.log"}, nil
		default:
			t.Fatal("proposer called too many times")
			return propose.Proposal{}, nil
		}
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "archive yesterday's logs", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome.State)
	require.Len(t, outcome.Steps, 2)
	assert.Equal(t, []string{
		"find /var/log -name '*.log' -mtime -1",
		"tar czf logs.tar.gz /var/log/app.log",
	}, executor.ran)
}

func TestEmptyCommandWithoutContinueFails(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{}, nil
	}
	executor := &fakeExecutor{}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "do nothing", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.State)
	assert.True(t, errors.IsCode(outcome.Err, errors.ErrExec))
	assert.Empty(t, executor.ran)
	assert.Equal(t, 1, outcome.ExitCode())
}

func TestBuiltinCommandHaltsWithoutExecuting(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "cd /var/log"}, nil
	}
	executor := &fakeExecutor{}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "go to the log directory", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Halted, outcome.State)
	assert.Equal(t, "cd /var/log", outcome.HaltedCommand)
	assert.Empty(t, executor.ran)
	assert.Equal(t, 0, outcome.ExitCode())
}

type cancellingConfirmer struct{}

func (cancellingConfirmer) Confirm(context.Context, propose.Proposal, int) (Confirmation, error) {
	return Confirmation{Decision: Cancel}, nil
}

func TestUserCancelStopsSession(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "rm -rf /tmp/scratch"}, nil
	}
	executor := &fakeExecutor{}
	orch := New(proposer, executor, fixedFacts{},
		WithConfirmer(cancellingConfirmer{}), WithLogger(logger.Noop()))

	outcome, err := orch.Run(context.Background(), "clean scratch space", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, outcome.State)
	assert.Empty(t, executor.ran)
}

type editingConfirmer struct{}

func (editingConfirmer) Confirm(_ context.Context, proposal propose.Proposal, _ int) (Confirmation, error) {
	return Confirmation{Decision: Accept, Command: proposal.Command + " --dry-run"}, nil
}

func TestEditedCommandIsExecutedAndRecorded(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "apt upgrade"}, nil
	}
	executor := &fakeExecutor{}
	orch := New(proposer, executor, fixedFacts{},
		WithConfirmer(editingConfirmer{}), WithLogger(logger.Noop()))

	outcome, err := orch.Run(context.Background(), "upgrade packages", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"apt upgrade --dry-run"}, executor.ran)
	assert.Equal(t, "apt upgrade --dry-run", outcome.Steps[0].Command)
}

type builtinEditingConfirmer struct{}

func (builtinEditingConfirmer) Confirm(context.Context, propose.Proposal, int) (Confirmation, error) {
	return Confirmation{Decision: Accept, Command: "cd /srv/app"}, nil
}

func TestEditIntoBuiltinHaltsWithoutExecuting(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "ls /srv/app"}, nil
	}
	executor := &fakeExecutor{}
	orch := New(proposer, executor, fixedFacts{},
		WithConfirmer(builtinEditingConfirmer{}), WithLogger(logger.Noop()))

	outcome, err := orch.Run(context.Background(), "look at the app directory", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Halted, outcome.State)
	assert.Equal(t, "cd /srv/app", outcome.HaltedCommand)
	assert.Empty(t, executor.ran)
}

func TestFailureWithoutContinueFails(t *testing.T) {
	executor := &fakeExecutor{results: map[string]runner.Result{
		"systemctl status nginx": {ExitCode: 3, Stderr: "inactive\n"},
	}}
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "systemctl status nginx"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "is nginx up", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.State)
	require.Len(t, outcome.Steps, 1)
	assert.Equal(t, 3, outcome.Steps[0].ExitCode)
	assert.Contains(t, outcome.Err.Error(), "exit")
}

func TestFailureWithContinueFoldsOutputIntoNextRequest(t *testing.T) {
	executor := &fakeExecutor{results: map[string]runner.Result{
		"cat /etc/nginx.conf":       {ExitCode: 1, Stderr: "No such file or directory\n"},
		"cat /etc/nginx/nginx.conf": {ExitCode: 0, Stdout: "worker_processes auto;\n"},
	}}
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		if len(req.Steps) == 0 {
			return propose.Proposal{Command: "cat /etc/nginx.conf", Continue: true}, nil
		}
		assert.Equal(t, 1, req.Steps[0].ExitCode)
		assert.Contains(t, req.Steps[0].Output, "No such file")
		return propose.Proposal{Command: "cat /etc/nginx/nginx.conf"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "show the nginx config", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome.State)
	require.Len(t, outcome.Steps, 2)
}

func TestRunErrorWithContinueFoldsIntoNextRequest(t *testing.T) {
	dropped := &sshmux.ConnectionError{Target: "deploy@web:22", Cause: stderrors.New("connection reset")}
	executor := &fakeExecutor{
		errs:    map[string]error{"uptime": dropped},
		results: map[string]runner.Result{"true": {ExitCode: 0}},
	}
	proposer := func(_ context.Context, req propose.Request) (propose.Proposal, error) {
		if len(req.Steps) == 0 {
			return propose.Proposal{Command: "uptime", Continue: true}, nil
		}
		// The drop rides along as a step instead of killing the session.
		assert.Equal(t, "uptime", req.Steps[0].Command)
		assert.Equal(t, -1, req.Steps[0].ExitCode)
		assert.Contains(t, req.Steps[0].Output, "connection reset")
		return propose.Proposal{Command: "true"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "how long has web been up", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome.State)
	require.Len(t, outcome.Steps, 2)
	assert.Equal(t, []string{"uptime", "true"}, executor.ran)
}

func TestRunErrorWithoutContinueFailsSession(t *testing.T) {
	dropped := &sshmux.ConnectionError{Target: "deploy@web:22", Cause: stderrors.New("connection reset")}
	executor := &fakeExecutor{errs: map[string]error{"uptime": dropped}}
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "uptime"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "how long has web been up", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.State)
	assert.ErrorIs(t, outcome.Err, dropped)
	assert.Empty(t, outcome.Steps)
}

func TestSigpipeWithOutputCountsAsSuccess(t *testing.T) {
	executor := &fakeExecutor{results: map[string]runner.Result{
		"journalctl -u app | head -n 5": {ExitCode: 141, Stdout: "line1\nline2\n"},
	}}
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{Command: "journalctl -u app | head -n 5"}, nil
	}

	outcome, err := newTestOrchestrator(proposer, executor).Run(context.Background(), "first app log lines", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome.State)
}

func TestMaxStepsCapStopsRunawayLoop(t *testing.T) {
	calls := 0
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		calls++
		return propose.Proposal{Command: "true", Continue: true}, nil
	}
	executor := &fakeExecutor{}

	outcome, err := newTestOrchestrator(proposer, executor, WithMaxSteps(3)).Run(context.Background(), "loop forever", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.State)
	assert.Equal(t, 3, calls)
	assert.Len(t, outcome.Steps, 3)
	assert.Contains(t, outcome.Err.Error(), "3 steps")
}

func TestProposerErrorFailsSession(t *testing.T) {
	proposer := func(context.Context, propose.Request) (propose.Proposal, error) {
		return propose.Proposal{}, errors.New(errors.ErrExec, "proposer exploded", "")
	}

	outcome, err := newTestOrchestrator(proposer, &fakeExecutor{}).Run(context.Background(), "anything", "", nil)
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.State)
	assert.Contains(t, outcome.Err.Error(), "proposer exploded")
}

func TestEmptyPromptIsRejected(t *testing.T) {
	_, err := newTestOrchestrator(nil, &fakeExecutor{}).Run(context.Background(), "  ", "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
}

func TestIsShellBuiltin(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"cd /tmp", true},
		{"export PATH=$PATH:/opt/bin", true},
		{"source ~/.zshrc", true},
		{". ./env.sh", true},
		{"exit 1", true},
		{"cd /tmp && make", false},
		{"ls -la", false},
		{"echo export", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isShellBuiltin(tt.command), "command %q", tt.command)
	}
}
