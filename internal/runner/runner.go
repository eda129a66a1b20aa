// Package runner executes single commands locally or on a remote target,
// streaming output as it arrives. Remote execution goes through the shared
// sshmux transport; local execution uses the platform shell with pipeline
// failures surfaced.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/pkg/sshmux"
)

// sigpipeExit is the exit code of a process killed by SIGPIPE (128+13).
// Pipelines like `ps aux | head -3` end this way when the reader finishes
// first, which is not a failure as long as output was produced.
const sigpipeExit = 141

// Options control a single command run.
type Options struct {
	// WorkDir overrides the target's configured working directory.
	WorkDir string

	// Timeout kills the command after this duration. 0 means no timeout.
	Timeout time.Duration

	// OnStdout and OnStderr fire incrementally as output arrives.
	// Required for progress visibility on long-running commands.
	OnStdout func(chunk []byte)
	OnStderr func(chunk []byte)
}

// Result holds a completed command's exit status and captured output.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success classifies the result. Exit 0 passes; exit 141 passes only when
// the command produced stdout, since an empty-handed SIGPIPE means the
// failing stage was upstream.
func (r Result) Success() bool {
	if r.ExitCode == 0 {
		return true
	}
	return r.ExitCode == sigpipeExit && len(r.Stdout) > 0
}

// TimeoutError reports a per-call timeout. It is distinct from a nonzero
// exit: the command was killed, it didn't fail on its own.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Command)
}

// Connector yields a live transport for a target. Satisfied by *sshmux.Mux.
type Connector interface {
	Connect(target config.Target) (sshmux.Client, error)
}

// Runner executes commands locally or over a target's shared transport.
type Runner struct {
	mux Connector
	log logger.Logger
}

// New creates a runner. mux may be nil for local-only use.
func New(mux Connector, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Noop()
	}
	return &Runner{mux: mux, log: log}
}

// Run executes one command. A nil target runs locally via the platform
// default shell; otherwise the command runs on the target's transport,
// prefixed with a cd into its working directory when one is configured.
func (r *Runner) Run(ctx context.Context, target *config.Target, command string, opts Options) (Result, error) {
	if target == nil {
		return r.runLocal(ctx, command, opts)
	}
	return r.runRemote(ctx, *target, command, opts)
}

// runRemote executes the command over the target's multiplexed transport.
func (r *Runner) runRemote(ctx context.Context, target config.Target, command string, opts Options) (Result, error) {
	if r.mux == nil {
		return Result{ExitCode: -1}, errors.New(errors.ErrSSH,
			"No connection multiplexer configured",
			"This shouldn't happen - please report this bug!")
	}

	client, err := r.mux.Connect(target)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	workDir := target.WorkDir
	if opts.WorkDir != "" {
		workDir = opts.WorkDir
	}
	fullCmd := command
	if workDir != "" {
		fullCmd = "cd " + shellQuote(workDir) + " && " + command
	}

	execCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	stdout := newStreamWriter(opts.OnStdout)
	stderr := newStreamWriter(opts.OnStderr)

	r.log.Debug("remote exec on %s: %s", target.Host, fullCmd)
	exitCode, err := client.ExecStreamContext(execCtx, fullCmd, stdout, stderr)

	result := Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) && opts.Timeout > 0 {
			return result, &TimeoutError{Command: command, Timeout: opts.Timeout}
		}
		return result, err
	}

	return result, nil
}

// shellQuote single-quotes a string for safe POSIX shell use.
func shellQuote(s string) string {
	out := "'"
	for _, c := range s {
		if c == '\'' {
			out += `'\''`
			continue
		}
		out += string(c)
	}
	return out + "'"
}
